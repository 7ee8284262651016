// Package authz decides whether an actor may read or write records owned by a member.
// Every domain service asks this package instead of walking trainer relationships itself.
package authz

import (
	"alcyxob/gym-sessions/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The rules below are pure; Engine adds the directory lookup.

// ReadAllowed: admin, then self, then the assigned trainer.
func ReadAllowed(actor domain.Actor, target *domain.Member) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.ID == target.ID:
		return true
	case actor.Role == domain.RoleTrainer && target.IsAssignedTo(actor.ID):
		return true
	}
	return false
}

// CustodianWriteAllowed: admin, or the trainer the target is assigned to.
// The subject member never qualifies, whatever their tier.
func CustodianWriteAllowed(actor domain.Actor, target *domain.Member) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == domain.RoleTrainer && target.IsAssignedTo(actor.ID)
}

// OwnWriteAllowed: the member writing their own records, only while their stored tier is PT.
func OwnWriteAllowed(actor domain.Actor, target *domain.Member) bool {
	return actor.ID == target.ID && target.Role == domain.RolePT
}

// WriteAllowed is the general write rule for member-owned content such as diet and workout logs.
func WriteAllowed(actor domain.Actor, target *domain.Member) bool {
	return CustodianWriteAllowed(actor, target) || OwnWriteAllowed(actor, target)
}

// AuthorEditAllowed: admin, or whoever authored the record.
func AuthorEditAllowed(actor domain.Actor, authorID primitive.ObjectID) bool {
	return actor.IsAdmin() || actor.ID == authorID
}

// ProfileEditAllowed: admin, self, or the assigned trainer. Role is never part of a profile.
func ProfileEditAllowed(actor domain.Actor, target *domain.Member) bool {
	return ReadAllowed(actor, target)
}

// CommentDeleteAllowed: admin, the comment's author, or the trainer assigned to the log's owner.
// owner is nil when the owner no longer exists.
func CommentDeleteAllowed(actor domain.Actor, authorID primitive.ObjectID, owner *domain.Member) bool {
	if AuthorEditAllowed(actor, authorID) {
		return true
	}
	return owner != nil && actor.Role == domain.RoleTrainer && owner.IsAssignedTo(actor.ID)
}

// SelfOrAdmin guards per-account resources such as an inbox or a trainee list.
func SelfOrAdmin(actor domain.Actor, subjectID primitive.ObjectID) bool {
	return actor.IsAdmin() || actor.ID == subjectID
}

// Allowed evaluates the rule matching intent.
func Allowed(actor domain.Actor, target *domain.Member, intent domain.Intent) bool {
	switch intent {
	case domain.IntentRead:
		return ReadAllowed(actor, target)
	case domain.IntentWrite:
		return WriteAllowed(actor, target)
	case domain.IntentWriteOwn:
		return OwnWriteAllowed(actor, target)
	case domain.IntentCustodian:
		return CustodianWriteAllowed(actor, target)
	case domain.IntentProfile:
		return ProfileEditAllowed(actor, target)
	case domain.IntentAdmin:
		return actor.IsAdmin()
	}
	return false
}
