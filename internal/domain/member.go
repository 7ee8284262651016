package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role distinguishes member tiers from custodian roles.
type Role string

const (
	RoleOT      Role = "OT"      // Base member tier, no active session package
	RolePT      Role = "PT"      // Promoted member tier, holds (or held) a regular session balance
	RoleTrainer Role = "TRAINER" // Coaches assigned members
	RoleAdmin   Role = "ADMIN"   // Full custodian over every member
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOT, RolePT, RoleTrainer, RoleAdmin:
		return true
	}
	return false
}

// IsMemberTier reports whether r is a purchasable member tier (OT or PT).
func (r Role) IsMemberTier() bool {
	return r == RoleOT || r == RolePT
}

// CanCoach reports whether a member with this role may be referenced as someone's trainer.
func (r Role) CanCoach() bool {
	return r == RoleTrainer || r == RoleAdmin
}

// Member is a person known to the gym: a trainee (OT/PT), a trainer or an admin.
type Member struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"` // Unique
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Only meaningful while Role is a member tier.
	TrainerID *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`

	// Tombstone. Soft-deleted members are invisible to every normal query.
	DeletedAt *time.Time `bson:"deletedAt,omitempty" json:"-"`
}

func (m *Member) IsTrainer() bool {
	return m.Role == RoleTrainer
}

func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// IsAssignedTo reports whether trainerID is this member's trainer.
func (m *Member) IsAssignedTo(trainerID primitive.ObjectID) bool {
	return m.TrainerID != nil && *m.TrainerID == trainerID
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID   primitive.ObjectID
	Role Role
}

// ActorOf returns the Actor view of a stored member.
func ActorOf(m *Member) Actor {
	return Actor{ID: m.ID, Role: m.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
