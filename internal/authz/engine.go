package authz

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberFinder is the directory lookup the engine needs.
type MemberFinder interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Member, error)
}

// Engine answers authorization questions against the live member directory.
// It never mutates anything.
type Engine struct {
	members MemberFinder
}

func NewEngine(members MemberFinder) *Engine {
	return &Engine{members: members}
}

// Target loads an active member, mapping a missing row to domain.ErrNotFound.
func (e *Engine) Target(ctx context.Context, id primitive.ObjectID) (*domain.Member, error) {
	m, err := e.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("member", id)
		}
		return nil, fmt.Errorf("load member %s: %w", id.Hex(), err)
	}
	return m, nil
}

func (e *Engine) decide(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID, intent domain.Intent) (bool, error) {
	target, err := e.Target(ctx, targetID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return Allowed(actor, target, intent), nil
}

func (e *Engine) CanRead(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID) (bool, error) {
	return e.decide(ctx, actor, targetID, domain.IntentRead)
}

func (e *Engine) CanWrite(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID) (bool, error) {
	return e.decide(ctx, actor, targetID, domain.IntentWrite)
}

func (e *Engine) CanWriteOwn(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID) (bool, error) {
	return e.decide(ctx, actor, targetID, domain.IntentWriteOwn)
}

func (e *Engine) CanWriteAsCustodian(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID) (bool, error) {
	return e.decide(ctx, actor, targetID, domain.IntentCustodian)
}

// Require loads the target and checks intent. It returns the loaded member on success,
// domain.ErrNotFound when the member does not exist and *domain.AccessDeniedError on denial.
func (e *Engine) Require(ctx context.Context, actor domain.Actor, targetID primitive.ObjectID, intent domain.Intent) (*domain.Member, error) {
	target, err := e.Target(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !Allowed(actor, target, intent) {
		return nil, Deny(intent, targetID)
	}
	return target, nil
}

// RequireAuthor checks that actor may edit something authored by authorID.
func (e *Engine) RequireAuthor(actor domain.Actor, authorID, recordID primitive.ObjectID) error {
	if !AuthorEditAllowed(actor, authorID) {
		return Deny(domain.IntentAuthor, recordID)
	}
	return nil
}

// RequireCommentDelete checks CommentDeleteAllowed, loading the log owner only when authorship is not enough.
func (e *Engine) RequireCommentDelete(ctx context.Context, actor domain.Actor, comment *domain.LogComment) error {
	if AuthorEditAllowed(actor, comment.AuthorID) {
		return nil
	}
	owner, err := e.Target(ctx, comment.MemberID)
	if err != nil && !domain.IsNotFound(err) {
		return err
	}
	if !CommentDeleteAllowed(actor, comment.AuthorID, owner) {
		return Deny(domain.IntentAuthor, comment.ID)
	}
	return nil
}

// RequireSelfOrAdmin checks that actor is subjectID or an admin.
func (e *Engine) RequireSelfOrAdmin(actor domain.Actor, subjectID primitive.ObjectID) error {
	if !SelfOrAdmin(actor, subjectID) {
		return Deny(domain.IntentRead, subjectID)
	}
	return nil
}

// RequireAdmin checks that actor is an admin.
func (e *Engine) RequireAdmin(actor domain.Actor, targetID primitive.ObjectID) error {
	if !actor.IsAdmin() {
		return Deny(domain.IntentAdmin, targetID)
	}
	return nil
}

func Deny(intent domain.Intent, targetID primitive.ObjectID) error {
	return &domain.AccessDeniedError{Intent: intent, TargetID: targetID}
}
