package domain

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sentinel errors. Match with errors.Is; the structured errors below unwrap to them.
var (
	ErrNotFound            = errors.New("not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrInsufficientBalance = errors.New("insufficient session balance")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
)

// Intent names what an actor attempted when authorization was checked.
type Intent string

const (
	IntentRead      Intent = "read"
	IntentWrite     Intent = "write"
	IntentWriteOwn  Intent = "write-own"
	IntentCustodian Intent = "write-custodian"
	IntentAuthor    Intent = "edit-authored"
	IntentProfile   Intent = "edit-profile"
	IntentAdmin     Intent = "admin"
)

// AccessDeniedError is returned when an authorization rule rejects an actor.
type AccessDeniedError struct {
	Intent   Intent
	TargetID primitive.ObjectID
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s on %s", e.Intent, e.TargetID.Hex())
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// InsufficientBalanceError is returned when a ledger has nothing left of the requested kind.
type InsufficientBalanceError struct {
	MemberID primitive.ObjectID
	Kind     SessionKind
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("member %s has no remaining %s sessions", e.MemberID.Hex(), e.Kind)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(entity string, id primitive.ObjectID) error {
	return &NotFoundError{Entity: entity, ID: id.Hex()}
}

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsAccessDenied(err error) bool        { return errors.Is(err, ErrAccessDenied) }
func IsInsufficientBalance(err error) bool { return errors.Is(err, ErrInsufficientBalance) }
func IsValidation(err error) bool          { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool            { return errors.Is(err, ErrConflict) }
