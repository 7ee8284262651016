package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionRecord is one completed training session logged by a trainer.
// Creating a record consumes a regular unit from the member's ledger; deleting it gives the unit back.
type SessionRecord struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID           primitive.ObjectID `bson:"memberId" json:"memberId"`
	TrainerID          primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Author
	OccurredAt         time.Time          `bson:"occurredAt" json:"occurredAt"`
	DurationMinutes    int                `bson:"durationMinutes" json:"durationMinutes"`
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	TrainerPrivateMemo string             `bson:"trainerPrivateMemo,omitempty" json:"trainerPrivateMemo,omitempty"`
	Completed          bool               `bson:"completed" json:"completed"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsAuthoredBy reports whether id wrote this record.
func (r *SessionRecord) IsAuthoredBy(id primitive.ObjectID) bool {
	return r.TrainerID == id
}
