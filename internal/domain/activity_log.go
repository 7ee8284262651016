package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogKind separates diet entries from workout entries. Both share one shape.
type LogKind string

const (
	LogDiet    LogKind = "diet"
	LogWorkout LogKind = "workout"
)

func (k LogKind) Valid() bool {
	return k == LogDiet || k == LogWorkout
}

// Label is the human name used in notification messages.
func (k LogKind) Label() string {
	if k == LogDiet {
		return "Diet log"
	}
	return "Workout log"
}

// ActivityLog is a diet or workout entry kept for a member, optionally with a photo or video in S3.
type ActivityLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind      LogKind            `bson:"kind" json:"kind"`
	MemberID  primitive.ObjectID `bson:"memberId" json:"memberId"`
	AuthorID  primitive.ObjectID `bson:"authorId" json:"authorId"`
	LoggedAt  time.Time          `bson:"loggedAt" json:"loggedAt"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content,omitempty" json:"content,omitempty"`
	Calories  *int               `bson:"calories,omitempty" json:"calories,omitempty"` // Diet only
	MediaKey  string             `bson:"mediaKey,omitempty" json:"-"`                  // S3 object key, internal
	MediaType string             `bson:"mediaType,omitempty" json:"mediaType,omitempty"`
	HasMedia  bool               `bson:"-" json:"hasMedia"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
