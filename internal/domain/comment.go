package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxCommentLength bounds the body of a diet log comment, in characters.
const MaxCommentLength = 1000

// LogComment is feedback left on a diet log by the member or one of their custodians.
type LogComment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LogID     primitive.ObjectID `bson:"logId" json:"logId"`
	MemberID  primitive.ObjectID `bson:"memberId" json:"memberId"` // Owner of the log
	AuthorID  primitive.ObjectID `bson:"authorId" json:"authorId"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
