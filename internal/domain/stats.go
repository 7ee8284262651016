package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NoMediaType is the MediaCounts key for entries without an attachment.
const NoMediaType = "none"

// LogSummary aggregates one member's logs of one kind.
type LogSummary struct {
	MemberID      primitive.ObjectID `json:"memberId"`
	Count         int64              `json:"count"`
	LastCreatedAt *time.Time         `json:"lastCreatedAt,omitempty"`
	MediaCounts   map[string]int64   `json:"mediaCounts"` // Keyed by content type, NoMediaType for none
}

// Merge folds another partial summary for the same member into s.
func (s *LogSummary) Merge(other LogSummary) {
	s.Count += other.Count
	if other.LastCreatedAt != nil && (s.LastCreatedAt == nil || other.LastCreatedAt.After(*s.LastCreatedAt)) {
		s.LastCreatedAt = other.LastCreatedAt
	}
	if s.MediaCounts == nil {
		s.MediaCounts = make(map[string]int64, len(other.MediaCounts))
	}
	for k, v := range other.MediaCounts {
		s.MediaCounts[k] += v
	}
}
