package memory

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(ctx context.Context, rec *domain.SessionRecord) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	rec.ID = primitive.NewObjectID()
	now := r.s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.s.sessions[rec.ID] = *rec
	return rec.ID, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRecord, error) {
	defer r.s.lock(ctx)()

	rec, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (r *sessionRepo) Update(ctx context.Context, rec *domain.SessionRecord) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.sessions[rec.ID]; !ok {
		return repository.ErrNotFound
	}
	rec.UpdatedAt = r.s.now()
	r.s.sessions[rec.ID] = *rec
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r *sessionRepo) list(keep func(domain.SessionRecord) bool) []domain.SessionRecord {
	out := []domain.SessionRecord{}
	for _, rec := range r.s.sessions {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out
}

func (r *sessionRepo) ListByMemberID(ctx context.Context, memberID primitive.ObjectID, from, to *time.Time) ([]domain.SessionRecord, error) {
	defer r.s.lock(ctx)()
	return r.list(func(rec domain.SessionRecord) bool {
		if rec.MemberID != memberID {
			return false
		}
		if from != nil && rec.OccurredAt.Before(*from) {
			return false
		}
		if to != nil && rec.OccurredAt.After(*to) {
			return false
		}
		return true
	}), nil
}

func (r *sessionRepo) ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.SessionRecord, error) {
	defer r.s.lock(ctx)()
	return r.list(func(rec domain.SessionRecord) bool { return rec.TrainerID == trainerID }), nil
}

func (r *sessionRepo) Count(ctx context.Context) (int64, error) {
	defer r.s.lock(ctx)()
	return int64(len(r.s.sessions)), nil
}

type logRepo struct{ s *Store }

func (r *logRepo) Create(ctx context.Context, entry *domain.ActivityLog) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	entry.ID = primitive.NewObjectID()
	now := r.s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.s.logs[entry.ID] = *entry
	return entry.ID, nil
}

func (r *logRepo) GetByID(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) (*domain.ActivityLog, error) {
	defer r.s.lock(ctx)()

	entry, ok := r.s.logs[id]
	if !ok || entry.Kind != kind {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

func (r *logRepo) Update(ctx context.Context, entry *domain.ActivityLog) error {
	defer r.s.lock(ctx)()

	existing, ok := r.s.logs[entry.ID]
	if !ok || existing.Kind != entry.Kind {
		return repository.ErrNotFound
	}
	entry.UpdatedAt = r.s.now()
	r.s.logs[entry.ID] = *entry
	return nil
}

func (r *logRepo) Delete(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	entry, ok := r.s.logs[id]
	if !ok || entry.Kind != kind {
		return repository.ErrNotFound
	}
	delete(r.s.logs, id)
	return nil
}

func (r *logRepo) ListByMemberID(ctx context.Context, kind domain.LogKind, memberID primitive.ObjectID) ([]domain.ActivityLog, error) {
	defer r.s.lock(ctx)()

	out := []domain.ActivityLog{}
	for _, entry := range r.s.logs {
		if entry.Kind == kind && entry.MemberID == memberID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	return out, nil
}

func (r *logRepo) Summarize(ctx context.Context, kind domain.LogKind, memberID *primitive.ObjectID) ([]domain.LogSummary, error) {
	defer r.s.lock(ctx)()

	byMember := make(map[primitive.ObjectID]*domain.LogSummary)
	for _, entry := range r.s.logs {
		if entry.Kind != kind || (memberID != nil && entry.MemberID != *memberID) {
			continue
		}
		media := entry.MediaType
		if entry.MediaKey == "" || media == "" {
			media = domain.NoMediaType
		}
		created := entry.CreatedAt
		sum, ok := byMember[entry.MemberID]
		if !ok {
			sum = &domain.LogSummary{MemberID: entry.MemberID}
			byMember[entry.MemberID] = sum
		}
		sum.Merge(domain.LogSummary{Count: 1, LastCreatedAt: &created, MediaCounts: map[string]int64{media: 1}})
	}

	out := make([]domain.LogSummary, 0, len(byMember))
	for _, sum := range byMember {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID.Hex() < out[j].MemberID.Hex() })
	return out, nil
}

type commentRepo struct{ s *Store }

func (r *commentRepo) Create(ctx context.Context, c *domain.LogComment) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	c.ID = primitive.NewObjectID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	r.s.comments[c.ID] = *c
	return c.ID, nil
}

func (r *commentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LogComment, error) {
	defer r.s.lock(ctx)()

	c, ok := r.s.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *commentRepo) ListByLogID(ctx context.Context, logID primitive.ObjectID) ([]domain.LogComment, error) {
	defer r.s.lock(ctx)()

	out := []domain.LogComment{}
	for _, c := range r.s.comments {
		if c.LogID == logID {
			out = append(out, c)
		}
	}
	// ObjectIDs grow with creation order, which breaks ties within one clock tick.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (r *commentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}

func (r *commentRepo) DeleteByLogID(ctx context.Context, logID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, c := range r.s.comments {
		if c.LogID == logID {
			delete(r.s.comments, id)
			n++
		}
	}
	return n, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	n.ID = primitive.NewObjectID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.s.now()
	}
	r.s.notifications = append(r.s.notifications, *n)
	return n.ID, nil
}

func (r *notificationRepo) ListByMemberID(ctx context.Context, memberID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error) {
	defer r.s.lock(ctx)()

	out := []domain.Notification{}
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.MemberID == memberID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, memberID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for _, note := range r.s.notifications {
		if note.MemberID == memberID && !note.Read {
			n++
		}
	}
	return n, nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, memberID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for i := range r.s.notifications {
		if r.s.notifications[i].MemberID == memberID && !r.s.notifications[i].Read {
			r.s.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}
