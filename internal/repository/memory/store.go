// Package memory is an in-process repository backend used by tests and by
// the "memory" database driver for local development.
package memory

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type txKey struct{}

// Store keeps every collection in maps guarded by one mutex.
// WithinTx holds the mutex for the whole unit of work and rolls back to a snapshot on error.
type Store struct {
	mu sync.Mutex

	members       map[primitive.ObjectID]domain.Member
	ledgers       map[primitive.ObjectID]domain.SessionLedger // keyed by member
	history       []domain.LedgerHistoryEntry
	sessions      map[primitive.ObjectID]domain.SessionRecord
	logs          map[primitive.ObjectID]domain.ActivityLog
	comments      map[primitive.ObjectID]domain.LogComment
	notifications []domain.Notification

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		members:  make(map[primitive.ObjectID]domain.Member),
		ledgers:  make(map[primitive.ObjectID]domain.SessionLedger),
		sessions: make(map[primitive.ObjectID]domain.SessionRecord),
		logs:     make(map[primitive.ObjectID]domain.ActivityLog),
		comments: make(map[primitive.ObjectID]domain.LogComment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Set {
	return repository.Set{
		Members:       &memberRepo{s},
		Roles:         &memberRepo{s},
		Ledgers:       &ledgerRepo{s},
		History:       &historyRepo{s},
		Sessions:      &sessionRepo{s},
		Logs:          &logRepo{s},
		Comments:      &commentRepo{s},
		Notifications: &notificationRepo{s},
		Tx:            s,
	}
}

// lock acquires the store unless ctx already belongs to this store's open unit of work.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RollsBack is always true: a failed unit of work restores the snapshot.
func (s *Store) RollsBack() bool { return true }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	members       map[primitive.ObjectID]domain.Member
	ledgers       map[primitive.ObjectID]domain.SessionLedger
	history       []domain.LedgerHistoryEntry
	sessions      map[primitive.ObjectID]domain.SessionRecord
	logs          map[primitive.ObjectID]domain.ActivityLog
	comments      map[primitive.ObjectID]domain.LogComment
	notifications []domain.Notification
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		members:       copyMap(s.members),
		ledgers:       copyMap(s.ledgers),
		history:       append([]domain.LedgerHistoryEntry(nil), s.history...),
		sessions:      copyMap(s.sessions),
		logs:          copyMap(s.logs),
		comments:      copyMap(s.comments),
		notifications: append([]domain.Notification(nil), s.notifications...),
	}
}

func (s *Store) restore(snap snapshot) {
	s.members = snap.members
	s.ledgers = snap.ledgers
	s.history = snap.history
	s.sessions = snap.sessions
	s.logs = snap.logs
	s.comments = snap.comments
	s.notifications = snap.notifications
}
