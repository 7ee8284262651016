package memory

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) GetByMemberID(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.ledgers[memberID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *ledgerRepo) getOrCreateLocked(memberID primitive.ObjectID) domain.SessionLedger {
	l, ok := r.s.ledgers[memberID]
	if !ok {
		l = *domain.NewSessionLedger(memberID, r.s.now())
		l.ID = primitive.NewObjectID()
		r.s.ledgers[memberID] = l
	}
	return l
}

func (r *ledgerRepo) GetOrCreate(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()
	l := r.getOrCreateLocked(memberID)
	return &l, nil
}

func (r *ledgerRepo) AddSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	l := r.getOrCreateLocked(memberID)
	l.Add(regular, service, validFrom, validTo)
	l.UpdatedAt = r.s.now()
	r.s.ledgers[memberID] = l
	return &l, nil
}

func (r *ledgerRepo) ConsumeOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.ledgers[memberID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := l.Consume(kind); err != nil {
		return nil, repository.ErrConditionNotMet
	}
	l.UpdatedAt = r.s.now()
	r.s.ledgers[memberID] = l
	return &l, nil
}

func (r *ledgerRepo) RestoreOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.ledgers[memberID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !l.Restore(kind) {
		return nil, repository.ErrConditionNotMet
	}
	l.UpdatedAt = r.s.now()
	r.s.ledgers[memberID] = l
	return &l, nil
}

func (r *ledgerRepo) RevokeSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.ledgers[memberID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if l.RegularTotal-regular < l.RegularUsed || l.ServiceTotal-service < l.ServiceUsed {
		return nil, repository.ErrConditionNotMet
	}
	l.RegularTotal -= regular
	l.ServiceTotal -= service
	l.ValidFrom, l.ValidTo = validFrom, validTo
	l.UpdatedAt = r.s.now()
	r.s.ledgers[memberID] = l
	return &l, nil
}

func (r *ledgerRepo) ListByMemberIDs(ctx context.Context, memberIDs []primitive.ObjectID) ([]domain.SessionLedger, error) {
	defer r.s.lock(ctx)()

	out := []domain.SessionLedger{}
	for _, id := range memberIDs {
		if l, ok := r.s.ledgers[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *ledgerRepo) DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	delete(r.s.ledgers, memberID)
	return nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Append(ctx context.Context, e *domain.LedgerHistoryEntry) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	e.ID = primitive.NewObjectID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.now()
	}
	r.s.history = append(r.s.history, *e)
	return e.ID, nil
}

// newestFirst keeps insertion order as the tiebreak so entries created within
// the same clock tick still come back in reverse append order.
func (r *historyRepo) newestFirst(memberID primitive.ObjectID) []domain.LedgerHistoryEntry {
	out := []domain.LedgerHistoryEntry{}
	for i := len(r.s.history) - 1; i >= 0; i-- {
		if r.s.history[i].MemberID == memberID {
			out = append(out, r.s.history[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *historyRepo) Latest(ctx context.Context, memberID primitive.ObjectID) (*domain.LedgerHistoryEntry, error) {
	defer r.s.lock(ctx)()

	entries := r.newestFirst(memberID)
	if len(entries) == 0 {
		return nil, repository.ErrNotFound
	}
	return &entries[0], nil
}

func (r *historyRepo) ListByMemberID(ctx context.Context, memberID primitive.ObjectID) ([]domain.LedgerHistoryEntry, error) {
	defer r.s.lock(ctx)()
	return r.newestFirst(memberID), nil
}

func (r *historyRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	for i, e := range r.s.history {
		if e.ID == id {
			r.s.history = append(r.s.history[:i:i], r.s.history[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *historyRepo) DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	kept := r.s.history[:0:0]
	for _, e := range r.s.history {
		if e.MemberID != memberID {
			kept = append(kept, e)
		}
	}
	r.s.history = kept
	return nil
}
