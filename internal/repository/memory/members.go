package memory

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memberRepo struct{ s *Store }

func (r *memberRepo) Create(ctx context.Context, m *domain.Member) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.members {
		if strings.EqualFold(existing.Email, m.Email) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	m.ID = primitive.NewObjectID()
	now := r.s.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.s.members[m.ID] = *m
	return m.ID, nil
}

func (r *memberRepo) active(id primitive.ObjectID) (domain.Member, bool) {
	m, ok := r.s.members[id]
	if !ok || m.DeletedAt != nil {
		return domain.Member{}, false
	}
	return m, true
}

func (r *memberRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Member, error) {
	defer r.s.lock(ctx)()

	m, ok := r.active(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *memberRepo) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	defer r.s.lock(ctx)()

	for _, m := range r.s.members {
		if m.DeletedAt == nil && strings.EqualFold(m.Email, email) {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memberRepo) GetByPhone(ctx context.Context, phone string) (*domain.Member, error) {
	defer r.s.lock(ctx)()

	for _, m := range r.s.members {
		if m.DeletedAt == nil && phone != "" && m.Phone == phone {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memberRepo) filter(keep func(domain.Member) bool) []domain.Member {
	out := []domain.Member{}
	for _, m := range r.s.members {
		if m.DeletedAt == nil && keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *memberRepo) List(ctx context.Context, role *domain.Role) ([]domain.Member, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(m domain.Member) bool { return role == nil || m.Role == *role }), nil
}

func (r *memberRepo) ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Member, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(m domain.Member) bool { return m.IsAssignedTo(trainerID) }), nil
}

func (r *memberRepo) ListByRole(ctx context.Context, role domain.Role, trainerID *primitive.ObjectID) ([]domain.Member, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(m domain.Member) bool {
		return m.Role == role && (trainerID == nil || m.IsAssignedTo(*trainerID))
	}), nil
}

func (r *memberRepo) update(id primitive.ObjectID, fn func(*domain.Member)) error {
	m, ok := r.active(id)
	if !ok {
		return repository.ErrNotFound
	}
	fn(&m)
	m.UpdatedAt = r.s.now()
	r.s.members[id] = m
	return nil
}

func (r *memberRepo) SetTrainer(ctx context.Context, memberID, trainerID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	return r.update(memberID, func(m *domain.Member) { m.TrainerID = &trainerID })
}

func (r *memberRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, name, phone string) error {
	defer r.s.lock(ctx)()
	return r.update(id, func(m *domain.Member) { m.Name, m.Phone = name, phone })
}

func (r *memberRepo) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	defer r.s.lock(ctx)()
	return r.update(id, func(m *domain.Member) { m.PasswordHash = hash })
}

func (r *memberRepo) ClearTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, m := range r.s.members {
		if m.IsAssignedTo(trainerID) {
			m.TrainerID = nil
			m.UpdatedAt = r.s.now()
			r.s.members[id] = m
			n++
		}
	}
	return n, nil
}

func (r *memberRepo) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	defer r.s.lock(ctx)()
	return r.update(id, func(m *domain.Member) { m.DeletedAt = &at })
}

func (r *memberRepo) HardDelete(ctx context.Context, id primitive.ObjectID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.members[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.members, id)
	return nil
}

func (r *memberRepo) TransitionRole(ctx context.Context, id primitive.ObjectID, from, to domain.Role) (bool, error) {
	defer r.s.lock(ctx)()

	m, ok := r.active(id)
	if !ok {
		return false, repository.ErrNotFound
	}
	if m.Role != from {
		return false, nil
	}
	m.Role = to
	m.UpdatedAt = r.s.now()
	r.s.members[id] = m
	return true, nil
}
