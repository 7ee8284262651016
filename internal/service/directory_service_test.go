package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func TestDirectory_TrainerEnrollsOwnTrainee(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())

	member, err := env.directory.Enroll(env.ctx, env.trainer, EnrollInput{
		Name:  "  Mina Park ",
		Email: "Mina@Example.com",
		Phone: "010-1234-5678",
	})
	require.NoError(t, err)

	assert.Equal(t, "Mina Park", member.Name)
	assert.Equal(t, "mina@example.com", member.Email)
	assert.Equal(t, domain.RoleOT, member.Role)
	require.NotNil(t, member.TrainerID)
	assert.Equal(t, env.trainer.ID, *member.TrainerID)
	assert.Empty(t, member.PasswordHash, "hash is never returned")

	// Default password is the last four phone digits.
	stored, err := env.repos.Members.GetByID(env.ctx, member.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("5678")))

	_, err = env.directory.Enroll(env.ctx, env.trainer, EnrollInput{Name: "Dup", Email: "mina@example.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDirectory_EnrollRules(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	other := env.addMember(t, "Other Coach", domain.RoleTrainer, nil)
	member := env.trainee(t, "Plain Member")

	tests := []struct {
		name  string
		actor domain.Actor
		in    EnrollInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "members cannot enroll",
			actor: member,
			in:    EnrollInput{Name: "X", Email: "x@gym.test", Password: "pw"},
			check: func(t *testing.T, err error) { assert.True(t, domain.IsAccessDenied(err)) },
		},
		{
			name:  "PT is never an initial role",
			actor: env.admin,
			in:    EnrollInput{Name: "X", Email: "x@gym.test", Password: "pw", Role: domain.RolePT},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInitialRole) },
		},
		{
			name:  "trainers cannot enroll for another trainer",
			actor: env.trainer,
			in:    EnrollInput{Name: "X", Email: "x@gym.test", Password: "pw", TrainerID: &other.ID},
			check: func(t *testing.T, err error) { assert.True(t, domain.IsAccessDenied(err)) },
		},
		{
			name:  "trainer reference must coach",
			actor: env.admin,
			in:    EnrollInput{Name: "X", Email: "x@gym.test", Password: "pw", TrainerID: &member.ID},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotTrainerCapable) },
		},
		{
			name:  "credentials required",
			actor: env.admin,
			in:    EnrollInput{Name: "X", Email: "x@gym.test", Phone: "12"},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingCredentials) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.directory.Enroll(env.ctx, tt.actor, tt.in)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	trainer, err := env.directory.Enroll(env.ctx, env.admin, EnrollInput{Name: "New Coach", Email: "coach@gym.test", Password: "pw", Role: domain.RoleTrainer})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTrainer, trainer.Role)
}

func TestDirectory_AssignTrainer(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	member := env.addMember(t, "Walk-in", domain.RoleOT, nil)
	plain := env.addMember(t, "Not A Coach", domain.RoleOT, nil)

	_, err := env.directory.AssignTrainer(env.ctx, env.admin, member.ID, plain.ID)
	assert.ErrorIs(t, err, ErrNotTrainerCapable)

	// A trainer claims an unassigned member.
	got, err := env.directory.AssignTrainer(env.ctx, env.trainer, member.ID, env.trainer.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TrainerID)
	assert.Equal(t, env.trainer.ID, *got.TrainerID)

	// Another trainer cannot take them over.
	other := env.addMember(t, "Other Coach", domain.RoleTrainer, nil)
	_, err = env.directory.AssignTrainer(env.ctx, other, member.ID, other.ID)
	assert.ErrorIs(t, err, ErrMemberAlreadyAssigned)

	// Admins may reassign, including to themselves.
	_, err = env.directory.AssignTrainer(env.ctx, env.admin, member.ID, env.admin.ID)
	require.NoError(t, err)
	ok, err := env.engine.CanWriteAsCustodian(env.ctx, env.admin, member.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.engine.CanRead(env.ctx, env.trainer, member.ID)
	require.NoError(t, err)
	assert.False(t, ok, "previous trainer loses access")

	_, err = env.directory.AssignTrainer(env.ctx, env.admin, other.ID, env.trainer.ID)
	assert.True(t, domain.IsValidation(err), "trainers do not get trainers")
}

func TestDirectory_RemoveAdminAlwaysRejected(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	second := env.addMember(t, "Second Admin", domain.RoleAdmin, nil)

	for _, actor := range []domain.Actor{env.admin, second, env.trainer} {
		err := env.directory.Remove(env.ctx, actor, second.ID)
		assert.ErrorIs(t, err, ErrCannotRemoveAdmin)
	}
	err := env.directory.Remove(env.ctx, env.admin, env.admin.ID)
	assert.ErrorIs(t, err, ErrCannotRemoveAdmin)

	_, err = env.repos.Members.GetByID(env.ctx, second.ID)
	assert.NoError(t, err)
}

func TestDirectory_RemoveSoftDeletes(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	member := env.trainee(t, "Leaving")
	env.register(t, member.ID, 3)

	// Another member may not remove someone else.
	peer := env.trainee(t, "Peer")
	err := env.directory.Remove(env.ctx, peer, member.ID)
	assert.True(t, domain.IsAccessDenied(err))

	require.NoError(t, env.directory.Remove(env.ctx, member, member.ID))

	_, err = env.directory.Get(env.ctx, env.admin, member.ID)
	assert.True(t, domain.IsNotFound(err))
	trainees, err := env.directory.ListTrainees(env.ctx, env.trainer, env.trainer.ID)
	require.NoError(t, err)
	for _, m := range trainees {
		assert.NotEqual(t, member.ID, m.ID)
	}
	// The ledger is kept for the record.
	_, err = env.repos.Ledgers.GetByMemberID(env.ctx, member.ID)
	assert.NoError(t, err)
}

func TestDirectory_RemoveTrainerDetachesTrainees(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	member := env.trainee(t, "Mina")

	require.NoError(t, env.directory.Remove(env.ctx, env.admin, env.trainer.ID))

	m, err := env.repos.Members.GetByID(env.ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, m.TrainerID)
}

func TestDirectory_HardRemoveTrainer(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	a := env.trainee(t, "A")
	b := env.trainee(t, "B")

	_, err := env.directory.HardRemoveTrainer(env.ctx, env.trainer, env.trainer.ID)
	assert.True(t, domain.IsAccessDenied(err), "trainers cannot hard-delete, not even themselves")
	_, err = env.directory.HardRemoveTrainer(env.ctx, env.admin, a.ID)
	assert.ErrorIs(t, err, ErrNotTrainer)
	_, err = env.directory.HardRemoveTrainer(env.ctx, env.admin, primitive.NewObjectID())
	assert.True(t, domain.IsNotFound(err))

	detached, err := env.directory.HardRemoveTrainer(env.ctx, env.admin, env.trainer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detached)

	for _, id := range []primitive.ObjectID{a.ID, b.ID} {
		m, err := env.repos.Members.GetByID(env.ctx, id)
		require.NoError(t, err)
		assert.Nil(t, m.TrainerID)
	}
	_, err = env.repos.Members.GetByID(env.ctx, env.trainer.ID)
	assert.Error(t, err)
}

func TestDirectory_ListTrainersAdminOnly(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())

	trainers, err := env.directory.ListTrainers(env.ctx, env.admin)
	require.NoError(t, err)
	require.Len(t, trainers, 1)
	assert.Equal(t, env.trainer.ID, trainers[0].ID)

	_, err = env.directory.ListTrainers(env.ctx, env.trainer)
	assert.True(t, domain.IsAccessDenied(err))
}

func TestDirectory_EnsureAdminIsIdempotent(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())

	created, err := EnsureAdmin(env.ctx, env.repos.Members, "Owner@Gym.Test", "s3cret!")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(env.ctx, env.repos.Members, "owner@gym.test", "other")
	require.NoError(t, err)
	assert.False(t, created)

	m, err := env.repos.Members.GetByEmail(env.ctx, "owner@gym.test")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, m.Role)

	_, err = EnsureAdmin(env.ctx, env.repos.Members, "", "x")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestDirectory_ListMembers(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	env.trainee(t, "Mina")
	env.trainee(t, "Joon")

	all, err := env.directory.ListMembers(env.ctx, env.admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	ot := domain.RoleOT
	trainees, err := env.directory.ListMembers(env.ctx, env.admin, &ot)
	require.NoError(t, err)
	assert.Len(t, trainees, 2)

	bogus := domain.Role("COACH")
	_, err = env.directory.ListMembers(env.ctx, env.admin, &bogus)
	assert.True(t, domain.IsValidation(err), "got %v", err)

	_, err = env.directory.ListMembers(env.ctx, env.trainer, nil)
	assert.True(t, domain.IsAccessDenied(err))
}

func TestDirectory_UpdateProfile(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	member := env.trainee(t, "Mina")
	other := env.addMember(t, "Stranger", domain.RoleOT, nil)
	otherCoach := env.addMember(t, "Other Coach", domain.RoleTrainer, nil)
	str := func(s string) *string { return &s }

	// Self edit, only the phone.
	updated, err := env.directory.UpdateProfile(env.ctx, member, member.ID, ProfileUpdate{Phone: str(" 010-2222-3333 ")})
	require.NoError(t, err)
	assert.Equal(t, "Mina", updated.Name)
	assert.Equal(t, "010-2222-3333", updated.Phone)
	assert.Empty(t, updated.PasswordHash)

	// Assigned trainer renames; keeping the same phone is not a conflict.
	updated, err = env.directory.UpdateProfile(env.ctx, env.trainer, member.ID, ProfileUpdate{Name: str("Mina Park"), Phone: str("010-2222-3333")})
	require.NoError(t, err)
	assert.Equal(t, "Mina Park", updated.Name)

	stored, err := env.repos.Members.GetByID(env.ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mina Park", stored.Name)
	assert.Equal(t, domain.RoleOT, stored.Role)

	_, err = env.directory.UpdateProfile(env.ctx, other, other.ID, ProfileUpdate{Phone: str("010-2222-3333")})
	assert.ErrorIs(t, err, ErrPhoneTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.directory.UpdateProfile(env.ctx, member, member.ID, ProfileUpdate{Name: str("   ")})
	assert.ErrorIs(t, err, ErrEmptyName)

	for _, actor := range []domain.Actor{other, otherCoach} {
		_, err = env.directory.UpdateProfile(env.ctx, actor, member.ID, ProfileUpdate{Name: str("Hijacked")})
		assert.True(t, domain.IsAccessDenied(err), "actor %s: got %v", actor.Role, err)
	}

	_, err = env.directory.UpdateProfile(env.ctx, env.admin, primitive.NewObjectID(), ProfileUpdate{Name: str("Ghost")})
	assert.True(t, domain.IsNotFound(err), "got %v", err)
}

func TestDirectory_ChangePassword(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	auth := NewAuthService(env.repos.Members, "secret", time.Hour, 60, 10)
	member := env.trainee(t, "Mina")
	hash, err := HashPassword("original-pw")
	require.NoError(t, err)
	require.NoError(t, env.repos.Members.SetPasswordHash(env.ctx, member.ID, hash))
	stored, err := env.repos.Members.GetByID(env.ctx, member.ID)
	require.NoError(t, err)

	err = env.directory.ChangePassword(env.ctx, member, member.ID, "not-it", "brand-new-pw")
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = env.directory.ChangePassword(env.ctx, member, member.ID, "original-pw", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	err = env.directory.ChangePassword(env.ctx, env.trainer, member.ID, "", "brand-new-pw")
	assert.True(t, domain.IsAccessDenied(err), "trainers cannot change a trainee's password")

	require.NoError(t, env.directory.ChangePassword(env.ctx, member, member.ID, "original-pw", "brand-new-pw"))
	_, _, err = auth.Login(env.ctx, stored.Email, "original-pw")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(env.ctx, stored.Email, "brand-new-pw")
	require.NoError(t, err)

	// Admin reset skips the current password.
	require.NoError(t, env.directory.ChangePassword(env.ctx, env.admin, member.ID, "", "admin-reset-pw"))
	_, _, err = auth.Login(env.ctx, stored.Email, "admin-reset-pw")
	require.NoError(t, err)
}
