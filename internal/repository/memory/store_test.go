package memory

import (
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	memberID := primitive.NewObjectID()

	_, err := repos.Ledgers.AddSessions(ctx, memberID, 2, 0, nil, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := repos.Ledgers.ConsumeOne(ctx, memberID, domain.SessionRegular); err != nil {
			return err
		}
		if _, err := repos.History.Append(ctx, &domain.LedgerHistoryEntry{MemberID: memberID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	l, err := repos.Ledgers.GetByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 0, l.RegularUsed)

	entries, err := repos.History.ListByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := repos.Ledgers.GetOrCreate(ctx, primitive.NewObjectID())
			return err
		})
	})
	assert.NoError(t, err)
}

func TestLedger_ConsumeOneIsConditional(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	memberID := primitive.NewObjectID()

	_, err := repos.Ledgers.ConsumeOne(ctx, memberID, domain.SessionRegular)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repos.Ledgers.AddSessions(ctx, memberID, 3, 0, nil, nil)
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repos.Ledgers.ConsumeOne(ctx, memberID, domain.SessionRegular); err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, repository.ErrConditionNotMet)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), ok.Load())
	l, err := repos.Ledgers.GetByMemberID(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 3, l.RegularUsed)

	_, err = repos.Ledgers.RestoreOne(ctx, memberID, domain.SessionService)
	assert.ErrorIs(t, err, repository.ErrConditionNotMet)
}

func TestMembers_SoftDeleteHidesMember(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	trainerID := primitive.NewObjectID()

	m := &domain.Member{Name: "Kim", Email: "kim@example.com", Role: domain.RoleOT, TrainerID: &trainerID}
	id, err := repos.Members.Create(ctx, m)
	require.NoError(t, err)

	_, err = repos.Members.Create(ctx, &domain.Member{Email: "KIM@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, repos.Members.SoftDelete(ctx, id, time.Now()))

	_, err = repos.Members.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	trainees, err := repos.Members.ListByTrainerID(ctx, trainerID)
	require.NoError(t, err)
	assert.Empty(t, trainees)
}

func TestMembers_TransitionRoleIsConditional(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	id, err := repos.Members.Create(ctx, &domain.Member{Email: "a@example.com", Role: domain.RolePT})
	require.NoError(t, err)

	changed, err := repos.Roles.TransitionRole(ctx, id, domain.RoleOT, domain.RolePT)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repos.Roles.TransitionRole(ctx, id, domain.RolePT, domain.RoleOT)
	require.NoError(t, err)
	assert.True(t, changed)

	m, err := repos.Members.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOT, m.Role)
}

func TestHistory_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	memberID := primitive.NewObjectID()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		_, err := repos.History.Append(ctx, &domain.LedgerHistoryEntry{
			MemberID:     memberID,
			RegularAdded: i,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	latest, err := repos.History.Latest(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.RegularAdded)

	all, err := repos.History.ListByMemberID(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{all[0].RegularAdded, all[1].RegularAdded, all[2].RegularAdded})
}

func TestLedger_RevokeSessionsNeverDropsBelowUsed(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	memberID := primitive.NewObjectID()
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	_, err := repos.Ledgers.AddSessions(ctx, memberID, 3, 1, nil, &end)
	require.NoError(t, err)
	_, err = repos.Ledgers.ConsumeOne(ctx, memberID, domain.SessionRegular)
	require.NoError(t, err)

	// Taking back all three would leave total below used.
	_, err = repos.Ledgers.RevokeSessions(ctx, memberID, 3, 0, nil, nil)
	require.ErrorIs(t, err, repository.ErrConditionNotMet)

	l, err := repos.Ledgers.RevokeSessions(ctx, memberID, 2, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, l.RegularTotal)
	assert.Equal(t, 0, l.ServiceTotal)
	assert.Nil(t, l.ValidTo)

	_, err = repos.Ledgers.RevokeSessions(ctx, primitive.NewObjectID(), 1, 0, nil, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHistory_DeleteRemovesOneEntry(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	memberID := primitive.NewObjectID()

	keep, err := repos.History.Append(ctx, &domain.LedgerHistoryEntry{MemberID: memberID, RegularAdded: 1})
	require.NoError(t, err)
	drop, err := repos.History.Append(ctx, &domain.LedgerHistoryEntry{MemberID: memberID, RegularAdded: 2})
	require.NoError(t, err)

	require.NoError(t, repos.History.Delete(ctx, drop))
	assert.ErrorIs(t, repos.History.Delete(ctx, drop), repository.ErrNotFound)

	entries, err := repos.History.ListByMemberID(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keep, entries[0].ID)
}

func TestStore_RollsBack(t *testing.T) {
	assert.True(t, repository.RollsBack(NewStore().Repositories().Tx))
}
