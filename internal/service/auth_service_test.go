package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	auth := NewAuthService(env.repos.Members, "test-secret", time.Hour, 60, 10)

	member, err := auth.Register(env.ctx, "Mina", " Mina@Gym.Test ", "", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOT, member.Role, "self sign-up always starts as OT")
	assert.Equal(t, "mina@gym.test", member.Email)
	assert.Nil(t, member.TrainerID)

	_, err = auth.Register(env.ctx, "Mina again", "mina@gym.test", "", "x")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = auth.Login(env.ctx, "mina@gym.test", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = auth.Login(env.ctx, "nobody@gym.test", "hunter22")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	token, got, err := auth.Login(env.ctx, "MINA@gym.test", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.ID)
	assert.Empty(t, got.PasswordHash)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(auth.GetJWTSecret()), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, member.ID.Hex(), claims.UserID)
	assert.Equal(t, domain.RoleOT, claims.Role)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestAuth_RateLimitedPerEmail(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	auth := NewAuthService(env.repos.Members, "test-secret", time.Hour, 1, 2)

	for i := 0; i < 2; i++ {
		_, _, err := auth.Login(env.ctx, "target@gym.test", "guess")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	}
	_, _, err := auth.Login(env.ctx, "target@gym.test", "guess")
	assert.ErrorIs(t, err, ErrRateLimited)

	// Other addresses have their own bucket.
	_, _, err = auth.Login(env.ctx, "other@gym.test", "guess")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuth_RejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	auth := NewAuthService(env.repos.Members, "test-secret", time.Hour, 60, 10)

	_, err := auth.Register(env.ctx, "", "a@gym.test", "", "pw")
	assert.True(t, domain.IsValidation(err))
	_, _, err = auth.Login(env.ctx, "a@gym.test", "")
	assert.True(t, domain.IsValidation(err))
}

func TestNotifications_InboxIsPrivate(t *testing.T) {
	env := newTestEnv(t, DefaultLedgerPolicy())
	inbox := NewNotificationService(env.repos, env.engine)
	member := env.trainee(t, "Mina")

	for _, msg := range []string{"one", "two"} {
		_, err := env.repos.Notifications.Create(env.ctx, &domain.Notification{MemberID: member.ID, Severity: domain.SeverityInfo, Message: msg})
		require.NoError(t, err)
	}

	_, err := inbox.List(env.ctx, env.trainer, member.ID, false)
	assert.True(t, domain.IsAccessDenied(err), "the trainer does not read the member's inbox")

	count, err := inbox.CountUnread(env.ctx, member, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	marked, err := inbox.MarkAllRead(env.ctx, member, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	unread, err := inbox.List(env.ctx, env.admin, member.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	all, err := inbox.List(env.ctx, member, member.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestKeyedLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	limiter := newKeyedLimiter(1, 2)
	limiter.now = func() time.Time { return clock }

	// GIVEN many one-off keys, as random sign-up emails would produce
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.allow(fmt.Sprintf("user%d@gym.test", i)))
	}
	require.Equal(t, 100, limiter.size())

	// A key seen again before the idle window ends keeps its bucket; drain it.
	clock = clock.Add(90 * time.Second)
	assert.True(t, limiter.allow("user0@gym.test"))
	assert.True(t, limiter.allow("user0@gym.test"))
	assert.False(t, limiter.allow("user0@gym.test"))

	// WHEN the idle window (a full refill, two minutes here) has passed for the rest
	clock = clock.Add(31 * time.Second)
	limiter.allow("fresh@gym.test")

	// THEN only the active buckets remain, and user0 is still throttled
	assert.Equal(t, 2, limiter.size())
	assert.False(t, limiter.allow("user0@gym.test"))
}
