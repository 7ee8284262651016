package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"alcyxob/gym-sessions/internal/repository/memory"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sentNotification struct {
	MemberID primitive.ObjectID
	Severity domain.Severity
	Message  string
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, memberID primitive.ObjectID, severity domain.Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{memberID, severity, message})
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type testEnv struct {
	ctx       context.Context
	repos     repository.Set
	engine    *authz.Engine
	notifier  *recordingNotifier
	ledger    LedgerService
	sessions  SessionService
	directory DirectoryService
	admin     domain.Actor
	trainer   domain.Actor
}

func newTestEnv(t *testing.T, policy LedgerPolicy) *testEnv {
	t.Helper()
	return newTestEnvWith(t, policy, nil)
}

// newTestEnvWith lets a test swap repositories before the services are built.
func newTestEnvWith(t *testing.T, policy LedgerPolicy, wrap func(*repository.Set)) *testEnv {
	t.Helper()
	repos := memory.NewStore().Repositories()
	if wrap != nil {
		wrap(&repos)
	}
	engine := authz.NewEngine(repos.Members)
	notifier := &recordingNotifier{}
	ledger := NewLedgerService(repos, engine, policy)

	env := &testEnv{
		ctx:       context.Background(),
		repos:     repos,
		engine:    engine,
		notifier:  notifier,
		ledger:    ledger,
		sessions:  NewSessionService(repos, ledger, engine, notifier),
		directory: NewDirectoryService(repos, engine),
	}
	env.admin = env.addMember(t, "Admin", domain.RoleAdmin, nil)
	env.trainer = env.addMember(t, "Coach Lee", domain.RoleTrainer, nil)
	return env
}

// addMember writes straight to the repository so tests can seed any role.
func (e *testEnv) addMember(t *testing.T, name string, role domain.Role, trainerID *primitive.ObjectID) domain.Actor {
	t.Helper()
	m := &domain.Member{
		Name:      name,
		Email:     primitive.NewObjectID().Hex() + "@gym.test",
		Role:      role,
		TrainerID: trainerID,
	}
	_, err := e.repos.Members.Create(e.ctx, m)
	require.NoError(t, err)
	return domain.ActorOf(m)
}

func (e *testEnv) trainee(t *testing.T, name string) domain.Actor {
	t.Helper()
	return e.addMember(t, name, domain.RoleOT, &e.trainer.ID)
}

func (e *testEnv) role(t *testing.T, id primitive.ObjectID) domain.Role {
	t.Helper()
	m, err := e.repos.Members.GetByID(e.ctx, id)
	require.NoError(t, err)
	return m.Role
}

func (e *testEnv) register(t *testing.T, memberID primitive.ObjectID, regular int) *LedgerChange {
	t.Helper()
	change, err := e.ledger.Register(e.ctx, e.trainer, memberID, RegisterInput{RegularSessions: regular})
	require.NoError(t, err)
	return change
}
