package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"pgregory.net/rapid"
)

func TestSessionLedger_RemainFloorsAtZero(t *testing.T) {
	l := &SessionLedger{RegularTotal: 2, RegularUsed: 5, ServiceTotal: 3, ServiceUsed: 1}

	assert.Equal(t, 0, l.RemainRegular())
	assert.Equal(t, 2, l.RemainService())
	assert.Equal(t, 2, l.RemainTotal())
}

func TestSessionLedger_ConsumeRejectsEmptyBalance(t *testing.T) {
	// GIVEN a ledger with one regular unit
	id := primitive.NewObjectID()
	l := NewSessionLedger(id, time.Now())
	l.Add(1, 0, nil, nil)

	// WHEN two units are consumed
	require.NoError(t, l.Consume(SessionRegular))
	err := l.Consume(SessionRegular)

	// THEN the second fails and counters are unchanged
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, id, insufficient.MemberID)
	assert.Equal(t, SessionRegular, insufficient.Kind)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, 1, l.RegularUsed)
	assert.Equal(t, 1, l.RegularTotal)
}

func TestSessionLedger_AddKeepsWindowWhenNil(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	l := &SessionLedger{}

	l.Add(5, 1, &from, &to)
	l.Add(3, 0, nil, nil)

	assert.Equal(t, 8, l.RegularTotal)
	assert.Equal(t, 1, l.ServiceTotal)
	require.NotNil(t, l.ValidFrom)
	assert.True(t, l.ValidFrom.Equal(from))
	assert.True(t, l.ValidTo.Equal(to))
}

func TestSessionLedger_RestoreStopsAtZero(t *testing.T) {
	l := &SessionLedger{RegularTotal: 1, RegularUsed: 1}

	assert.True(t, l.Restore(SessionRegular))
	assert.False(t, l.Restore(SessionRegular))
	assert.Equal(t, 0, l.RegularUsed)
	assert.False(t, l.Restore(SessionService))
}

func TestParseSessionKind(t *testing.T) {
	k, err := ParseSessionKind("")
	require.NoError(t, err)
	assert.Equal(t, SessionRegular, k)

	k, err = ParseSessionKind("SERVICE")
	require.NoError(t, err)
	assert.Equal(t, SessionService, k)

	_, err = ParseSessionKind("bonus")
	assert.True(t, IsValidation(err))
}

// Any sequence of adds, consumes and restores keeps used within total
// and remain equal to the floored difference.
func TestSessionLedger_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := &SessionLedger{}
		kinds := rapid.SampledFrom([]SessionKind{SessionRegular, SessionService})
		steps := rapid.IntRange(1, 60).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				l.Add(rapid.IntRange(0, 5).Draw(t, "regular"), rapid.IntRange(0, 5).Draw(t, "service"), nil, nil)
			case 1:
				kind := kinds.Draw(t, "kind")
				before := *l
				err := l.Consume(kind)
				if before.Remain(kind) == 0 {
					if !IsInsufficientBalance(err) {
						t.Fatalf("expected insufficient balance, got %v", err)
					}
					if *l != before {
						t.Fatalf("failed consume changed the ledger")
					}
				} else if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			case 2:
				l.Restore(kinds.Draw(t, "kind"))
			}

			if l.RegularUsed > l.RegularTotal || l.ServiceUsed > l.ServiceTotal {
				t.Fatalf("used exceeded total: %+v", *l)
			}
			if l.RegularUsed < 0 || l.ServiceUsed < 0 {
				t.Fatalf("used went negative: %+v", *l)
			}
			if l.RemainRegular() != max(0, l.RegularTotal-l.RegularUsed) {
				t.Fatalf("remainRegular mismatch: %+v", *l)
			}
			if l.RemainTotal() != l.RemainRegular()+l.RemainService() {
				t.Fatalf("remainTotal mismatch: %+v", *l)
			}
		}
	})
}

func TestRoleTransitions(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(Role, int) (Role, bool)
		role    Role
		remain  int
		want    Role
		changed bool
	}{
		{"promote OT with balance", PromoteOnFirstBalance, RoleOT, 5, RolePT, true},
		{"no promote without balance", PromoteOnFirstBalance, RoleOT, 0, RoleOT, false},
		{"PT stays PT", PromoteOnFirstBalance, RolePT, 3, RolePT, false},
		{"trainer never promoted", PromoteOnFirstBalance, RoleTrainer, 5, RoleTrainer, false},
		{"demote PT at zero", DemoteOnZeroBalance, RolePT, 0, RoleOT, true},
		{"PT with balance stays", DemoteOnZeroBalance, RolePT, 1, RolePT, false},
		{"admin never demoted", DemoteOnZeroBalance, RoleAdmin, 0, RoleAdmin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := tt.fn(tt.role, tt.remain)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}
