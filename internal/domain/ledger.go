package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionKind selects one of the two counters tracked by a ledger.
type SessionKind string

const (
	SessionRegular SessionKind = "REGULAR"
	SessionService SessionKind = "SERVICE"
)

func (k SessionKind) Valid() bool {
	return k == SessionRegular || k == SessionService
}

// ParseSessionKind accepts the kind name case-sensitively. An empty string means REGULAR.
func ParseSessionKind(s string) (SessionKind, error) {
	if s == "" {
		return SessionRegular, nil
	}
	k := SessionKind(s)
	if !k.Valid() {
		return "", NewValidationError("kind", fmt.Sprintf("unknown session kind %q", s))
	}
	return k, nil
}

// SessionLedger holds the cumulative purchased and consumed counts for one member.
// Used counters only grow through consumption and never pass their totals.
type SessionLedger struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	MemberID     primitive.ObjectID `bson:"memberId" json:"memberId"` // Unique
	RegularTotal int                `bson:"regularTotal" json:"regularTotal"`
	RegularUsed  int                `bson:"regularUsed" json:"regularUsed"`
	ServiceTotal int                `bson:"serviceTotal" json:"serviceTotal"`
	ServiceUsed  int                `bson:"serviceUsed" json:"serviceUsed"`
	ValidFrom    *time.Time         `bson:"validFrom,omitempty" json:"validFrom,omitempty"`
	ValidTo      *time.Time         `bson:"validTo,omitempty" json:"validTo,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewSessionLedger returns the zero-valued ledger created on first access.
func NewSessionLedger(memberID primitive.ObjectID, now time.Time) *SessionLedger {
	return &SessionLedger{MemberID: memberID, CreatedAt: now, UpdatedAt: now}
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func (l *SessionLedger) RemainRegular() int { return floorZero(l.RegularTotal - l.RegularUsed) }
func (l *SessionLedger) RemainService() int { return floorZero(l.ServiceTotal - l.ServiceUsed) }
func (l *SessionLedger) RemainTotal() int   { return l.RemainRegular() + l.RemainService() }

// Remain returns the remaining balance for the given kind.
func (l *SessionLedger) Remain(kind SessionKind) int {
	if kind == SessionService {
		return l.RemainService()
	}
	return l.RemainRegular()
}

// Consume records one used unit of kind. The ledger is left untouched when nothing remains.
func (l *SessionLedger) Consume(kind SessionKind) error {
	if l.Remain(kind) == 0 {
		return &InsufficientBalanceError{MemberID: l.MemberID, Kind: kind}
	}
	if kind == SessionService {
		l.ServiceUsed++
	} else {
		l.RegularUsed++
	}
	return nil
}

// Restore gives back one used unit of kind. It reports false when nothing was used.
func (l *SessionLedger) Restore(kind SessionKind) bool {
	used := &l.RegularUsed
	if kind == SessionService {
		used = &l.ServiceUsed
	}
	if *used <= 0 {
		return false
	}
	*used--
	return true
}

// Add credits purchased units and, when given, replaces the validity window bounds.
func (l *SessionLedger) Add(regular, service int, validFrom, validTo *time.Time) {
	l.RegularTotal += regular
	l.ServiceTotal += service
	if validFrom != nil {
		l.ValidFrom = validFrom
	}
	if validTo != nil {
		l.ValidTo = validTo
	}
}

// LedgerView is a ledger together with its derived balances, as exposed to callers.
type LedgerView struct {
	*SessionLedger
	RemainRegular int `json:"remainRegular"`
	RemainService int `json:"remainService"`
	RemainTotal   int `json:"remainTotal"`
}

func (l *SessionLedger) View() LedgerView {
	return LedgerView{
		SessionLedger: l,
		RemainRegular: l.RemainRegular(),
		RemainService: l.RemainService(),
		RemainTotal:   l.RemainTotal(),
	}
}
