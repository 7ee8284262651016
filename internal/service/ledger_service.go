package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// --- Error Definitions ---
var (
	ErrNegativeSessions = domain.NewValidationError("sessions", "added session counts must not be negative")
	ErrNegativePayment  = domain.NewValidationError("paymentAmount", "payment amount must not be negative")
	ErrInvalidWindow    = domain.NewValidationError("validTo", "validity window ends before it starts")
	ErrNegativeLimit    = domain.NewValidationError("threshold", "threshold must not be negative")
	ErrNotMemberTier    = domain.NewValidationError("memberId", "sessions can only be held by OT or PT members")

	// errNothingToRestore is returned by restore when the used counter is already zero.
	errNothingToRestore = errors.New("no used session to restore")
)

// LedgerPolicy holds the configurable parts of ledger behaviour.
type LedgerPolicy struct {
	AutoDemote        bool // Demote PT to OT once the regular balance reaches zero
	LowBalanceWarning int  // Warn after a session when 0 < remain <= this
	AlertThreshold    int  // Default threshold for LowRemainMembers
}

func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{AutoDemote: true, LowBalanceWarning: 3, AlertThreshold: 4}
}

// RegisterInput is one purchase of session units.
type RegisterInput struct {
	RegularSessions int
	ServiceSessions int
	ValidFrom       *time.Time
	ValidTo         *time.Time
	PaymentAmount   decimal.Decimal
}

// LedgerChange is the outcome of a ledger mutation.
type LedgerChange struct {
	Ledger      domain.LedgerView          `json:"ledger"`
	Role        domain.Role                `json:"role"`
	RoleChanged bool                       `json:"roleChanged"`
	Entry       *domain.LedgerHistoryEntry `json:"entry,omitempty"`
}

// LowRemainMember is one row of the low-balance report.
type LowRemainMember struct {
	Member        domain.Member `json:"member"`
	RemainRegular int           `json:"remainRegular"`
	RemainService int           `json:"remainService"`
	ValidTo       *time.Time    `json:"validTo,omitempty"`
}

// --- Service Interface ---
type LedgerService interface {
	// Register credits purchased units. Only the assigned trainer or an admin may register.
	Register(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in RegisterInput) (*LedgerChange, error)
	// Decrement consumes one unit of kind. Only the assigned trainer or an admin may decrement.
	Decrement(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, kind domain.SessionKind) (*LedgerChange, error)
	GetLedger(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.LedgerView, error)
	// LowRemainMembers lists PT members at or below threshold (nil uses the policy default).
	// Admins see everyone, trainers their own trainees.
	LowRemainMembers(ctx context.Context, actor domain.Actor, threshold *int) ([]LowRemainMember, error)
	LatestRegistration(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.LedgerHistoryEntry, error)
	RegistrationHistory(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) ([]domain.LedgerHistoryEntry, error)

	Policy() LedgerPolicy

	// consume and restore run inside a caller's unit of work with authorization already done.
	consume(ctx context.Context, member *domain.Member, kind domain.SessionKind) (*LedgerChange, error)
	restore(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error)
	// undoConsume and undoRestore take back a consume or restore whose unit of work failed
	// later on. They do nothing when the TxRunner discards the writes itself.
	undoConsume(ctx context.Context, member *domain.Member, kind domain.SessionKind, change *LedgerChange)
	undoRestore(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind)
}

// --- Service Implementation ---

type ledgerService struct {
	members repository.MemberRepository
	roles   repository.RoleWriter
	ledgers repository.LedgerRepository
	history repository.LedgerHistoryRepository
	tx      repository.TxRunner
	authz   *authz.Engine
	policy  LedgerPolicy

	// compensate is set when the TxRunner cannot roll back, so partial writes are undone by hand.
	compensate bool
}

// NewLedgerService creates the ledger service. It is the only holder of the RoleWriter.
func NewLedgerService(repos repository.Set, engine *authz.Engine, policy LedgerPolicy) LedgerService {
	return &ledgerService{
		members: repos.Members,
		roles:   repos.Roles,
		ledgers: repos.Ledgers,
		history: repos.History,
		tx:      repos.Tx,
		authz:   engine,
		policy:  policy,

		compensate: !repository.RollsBack(repos.Tx),
	}
}

func (s *ledgerService) Policy() LedgerPolicy { return s.policy }

func validateRegister(in RegisterInput) error {
	if in.RegularSessions < 0 || in.ServiceSessions < 0 {
		return ErrNegativeSessions
	}
	if in.PaymentAmount.IsNegative() {
		return ErrNegativePayment
	}
	if in.ValidFrom != nil && in.ValidTo != nil && in.ValidTo.Before(*in.ValidFrom) {
		return ErrInvalidWindow
	}
	return nil
}

// undo runs a compensating write. A failure is logged; the caller still returns its original error.
func undo(what string, memberID primitive.ObjectID, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("ERROR: Failed to undo %s for member %s: %v", what, memberID.Hex(), err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *ledgerService) Register(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in RegisterInput) (change *LedgerChange, err error) {
	ctx, span := tracer.Start(ctx, "ledger.register", trace.WithAttributes(
		attribute.String("member.id", memberID.Hex()),
		attribute.String("actor.role", string(actor.Role)),
		attribute.Int("regular.added", in.RegularSessions),
		attribute.Int("service.added", in.ServiceSessions),
	))
	defer func() { endSpan(span, err) }()

	// 1. Validate Input
	if err = validateRegister(in); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 2. Authorize against the current directory state
		member, err := s.authz.Require(ctx, actor, memberID, domain.IntentCustodian)
		if err != nil {
			return err
		}
		if !member.Role.IsMemberTier() {
			return ErrNotMemberTier
		}

		// 3. Credit the ledger (created on first use)
		var before *domain.SessionLedger
		if s.compensate {
			if before, err = s.ledgers.GetByMemberID(ctx, memberID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("load ledger: %w", err)
			}
		}
		ledger, err := s.ledgers.AddSessions(ctx, memberID, in.RegularSessions, in.ServiceSessions, in.ValidFrom, in.ValidTo)
		if err != nil {
			return fmt.Errorf("add sessions: %w", err)
		}
		revoke := func() {
			if !s.compensate {
				return
			}
			var from, to *time.Time
			if before != nil {
				from, to = before.ValidFrom, before.ValidTo
			}
			undo("session credit", memberID, func() error {
				_, err := s.ledgers.RevokeSessions(ctx, memberID, in.RegularSessions, in.ServiceSessions, from, to)
				return err
			})
		}

		// 4. Record exactly what this call added
		entry := &domain.LedgerHistoryEntry{
			MemberID:      memberID,
			RegularAdded:  in.RegularSessions,
			ServiceAdded:  in.ServiceSessions,
			PaymentAmount: in.PaymentAmount,
			ValidFrom:     in.ValidFrom,
			ValidTo:       in.ValidTo,
		}
		if _, err := s.history.Append(ctx, entry); err != nil {
			revoke()
			return fmt.Errorf("append history: %w", err)
		}

		// 5. Promote OT -> PT once a regular balance exists
		role, changed, err := s.transition(ctx, member, domain.PromoteOnFirstBalance, ledger.RemainRegular())
		if err != nil {
			if s.compensate {
				undo("history entry", memberID, func() error { return s.history.Delete(ctx, entry.ID) })
			}
			revoke()
			return err
		}

		change = &LedgerChange{Ledger: ledger.View(), Role: role, RoleChanged: changed, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change.RoleChanged {
		log.Printf("INFO: Member %s promoted to %s", memberID.Hex(), change.Role)
	}
	span.SetAttributes(attribute.Int("remain.regular", change.Ledger.RemainRegular))
	return change, nil
}

// transition applies a role rule and persists the result conditionally on the role read earlier.
func (s *ledgerService) transition(ctx context.Context, member *domain.Member, rule func(domain.Role, int) (domain.Role, bool), remainRegular int) (domain.Role, bool, error) {
	next, ok := rule(member.Role, remainRegular)
	if !ok {
		return member.Role, false, nil
	}
	changed, err := s.roles.TransitionRole(ctx, member.ID, member.Role, next)
	if err != nil {
		return member.Role, false, fmt.Errorf("transition role: %w", err)
	}
	if !changed {
		// Someone else moved the role first; report what we saw.
		return member.Role, false, nil
	}
	return next, true, nil
}

func (s *ledgerService) Decrement(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, kind domain.SessionKind) (change *LedgerChange, err error) {
	ctx, span := tracer.Start(ctx, "ledger.decrement", trace.WithAttributes(
		attribute.String("member.id", memberID.Hex()),
		attribute.String("session.kind", string(kind)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	if !kind.Valid() {
		return nil, domain.NewValidationError("kind", fmt.Sprintf("unknown session kind %q", kind))
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.authz.Require(ctx, actor, memberID, domain.IntentCustodian)
		if err != nil {
			return err
		}
		if !member.Role.IsMemberTier() {
			return ErrNotMemberTier
		}
		if _, err := s.ledgers.GetOrCreate(ctx, memberID); err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		change, err = s.consume(ctx, member, kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// consume takes one unit of kind and applies the demotion rule for regular sessions.
func (s *ledgerService) consume(ctx context.Context, member *domain.Member, kind domain.SessionKind) (*LedgerChange, error) {
	ledger, err := s.ledgers.ConsumeOne(ctx, member.ID, kind)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NotFound("ledger", member.ID)
		case errors.Is(err, repository.ErrConditionNotMet):
			return nil, &domain.InsufficientBalanceError{MemberID: member.ID, Kind: kind}
		}
		return nil, fmt.Errorf("consume session: %w", err)
	}

	change := &LedgerChange{Ledger: ledger.View(), Role: member.Role}
	if kind == domain.SessionRegular && s.policy.AutoDemote {
		role, changed, err := s.transition(ctx, member, domain.DemoteOnZeroBalance, ledger.RemainRegular())
		if err != nil {
			s.undoConsume(ctx, member, kind, nil)
			return nil, err
		}
		change.Role, change.RoleChanged = role, changed
		if changed {
			log.Printf("INFO: Member %s demoted to %s after using the last regular session", member.ID.Hex(), role)
		}
	}
	return change, nil
}

// restore gives one unit back. It never changes the member's role.
func (s *ledgerService) restore(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error) {
	ledger, err := s.ledgers.RestoreOne(ctx, memberID, kind)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NotFound("ledger", memberID)
		case errors.Is(err, repository.ErrConditionNotMet):
			return nil, errNothingToRestore
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return ledger, nil
}

func (s *ledgerService) undoConsume(ctx context.Context, member *domain.Member, kind domain.SessionKind, change *LedgerChange) {
	if !s.compensate {
		return
	}
	undo("session consumption", member.ID, func() error {
		_, err := s.ledgers.RestoreOne(ctx, member.ID, kind)
		return err
	})
	if change != nil && change.RoleChanged {
		undo("role transition", member.ID, func() error {
			_, err := s.roles.TransitionRole(ctx, member.ID, change.Role, member.Role)
			return err
		})
	}
}

func (s *ledgerService) undoRestore(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) {
	if !s.compensate {
		return
	}
	undo("session restore", memberID, func() error {
		_, err := s.ledgers.ConsumeOne(ctx, memberID, kind)
		return err
	})
}

func (s *ledgerService) GetLedger(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.LedgerView, error) {
	member, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead)
	if err != nil {
		return nil, err
	}

	// Trainers and admins never hold sessions; they get the zero view and no row.
	if !member.Role.IsMemberTier() {
		view := domain.NewSessionLedger(memberID, time.Now().UTC()).View()
		return &view, nil
	}
	ledger, err := s.ledgers.GetOrCreate(ctx, memberID)
	if err != nil {
		return nil, err
	}
	view := ledger.View()
	return &view, nil
}

func (s *ledgerService) LowRemainMembers(ctx context.Context, actor domain.Actor, threshold *int) ([]LowRemainMember, error) {
	limit := s.policy.AlertThreshold
	if threshold != nil {
		limit = *threshold
	}
	if limit < 0 {
		return nil, ErrNegativeLimit
	}

	// 1. Scope: everyone for admins, own trainees for trainers
	var scope *primitive.ObjectID
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleTrainer:
		scope = &actor.ID
	default:
		return nil, authz.Deny(domain.IntentRead, actor.ID)
	}

	// 2. Only PT members are ever reported
	members, err := s.members.ListByRole(ctx, domain.RolePT, scope)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []LowRemainMember{}, nil
	}

	ids := make([]primitive.ObjectID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	ledgers, err := s.ledgers.ListByMemberIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byMember := make(map[primitive.ObjectID]domain.SessionLedger, len(ledgers))
	for _, l := range ledgers {
		byMember[l.MemberID] = l
	}

	// 3. A PT member without a ledger row holds zero sessions
	result := []LowRemainMember{}
	for _, m := range members {
		l := byMember[m.ID]
		if l.RemainRegular() > limit {
			continue
		}
		result = append(result, LowRemainMember{
			Member:        m,
			RemainRegular: l.RemainRegular(),
			RemainService: l.RemainService(),
			ValidTo:       l.ValidTo,
		})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].RemainRegular < result[j].RemainRegular })
	return result, nil
}

func (s *ledgerService) LatestRegistration(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (*domain.LedgerHistoryEntry, error) {
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead); err != nil {
		return nil, err
	}
	entry, err := s.history.Latest(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &domain.NotFoundError{Entity: "registration for member", ID: memberID.Hex()}
		}
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) RegistrationHistory(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) ([]domain.LedgerHistoryEntry, error) {
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead); err != nil {
		return nil, err
	}
	return s.history.ListByMemberID(ctx, memberID)
}
