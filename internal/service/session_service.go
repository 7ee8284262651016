package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// --- Error Definitions ---
var (
	ErrInvalidDuration = domain.NewValidationError("durationMinutes", "duration must be positive")
	ErrInvalidRange    = domain.NewValidationError("to", "range ends before it starts")
)

// SessionRecordInput describes a completed session.
type SessionRecordInput struct {
	OccurredAt         time.Time
	DurationMinutes    int
	Notes              string
	TrainerPrivateMemo string
}

// SessionRecordUpdate changes descriptive fields only. Nil fields are left as they are.
type SessionRecordUpdate struct {
	OccurredAt         *time.Time
	DurationMinutes    *int
	Notes              *string
	TrainerPrivateMemo *string
}

// SessionOutcome is returned after a record is created or deleted.
type SessionOutcome struct {
	Record   *domain.SessionRecord `json:"record"`
	Ledger   *domain.LedgerView    `json:"ledger,omitempty"`
	Role     domain.Role           `json:"role,omitempty"`
	Restored bool                  `json:"restored"`
}

// --- Service Interface ---
type SessionService interface {
	// Create logs a completed session and consumes one regular unit, atomically.
	Create(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in SessionRecordInput) (*SessionOutcome, error)
	// Update edits descriptive fields. Only the authoring trainer or an admin may update.
	Update(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID, in SessionRecordUpdate) (*domain.SessionRecord, error)
	// Delete removes the record and gives one regular unit back.
	Delete(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID) (*SessionOutcome, error)
	Get(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID) (*domain.SessionRecord, error)
	ListForMember(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, from, to *time.Time) ([]domain.SessionRecord, error)
	ListForTrainer(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) ([]domain.SessionRecord, error)
}

// --- Service Implementation ---

type sessionService struct {
	members  repository.MemberRepository
	sessions repository.SessionRecordRepository
	tx       repository.TxRunner
	ledger   LedgerService
	authz    *authz.Engine
	notifier Notifier
}

func NewSessionService(repos repository.Set, ledger LedgerService, engine *authz.Engine, notifier Notifier) SessionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &sessionService{
		members:  repos.Members,
		sessions: repos.Sessions,
		tx:       repos.Tx,
		ledger:   ledger,
		authz:    engine,
		notifier: notifier,
	}
}

func (s *sessionService) Create(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, in SessionRecordInput) (out *SessionOutcome, err error) {
	ctx, span := tracer.Start(ctx, "session.create", trace.WithAttributes(
		attribute.String("member.id", memberID.Hex()),
		attribute.String("actor.id", actor.ID.Hex()),
	))
	defer func() { endSpan(span, err) }()

	// 1. Validate Input
	if in.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	// 2. Consume and record in one unit of work
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.authz.Require(ctx, actor, memberID, domain.IntentCustodian)
		if err != nil {
			return err
		}

		change, err := s.ledger.consume(ctx, member, domain.SessionRegular)
		if err != nil {
			return err
		}

		record := &domain.SessionRecord{
			MemberID:           memberID,
			TrainerID:          actor.ID,
			OccurredAt:         in.OccurredAt,
			DurationMinutes:    in.DurationMinutes,
			Notes:              in.Notes,
			TrainerPrivateMemo: in.TrainerPrivateMemo,
			Completed:          true,
		}
		if _, err := s.sessions.Create(ctx, record); err != nil {
			s.ledger.undoConsume(ctx, member, domain.SessionRegular, change)
			return fmt.Errorf("create session record: %w", err)
		}

		out = &SessionOutcome{Record: record, Ledger: &change.Ledger, Role: change.Role}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Notify after commit
	s.notifier.Notify(ctx, memberID, domain.SeveritySuccess,
		fmt.Sprintf("PT session completed (trainer: %s)", s.displayName(ctx, actor.ID)))

	remain := out.Ledger.RemainRegular
	if remain > 0 && remain <= s.ledger.Policy().LowBalanceWarning {
		s.notifier.Notify(ctx, memberID, domain.SeverityWarning,
			fmt.Sprintf("Only %d PT sessions remaining", remain))
	}
	return out, nil
}

// displayName is best-effort; a missing name never fails the operation.
func (s *sessionService) displayName(ctx context.Context, id primitive.ObjectID) string {
	m, err := s.members.GetByID(ctx, id)
	if err != nil || m.Name == "" {
		return id.Hex()
	}
	return m.Name
}

func (s *sessionService) Update(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID, in SessionRecordUpdate) (*domain.SessionRecord, error) {
	record, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireAuthor(actor, record.TrainerID, record.ID); err != nil {
		return nil, err
	}

	if in.OccurredAt != nil {
		record.OccurredAt = *in.OccurredAt
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return nil, ErrInvalidDuration
		}
		record.DurationMinutes = *in.DurationMinutes
	}
	if in.Notes != nil {
		record.Notes = *in.Notes
	}
	if in.TrainerPrivateMemo != nil {
		record.TrainerPrivateMemo = *in.TrainerPrivateMemo
	}

	if err := s.sessions.Update(ctx, record); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("session record", recordID)
		}
		return nil, err
	}
	return record, nil
}

func (s *sessionService) Delete(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID) (out *SessionOutcome, err error) {
	ctx, span := tracer.Start(ctx, "session.delete", trace.WithAttributes(
		attribute.String("record.id", recordID.Hex()),
		attribute.String("actor.id", actor.ID.Hex()),
	))
	defer func() { endSpan(span, err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.load(ctx, recordID)
		if err != nil {
			return err
		}
		if err := s.authz.RequireAuthor(actor, record.TrainerID, record.ID); err != nil {
			return err
		}
		out = &SessionOutcome{Record: record}

		// A missing ledger or a zero used counter means the books were already
		// out of step; the record still goes, and the skip is logged for follow-up.
		ledger, err := s.ledger.restore(ctx, record.MemberID, domain.SessionRegular)
		switch {
		case err == nil:
			view := ledger.View()
			out.Ledger = &view
			out.Restored = true
		case errors.Is(err, errNothingToRestore), domain.IsNotFound(err):
			log.Printf("WARN: Session record %s deleted without restoring a unit for member %s: %v",
				recordID.Hex(), record.MemberID.Hex(), err)
		default:
			return err
		}

		if err := s.sessions.Delete(ctx, recordID); err != nil {
			if out.Restored {
				s.ledger.undoRestore(ctx, record.MemberID, domain.SessionRegular)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NotFound("session record", recordID)
			}
			return fmt.Errorf("delete session record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("ledger.restored", out.Restored))
	message := "PT session record deleted"
	if out.Restored {
		message += "; 1 session restored"
	}
	s.notifier.Notify(ctx, out.Record.MemberID, domain.SeverityInfo, message)
	return out, nil
}

func (s *sessionService) load(ctx context.Context, recordID primitive.ObjectID) (*domain.SessionRecord, error) {
	record, err := s.sessions.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("session record", recordID)
		}
		return nil, err
	}
	return record, nil
}

// redact hides the trainer's private memo from everyone but its author and admins.
func redact(actor domain.Actor, record *domain.SessionRecord) {
	if !authz.AuthorEditAllowed(actor, record.TrainerID) {
		record.TrainerPrivateMemo = ""
	}
}

func (s *sessionService) Get(ctx context.Context, actor domain.Actor, recordID primitive.ObjectID) (*domain.SessionRecord, error) {
	record, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !authz.AuthorEditAllowed(actor, record.TrainerID) {
		if _, err := s.authz.Require(ctx, actor, record.MemberID, domain.IntentRead); err != nil {
			return nil, err
		}
	}
	redact(actor, record)
	return record, nil
}

func (s *sessionService) ListForMember(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, from, to *time.Time) ([]domain.SessionRecord, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, ErrInvalidRange
	}
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead); err != nil {
		return nil, err
	}

	records, err := s.sessions.ListByMemberID(ctx, memberID, from, to)
	if err != nil {
		return nil, err
	}
	for i := range records {
		redact(actor, &records[i])
	}
	return records, nil
}

func (s *sessionService) ListForTrainer(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID) ([]domain.SessionRecord, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, trainerID); err != nil {
		return nil, err
	}
	return s.sessions.ListByTrainerID(ctx, trainerID)
}
