package repository

import (
	"alcyxob/gym-sessions/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = RepositoryError("not found")
	ErrUpdateFailed    = RepositoryError("update failed")
	ErrDeleteFailed    = RepositoryError("delete failed")
	ErrDuplicate       = RepositoryError("duplicate key")
	ErrConditionNotMet = RepositoryError("condition not met") // Conditional update matched no document
	ErrWriteConflict   = RepositoryError("write conflict")    // The unit of work lost a race and may be retried
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// MemberRepository reads and writes the member directory.
// Soft-deleted members are invisible to every lookup and listing.
type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Member, error)
	// List returns every active member, optionally restricted to one role.
	List(ctx context.Context, role *domain.Role) ([]domain.Member, error)
	ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Member, error)
	// ListByRole returns members with the given role, optionally restricted to one trainer's trainees.
	ListByRole(ctx context.Context, role domain.Role, trainerID *primitive.ObjectID) ([]domain.Member, error)
	SetTrainer(ctx context.Context, memberID, trainerID primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, name, phone string) error
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error
	// ClearTrainer unsets trainerId on every member assigned to trainerID and returns how many changed.
	ClearTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	// HardDelete removes the row outright, tombstoned or not.
	HardDelete(ctx context.Context, id primitive.ObjectID) error
}

// RoleWriter changes a member's role. It is handed only to the ledger service,
// which is the sole owner of tier transitions.
type RoleWriter interface {
	// TransitionRole sets role to `to` only while it is still `from`. It reports whether the row changed.
	TransitionRole(ctx context.Context, id primitive.ObjectID, from, to domain.Role) (bool, error)
}

// LedgerRepository stores one SessionLedger per member.
// Counter updates are conditional so concurrent consumers can never push used past total.
type LedgerRepository interface {
	GetByMemberID(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error)
	// GetOrCreate returns the member's ledger, inserting a zero-valued row when absent.
	GetOrCreate(ctx context.Context, memberID primitive.ObjectID) (*domain.SessionLedger, error)
	// AddSessions credits totals (creating the row if needed) and returns the updated ledger.
	AddSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error)
	// ConsumeOne increments the used counter of kind while used < total.
	// Returns ErrNotFound when no ledger exists and ErrConditionNotMet when nothing remains.
	ConsumeOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error)
	// RestoreOne decrements the used counter of kind while used > 0.
	// Returns ErrNotFound when no ledger exists and ErrConditionNotMet when nothing was used.
	RestoreOne(ctx context.Context, memberID primitive.ObjectID, kind domain.SessionKind) (*domain.SessionLedger, error)
	// RevokeSessions takes back an AddSessions credit: totals drop by regular and service and the
	// validity bounds are set to validFrom and validTo (nil clears a bound).
	// Returns ErrConditionNotMet when a total would fall below its used counter.
	RevokeSessions(ctx context.Context, memberID primitive.ObjectID, regular, service int, validFrom, validTo *time.Time) (*domain.SessionLedger, error)
	ListByMemberIDs(ctx context.Context, memberIDs []primitive.ObjectID) ([]domain.SessionLedger, error)
	DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error
}

// LedgerHistoryRepository is the append-only registration log.
type LedgerHistoryRepository interface {
	Append(ctx context.Context, entry *domain.LedgerHistoryEntry) (primitive.ObjectID, error)
	Latest(ctx context.Context, memberID primitive.ObjectID) (*domain.LedgerHistoryEntry, error)
	// ListByMemberID returns entries newest first.
	ListByMemberID(ctx context.Context, memberID primitive.ObjectID) ([]domain.LedgerHistoryEntry, error)
	// Delete removes a single entry. Only used to take back an append whose unit of work failed.
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByMemberID(ctx context.Context, memberID primitive.ObjectID) error
}

// SessionRecordRepository stores completed training sessions.
type SessionRecordRepository interface {
	Create(ctx context.Context, record *domain.SessionRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.SessionRecord, error)
	Update(ctx context.Context, record *domain.SessionRecord) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ListByMemberID returns records newest first, optionally bounded by occurredAt (inclusive).
	ListByMemberID(ctx context.Context, memberID primitive.ObjectID, from, to *time.Time) ([]domain.SessionRecord, error)
	ListByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.SessionRecord, error)
	Count(ctx context.Context) (int64, error)
}

// ActivityLogRepository stores diet and workout logs, partitioned by kind.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) (primitive.ObjectID, error)
	GetByID(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) (*domain.ActivityLog, error)
	Update(ctx context.Context, entry *domain.ActivityLog) error
	Delete(ctx context.Context, kind domain.LogKind, id primitive.ObjectID) error
	// ListByMemberID returns logs newest first.
	ListByMemberID(ctx context.Context, kind domain.LogKind, memberID primitive.ObjectID) ([]domain.ActivityLog, error)
	// Summarize returns one summary per member with logs of kind, or only memberID's when given.
	Summarize(ctx context.Context, kind domain.LogKind, memberID *primitive.ObjectID) ([]domain.LogSummary, error)
}

// CommentRepository stores comments on diet logs.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.LogComment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LogComment, error)
	// ListByLogID returns comments oldest first.
	ListByLogID(ctx context.Context, logID primitive.ObjectID) ([]domain.LogComment, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByLogID(ctx context.Context, logID primitive.ObjectID) (int64, error)
}

// NotificationRepository is the persisted member inbox.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error)
	// ListByMemberID returns notifications newest first.
	ListByMemberID(ctx context.Context, memberID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error)
	CountUnread(ctx context.Context, memberID primitive.ObjectID) (int64, error)
	MarkAllRead(ctx context.Context, memberID primitive.ObjectID) (int64, error)
}

// TxRunner executes fn as one unit of work. Repository calls made with the ctx
// passed to fn take part in it. A nested call joins the outer unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RollbackReporter is implemented by TxRunners that can say whether a failed
// unit of work discards its writes.
type RollbackReporter interface {
	RollsBack() bool
}

// RollsBack reports whether tx discards every write of a failed unit of work.
// Runners that do not implement RollbackReporter are assumed not to.
func RollsBack(tx TxRunner) bool {
	r, ok := tx.(RollbackReporter)
	return ok && r.RollsBack()
}

// Set bundles every repository a backend provides.
type Set struct {
	Members       MemberRepository
	Roles         RoleWriter
	Ledgers       LedgerRepository
	History       LedgerHistoryRepository
	Sessions      SessionRecordRepository
	Logs          ActivityLogRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Tx            TxRunner
}
