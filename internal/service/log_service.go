package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"alcyxob/gym-sessions/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrMediaUnavailable = errors.New("media storage is not configured")
	ErrMediaURL         = errors.New("failed to generate media URL")
	ErrNoMedia          = &domain.NotFoundError{Entity: "media"}
	ErrUnsupportedMedia = domain.NewValidationError("contentType", "only image and video uploads are accepted")
	ErrMissingTitle     = domain.NewValidationError("title", "title is required")
	ErrNegativeCalories = domain.NewValidationError("calories", "calories must not be negative")
)

// LogInput describes a new diet or workout entry.
type LogInput struct {
	LoggedAt time.Time
	Title    string
	Content  string
	Calories *int
}

// LogUpdate changes an entry. Nil fields are left as they are.
type LogUpdate struct {
	LoggedAt *time.Time
	Title    *string
	Content  *string
	Calories *int
}

// MediaUploadResponse holds the presigned URL the client uploads to.
type MediaUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// --- Service Interface ---

// LogService manages diet and workout logs. Writes follow the general write rule:
// the member's custodians, or the member themself while PT.
type LogService interface {
	Create(ctx context.Context, actor domain.Actor, kind domain.LogKind, memberID primitive.ObjectID, in LogInput) (*domain.ActivityLog, error)
	Get(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) (*domain.ActivityLog, error)
	List(ctx context.Context, actor domain.Actor, kind domain.LogKind, memberID primitive.ObjectID) ([]domain.ActivityLog, error)
	Update(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID, in LogUpdate) (*domain.ActivityLog, error)
	Delete(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) error
	RequestMediaUpload(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID, contentType string) (*MediaUploadResponse, error)
	MediaURL(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) (string, error)
}

// --- Service Implementation ---

type logService struct {
	logs     repository.ActivityLogRepository
	comments repository.CommentRepository
	authz    *authz.Engine
	files    storage.FileStorage // nil when media is disabled
	notifier Notifier
	expiry   time.Duration
}

func NewLogService(repos repository.Set, engine *authz.Engine, files storage.FileStorage, notifier Notifier, urlExpiry time.Duration) LogService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if urlExpiry <= 0 {
		urlExpiry = storage.DefaultPresignedURLExpiry
	}
	return &logService{
		logs:     repos.Logs,
		comments: repos.Comments,
		authz:    engine,
		files:    files,
		notifier: notifier,
		expiry:   urlExpiry,
	}
}

func validKind(kind domain.LogKind) error {
	if !kind.Valid() {
		return domain.NewValidationError("kind", fmt.Sprintf("unknown log kind %q", kind))
	}
	return nil
}

func (s *logService) Create(ctx context.Context, actor domain.Actor, kind domain.LogKind, memberID primitive.ObjectID, in LogInput) (*domain.ActivityLog, error) {
	// 1. Validate Input
	if err := validKind(kind); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, ErrMissingTitle
	}
	if in.Calories != nil && *in.Calories < 0 {
		return nil, ErrNegativeCalories
	}
	if kind != domain.LogDiet {
		in.Calories = nil
	}
	if in.LoggedAt.IsZero() {
		in.LoggedAt = time.Now().UTC()
	}

	// 2. Authorize
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentWrite); err != nil {
		return nil, err
	}

	// 3. Persist
	entry := &domain.ActivityLog{
		Kind:     kind,
		MemberID: memberID,
		AuthorID: actor.ID,
		LoggedAt: in.LoggedAt,
		Title:    in.Title,
		Content:  in.Content,
		Calories: in.Calories,
	}
	if _, err := s.logs.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, memberID, domain.SeveritySuccess, fmt.Sprintf("%s saved: %s", kind.Label(), entry.Title))
	return entry, nil
}

// loadFor fetches an entry and checks intent against the member it belongs to.
func (s *logService) loadFor(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID, intent domain.Intent) (*domain.ActivityLog, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	entry, err := s.logs.GetByID(ctx, kind, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound(string(kind)+" log", logID)
		}
		return nil, err
	}
	if _, err := s.authz.Require(ctx, actor, entry.MemberID, intent); err != nil {
		return nil, err
	}
	entry.HasMedia = entry.MediaKey != ""
	return entry, nil
}

func (s *logService) Get(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) (*domain.ActivityLog, error) {
	return s.loadFor(ctx, actor, kind, logID, domain.IntentRead)
}

func (s *logService) List(ctx context.Context, actor domain.Actor, kind domain.LogKind, memberID primitive.ObjectID) ([]domain.ActivityLog, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if _, err := s.authz.Require(ctx, actor, memberID, domain.IntentRead); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByMemberID(ctx, kind, memberID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].HasMedia = entries[i].MediaKey != ""
	}
	return entries, nil
}

func (s *logService) Update(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID, in LogUpdate) (*domain.ActivityLog, error) {
	entry, err := s.loadFor(ctx, actor, kind, logID, domain.IntentWrite)
	if err != nil {
		return nil, err
	}

	if in.LoggedAt != nil {
		entry.LoggedAt = *in.LoggedAt
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, ErrMissingTitle
		}
		entry.Title = title
	}
	if in.Content != nil {
		entry.Content = *in.Content
	}
	if in.Calories != nil && kind == domain.LogDiet {
		if *in.Calories < 0 {
			return nil, ErrNegativeCalories
		}
		entry.Calories = in.Calories
	}

	if err := s.logs.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, entry.MemberID, domain.SeveritySuccess, fmt.Sprintf("%s updated: %s", kind.Label(), entry.Title))
	return entry, nil
}

func (s *logService) Delete(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) error {
	entry, err := s.loadFor(ctx, actor, kind, logID, domain.IntentWrite)
	if err != nil {
		return err
	}
	if err := s.logs.Delete(ctx, kind, logID); err != nil {
		return err
	}
	if kind == domain.LogDiet {
		if n, err := s.comments.DeleteByLogID(ctx, logID); err != nil {
			log.Printf("WARN: Failed to delete comments of diet log %s: %v", logID.Hex(), err)
		} else if n > 0 {
			log.Printf("INFO: Deleted %d comments with diet log %s", n, logID.Hex())
		}
	}

	// Orphaned media is only wasted space; the log is already gone.
	if entry.MediaKey != "" && s.files != nil {
		if err := s.files.DeleteObject(ctx, entry.MediaKey); err != nil {
			log.Printf("WARN: Failed to delete media %s of %s log %s: %v", entry.MediaKey, kind, logID.Hex(), err)
		}
	}

	s.notifier.Notify(ctx, entry.MemberID, domain.SeverityWarning, fmt.Sprintf("%s deleted: %s", kind.Label(), entry.Title))
	return nil
}

func (s *logService) RequestMediaUpload(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID, contentType string) (*MediaUploadResponse, error) {
	if s.files == nil {
		return nil, ErrMediaUnavailable
	}
	if !storage.IsMediaType(contentType) {
		return nil, ErrUnsupportedMedia
	}
	entry, err := s.loadFor(ctx, actor, kind, logID, domain.IntentWrite)
	if err != nil {
		return nil, err
	}

	objectKey := storage.MediaObjectKey(string(kind), entry.MemberID.Hex(), contentType)
	uploadURL, err := s.files.GeneratePresignedUploadURL(ctx, objectKey, contentType, s.expiry)
	if err != nil {
		return nil, ErrMediaURL
	}

	// The previous object, if any, is replaced by the new key.
	previous := entry.MediaKey
	entry.MediaKey = objectKey
	entry.MediaType = contentType
	if err := s.logs.Update(ctx, entry); err != nil {
		return nil, err
	}
	if previous != "" {
		if err := s.files.DeleteObject(ctx, previous); err != nil {
			log.Printf("WARN: Failed to delete replaced media %s: %v", previous, err)
		}
	}

	return &MediaUploadResponse{
		UploadURL: uploadURL,
		ObjectKey: objectKey,
		ExpiresIn: int(s.expiry.Seconds()),
	}, nil
}

func (s *logService) MediaURL(ctx context.Context, actor domain.Actor, kind domain.LogKind, logID primitive.ObjectID) (string, error) {
	if s.files == nil {
		return "", ErrMediaUnavailable
	}
	entry, err := s.loadFor(ctx, actor, kind, logID, domain.IntentRead)
	if err != nil {
		return "", err
	}
	if entry.MediaKey == "" {
		return "", ErrNoMedia
	}

	url, err := s.files.GeneratePresignedDownloadURL(ctx, entry.MediaKey, s.expiry)
	if err != nil {
		return "", ErrMediaURL
	}
	return url, nil
}
