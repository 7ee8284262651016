package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrEmptyComment   = domain.NewValidationError("content", "comment cannot be empty")
	ErrCommentTooLong = domain.NewValidationError("content", fmt.Sprintf("comment must be at most %d characters", domain.MaxCommentLength))
)

// --- Service Interface ---

// CommentService manages comments on diet logs. Posting follows the log's write rule,
// reading its read rule.
type CommentService interface {
	Create(ctx context.Context, actor domain.Actor, logID primitive.ObjectID, content string) (*domain.LogComment, error)
	List(ctx context.Context, actor domain.Actor, logID primitive.ObjectID) ([]domain.LogComment, error)
	// Delete is allowed to the author, the trainer assigned to the log's owner, and admins.
	Delete(ctx context.Context, actor domain.Actor, logID, commentID primitive.ObjectID) error
}

// --- Service Implementation ---

type commentService struct {
	logs     repository.ActivityLogRepository
	comments repository.CommentRepository
	authz    *authz.Engine
	notifier Notifier
}

func NewCommentService(repos repository.Set, engine *authz.Engine, notifier Notifier) CommentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &commentService{
		logs:     repos.Logs,
		comments: repos.Comments,
		authz:    engine,
		notifier: notifier,
	}
}

func (s *commentService) dietLog(ctx context.Context, logID primitive.ObjectID) (*domain.ActivityLog, error) {
	entry, err := s.logs.GetByID(ctx, domain.LogDiet, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("diet log", logID)
		}
		return nil, err
	}
	return entry, nil
}

func (s *commentService) Create(ctx context.Context, actor domain.Actor, logID primitive.ObjectID, content string) (*domain.LogComment, error) {
	// 1. Validate Input
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(content) > domain.MaxCommentLength {
		return nil, ErrCommentTooLong
	}

	// 2. Authorize against the log's owner
	entry, err := s.dietLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.Require(ctx, actor, entry.MemberID, domain.IntentWrite); err != nil {
		return nil, err
	}

	// 3. Persist
	comment := &domain.LogComment{
		LogID:    logID,
		MemberID: entry.MemberID,
		AuthorID: actor.ID,
		Content:  content,
	}
	if _, err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	if actor.ID != entry.MemberID {
		s.notifier.Notify(ctx, entry.MemberID, domain.SeverityInfo, fmt.Sprintf("New comment on diet log: %s", entry.Title))
	}
	return comment, nil
}

func (s *commentService) List(ctx context.Context, actor domain.Actor, logID primitive.ObjectID) ([]domain.LogComment, error) {
	entry, err := s.dietLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.Require(ctx, actor, entry.MemberID, domain.IntentRead); err != nil {
		return nil, err
	}
	return s.comments.ListByLogID(ctx, logID)
}

func (s *commentService) Delete(ctx context.Context, actor domain.Actor, logID, commentID primitive.ObjectID) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound("comment", commentID)
		}
		return err
	}
	if comment.LogID != logID {
		return domain.NotFound("comment", commentID)
	}
	if err := s.authz.RequireCommentDelete(ctx, actor, comment); err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound("comment", commentID)
		}
		return err
	}
	return nil
}
