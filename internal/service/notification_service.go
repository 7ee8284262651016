package service

import (
	"alcyxob/gym-sessions/internal/authz"
	"alcyxob/gym-sessions/internal/domain"
	"alcyxob/gym-sessions/internal/repository"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService reads a member's inbox. Only the member and admins may see it.
type NotificationService interface {
	List(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error)
	CountUnread(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (int64, error)
	MarkAllRead(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (int64, error)
}

type notificationService struct {
	notifications repository.NotificationRepository
	authz         *authz.Engine
}

func NewNotificationService(repos repository.Set, engine *authz.Engine) NotificationService {
	return &notificationService{notifications: repos.Notifications, authz: engine}
}

func (s *notificationService) List(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID, unreadOnly bool) ([]domain.Notification, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, memberID); err != nil {
		return nil, err
	}
	return s.notifications.ListByMemberID(ctx, memberID, unreadOnly)
}

func (s *notificationService) CountUnread(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (int64, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, memberID); err != nil {
		return 0, err
	}
	return s.notifications.CountUnread(ctx, memberID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor domain.Actor, memberID primitive.ObjectID) (int64, error) {
	if err := s.authz.RequireSelfOrAdmin(actor, memberID); err != nil {
		return 0, err
	}
	return s.notifications.MarkAllRead(ctx, memberID)
}
