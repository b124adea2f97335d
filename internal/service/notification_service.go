package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
)

// NotificationService manages in-app notifications
type NotificationService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(repos *repository.Repositories, logger *zap.Logger) *NotificationService {
	return &NotificationService{repos: repos, logger: logger}
}

// Notify stores a notification for userID
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind domain.NotificationType, title, message string, orderID *uuid.UUID) (*domain.Notification, error) {
	if kind == "" {
		kind = domain.NotificationTypeSystem
	}
	n := &domain.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		OrderID: orderID,
	}
	if err := s.repos.Notification.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// NotifyAdmins fans a notification out to every active admin
func (s *NotificationService) NotifyAdmins(ctx context.Context, kind domain.NotificationType, title, message string, orderID *uuid.UUID) error {
	admins, err := s.repos.User.ListAdmins(ctx)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		if _, err := s.Notify(ctx, admin.ID, kind, title, message, orderID); err != nil {
			s.logger.Warn("Failed to notify admin", zap.String("admin_id", admin.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// NotificationPage is a page of notifications plus the unread total
type NotificationPage struct {
	Notifications []*domain.Notification `json:"notifications"`
	Total         int                    `json:"total"`
	Unread        int                    `json:"unread"`
}

func (s *NotificationService) ListMine(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) (*NotificationPage, error) {
	list, total, err := s.repos.Notification.ListByUserID(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	unread, err := s.repos.Notification.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: list, Total: total, Unread: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repos.Notification.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repos.Notification.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repos.Notification.Delete(ctx, userID, id)
}
