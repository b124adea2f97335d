package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// MessageService handles contact-form messages and back-office replies
type MessageService struct {
	repos         *repository.Repositories
	mailer        mail.Mailer
	composer      mail.Composer
	notifications *NotificationService
	effects       *Effects
	logger        *zap.Logger
}

// NewMessageService creates a new message service
func NewMessageService(
	repos *repository.Repositories,
	mailer mail.Mailer,
	composer mail.Composer,
	notifications *NotificationService,
	effects *Effects,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		repos:         repos,
		mailer:        mailer,
		composer:      composer,
		notifications: notifications,
		effects:       effects,
		logger:        logger,
	}
}

// Create stores a contact-form message; userID is set when the sender is signed in
func (s *MessageService) Create(ctx context.Context, userID *uuid.UUID, req ContactRequest) (*domain.Message, error) {
	msg := &domain.Message{
		UserID:  userID,
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: strings.TrimSpace(req.Subject),
		Body:    req.Message,
		Status:  domain.MessageStatusNew,
	}
	if err := s.repos.Message.Create(ctx, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Contact message received", zap.String("message_id", msg.ID.String()))
	subject := msg.Subject
	s.effects.Run(Effect{
		Name: "notify:admins_new_message",
		Run: func(ctx context.Context) error {
			return s.notifications.NotifyAdmins(ctx, domain.NotificationTypeSystem, "New message", subject, nil)
		},
	})
	return msg, nil
}

func (s *MessageService) List(ctx context.Context, status domain.MessageStatus, limit, offset int) ([]*domain.Message, int, error) {
	if status != "" && !status.IsValid() {
		return nil, 0, &errors.ErrValidation{Message: "unknown message status", Fields: map[string]string{"status": "invalid"}}
	}
	return s.repos.Message.List(ctx, status, limit, offset)
}

// Get returns the message and marks a new one as read
func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := s.repos.Message.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == domain.MessageStatusNew {
		msg.Status = domain.MessageStatusRead
		if err := s.repos.Message.Update(ctx, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// Reply stores the reply and emails it to the sender after the write
func (s *MessageService) Reply(ctx context.Context, id uuid.UUID, reply string) (*domain.Message, error) {
	msg, err := s.repos.Message.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	text := strings.TrimSpace(reply)
	msg.Reply = &text
	msg.RepliedAt = &now
	msg.Status = domain.MessageStatusReplied
	if err := s.repos.Message.Update(ctx, msg); err != nil {
		return nil, err
	}

	snapshot := *msg
	effects := []Effect{{
		Name: "mail:message_reply",
		Run: func(ctx context.Context) error {
			out, err := s.composer.MessageReply(&snapshot)
			if err != nil {
				return err
			}
			return s.mailer.Send(ctx, out)
		},
	}}
	if msg.UserID != nil {
		userID := *msg.UserID
		effects = append(effects, Effect{
			Name: "notify:message_reply",
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Notify(ctx, userID, domain.NotificationTypeSystem,
					"We replied to your message", snapshot.Subject, nil)
				return err
			},
		})
	}
	s.effects.Run(effects...)
	return msg, nil
}

// UpdateStatus moves a message between new, read and archived. Replied is set only by Reply.
func (s *MessageService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MessageStatus) (*domain.Message, error) {
	if !status.IsValid() || status == domain.MessageStatusReplied {
		return nil, &errors.ErrValidation{Message: "status must be new, read or archived", Fields: map[string]string{"status": "invalid"}}
	}
	msg, err := s.repos.Message.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == status {
		return msg, nil
	}
	msg.Status = status
	if err := s.repos.Message.Update(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Archive(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return s.UpdateStatus(ctx, id, domain.MessageStatusArchived)
}
