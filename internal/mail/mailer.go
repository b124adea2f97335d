// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jafarshop/storefront/internal/config"
)

// Message is one outgoing email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mock mailer when EMAIL_MOCK is set or no SMTP host is configured
func New(cfg config.EmailConfig, logger *zap.Logger) Mailer {
	if cfg.Mock || cfg.Host == "" {
		logger.Info("Email delivery disabled, messages will be logged")
		return NewMockMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer that relays through an SMTP server
func NewSMTPMailer(cfg config.EmailConfig, logger *zap.Logger) *smtpMailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		m.logger.Error("Failed to send email", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// MockMailer logs messages and keeps them for inspection
type MockMailer struct {
	mu     sync.Mutex
	sent   []Message
	logger *zap.Logger
}

// NewMockMailer creates a log-only mailer
func NewMockMailer(logger *zap.Logger) *MockMailer {
	return &MockMailer{logger: logger}
}

func (m *MockMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("Mock email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// Sent returns a copy of every message sent so far
func (m *MockMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
