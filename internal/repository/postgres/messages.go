package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

const messageColumns = `id, user_id, name, email, subject, body, status, reply, replied_at, created_at, updated_at`

type messageRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewMessageRepository creates a new contact message repository
func NewMessageRepository(db dbtx, logger *zap.Logger) *messageRepository {
	return &messageRepository{
		db:     db,
		logger: logger,
	}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	now := time.Now()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}
	message.UpdatedAt = message.CreatedAt
	if message.Status == "" {
		message.Status = domain.MessageStatusNew
	}

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.UserID,
		message.Name,
		message.Email,
		message.Subject,
		message.Body,
		message.Status,
		message.Reply,
		message.RepliedAt,
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create message", zap.Error(err))
		return err
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "message", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get message by ID", zap.Error(err))
		return nil, err
	}
	return message, nil
}

func (r *messageRepository) Update(ctx context.Context, message *domain.Message) error {
	query := `UPDATE messages SET status = $2, reply = $3, replied_at = $4, updated_at = $5 WHERE id = $1`

	message.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query, message.ID, message.Status, message.Reply, message.RepliedAt, message.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update message", zap.Error(err))
		return err
	}
	return expectOne(result, "message", message.ID.String())
}

func (r *messageRepository) List(ctx context.Context, status domain.MessageStatus, limit, offset int) ([]*domain.Message, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count messages", zap.Error(err))
		return nil, 0, err
	}

	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + messageColumns + ` FROM messages` + where + ` ORDER BY created_at DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list messages", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}
	return messages, total, rows.Err()
}

func scanMessage(row scanner) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&m.Email,
		&m.Subject,
		&m.Body,
		&m.Status,
		&m.Reply,
		&m.RepliedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
