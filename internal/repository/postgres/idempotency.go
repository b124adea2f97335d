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

type idempotencyKeyRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db dbtx, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByKey returns nil, nil when the key has not been used by this user
func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, userID uuid.UUID, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT key, user_id, order_id, request_hash, created_at
		FROM idempotency_keys
		WHERE user_id = $1 AND key = $2
	`

	var idempotencyKey domain.IdempotencyKey
	err := r.db.QueryRowContext(ctx, query, userID, key).Scan(
		&idempotencyKey.Key,
		&idempotencyKey.UserID,
		&idempotencyKey.OrderID,
		&idempotencyKey.RequestHash,
		&idempotencyKey.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, err
	}

	return &idempotencyKey, nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, user_id, order_id, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		key.Key,
		key.UserID,
		key.OrderID,
		key.RequestHash,
		key.CreatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: "idempotency key already used"}
	}
	if err != nil {
		r.logger.Error("Failed to create idempotency key", zap.Error(err))
		return err
	}

	return nil
}
