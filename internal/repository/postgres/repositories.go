package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so every repository can run inside a transaction
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	repos := newRepositories(db, logger)
	repos.Tx = &transactor{db: db, logger: logger}
	return repos
}

func newRepositories(q dbtx, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		User:           NewUserRepository(q, logger),
		Product:        NewProductRepository(q, logger),
		Category:       NewCategoryRepository(q, logger),
		Order:          NewOrderRepository(q, logger),
		OrderEvent:     NewOrderEventRepository(q, logger),
		Review:         NewReviewRepository(q, logger),
		Message:        NewMessageRepository(q, logger),
		Notification:   NewNotificationRepository(q, logger),
		Analytics:      NewAnalyticsRepository(q, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(q, logger),
		WebhookEvent:   NewWebhookEventRepository(q, logger),
	}
}

type transactor struct {
	db     *sql.DB
	logger *zap.Logger
}

func (t *transactor) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				t.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
			}
			return
		}
		err = tx.Commit()
	}()

	repos := newRepositories(tx, t.logger)
	repos.Tx = nestedTx{repos: repos}
	return fn(repos)
}

// nestedTx reuses the enclosing transaction
type nestedTx struct {
	repos *repository.Repositories
}

func (n nestedTx) WithinTx(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	return fn(n.repos)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func uniqueConstraint(err error) string {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Constraint
	}
	return ""
}

// clampPage normalises limit/offset the way the HTTP layer does
func clampPage(limit, offset int) (int, int) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
