package postgres

import (
	"context"

	"go.uber.org/zap"
)

type webhookEventRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new processed-webhook-event repository
func NewWebhookEventRepository(db dbtx, logger *zap.Logger) *webhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookEventRepository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	query := `
		INSERT INTO processed_webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		r.logger.Error("Failed to record webhook event", zap.Error(err), zap.String("event_id", eventID))
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}
