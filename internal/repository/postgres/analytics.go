package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
)

type analyticsRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db dbtx, logger *zap.Logger) *analyticsRepository {
	return &analyticsRepository{
		db:     db,
		logger: logger,
	}
}

func (r *analyticsRepository) Create(ctx context.Context, event *domain.AnalyticsEvent) error {
	query := `
		INSERT INTO analytics_events (id, type, user_id, product_id, session_id, path, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(event.Metadata); err != nil {
			return err
		}
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.Type, event.UserID, event.ProductID, event.SessionID, event.Path, metadataJSON, event.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create analytics event", zap.Error(err))
		return err
	}
	return nil
}

// Dashboard computes revenue and volume figures for orders created since the given time.
// LowStock is left for the caller.
func (r *analyticsRepository) Dashboard(ctx context.Context, since time.Time, topN int) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{
		OrdersByStatus: map[domain.OrderStatus]int{},
		EventCounts:    map[domain.AnalyticsEventType]int{},
		TopProducts:    []domain.ProductSales{},
		DailyRevenue:   []domain.DailyRevenue{},
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(final_amount), 0), COUNT(*)
		FROM orders
		WHERE payment_status = $1 AND created_at >= $2
	`, domain.PaymentStatusCompleted, since).Scan(&stats.TotalRevenue, &stats.TotalOrders)
	if err != nil {
		r.logger.Error("Failed to compute revenue", zap.Error(err))
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE is_active = TRUE`).Scan(&stats.TotalProducts); err != nil {
		return nil, err
	}

	if err := r.groupCounts(ctx, `
		SELECT status, COUNT(*) FROM orders WHERE created_at >= $1 GROUP BY status
	`, since, func(key string, n int) { stats.OrdersByStatus[domain.OrderStatus(key)] = n }); err != nil {
		return nil, err
	}
	if err := r.groupCounts(ctx, `
		SELECT type, COUNT(*) FROM analytics_events WHERE created_at >= $1 GROUP BY type
	`, since, func(key string, n int) { stats.EventCounts[domain.AnalyticsEventType(key)] = n }); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.product_id, oi.name, SUM(oi.quantity), SUM(oi.quantity * oi.price)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.payment_status = $1 AND o.created_at >= $2
		GROUP BY oi.product_id, oi.name
		ORDER BY SUM(oi.quantity) DESC
		LIMIT $3
	`, domain.PaymentStatusCompleted, since, topN)
	if err != nil {
		r.logger.Error("Failed to compute top products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &ps.Revenue); err != nil {
			return nil, err
		}
		stats.TopProducts = append(stats.TopProducts, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dailyRows, err := r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM orders
		WHERE payment_status = $1 AND created_at >= $2
		GROUP BY 1
		ORDER BY 1
	`, domain.PaymentStatusCompleted, since)
	if err != nil {
		r.logger.Error("Failed to compute daily revenue", zap.Error(err))
		return nil, err
	}
	defer dailyRows.Close()
	for dailyRows.Next() {
		var day domain.DailyRevenue
		var revenue decimal.Decimal
		if err := dailyRows.Scan(&day.Day, &day.Orders, &revenue); err != nil {
			return nil, err
		}
		day.Revenue = revenue
		stats.DailyRevenue = append(stats.DailyRevenue, day)
	}

	return stats, dailyRows.Err()
}

func (r *analyticsRepository) groupCounts(ctx context.Context, query string, since time.Time, set func(string, int)) error {
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		r.logger.Error("Failed to compute grouped counts", zap.Error(err))
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		set(key, n)
	}
	return rows.Err()
}
