package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	dashboardTopProducts   = 5
	dashboardLowStockLimit = 10
	lowStockThreshold      = 5
)

// AnalyticsService records storefront events and builds the admin dashboard
type AnalyticsService struct {
	repos   *repository.Repositories
	effects *Effects
	logger  *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repos *repository.Repositories, effects *Effects, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{repos: repos, effects: effects, logger: logger}
}

// Track records an event synchronously
func (s *AnalyticsService) Track(ctx context.Context, userID *uuid.UUID, req TrackEventRequest) error {
	if !req.Type.IsValid() {
		return &errors.ErrValidation{Message: "unknown event type", Fields: map[string]string{"type": "invalid"}}
	}
	return s.repos.Analytics.Create(ctx, &domain.AnalyticsEvent{
		Type:      req.Type,
		UserID:    userID,
		ProductID: req.ProductID,
		SessionID: req.SessionID,
		Path:      req.Path,
		Metadata:  req.Metadata,
	})
}

// TrackEffect builds a best-effort tracking effect
func (s *AnalyticsService) TrackEffect(kind domain.AnalyticsEventType, userID *uuid.UUID, productID *uuid.UUID, metadata map[string]interface{}) Effect {
	return Effect{
		Name: "analytics:" + string(kind),
		Run: func(ctx context.Context) error {
			return s.repos.Analytics.Create(ctx, &domain.AnalyticsEvent{
				Type:      kind,
				UserID:    userID,
				ProductID: productID,
				Metadata:  metadata,
			})
		},
	}
}

// Dashboard aggregates the last `days` days
func (s *AnalyticsService) Dashboard(ctx context.Context, days int) (*domain.DashboardStats, error) {
	if days < 1 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := s.repos.Analytics.Dashboard(ctx, since, dashboardTopProducts)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.repos.Product.ListLowStock(ctx, lowStockThreshold, dashboardLowStockLimit)
	if err != nil {
		return nil, err
	}
	stats.LowStock = lowStock
	return stats, nil
}
