package service

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// ReviewService manages product reviews and keeps product ratings in step
type ReviewService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewReviewService creates a new review service
func NewReviewService(repos *repository.Repositories, logger *zap.Logger) *ReviewService {
	return &ReviewService{repos: repos, logger: logger}
}

// Create stores one review per {user, product, order}. Naming an order requires a delivered
// order of the user's that contains the product; without one the review is unverified.
func (s *ReviewService) Create(ctx context.Context, userID uuid.UUID, req ReviewRequest) (*domain.Review, error) {
	product, err := s.repos.Product.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, &errors.ErrNotFound{Resource: "product", ID: req.ProductID.String()}
	}

	verified := false
	if req.OrderID != nil {
		order, err := s.repos.Order.GetByID(ctx, *req.OrderID)
		if err != nil {
			return nil, err
		}
		if !order.OwnedBy(userID) {
			return nil, &errors.ErrForbidden{Message: "you can only review your own orders"}
		}
		if order.Status != domain.OrderStatusDelivered || !order.ContainsProduct(req.ProductID) {
			return nil, &errors.ErrValidation{Message: "you can only review products from a delivered order"}
		}
		verified = true
	} else {
		verified, err = s.repos.Order.HasDeliveredOrderWithProduct(ctx, userID, req.ProductID)
		if err != nil {
			return nil, err
		}
	}

	review := &domain.Review{
		UserID:             userID,
		ProductID:          req.ProductID,
		OrderID:            req.OrderID,
		Rating:             req.Rating,
		Title:              strings.TrimSpace(req.Title),
		Comment:            strings.TrimSpace(req.Comment),
		IsVerifiedPurchase: verified,
	}
	err = s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if err := tx.Review.Create(ctx, review); err != nil {
			return err
		}
		return recomputeRating(ctx, tx, req.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.Int("rating", review.Rating),
	)
	return review, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	return s.repos.Review.ListByProductID(ctx, productID, limit, offset)
}

func (s *ReviewService) ListMine(ctx context.Context, userID uuid.UUID) ([]*domain.Review, error) {
	return s.repos.Review.ListByUserID(ctx, userID)
}

// Update lets the author (or an admin) edit rating, title and comment
func (s *ReviewService) Update(ctx context.Context, userID uuid.UUID, asAdmin bool, id uuid.UUID, req UpdateReviewRequest) (*domain.Review, error) {
	var review *domain.Review
	err := s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		var err error
		review, err = s.owned(ctx, tx, userID, asAdmin, id)
		if err != nil {
			return err
		}
		if req.Rating != nil {
			review.Rating = *req.Rating
		}
		if req.Title != nil {
			review.Title = strings.TrimSpace(*req.Title)
		}
		if req.Comment != nil {
			review.Comment = strings.TrimSpace(*req.Comment)
		}
		if err := tx.Review.Update(ctx, review); err != nil {
			return err
		}
		return recomputeRating(ctx, tx, review.ProductID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, userID uuid.UUID, asAdmin bool, id uuid.UUID) error {
	return s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		review, err := s.owned(ctx, tx, userID, asAdmin, id)
		if err != nil {
			return err
		}
		if err := tx.Review.Delete(ctx, id); err != nil {
			return err
		}
		return recomputeRating(ctx, tx, review.ProductID)
	})
}

func (s *ReviewService) owned(ctx context.Context, tx *repository.Repositories, userID uuid.UUID, asAdmin bool, id uuid.UUID) (*domain.Review, error) {
	review, err := tx.Review.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asAdmin && review.UserID != userID {
		return nil, &errors.ErrForbidden{Message: "not authorized to modify this review"}
	}
	return review, nil
}

// recomputeRating stores the average rating rounded to one decimal
func recomputeRating(ctx context.Context, tx *repository.Repositories, productID uuid.UUID) error {
	avg, count, err := tx.Review.RatingSummary(ctx, productID)
	if err != nil {
		return err
	}
	return tx.Product.UpdateRating(ctx, productID, math.Round(avg*10)/10, count)
}
