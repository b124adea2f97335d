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

const reviewSelect = `
	SELECT r.id, r.user_id, COALESCE(u.name, ''), r.product_id, r.order_id, r.rating, r.title, r.comment,
		r.is_verified_purchase, r.created_at, r.updated_at
	FROM reviews r
	LEFT JOIN users u ON u.id = r.user_id
`

type reviewRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db dbtx, logger *zap.Logger) *reviewRepository {
	return &reviewRepository{
		db:     db,
		logger: logger,
	}
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, user_id, product_id, order_id, rating, title, comment, is_verified_purchase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = review.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		review.ID,
		review.UserID,
		review.ProductID,
		review.OrderID,
		review.Rating,
		review.Title,
		review.Comment,
		review.IsVerifiedPurchase,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: "you have already reviewed this product"}
	}
	if err != nil {
		r.logger.Error("Failed to create review", zap.Error(err))
		return err
	}
	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	review, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+` WHERE r.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "review", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get review by ID", zap.Error(err))
		return nil, err
	}
	return review, nil
}

func (r *reviewRepository) Update(ctx context.Context, review *domain.Review) error {
	query := `UPDATE reviews SET rating = $2, title = $3, comment = $4, updated_at = $5 WHERE id = $1`

	review.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query, review.ID, review.Rating, review.Title, review.Comment, review.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update review", zap.Error(err))
		return err
	}
	return expectOne(result, "review", review.ID.String())
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete review", zap.Error(err))
		return err
	}
	return expectOne(result, "review", id.String())
}

func (r *reviewRepository) ListByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID).Scan(&total); err != nil {
		r.logger.Error("Failed to count reviews", zap.Error(err))
		return nil, 0, err
	}

	limit, offset = clampPage(limit, offset)
	reviews, err := r.queryReviews(ctx, reviewSelect+` WHERE r.product_id = $1 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`,
		productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *reviewRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Review, error) {
	return r.queryReviews(ctx, reviewSelect+` WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (r *reviewRepository) RatingSummary(ctx context.Context, productID uuid.UUID) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE product_id = $1`

	var avg float64
	var count int
	if err := r.db.QueryRowContext(ctx, query, productID).Scan(&avg, &count); err != nil {
		r.logger.Error("Failed to compute rating summary", zap.Error(err))
		return 0, 0, err
	}
	return avg, count, nil
}

func (r *reviewRepository) queryReviews(ctx context.Context, query string, args ...interface{}) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query reviews", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func scanReview(row scanner) (*domain.Review, error) {
	var review domain.Review
	var title sql.NullString

	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.UserName,
		&review.ProductID,
		&review.OrderID,
		&review.Rating,
		&title,
		&review.Comment,
		&review.IsVerifiedPurchase,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	review.Title = title.String
	return &review, nil
}
