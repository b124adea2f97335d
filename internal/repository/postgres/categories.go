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

const categoryColumns = `id, name, slug, description, image, parent_id, is_active, sort_order, created_at, updated_at`

type categoryRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db dbtx, logger *zap.Logger) *categoryRepository {
	return &categoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = category.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		category.Image,
		category.ParentID,
		category.IsActive,
		category.SortOrder,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: "a category with this slug already exists"}
	}
	if err != nil {
		r.logger.Error("Failed to create category", zap.Error(err))
		return err
	}
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "category", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get category by ID", zap.Error(err))
		return nil, err
	}
	return category, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "category", ID: slug}
	}
	if err != nil {
		r.logger.Error("Failed to get category by slug", zap.Error(err))
		return nil, err
	}
	return category, nil
}

func (r *categoryRepository) List(ctx context.Context, includeInactive bool) ([]*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	query := `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, image = $5, parent_id = $6, is_active = $7,
			sort_order = $8, updated_at = $9
		WHERE id = $1
	`

	category.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		category.Image,
		category.ParentID,
		category.IsActive,
		category.SortOrder,
		category.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: "a category with this slug already exists"}
	}
	if err != nil {
		r.logger.Error("Failed to update category", zap.Error(err))
		return err
	}
	return expectOne(result, "category", category.ID.String())
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete category", zap.Error(err))
		return err
	}
	return expectOne(result, "category", id.String())
}

func scanCategory(row scanner) (*domain.Category, error) {
	var c domain.Category
	var description, image sql.NullString

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&description,
		&image,
		&c.ParentID,
		&c.IsActive,
		&c.SortOrder,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	c.Image = image.String
	return &c, nil
}
