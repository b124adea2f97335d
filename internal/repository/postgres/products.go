package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const productColumns = `id, name, description, price, compare_price, category_id, brand, sku, images, tags,
	quantity, is_active, is_featured, rating, num_reviews, created_at, updated_at`

var productSorts = map[string]string{
	"price_asc":  "price ASC, created_at DESC",
	"price_desc": "price DESC, created_at DESC",
	"newest":     "created_at DESC",
	"rating":     "rating DESC, num_reviews DESC",
	"name":       "name ASC",
}

type productRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db dbtx, logger *zap.Logger) *productRepository {
	return &productRepository{
		db:     db,
		logger: logger,
	}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	now := time.Now()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt
	product.Images = nonNilStrings(product.Images)
	product.Tags = nonNilStrings(product.Tags)

	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.ComparePrice,
		product.CategoryID,
		product.Brand,
		product.SKU,
		pq.Array(product.Images),
		pq.Array(product.Tags),
		product.Quantity,
		product.IsActive,
		product.IsFeatured,
		product.Rating,
		product.NumReviews,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return err
	}

	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product by ID", zap.Error(err))
		return nil, err
	}

	return product, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	result := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[])`
	products, err := r.queryProducts(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, compare_price = $5, category_id = $6, brand = $7,
			sku = $8, images = $9, tags = $10, quantity = $11, is_active = $12, is_featured = $13,
			updated_at = $14
		WHERE id = $1
	`

	product.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.ComparePrice,
		product.CategoryID,
		product.Brand,
		product.SKU,
		pq.Array(nonNilStrings(product.Images)),
		pq.Array(nonNilStrings(product.Tags)),
		product.Quantity,
		product.IsActive,
		product.IsFeatured,
		product.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update product", zap.Error(err))
		return err
	}
	return expectOne(result, "product", product.ID.String())
}

func (r *productRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !filter.IncludeInactive {
		where = append(where, "is_active = TRUE")
	}
	if filter.CategoryID != nil {
		add("category_id = $%d", *filter.CategoryID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR brand ILIKE $%d OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE $%d))", n, n, n, n))
	}
	if filter.MinPrice != nil {
		add("price >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add("price <= $%d", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		where = append(where, "quantity > 0")
	}
	if filter.FeaturedOnly {
		where = append(where, "is_featured = TRUE")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count products", zap.Error(err))
		return nil, 0, err
	}

	order, ok := productSorts[filter.Sort]
	if !ok {
		order = productSorts["newest"]
	}
	limit, offset := clampPage(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, clause, order, len(args)-1, len(args))

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ReserveStock is a single conditional decrement; concurrent callers can never drive quantity below zero
func (r *productRepository) ReserveStock(ctx context.Context, id uuid.UUID, n int) error {
	query := `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND quantity >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, n)
	if err != nil {
		r.logger.Error("Failed to reserve stock", zap.Error(err), zap.String("product_id", id.String()))
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	var name string
	var available int
	err = r.db.QueryRowContext(ctx, `SELECT name, quantity FROM products WHERE id = $1`, id).Scan(&name, &available)
	if err == sql.ErrNoRows {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		return err
	}
	return &errors.ErrInsufficientStock{ProductID: id.String(), ProductName: name, Requested: n, Available: available}
}

func (r *productRepository) RestoreStock(ctx context.Context, id uuid.UUID, n int) error {
	query := `UPDATE products SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, n)
	if err != nil {
		r.logger.Error("Failed to restore stock", zap.Error(err), zap.String("product_id", id.String()))
		return err
	}
	return expectOne(result, "product", id.String())
}

func (r *productRepository) UpdateRating(ctx context.Context, id uuid.UUID, rating float64, numReviews int) error {
	query := `UPDATE products SET rating = $2, num_reviews = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, rating, numReviews)
	if err != nil {
		r.logger.Error("Failed to update product rating", zap.Error(err))
		return err
	}
	return expectOne(result, "product", id.String())
}

func (r *productRepository) ListLowStock(ctx context.Context, threshold, limit int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE is_active = TRUE AND quantity <= $1
		ORDER BY quantity ASC, name ASC
		LIMIT $2`
	return r.queryProducts(ctx, query, threshold, limit)
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	var brand, sku sql.NullString

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ComparePrice,
		&p.CategoryID,
		&brand,
		&sku,
		pq.Array(&p.Images),
		pq.Array(&p.Tags),
		&p.Quantity,
		&p.IsActive,
		&p.IsFeatured,
		&p.Rating,
		&p.NumReviews,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Brand = brand.String
	p.SKU = sku.String
	p.Images = nonNilStrings(p.Images)
	p.Tags = nonNilStrings(p.Tags)
	return &p, nil
}

func expectOne(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &errors.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
