package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// CatalogService manages products and categories
type CatalogService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repos *repository.Repositories, logger *zap.Logger) *CatalogService {
	return &CatalogService{repos: repos, logger: logger}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.repos.Product.List(ctx, filter)
}

// GetProduct hides deactivated products unless includeInactive is set
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*domain.Product, error) {
	product, err := s.repos.Product.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive && !includeInactive {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return product, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req ProductRequest) (*domain.Product, error) {
	if err := validatePrices(req.Price, req.ComparePrice); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Price:        req.Price,
		ComparePrice: req.ComparePrice,
		CategoryID:   req.CategoryID,
		Brand:        req.Brand,
		SKU:          req.SKU,
		Images:       nonNil(req.Images),
		Tags:         normalizeTags(req.Tags),
		Quantity:     req.Quantity,
		IsActive:     req.IsActive == nil || *req.IsActive,
		IsFeatured:   req.IsFeatured,
	}
	if err := s.repos.Product.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies the fields present in req
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, req ProductPatchRequest) (*domain.Product, error) {
	product, err := s.repos.Product.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ComparePrice != nil {
		product.ComparePrice = req.ComparePrice
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = req.CategoryID
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.SKU != nil {
		product.SKU = *req.SKU
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Tags != nil {
		product.Tags = normalizeTags(req.Tags)
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	if err := validatePrices(product.Price, product.ComparePrice); err != nil {
		return nil, err
	}

	if err := s.repos.Product.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeactivateProduct is a soft delete; orders keep referencing the row
func (s *CatalogService) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.repos.Product.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return nil
	}
	product.IsActive = false
	if err := s.repos.Product.Update(ctx, product); err != nil {
		return err
	}
	s.logger.Info("Product deactivated", zap.String("product_id", id.String()))
	return nil
}

// AdjustStock applies a relative change using the same conditional update as checkout
func (s *CatalogService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	switch {
	case delta > 0:
		if err := s.repos.Product.RestoreStock(ctx, id, delta); err != nil {
			return nil, err
		}
	case delta < 0:
		if err := s.repos.Product.ReserveStock(ctx, id, -delta); err != nil {
			return nil, err
		}
	default:
		return nil, &errors.ErrValidation{Message: "delta must not be zero", Fields: map[string]string{"delta": "required"}}
	}
	return s.repos.Product.GetByID(ctx, id)
}

// AddImage appends an uploaded image URL to the product gallery
func (s *CatalogService) AddImage(ctx context.Context, id uuid.UUID, url string) (*domain.Product, error) {
	product, err := s.repos.Product.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Images = append(product.Images, url)
	if err := s.repos.Product.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, includeInactive bool) ([]*domain.Category, error) {
	return s.repos.Category.List(ctx, includeInactive)
}

// GetCategory accepts either an id or a slug
func (s *CatalogService) GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.repos.Category.GetByID(ctx, id)
	}
	return s.repos.Category.GetBySlug(ctx, strings.ToLower(idOrSlug))
}

func (s *CatalogService) CreateCategory(ctx context.Context, req CategoryRequest) (*domain.Category, error) {
	slug, err := categorySlug(req.Slug, req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, req.ParentID); err != nil {
		return nil, err
	}

	category := &domain.Category{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		Image:       req.Image,
		ParentID:    req.ParentID,
		IsActive:    req.IsActive == nil || *req.IsActive,
		SortOrder:   req.SortOrder,
	}
	if err := s.repos.Category.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*domain.Category, error) {
	category, err := s.repos.Category.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil && *req.ParentID == id {
		return nil, &errors.ErrValidation{Message: "a category cannot be its own parent", Fields: map[string]string{"parent": "invalid"}}
	}
	if err := s.checkCategory(ctx, req.ParentID); err != nil {
		return nil, err
	}

	slug, err := categorySlug(req.Slug, req.Name)
	if err != nil {
		return nil, err
	}
	category.Name = strings.TrimSpace(req.Name)
	category.Slug = slug
	category.Description = req.Description
	category.Image = req.Image
	category.ParentID = req.ParentID
	category.SortOrder = req.SortOrder
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.repos.Category.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes the category; its products become uncategorised
func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.repos.Category.Delete(ctx, id)
}

func (s *CatalogService) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.repos.Category.GetByID(ctx, *id); err != nil {
		if isNotFound(err) {
			return &errors.ErrValidation{Message: "category does not exist", Fields: map[string]string{"category": "not found"}}
		}
		return err
	}
	return nil
}

func validatePrices(price decimal.Decimal, compare *decimal.Decimal) error {
	if price.IsNegative() {
		return &errors.ErrValidation{Message: "price must not be negative", Fields: map[string]string{"price": "min"}}
	}
	if compare != nil && compare.IsNegative() {
		return &errors.ErrValidation{Message: "compare price must not be negative", Fields: map[string]string{"comparePrice": "min"}}
	}
	return nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters into one hyphen
func Slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func categorySlug(explicit, name string) (string, error) {
	source := explicit
	if source == "" {
		source = name
	}
	slug := Slugify(source)
	if slug == "" {
		return "", &errors.ErrValidation{Message: "category slug is empty", Fields: map[string]string{"slug": "required"}}
	}
	return slug, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
