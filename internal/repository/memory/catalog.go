package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

type productRepository struct {
	s *Store
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	product.UpdatedAt = product.CreatedAt
	if product.Images == nil {
		product.Images = []string{}
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	r.s.data.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return cloneProduct(p), nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.data.products[id]; ok {
			result[id] = cloneProduct(p)
		}
	}
	return result, nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.products[product.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: product.ID.String()}
	}
	product.UpdatedAt = time.Now()
	// rating fields are owned by UpdateRating
	product.Rating = existing.Rating
	product.NumReviews = existing.NumReviews
	r.s.data.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *productRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []*domain.Product
	for _, p := range r.s.data.products {
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
			continue
		}
		if search != "" && !productMatches(p, search) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(decimal.NewFromFloat(*filter.MinPrice)) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(decimal.NewFromFloat(*filter.MaxPrice)) {
			continue
		}
		if filter.InStockOnly && p.Quantity <= 0 {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}

	sort.SliceStable(matched, productLess(matched, filter.Sort))
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func productMatches(p *domain.Product, search string) bool {
	if strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.Description), search) ||
		strings.Contains(strings.ToLower(p.Brand), search) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func productLess(p []*domain.Product, sortBy string) func(i, j int) bool {
	switch sortBy {
	case "price_asc":
		return func(i, j int) bool { return p[i].Price.LessThan(p[j].Price) }
	case "price_desc":
		return func(i, j int) bool { return p[i].Price.GreaterThan(p[j].Price) }
	case "rating":
		return func(i, j int) bool {
			if p[i].Rating == p[j].Rating {
				return p[i].NumReviews > p[j].NumReviews
			}
			return p[i].Rating > p[j].Rating
		}
	case "name":
		return func(i, j int) bool { return p[i].Name < p[j].Name }
	default:
		return func(i, j int) bool { return p[i].CreatedAt.After(p[j].CreatedAt) }
	}
}

func (r *productRepository) ReserveStock(ctx context.Context, id uuid.UUID, n int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.products[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if !p.IsActive || p.Quantity < n {
		return &errors.ErrInsufficientStock{ProductID: id.String(), ProductName: p.Name, Requested: n, Available: p.Quantity}
	}
	p.Quantity -= n
	p.UpdatedAt = time.Now()
	return nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id uuid.UUID, n int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.products[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	p.Quantity += n
	p.UpdatedAt = time.Now()
	return nil
}

func (r *productRepository) UpdateRating(ctx context.Context, id uuid.UUID, rating float64, numReviews int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.data.products[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	p.Rating = rating
	p.NumReviews = numReviews
	return nil
}

func (r *productRepository) ListLowStock(ctx context.Context, threshold, limit int) ([]*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	low := []*domain.Product{}
	for _, p := range r.s.data.products {
		if p.IsActive && p.Quantity <= threshold {
			low = append(low, cloneProduct(p))
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].Quantity == low[j].Quantity {
			return low[i].Name < low[j].Name
		}
		return low[i].Quantity < low[j].Quantity
	})
	if len(low) > limit {
		low = low[:limit]
	}
	return low, nil
}

type categoryRepository struct {
	s *Store
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.data.categories {
		if c.Slug == category.Slug {
			return &errors.ErrConflict{Message: "a category with this slug already exists"}
		}
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	category.UpdatedAt = category.CreatedAt
	cp := *category
	r.s.data.categories[category.ID] = &cp
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.data.categories[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "category", ID: id.String()}
	}
	cp := *c
	return &cp, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.data.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "category", ID: slug}
}

func (r *categoryRepository) List(ctx context.Context, includeInactive bool) ([]*domain.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	categories := []*domain.Category{}
	for _, c := range r.s.data.categories {
		if !includeInactive && !c.IsActive {
			continue
		}
		cp := *c
		categories = append(categories, &cp)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].SortOrder == categories[j].SortOrder {
			return categories[i].Name < categories[j].Name
		}
		return categories[i].SortOrder < categories[j].SortOrder
	})
	return categories, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.categories[category.ID]; !ok {
		return &errors.ErrNotFound{Resource: "category", ID: category.ID.String()}
	}
	for _, c := range r.s.data.categories {
		if c.ID != category.ID && c.Slug == category.Slug {
			return &errors.ErrConflict{Message: "a category with this slug already exists"}
		}
	}
	category.UpdatedAt = time.Now()
	cp := *category
	r.s.data.categories[category.ID] = &cp
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.categories[id]; !ok {
		return &errors.ErrNotFound{Resource: "category", ID: id.String()}
	}
	delete(r.s.data.categories, id)
	for _, p := range r.s.data.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
		}
	}
	return nil
}
