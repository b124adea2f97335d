package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "home-kitchen", Slugify("  Home & Kitchen "))
	assert.Equal(t, "t-shirts-2024", Slugify("T-Shirts (2024)"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestCategoryCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.svc.Catalog.CreateCategory(ctx, CategoryRequest{Name: "Home & Kitchen"})
	require.NoError(t, err)
	assert.Equal(t, "home-kitchen", category.Slug)
	assert.True(t, category.IsActive)

	_, err = env.svc.Catalog.CreateCategory(ctx, CategoryRequest{Name: "home kitchen"})
	var conflict *errors.ErrConflict
	require.True(t, stderrors.As(err, &conflict))

	bySlug, err := env.svc.Catalog.GetCategory(ctx, "home-kitchen")
	require.NoError(t, err)
	assert.Equal(t, category.ID, bySlug.ID)

	_, err = env.svc.Catalog.UpdateCategory(ctx, category.ID, CategoryRequest{Name: "Home", ParentID: &category.ID})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))

	updated, err := env.svc.Catalog.UpdateCategory(ctx, category.ID, CategoryRequest{Name: "Home"})
	require.NoError(t, err)
	assert.Equal(t, "home", updated.Slug)

	require.NoError(t, env.svc.Catalog.DeleteCategory(ctx, category.ID))
	_, err = env.svc.Catalog.GetCategory(ctx, category.ID.String())
	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(err, &notFound))
}

func TestProductLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category, err := env.svc.Catalog.CreateCategory(ctx, CategoryRequest{Name: "Lighting"})
	require.NoError(t, err)

	product, err := env.svc.Catalog.CreateProduct(ctx, ProductRequest{
		Name:        " Desk Lamp ",
		Description: "Warm light",
		Price:       decimal.RequireFromString("39.90"),
		CategoryID:  &category.ID,
		Tags:        []string{"Lamp", "lamp", " desk "},
		Quantity:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", product.Name)
	assert.Equal(t, []string{"lamp", "desk"}, product.Tags)
	assert.True(t, product.IsActive)

	_, err = env.svc.Catalog.CreateProduct(ctx, ProductRequest{Name: "Bad", Description: "x", Price: decimal.NewFromInt(-1)})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))

	adjusted, err := env.svc.Catalog.AdjustStock(ctx, product.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, adjusted.Quantity)
	_, err = env.svc.Catalog.AdjustStock(ctx, product.ID, -8)
	var stock *errors.ErrInsufficientStock
	require.True(t, stderrors.As(err, &stock))

	price := decimal.NewFromInt(35)
	patched, err := env.svc.Catalog.UpdateProduct(ctx, product.ID, ProductPatchRequest{Price: &price})
	require.NoError(t, err)
	assert.True(t, patched.Price.Equal(price))
	assert.Equal(t, "Desk Lamp", patched.Name)

	list, total, err := env.svc.Catalog.ListProducts(ctx, repository.ProductFilter{CategoryID: &category.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, env.svc.Catalog.DeactivateProduct(ctx, product.ID))
	_, err = env.svc.Catalog.GetProduct(ctx, product.ID, false)
	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(err, &notFound))
	hidden, err := env.svc.Catalog.GetProduct(ctx, product.ID, true)
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	_, total, err = env.svc.Catalog.ListProducts(ctx, repository.ProductFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
