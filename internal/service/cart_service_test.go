package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

func TestCartAddIncrementsExistingLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "mug", 12, 5)

	env.addToCart(t, user.ID, p, 2)
	view, err := env.svc.Cart.Add(ctx, user.ID, CartItemRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 3, view.ItemCount)
	assert.True(t, view.Subtotal.Equal(decimal.NewFromInt(36)))
	assert.True(t, view.Total.Equal(decimal.NewFromInt(46)))

	_, err = env.svc.Cart.Add(ctx, user.ID, CartItemRequest{ProductID: p.ID, Quantity: 3})
	var stock *errors.ErrInsufficientStock
	require.True(t, stderrors.As(err, &stock))
	assert.Equal(t, 6, stock.Requested)
}

func TestCartAddDefaultsToOneAndRejectsInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "mug", 12, 5)

	view, err := env.svc.Cart.Add(ctx, user.ID, CartItemRequest{ProductID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	require.NoError(t, env.svc.Catalog.DeactivateProduct(ctx, p.ID))
	_, err = env.svc.Cart.Add(ctx, user.ID, CartItemRequest{ProductID: p.ID})
	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(err, &notFound))

	view, err = env.svc.Cart.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].Available)
}

func TestCartUpdateQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	a := env.product(t, "a", 10, 4)
	b := env.product(t, "b", 5, 4)
	env.addToCart(t, user.ID, a, 1)
	env.addToCart(t, user.ID, b, 1)

	view, err := env.svc.Cart.UpdateQuantity(ctx, user.ID, a.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, view.ItemCount)

	_, err = env.svc.Cart.UpdateQuantity(ctx, user.ID, a.ID, 5)
	var stock *errors.ErrInsufficientStock
	require.True(t, stderrors.As(err, &stock))

	view, err = env.svc.Cart.UpdateQuantity(ctx, user.ID, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, b.ID, view.Items[0].Product.ID)

	_, err = env.svc.Cart.Remove(ctx, user.ID, a.ID)
	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(err, &notFound))

	require.NoError(t, env.svc.Cart.Clear(ctx, user.ID))
	view, err = env.svc.Cart.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

func TestWishlistRejectsDuplicatesAndMovesToCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "lamp", 40, 2)

	items, err := env.svc.Wishlist.Add(ctx, user.ID, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = env.svc.Wishlist.Add(ctx, user.ID, p.ID)
	var conflict *errors.ErrConflict
	require.True(t, stderrors.As(err, &conflict))

	cart, err := env.svc.Wishlist.MoveToCart(ctx, user.ID, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	items, err = env.svc.Wishlist.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = env.svc.Wishlist.Remove(ctx, user.ID, p.ID)
	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(err, &notFound))
}
