package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

func (e *testEnv) deliveredOrder(t *testing.T, userID uuid.UUID, p *domain.Product) *domain.Order {
	t.Helper()
	o := &domain.Order{
		UserID:        userID,
		Items:         []domain.OrderItem{{ProductID: p.ID, Name: p.Name, Quantity: 1, Price: p.Price}},
		TotalAmount:   p.Price,
		ShippingCost:  decimal.Zero,
		FinalAmount:   p.Price,
		PaymentMethod: domain.PaymentMethodStripe,
		PaymentStatus: domain.PaymentStatusCompleted,
		Status:        domain.OrderStatusDelivered,
	}
	require.NoError(t, e.repos.Order.Create(context.Background(), o))
	return o
}

func TestReviewVerifiedPurchaseAndRating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer := env.user(t, domain.RoleCustomer)
	other := env.user(t, domain.RoleCustomer)
	p := env.product(t, "kettle", 30, 5)
	order := env.deliveredOrder(t, buyer.ID, p)

	verified, err := env.svc.Reviews.Create(ctx, buyer.ID, ReviewRequest{ProductID: p.ID, OrderID: &order.ID, Rating: 5, Comment: "boils fast"})
	require.NoError(t, err)
	assert.True(t, verified.IsVerifiedPurchase)

	_, err = env.svc.Reviews.Create(ctx, buyer.ID, ReviewRequest{ProductID: p.ID, OrderID: &order.ID, Rating: 1, Comment: "changed my mind"})
	var conflict *errors.ErrConflict
	require.True(t, stderrors.As(err, &conflict))

	unverified, err := env.svc.Reviews.Create(ctx, other.ID, ReviewRequest{ProductID: p.ID, Rating: 2, Comment: "looks flimsy"})
	require.NoError(t, err)
	assert.False(t, unverified.IsVerifiedPurchase)

	stored, err := env.repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, stored.Rating)
	assert.Equal(t, 2, stored.NumReviews)

	require.NoError(t, env.svc.Reviews.Delete(ctx, other.ID, false, unverified.ID))
	stored, err = env.repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.Rating)
	assert.Equal(t, 1, stored.NumReviews)
}

func TestReviewWithoutOrderIsVerifiedByDeliveredHistory(t *testing.T) {
	env := newTestEnv(t)
	buyer := env.user(t, domain.RoleCustomer)
	p := env.product(t, "kettle", 30, 5)
	env.deliveredOrder(t, buyer.ID, p)

	review, err := env.svc.Reviews.Create(context.Background(), buyer.ID, ReviewRequest{ProductID: p.ID, Rating: 4, Comment: "solid"})
	require.NoError(t, err)
	assert.True(t, review.IsVerifiedPurchase)
}

func TestReviewOrderChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer := env.user(t, domain.RoleCustomer)
	stranger := env.user(t, domain.RoleCustomer)
	p := env.product(t, "kettle", 30, 5)
	unrelated := env.product(t, "toaster", 25, 5)
	order := env.deliveredOrder(t, buyer.ID, p)

	_, err := env.svc.Reviews.Create(ctx, stranger.ID, ReviewRequest{ProductID: p.ID, OrderID: &order.ID, Rating: 5, Comment: "not mine"})
	var forbidden *errors.ErrForbidden
	require.True(t, stderrors.As(err, &forbidden))

	_, err = env.svc.Reviews.Create(ctx, buyer.ID, ReviewRequest{ProductID: unrelated.ID, OrderID: &order.ID, Rating: 5, Comment: "wrong item"})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))
}

func TestReviewEditOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, domain.RoleCustomer)
	other := env.user(t, domain.RoleCustomer)
	admin := env.user(t, domain.RoleAdmin)
	p := env.product(t, "kettle", 30, 5)

	review, err := env.svc.Reviews.Create(ctx, author.ID, ReviewRequest{ProductID: p.ID, Rating: 3, Comment: "fine"})
	require.NoError(t, err)

	rating := 1
	_, err = env.svc.Reviews.Update(ctx, other.ID, false, review.ID, UpdateReviewRequest{Rating: &rating})
	var forbidden *errors.ErrForbidden
	require.True(t, stderrors.As(err, &forbidden))

	updated, err := env.svc.Reviews.Update(ctx, author.ID, false, review.ID, UpdateReviewRequest{Rating: &rating})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Rating)

	stored, err := env.repos.Product.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Rating)

	require.NoError(t, env.svc.Reviews.Delete(ctx, admin.ID, true, review.ID))
	mine, err := env.svc.Reviews.ListMine(ctx, author.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}
