package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

func TestDashboardCountsPaidOrdersAndEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer := env.user(t, domain.RoleCustomer)
	p := env.product(t, "kettle", 30, 3)
	env.deliveredOrder(t, buyer.ID, p)

	require.NoError(t, env.svc.Analytics.Track(ctx, nil, TrackEventRequest{Type: domain.AnalyticsPageView, Path: "/"}))
	require.NoError(t, env.svc.Analytics.Track(ctx, &buyer.ID, TrackEventRequest{Type: domain.AnalyticsProductView, ProductID: &p.ID}))

	err := env.svc.Analytics.Track(ctx, nil, TrackEventRequest{Type: "teleport"})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))

	stats, err := env.svc.Analytics.Dashboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.True(t, stats.TotalRevenue.Equal(p.Price))
	assert.Equal(t, 1, stats.OrdersByStatus[domain.OrderStatusDelivered])
	assert.Equal(t, 1, stats.EventCounts[domain.AnalyticsPageView])
	require.Len(t, stats.TopProducts, 1)
	assert.Equal(t, p.ID, stats.TopProducts[0].ProductID)
	require.Len(t, stats.LowStock, 1)
	assert.Equal(t, p.ID, stats.LowStock[0].ID)
}

func TestNotificationsAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.user(t, domain.RoleCustomer)
	other := env.user(t, domain.RoleCustomer)

	first, err := env.svc.Notifications.Notify(ctx, owner.ID, "", "Hello", "Welcome aboard", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationTypeSystem, first.Type)
	_, err = env.svc.Notifications.Notify(ctx, owner.ID, domain.NotificationTypeOrder, "Shipped", "On its way", nil)
	require.NoError(t, err)

	var notFound *errors.ErrNotFound
	require.True(t, stderrors.As(env.svc.Notifications.MarkRead(ctx, other.ID, first.ID), &notFound))
	require.NoError(t, env.svc.Notifications.MarkRead(ctx, owner.ID, first.ID))

	page, err := env.svc.Notifications.ListMine(ctx, owner.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Unread)

	marked, err := env.svc.Notifications.MarkAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	require.True(t, stderrors.As(env.svc.Notifications.Delete(ctx, other.ID, first.ID), &notFound))
	require.NoError(t, env.svc.Notifications.Delete(ctx, owner.ID, first.ID))

	page, err = env.svc.Notifications.ListMine(ctx, owner.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Zero(t, page.Unread)
}
