package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n := NewOrderNumber(now)

	require.True(t, strings.HasPrefix(n, "ORD-"))
	assert.Len(t, n, len("ORD-")+11)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[NewOrderNumber(now.Add(time.Duration(i)*time.Millisecond))] = true
	}
	assert.Len(t, seen, 50, "distinct clock values must give distinct numbers")
}

func TestOrderRecalculate(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{ProductID: uuid.New(), Quantity: 2, Price: decimal.NewFromInt(10)},
		{ProductID: uuid.New(), Quantity: 1, Price: decimal.NewFromInt(5)},
	}}

	order.Recalculate(decimal.NewFromInt(7))

	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(25)), order.TotalAmount.String())
	assert.True(t, order.FinalAmount.Equal(decimal.NewFromInt(32)), order.FinalAmount.String())
	assert.True(t, order.FinalAmount.Equal(order.TotalAmount.Add(order.ShippingCost)))
	assert.Equal(t, 3, order.ItemCount())
}

func TestShippingCostFor(t *testing.T) {
	flat := decimal.NewFromInt(10)
	threshold := decimal.NewFromInt(100)

	assert.True(t, ShippingCostFor(decimal.NewFromInt(99), flat, threshold).Equal(flat))
	assert.True(t, ShippingCostFor(decimal.NewFromInt(100), flat, threshold).IsZero())
	assert.True(t, ShippingCostFor(decimal.NewFromInt(500), flat, decimal.Zero).Equal(flat))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2599), ToMinorUnits(decimal.RequireFromString("25.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.NewFromInt(10)))
	assert.True(t, FromMinorUnits(2599).Equal(decimal.RequireFromString("25.99")))
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.False(t, OrderStatus("refunded").IsValid())
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestCustomerCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.CustomerCancellable())
	assert.True(t, OrderStatusConfirmed.CustomerCancellable())
	assert.True(t, OrderStatusProcessing.CustomerCancellable())
	assert.False(t, OrderStatusShipped.CustomerCancellable())
	assert.False(t, OrderStatusDelivered.CustomerCancellable())
	assert.False(t, OrderStatusCancelled.CustomerCancellable())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusCompleted))
	assert.True(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusPending.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusCompleted))
}
