package mail

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
)

func TestNewFallsBackToMock(t *testing.T) {
	m := New(config.EmailConfig{Mock: false, Host: ""}, zap.NewNop())
	_, ok := m.(*MockMailer)
	assert.True(t, ok)
}

func TestOrderConfirmationRendersTotals(t *testing.T) {
	c := Composer{StoreName: "Shop", ClientURL: "http://localhost:3000"}
	tracking := "TRK1"
	order := &domain.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-12345678901",
		Items: []domain.OrderItem{
			{Name: "<b>Mug</b>", Quantity: 2, Price: decimal.NewFromInt(10)},
		},
		TotalAmount:    decimal.NewFromInt(20),
		ShippingCost:   decimal.NewFromInt(10),
		FinalAmount:    decimal.NewFromInt(30),
		Status:         domain.OrderStatusShipped,
		TrackingNumber: &tracking,
	}
	user := &domain.User{Name: "Ada", Email: "ada@example.com"}

	msg, err := c.OrderConfirmation(user, order)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Contains(t, msg.Subject, order.OrderNumber)
	assert.Contains(t, msg.HTML, "30.00")
	assert.Contains(t, msg.HTML, "&lt;b&gt;Mug&lt;/b&gt;")

	status, err := c.OrderStatus(user, order)
	require.NoError(t, err)
	assert.Contains(t, status.HTML, "TRK1")
	assert.Contains(t, status.Subject, "shipped")
}

func TestMockMailerKeepsMessages(t *testing.T) {
	m := NewMockMailer(zap.NewNop())
	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"}))
	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Subject)
}
