package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/memory"
)

const testWebhookSecret = "whsec_service_test"

type testEnv struct {
	cfg     *config.Config
	repos   *repository.Repositories
	gateway *payment.OfflineGateway
	mailer  *mail.MockMailer
	svc     *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Environment: "test",
		ClientURL:   "http://shop.test",
		JWT:         config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		Stripe:      config.StripeConfig{WebhookSecret: testWebhookSecret, Currency: "usd"},
		Checkout: config.CheckoutConfig{
			FlatShippingRate:      decimal.NewFromInt(10),
			FreeShippingThreshold: decimal.NewFromInt(100),
			PendingOrderTTL:       time.Hour,
			SweepInterval:         time.Minute,
		},
	}
	repos := memory.NewRepositories(logger)
	gateway := payment.NewOfflineGateway(testWebhookSecret, "usd", logger)
	mailer := mail.NewMockMailer(logger)

	svc := New(Deps{
		Config:  cfg,
		Repos:   repos,
		Gateway: gateway,
		Mailer:  mailer,
		Effects: NewEffects(false, logger),
		Logger:  logger,
	})
	return &testEnv{cfg: cfg, repos: repos, gateway: gateway, mailer: mailer, svc: svc}
}

func (e *testEnv) user(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:         "Test " + string(role),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, e.repos.User.Create(context.Background(), u))
	return u
}

func (e *testEnv) product(t *testing.T, name string, price int64, qty int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: decimal.NewFromInt(price), Quantity: qty, IsActive: true, Images: []string{"https://img.test/" + name + ".jpg"}}
	require.NoError(t, e.repos.Product.Create(context.Background(), p))
	return p
}

func (e *testEnv) addToCart(t *testing.T, userID uuid.UUID, p *domain.Product, qty int) {
	t.Helper()
	_, err := e.svc.Cart.Add(context.Background(), userID, CartItemRequest{ProductID: p.ID, Quantity: qty})
	require.NoError(t, err)
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := e.repos.Product.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Quantity
}

func (e *testEnv) order(t *testing.T, id uuid.UUID) *domain.Order {
	t.Helper()
	o, err := e.repos.Order.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) orderCount(t *testing.T) int {
	t.Helper()
	_, total, err := e.repos.Order.List(context.Background(), repository.OrderFilter{Limit: 100})
	require.NoError(t, err)
	return total
}

func testAddress() ShippingAddressRequest {
	return ShippingAddressRequest{
		Name:       "Ada Lovelace",
		Street:     "1 Analytical Way",
		City:       "London",
		State:      "LDN",
		PostalCode: "N1 9GU",
		Country:    "GB",
		Phone:      "+44 20 0000 0000",
	}
}

// signedEvent builds a processor event body signed with the test webhook secret
func signedEvent(t *testing.T, id, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func (e *testEnv) deliver(t *testing.T, id, eventType string, object map[string]interface{}) *WebhookResult {
	t.Helper()
	payload, header := signedEvent(t, id, eventType, object)
	result, err := e.svc.Payments.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	return result
}
