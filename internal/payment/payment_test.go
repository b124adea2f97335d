package payment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, body map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestParseWebhookPaymentIntentSucceeded(t *testing.T) {
	g := NewOfflineGateway(testSecret, "usd", zap.NewNop())
	payload, header := signed(t, map[string]interface{}{
		"id":     "evt_1",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_123",
				"object":   "payment_intent",
				"amount":   2500,
				"metadata": map[string]string{"orderId": "abc", "checkoutType": "existing_order"},
			},
		},
	})

	event, err := g.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentIntentSucceeded, event.Type)
	require.NotNil(t, event.PaymentIntent)
	assert.Equal(t, "pi_123", event.PaymentIntent.ID)
	assert.Equal(t, int64(2500), event.PaymentIntent.AmountMinor)
	assert.Equal(t, "abc", event.PaymentIntent.Metadata["orderId"])
}

func TestParseWebhookCheckoutSessionShipping(t *testing.T) {
	g := NewOfflineGateway(testSecret, "usd", zap.NewNop())
	payload, header := signed(t, map[string]interface{}{
		"id":   "evt_2",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_1",
				"object":         "checkout.session",
				"payment_status": "paid",
				"amount_total":   4200,
				"metadata":       map[string]string{"userId": "u1"},
				"customer_details": map[string]interface{}{
					"email": "a@example.com",
					"name":  "Ada",
					"phone": "+100",
				},
				"shipping_details": map[string]interface{}{
					"name": "Ada L",
					"address": map[string]interface{}{
						"line1":       "1 Main St",
						"line2":       "Apt 2",
						"city":        "Springfield",
						"state":       "IL",
						"postal_code": "62701",
						"country":     "US",
					},
				},
			},
		},
	})

	event, err := g.ParseWebhook(payload, header)
	require.NoError(t, err)
	cs := event.CheckoutSession
	require.NotNil(t, cs)
	assert.True(t, cs.Paid())
	assert.Equal(t, int64(4200), cs.AmountTotalMinor)
	assert.Equal(t, "a@example.com", cs.CustomerEmail)
	require.NotNil(t, cs.Shipping)
	assert.Equal(t, "1 Main St, Apt 2", cs.Shipping.Street)
	assert.Equal(t, "+100", cs.Shipping.Phone)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	g := NewOfflineGateway(testSecret, "usd", zap.NewNop())
	payload, _ := signed(t, map[string]interface{}{"id": "evt_3", "type": "payment_intent.succeeded"})

	_, err := g.ParseWebhook(payload, "t=1,v1=deadbeef")
	var sigErr *SignatureError
	require.True(t, stderrors.As(err, &sigErr))
	assert.NotEmpty(t, sigErr.Error())
}

func TestParseWebhookRequiresSecret(t *testing.T) {
	g := NewOfflineGateway("", "usd", zap.NewNop())
	payload, err := json.Marshal(map[string]interface{}{"id": "evt_5", "type": "payment_intent.succeeded"})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "", Timestamp: time.Now()})

	event, err := g.ParseWebhook(sp.Payload, sp.Header)
	assert.Nil(t, event)
	assert.ErrorIs(t, err, ErrWebhookNotConfigured)
}

func TestParseWebhookUnknownTypeHasNoData(t *testing.T) {
	g := NewOfflineGateway(testSecret, "usd", zap.NewNop())
	payload, header := signed(t, map[string]interface{}{
		"id":   "evt_4",
		"type": "customer.created",
		"data": map[string]interface{}{"object": map[string]interface{}{"id": "cus_1"}},
	})

	event, err := g.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.Equal(t, EventType("customer.created"), event.Type)
	assert.Nil(t, event.PaymentIntent)
	assert.Nil(t, event.CheckoutSession)
}

func TestOfflineGatewayRecordsAndFails(t *testing.T) {
	g := NewOfflineGateway(testSecret, "usd", zap.NewNop())
	pi, err := g.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountMinor: 1000})
	require.NoError(t, err)
	assert.Contains(t, pi.ClientSecret, pi.ID)

	last, ok := g.LastPaymentIntent()
	require.True(t, ok)
	assert.Equal(t, int64(1000), last.AmountMinor)

	again, err := g.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountMinor: 1000, IdempotencyKey: "order-1"})
	require.NoError(t, err)
	replayed, err := g.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountMinor: 1000, IdempotencyKey: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, again.ID, replayed.ID)
	assert.Equal(t, again.ClientSecret, replayed.ClientSecret)
	assert.Len(t, g.PaymentIntents, 2)

	g.FailWith = stderrors.New("card processor down")
	_, err = g.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{})
	assert.Error(t, err)
}
