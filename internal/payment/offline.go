package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OfflineGateway fabricates processor objects locally. It serves development
// without processor credentials and the test suites. Webhooks are verified with
// the same signature scheme as the live gateway.
type OfflineGateway struct {
	mu            sync.Mutex
	webhookSecret string
	currency      string
	logger        *zap.Logger

	// FailWith, when set, is returned by every Create* call
	FailWith error

	Customers        []CustomerRequest
	PaymentIntents   []PaymentIntentRequest
	CheckoutSessions []CheckoutSessionRequest

	// intents by idempotency key, replayed like the live processor does
	intentsByKey map[string]*PaymentIntent
}

// NewOfflineGateway creates an offline gateway
func NewOfflineGateway(webhookSecret, currency string, logger *zap.Logger) *OfflineGateway {
	return &OfflineGateway{
		webhookSecret: webhookSecret,
		currency:      currency,
		logger:        logger,
		intentsByKey:  make(map[string]*PaymentIntent),
	}
}

func (g *OfflineGateway) PublishableKey() string {
	return "pk_offline"
}

func (g *OfflineGateway) Currency() string {
	return g.currency
}

func (g *OfflineGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return "", g.FailWith
	}
	g.Customers = append(g.Customers, req)
	return "cus_offline_" + shortID(), nil
}

func (g *OfflineGateway) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return nil, g.FailWith
	}
	if prior, ok := g.intentsByKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		replayed := *prior
		return &replayed, nil
	}
	g.PaymentIntents = append(g.PaymentIntents, req)

	id := "pi_offline_" + shortID()
	g.logger.Debug("Offline payment intent created", zap.String("payment_intent_id", id))
	intent := &PaymentIntent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, shortID()),
		AmountMinor:  req.AmountMinor,
		Status:       "requires_payment_method",
	}
	if req.IdempotencyKey != "" {
		stored := *intent
		g.intentsByKey[req.IdempotencyKey] = &stored
	}
	return intent, nil
}

func (g *OfflineGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return nil, g.FailWith
	}
	g.CheckoutSessions = append(g.CheckoutSessions, req)

	id := "cs_offline_" + shortID()
	return &CheckoutSession{ID: id, URL: req.SuccessURL + "?offline_session=" + id}, nil
}

func (g *OfflineGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	return parseStripeEvent(payload, signatureHeader, g.webhookSecret)
}

// LastPaymentIntent returns the most recent intent request, if any
func (g *OfflineGateway) LastPaymentIntent() (PaymentIntentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.PaymentIntents) == 0 {
		return PaymentIntentRequest{}, false
	}
	return g.PaymentIntents[len(g.PaymentIntents)-1], true
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
