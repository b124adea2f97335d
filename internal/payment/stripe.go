package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	apperrors "github.com/jafarshop/storefront/pkg/errors"
)

const providerName = "stripe"

type stripeGateway struct {
	api            *client.API
	currency       string
	publishableKey string
	webhookSecret  string
	logger         *zap.Logger
}

// NewStripeGateway creates a gateway backed by the Stripe API
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) *stripeGateway {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     logger.Named("stripe").Sugar(),
	})

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &stripeGateway{
		api:            api,
		currency:       cfg.Currency,
		publishableKey: cfg.PublishableKey,
		webhookSecret:  cfg.WebhookSecret,
		logger:         logger,
	}
}

func (g *stripeGateway) PublishableKey() string {
	return g.publishableKey
}

func (g *stripeGateway) Currency() string {
	return g.currency
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Name:  stripe.String(req.Name),
	}
	params.Context = ctx
	params.AddMetadata("userId", req.UserID)

	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.upstream("failed to create customer", err)
	}
	return customer.ID, nil
}

func (g *stripeGateway) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(g.currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.upstream("failed to create payment intent", err)
	}

	g.logger.Info("Created payment intent",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", pi.Amount),
	)

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Status:       string(pi.Status),
	}, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				UnitAmount:  stripe.Int64(item.UnitAmountMinor),
				ProductData: productData,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if len(req.ShippingCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.ShippingCountries),
		}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, g.upstream("failed to create checkout session", err)
	}

	g.logger.Info("Created checkout session", zap.String("session_id", session.ID))
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *stripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	return parseStripeEvent(payload, signatureHeader, g.webhookSecret)
}

func (g *stripeGateway) upstream(message string, err error) error {
	fields := []zap.Field{zap.Error(err)}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields = append(fields,
			zap.String("stripe_code", string(stripeErr.Code)),
			zap.Int("http_status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID),
		)
	}
	g.logger.Error("Stripe request failed: "+message, fields...)
	return &apperrors.ErrUpstream{Provider: providerName, Message: message, Err: err}
}

// parseStripeEvent verifies the Stripe-Signature header and translates the event
func parseStripeEvent(payload []byte, signatureHeader, secret string) (*Event, error) {
	// an empty secret would accept payloads signed with an empty key
	if secret == "" {
		return nil, ErrWebhookNotConfigured
	}
	raw, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &SignatureError{Err: err}
	}

	event := &Event{ID: raw.ID, Type: EventType(raw.Type)}
	if raw.Data == nil {
		return event, nil
	}

	switch event.Type {
	case EventPaymentIntentSucceeded, EventPaymentIntentPaymentFailed, EventPaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &pi); err != nil {
			return event, fmt.Errorf("failed to decode payment intent for event %s: %w", raw.ID, err)
		}
		data := &PaymentIntentData{
			ID:          pi.ID,
			AmountMinor: pi.Amount,
			Metadata:    pi.Metadata,
		}
		if pi.LastPaymentError != nil {
			data.FailureMessage = pi.LastPaymentError.Msg
		}
		event.PaymentIntent = data

	case EventCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &cs); err != nil {
			return event, fmt.Errorf("failed to decode checkout session for event %s: %w", raw.ID, err)
		}
		event.CheckoutSession = translateSession(&cs)
	}

	return event, nil
}

func translateSession(cs *stripe.CheckoutSession) *CheckoutSessionData {
	data := &CheckoutSessionData{
		ID:               cs.ID,
		PaymentStatus:    string(cs.PaymentStatus),
		AmountTotalMinor: cs.AmountTotal,
		Metadata:         cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		data.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.CustomerDetails != nil {
		data.CustomerEmail = cs.CustomerDetails.Email
		data.CustomerName = cs.CustomerDetails.Name
		data.CustomerPhone = cs.CustomerDetails.Phone
	}
	if cs.ShippingDetails != nil && cs.ShippingDetails.Address != nil {
		addr := cs.ShippingDetails.Address
		data.Shipping = &domain.ShippingAddress{
			Name:       cs.ShippingDetails.Name,
			Street:     joinLines(addr.Line1, addr.Line2),
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
			Phone:      cs.ShippingDetails.Phone,
		}
		if data.Shipping.Phone == "" {
			data.Shipping.Phone = data.CustomerPhone
		}
	}
	return data
}

func joinLines(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		return b
	}
	return a + ", " + b
}
