// Package payment adapts the card processor to a provider-neutral gateway.
package payment

import (
	"context"
	"errors"

	"github.com/jafarshop/storefront/internal/domain"
)

// MaxMetadataValueLength is the processor's per-value metadata limit
const MaxMetadataValueLength = 500

// EventType names the processor events the webhook understands
type EventType string

const (
	EventPaymentIntentSucceeded     EventType = "payment_intent.succeeded"
	EventPaymentIntentPaymentFailed EventType = "payment_intent.payment_failed"
	EventPaymentIntentCanceled      EventType = "payment_intent.canceled"
	EventCheckoutSessionCompleted   EventType = "checkout.session.completed"
)

// Gateway is the subset of the card processor the storefront uses
type Gateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// ParseWebhook verifies the signature header and decodes the event.
	// Signature failures are returned as *SignatureError.
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
	PublishableKey() string
	Currency() string
}

// CustomerRequest creates a processor customer for a storefront user
type CustomerRequest struct {
	Email  string
	Name   string
	UserID string
}

// PaymentIntentRequest creates an intent for AmountMinor in the gateway currency
type PaymentIntentRequest struct {
	AmountMinor    int64
	CustomerID     string
	Metadata       map[string]string
	IdempotencyKey string
}

// PaymentIntent is what the client needs to confirm a card payment
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Status       string
}

// LineItem is one hosted-checkout line priced inline
type LineItem struct {
	Name            string
	Image           string
	UnitAmountMinor int64
	Quantity        int64
}

// CheckoutSessionRequest creates a hosted checkout session
type CheckoutSessionRequest struct {
	LineItems         []LineItem
	CustomerEmail     string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	ShippingCountries []string
}

// CheckoutSession is the redirect target for hosted checkout
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified webhook event
type Event struct {
	ID              string
	Type            EventType
	PaymentIntent   *PaymentIntentData
	CheckoutSession *CheckoutSessionData
}

// PaymentIntentData is the payment_intent.* payload
type PaymentIntentData struct {
	ID             string
	AmountMinor    int64
	Metadata       map[string]string
	FailureMessage string
}

// CheckoutSessionData is the checkout.session.* payload
type CheckoutSessionData struct {
	ID               string
	PaymentIntentID  string
	PaymentStatus    string
	AmountTotalMinor int64
	Metadata         map[string]string
	CustomerEmail    string
	CustomerName     string
	CustomerPhone    string
	// Shipping is nil when the session collected no address
	Shipping *domain.ShippingAddress
}

// Paid reports whether the session captured funds
func (s *CheckoutSessionData) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// ErrWebhookNotConfigured is returned by ParseWebhook when no signing secret is set
var ErrWebhookNotConfigured = errors.New("webhook not configured")

// SignatureError is returned when a webhook payload fails verification
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}
