package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Metadata tag telling the webhook whether an intent pays an existing order or a bare cart
const (
	checkoutTypeExistingOrder = "existing_order"
	checkoutTypeCart          = "cart"
	checkoutTypeSession       = "checkout_session"
)

var defaultShippingCountries = []string{"US", "CA", "GB", "AU", "DE", "FR", "JO"}

// PaymentService starts payments and reconciles orders with processor webhooks
type PaymentService struct {
	cfg     *config.Config
	repos   *repository.Repositories
	gateway payment.Gateway
	orders  *OrderService
	effects *Effects
	logger  *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	cfg *config.Config,
	repos *repository.Repositories,
	gateway payment.Gateway,
	orders *OrderService,
	effects *Effects,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		cfg:     cfg,
		repos:   repos,
		gateway: gateway,
		orders:  orders,
		effects: effects,
		logger:  logger,
	}
}

// metadataItem is one cart line serialized into processor metadata
type metadataItem struct {
	ProductID uuid.UUID       `json:"id"`
	Quantity  int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

// CheckoutSessionResult is the hosted checkout redirect
type CheckoutSessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// WebhookResult is the acknowledgement body returned to the processor
type WebhookResult struct {
	Received  bool       `json:"received"`
	Duplicate bool       `json:"duplicate,omitempty"`
	Ignored   bool       `json:"ignored,omitempty"`
	OrderID   *uuid.UUID `json:"orderId,omitempty"`
}

// CreatePaymentIntent pays an existing pending order when req.OrderID is set.
// Otherwise it prices the cart and defers order creation to the webhook.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req CreatePaymentIntentRequest) (*CheckoutResult, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.OrderID != nil {
		order, err := s.orders.GetMine(ctx, userID, *req.OrderID, false)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			return nil, &errors.ErrConflict{Message: "order is already paid"}
		}
		if order.Status != domain.OrderStatusPending {
			return nil, &errors.ErrValidation{Message: fmt.Sprintf("order is %s and cannot be paid", order.Status)}
		}
		return s.orders.StartPayment(ctx, user, order)
	}

	items, err := s.orders.PriceCart(ctx, user.Cart)
	if err != nil {
		return nil, err
	}
	draft := &domain.Order{Items: items}
	s.orders.price(draft)

	encoded, err := encodeMetadataItems(items)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		"userId":       userID.String(),
		"checkoutType": checkoutTypeCart,
		"items":        encoded,
	}
	if err := checkMetadata(metadata); err != nil {
		return nil, err
	}

	customerID, err := s.orders.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.PaymentIntentRequest{
		AmountMinor: domain.ToMinorUnits(draft.FinalAmount),
		CustomerID:  customerID,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cart payment intent created",
		zap.String("user_id", userID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount_minor", intent.AmountMinor),
	)
	return &CheckoutResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PublishableKey:  s.gateway.PublishableKey(),
	}, nil
}

// CreateCheckoutSession opens a hosted checkout for the cart. The order is created by the webhook.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req CreateCheckoutSessionRequest) (*CheckoutSessionResult, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.PriceCart(ctx, user.Cart)
	if err != nil {
		return nil, err
	}
	draft := &domain.Order{Items: items}
	s.orders.price(draft)

	encoded, err := encodeMetadataItems(items)
	if err != nil {
		return nil, err
	}
	metadata := map[string]string{
		"userId":       userID.String(),
		"checkoutType": checkoutTypeSession,
		"items":        encoded,
	}

	var countries []string
	if req.ShippingAddress != nil {
		address, err := json.Marshal(req.ShippingAddress.toDomain())
		if err != nil {
			return nil, err
		}
		metadata["shippingAddress"] = string(address)
	} else {
		countries = defaultShippingCountries
	}
	if err := checkMetadata(metadata); err != nil {
		return nil, err
	}

	lineItems := make([]payment.LineItem, 0, len(items)+1)
	for _, item := range items {
		lineItems = append(lineItems, payment.LineItem{
			Name:            item.Name,
			Image:           item.Image,
			UnitAmountMinor: domain.ToMinorUnits(item.Price),
			Quantity:        int64(item.Quantity),
		})
	}
	if draft.ShippingCost.IsPositive() {
		lineItems = append(lineItems, payment.LineItem{
			Name:            "Shipping",
			UnitAmountMinor: domain.ToMinorUnits(draft.ShippingCost),
			Quantity:        1,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutSessionRequest{
		LineItems:         lineItems,
		CustomerEmail:     user.Email,
		SuccessURL:        s.cfg.ClientURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.cfg.ClientURL + "/cart",
		Metadata:          metadata,
		ShippingCountries: countries,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Checkout session created", zap.String("user_id", userID.String()), zap.String("session_id", session.ID))
	return &CheckoutSessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// Config returns what the client needs to initialise the card form
func (s *PaymentService) Config() map[string]string {
	return map[string]string{
		"publishableKey": s.gateway.PublishableKey(),
		"currency":       s.gateway.Currency(),
	}
}

// HandleWebhook verifies and applies one processor event. The event id is recorded in the
// same transaction as the order mutation, so a redelivered event is acknowledged but not re-applied.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		var sigErr *payment.SignatureError
		if stderrors.As(err, &sigErr) || event == nil {
			s.logger.Warn("Webhook rejected", zap.Error(err))
			return nil, err
		}
		s.logger.Error("Webhook event could not be decoded", zap.String("event_id", event.ID), zap.String("type", string(event.Type)), zap.Error(err))
		return &WebhookResult{Received: true, Ignored: true}, nil
	}

	switch event.Type {
	case payment.EventPaymentIntentSucceeded, payment.EventPaymentIntentPaymentFailed,
		payment.EventPaymentIntentCanceled, payment.EventCheckoutSessionCompleted:
	default:
		s.logger.Info("Unhandled webhook event type", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		return &WebhookResult{Received: true, Ignored: true}, nil
	}

	result := &WebhookResult{Received: true}
	var effects []Effect
	err = s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		inserted, err := tx.WebhookEvent.Record(ctx, event.ID, string(event.Type))
		if err != nil {
			return err
		}
		if !inserted {
			result.Duplicate = true
			return nil
		}

		var order *domain.Order
		switch event.Type {
		case payment.EventPaymentIntentSucceeded:
			order, effects, err = s.onIntentSucceeded(ctx, tx, event.PaymentIntent)
		case payment.EventPaymentIntentPaymentFailed, payment.EventPaymentIntentCanceled:
			order, effects, err = s.onIntentFailed(ctx, tx, event.PaymentIntent)
		case payment.EventCheckoutSessionCompleted:
			order, effects, err = s.onSessionCompleted(ctx, tx, event.CheckoutSession)
		}
		if err != nil {
			return err
		}
		if order == nil {
			result.Ignored = true
		} else {
			result.OrderID = &order.ID
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Webhook processing failed", zap.String("event_id", event.ID), zap.String("type", string(event.Type)), zap.Error(err))
		return nil, err
	}

	switch {
	case result.Duplicate:
		s.logger.Info("Duplicate webhook event acknowledged", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	case result.Ignored:
		s.logger.Warn("Webhook event matched no order", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	default:
		s.logger.Info("Webhook event applied",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("order_id", result.OrderID.String()),
		)
	}
	s.effects.Run(effects...)
	return result, nil
}

func (s *PaymentService) onIntentSucceeded(ctx context.Context, tx *repository.Repositories, pi *payment.PaymentIntentData) (*domain.Order, []Effect, error) {
	if pi == nil {
		return nil, nil, nil
	}
	if pi.Metadata["checkoutType"] == checkoutTypeCart {
		return s.createPaidCartOrder(ctx, tx, pi)
	}

	order, err := s.lockIntentOrder(ctx, tx, pi)
	if err != nil || order == nil {
		return nil, nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		return order, nil, nil
	}
	mismatch := s.checkPaidAmount(order, pi.AmountMinor, pi.ID)

	now := time.Now()
	fromStatus, fromPayment := order.Status, order.PaymentStatus
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.TransactionID = &pi.ID
	order.PaidAt = &now
	if order.StripePaymentIntentID == nil {
		order.StripePaymentIntentID = &pi.ID
	}

	var effects []Effect
	switch {
	case order.Status == domain.OrderStatusPending:
		order.Status = domain.OrderStatusConfirmed
		effects = s.orders.paidEffects(order)
	case order.Status == domain.OrderStatusCancelled:
		// stock was already released; a person has to refund or reinstate
		order.Notes = appendNote(order.Notes, "Payment received after cancellation; refund required")
		s.logger.Error("Payment succeeded for cancelled order", zap.String("order_id", order.ID.String()), zap.String("payment_intent_id", pi.ID))
		orderID := order.ID
		number := order.OrderNumber
		effects = []Effect{{
			Name: "notify:admins_paid_cancelled",
			Run: func(ctx context.Context) error {
				return s.orders.notifications.NotifyAdmins(ctx, domain.NotificationTypePayment,
					"Refund required", fmt.Sprintf("Order %s was paid after it had been cancelled.", number), &orderID)
			},
		}}
	}

	if err := tx.Order.Update(ctx, order); err != nil {
		return nil, nil, err
	}
	err = tx.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: domain.OrderEventPaymentStatusChange,
		EventData: map[string]interface{}{
			"from":              fromPayment,
			"to":                order.PaymentStatus,
			"status_from":       fromStatus,
			"status_to":         order.Status,
			"payment_intent_id": pi.ID,
			"source":            "webhook",
		},
	})
	return order, append(effects, mismatch...), err
}

// checkPaidAmount notes a charged amount that differs from the order total and alerts the admins.
// The order still counts as paid; fulfilment waits on a person reviewing the note.
func (s *PaymentService) checkPaidAmount(order *domain.Order, paidMinor int64, reference string) []Effect {
	expected := domain.ToMinorUnits(order.FinalAmount)
	if paidMinor == 0 || paidMinor == expected {
		return nil
	}

	paid := domain.FromMinorUnits(paidMinor).StringFixed(2)
	total := order.FinalAmount.StringFixed(2)
	order.Notes = appendNote(order.Notes, fmt.Sprintf("Amount mismatch: charged %s, order total %s (%s)", paid, total, reference))
	s.logger.Error("Payment amount differs from order total",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", reference),
		zap.Int64("paid_minor", paidMinor),
		zap.Int64("expected_minor", expected),
	)

	return []Effect{{
		Name: "notify:admins_amount_mismatch",
		Run: func(ctx context.Context) error {
			orderID := order.ID
			return s.orders.notifications.NotifyAdmins(ctx, domain.NotificationTypePayment, "Payment amount mismatch",
				fmt.Sprintf("Order %s was charged %s but totals %s.", order.OrderNumber, paid, total), &orderID)
		},
	}}
}

// onIntentFailed marks the payment failed and cancels any order that can still be cancelled, releasing its stock
func (s *PaymentService) onIntentFailed(ctx context.Context, tx *repository.Repositories, pi *payment.PaymentIntentData) (*domain.Order, []Effect, error) {
	if pi == nil {
		return nil, nil, nil
	}
	order, err := s.lockIntentOrder(ctx, tx, pi)
	if err != nil || order == nil {
		return nil, nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted || order.PaymentStatus == domain.PaymentStatusRefunded {
		s.logger.Warn("Ignoring payment failure for settled order",
			zap.String("order_id", order.ID.String()), zap.String("payment_status", string(order.PaymentStatus)))
		return order, nil, nil
	}

	fromPayment := order.PaymentStatus
	order.PaymentStatus = domain.PaymentStatusFailed
	if err := tx.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: domain.OrderEventPaymentStatusChange,
		EventData: map[string]interface{}{
			"from":              fromPayment,
			"to":                domain.PaymentStatusFailed,
			"payment_intent_id": pi.ID,
			"failure":           pi.FailureMessage,
			"source":            "webhook",
		},
	}); err != nil {
		return nil, nil, err
	}

	if order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		reason := "Payment failed"
		if pi.FailureMessage != "" {
			reason += ": " + pi.FailureMessage
		}
		if err := s.orders.cancel(ctx, tx, order, reason, "webhook"); err != nil {
			return nil, nil, err
		}
		return order, s.orders.statusEffects(order), nil
	}

	if err := tx.Order.Update(ctx, order); err != nil {
		return nil, nil, err
	}
	return order, nil, nil
}

// lockIntentOrder finds the order by stored intent id, falling back to the orderId metadata tag
func (s *PaymentService) lockIntentOrder(ctx context.Context, tx *repository.Repositories, pi *payment.PaymentIntentData) (*domain.Order, error) {
	var orderID uuid.UUID
	found, err := tx.Order.GetByPaymentIntentID(ctx, pi.ID)
	switch {
	case err == nil:
		orderID = found.ID
	case isNotFound(err):
		id, parseErr := uuid.Parse(pi.Metadata["orderId"])
		if parseErr != nil {
			return nil, nil
		}
		orderID = id
	default:
		return nil, err
	}

	order, err := tx.Order.LockByID(ctx, orderID)
	if isNotFound(err) {
		return nil, nil
	}
	return order, err
}

// createPaidCartOrder builds the order for an intent that paid a bare cart.
// The intent carries no address, so shipping is the N/A sentinel.
func (s *PaymentService) createPaidCartOrder(ctx context.Context, tx *repository.Repositories, pi *payment.PaymentIntentData) (*domain.Order, []Effect, error) {
	if existing, err := tx.Order.GetByPaymentIntentID(ctx, pi.ID); err == nil {
		return existing, nil, nil
	} else if !isNotFound(err) {
		return nil, nil, err
	}

	now := time.Now()
	order, err := s.orderFromMetadata(ctx, tx, pi.Metadata)
	if err != nil || order == nil {
		return nil, nil, err
	}
	order.ShippingAddress = domain.NAShippingAddress()
	order.StripePaymentIntentID = &pi.ID
	order.TransactionID = &pi.ID
	order.PaidAt = &now
	mismatch := s.checkPaidAmount(order, pi.AmountMinor, pi.ID)

	if _, err := s.orders.place(ctx, tx, order, false); err != nil {
		return nil, nil, err
	}
	effects := append(s.clearCartEffects(order.UserID), s.orders.paidEffects(order)...)
	return order, append(effects, mismatch...), nil
}

// onSessionCompleted creates the order for a paid hosted checkout. The unique session id
// keeps a second delivery under a different event id from creating another order.
func (s *PaymentService) onSessionCompleted(ctx context.Context, tx *repository.Repositories, cs *payment.CheckoutSessionData) (*domain.Order, []Effect, error) {
	if cs == nil {
		return nil, nil, nil
	}
	if !cs.Paid() {
		s.logger.Info("Checkout session completed without payment", zap.String("session_id", cs.ID), zap.String("payment_status", cs.PaymentStatus))
		return nil, nil, nil
	}
	if existing, err := tx.Order.GetBySessionID(ctx, cs.ID); err == nil {
		return existing, nil, nil
	} else if !isNotFound(err) {
		return nil, nil, err
	}

	now := time.Now()
	order, err := s.orderFromMetadata(ctx, tx, cs.Metadata)
	if err != nil || order == nil {
		return nil, nil, err
	}
	order.ShippingAddress = sessionShipping(cs)
	order.StripeSessionID = &cs.ID
	order.TransactionID = &cs.ID
	if cs.PaymentIntentID != "" {
		order.StripePaymentIntentID = &cs.PaymentIntentID
		order.TransactionID = &cs.PaymentIntentID
	}
	order.PaidAt = &now

	mismatch := s.checkPaidAmount(order, cs.AmountTotalMinor, cs.ID)

	if _, err := s.orders.place(ctx, tx, order, false); err != nil {
		return nil, nil, err
	}
	effects := append(s.clearCartEffects(order.UserID), s.orders.paidEffects(order)...)
	return order, append(effects, mismatch...), nil
}

// orderFromMetadata rebuilds a paid, confirmed order from the userId and items tags.
// Unit prices are the ones the buyer was charged.
func (s *PaymentService) orderFromMetadata(ctx context.Context, tx *repository.Repositories, metadata map[string]string) (*domain.Order, error) {
	userID, err := uuid.Parse(metadata["userId"])
	if err != nil {
		s.logger.Error("Webhook metadata has no valid userId", zap.String("user_id", metadata["userId"]))
		return nil, nil
	}
	if _, err := tx.User.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			s.logger.Error("Webhook references unknown user", zap.String("user_id", userID.String()))
			return nil, nil
		}
		return nil, err
	}

	var lines []metadataItem
	if err := json.Unmarshal([]byte(metadata["items"]), &lines); err != nil || len(lines) == 0 {
		s.logger.Error("Webhook metadata has no valid items", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := tx.Product.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := domain.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity, Price: line.Price, Name: line.ProductID.String()}
		if product, ok := products[line.ProductID]; ok {
			item.Name = product.Name
			item.Image = product.PrimaryImage()
		}
		items = append(items, item)
	}

	order := &domain.Order{
		UserID:        userID,
		Items:         items,
		PaymentMethod: domain.PaymentMethodStripe,
		PaymentStatus: domain.PaymentStatusCompleted,
		Status:        domain.OrderStatusConfirmed,
	}
	s.orders.price(order)
	return order, nil
}

func (s *PaymentService) clearCartEffects(userID uuid.UUID) []Effect {
	return []Effect{{
		Name: "cart:clear_after_checkout",
		Run: func(ctx context.Context) error {
			return s.repos.User.UpdateCart(ctx, userID, []domain.CartLine{})
		},
	}}
}

// sessionShipping prefers the address the processor collected, then the metadata copy, then N/A
func sessionShipping(cs *payment.CheckoutSessionData) domain.ShippingAddress {
	var address domain.ShippingAddress
	switch {
	case cs.Shipping != nil:
		address = *cs.Shipping
	case cs.Metadata["shippingAddress"] != "":
		if err := json.Unmarshal([]byte(cs.Metadata["shippingAddress"]), &address); err != nil {
			address = domain.NAShippingAddress()
		}
	default:
		address = domain.NAShippingAddress()
	}

	if address.Name == "" || address.Name == domain.NotAvailable {
		if cs.CustomerName != "" {
			address.Name = cs.CustomerName
		}
	}
	if address.Phone == "" || address.Phone == domain.NotAvailable {
		if cs.CustomerPhone != "" {
			address.Phone = cs.CustomerPhone
		}
	}
	fillNA(&address)
	return address
}

func fillNA(a *domain.ShippingAddress) {
	for _, field := range []*string{&a.Name, &a.Street, &a.City, &a.State, &a.PostalCode, &a.Country, &a.Phone} {
		if *field == "" {
			*field = domain.NotAvailable
		}
	}
}

func encodeMetadataItems(items []domain.OrderItem) (string, error) {
	lines := make([]metadataItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, metadataItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	encoded, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// checkMetadata enforces the processor's per-value size limit
func checkMetadata(metadata map[string]string) error {
	for key, value := range metadata {
		if len(value) > payment.MaxMetadataValueLength {
			return &errors.ErrValidation{
				Message: "cart is too large to check out in one payment; remove some items and try again",
				Fields:  map[string]string{key: fmt.Sprintf("exceeds %d characters", payment.MaxMetadataValueLength)},
			}
		}
	}
	return nil
}
