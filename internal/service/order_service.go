package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const sweepBatchSize = 100

// OrderService places orders and drives them through their lifecycle
type OrderService struct {
	cfg           *config.Config
	repos         *repository.Repositories
	gateway       payment.Gateway
	mailer        mail.Mailer
	composer      mail.Composer
	notifications *NotificationService
	analytics     *AnalyticsService
	effects       *Effects
	logger        *zap.Logger

	sweepMu sync.Mutex
}

// NewOrderService creates a new order service
func NewOrderService(
	cfg *config.Config,
	repos *repository.Repositories,
	gateway payment.Gateway,
	mailer mail.Mailer,
	composer mail.Composer,
	notifications *NotificationService,
	analytics *AnalyticsService,
	effects *Effects,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		cfg:           cfg,
		repos:         repos,
		gateway:       gateway,
		mailer:        mailer,
		composer:      composer,
		notifications: notifications,
		analytics:     analytics,
		effects:       effects,
		logger:        logger,
	}
}

// IdempotencyRequest carries the client's Idempotency-Key and the hash of the request body
type IdempotencyRequest struct {
	Key         string
	RequestHash string
}

// CheckoutResult is an order plus what the client needs to confirm payment
type CheckoutResult struct {
	Order           *domain.Order `json:"order"`
	ClientSecret    string        `json:"clientSecret,omitempty"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
	PublishableKey  string        `json:"publishableKey,omitempty"`
	// Replayed is set when an Idempotency-Key matched an earlier order
	Replayed bool `json:"replayed,omitempty"`
}

// PaymentSetupError reports an order that was placed but whose payment could not be started.
// The order stays pending; the client may retry payment for it.
type PaymentSetupError struct {
	Order *domain.Order
	Err   error
}

func (e *PaymentSetupError) Error() string {
	return fmt.Sprintf("order %s placed but payment setup failed: %v", e.Order.OrderNumber, e.Err)
}

func (e *PaymentSetupError) Unwrap() error {
	return e.Err
}

// CreateFromCart turns the user's cart into a pending order and starts payment for it.
// Stock reservation, order insert and cart clear commit together or not at all.
func (s *OrderService) CreateFromCart(ctx context.Context, userID uuid.UUID, req CreateOrderRequest, idem *IdempotencyRequest) (*CheckoutResult, error) {
	if idem != nil {
		replay, err := s.replay(ctx, userID, idem)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.PriceCart(ctx, user.Cart)
	if err != nil {
		return nil, err
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodStripe
	}
	order := &domain.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		Notes:           req.Notes,
	}
	s.price(order)

	err = s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		if _, err := s.place(ctx, tx, order, true); err != nil {
			return err
		}
		if err := tx.User.UpdateCart(ctx, userID, []domain.CartLine{}); err != nil {
			return err
		}
		if idem != nil {
			return tx.IdempotencyKey.Create(ctx, &domain.IdempotencyKey{
				Key:         idem.Key,
				UserID:      userID,
				OrderID:     order.ID,
				RequestHash: idem.RequestHash,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("final_amount", order.FinalAmount.String()),
	)
	s.effects.Run(s.placedEffects(order)...)

	result, err := s.StartPayment(ctx, user, order)
	if err != nil {
		return nil, &PaymentSetupError{Order: order, Err: err}
	}
	return result, nil
}

func (s *OrderService) replay(ctx context.Context, userID uuid.UUID, idem *IdempotencyRequest) (*CheckoutResult, error) {
	existing, err := s.repos.IdempotencyKey.GetByKey(ctx, userID, idem.Key)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.RequestHash != idem.RequestHash {
		return nil, &errors.ErrConflict{Message: "idempotency key conflict: same key used with different payload"}
	}
	order, err := s.repos.Order.GetByID(ctx, existing.OrderID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Idempotent order replay", zap.String("order_id", order.ID.String()), zap.String("key", idem.Key))

	// nothing left to pay: no client secret to hand back
	if order.Status != domain.OrderStatusPending || order.PaymentStatus == domain.PaymentStatusCompleted {
		return &CheckoutResult{Order: order, PaymentIntentID: derefString(order.StripePaymentIntentID), Replayed: true}, nil
	}

	// the intent idempotency key is per order, so this returns the intent the first call created
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.StartPayment(ctx, user, order)
	if err != nil {
		return nil, &PaymentSetupError{Order: order, Err: err}
	}
	result.Replayed = true
	return result, nil
}

// PriceCart snapshots product names, images and prices for every cart line.
// Inactive products and short stock are rejected before anything is written.
func (s *OrderService) PriceCart(ctx context.Context, cart []domain.CartLine) ([]domain.OrderItem, error) {
	if len(cart) == 0 {
		return nil, &errors.ErrValidation{Message: "cart is empty"}
	}

	ids := make([]uuid.UUID, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repos.Product.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(cart))
	for _, line := range cart {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, &errors.ErrValidation{
				Message: "a product in your cart is no longer available",
				Fields:  map[string]string{line.ProductID.String(): "unavailable"},
			}
		}
		if line.Quantity < 1 {
			return nil, &errors.ErrValidation{Message: "invalid cart quantity", Fields: map[string]string{line.ProductID.String(): "quantity"}}
		}
		if product.Quantity < line.Quantity {
			return nil, &errors.ErrInsufficientStock{
				ProductID:   product.ID.String(),
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.Quantity,
			}
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.PrimaryImage(),
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
	}
	return items, nil
}

func (s *OrderService) price(order *domain.Order) {
	shipping := domain.ShippingCostFor(order.Subtotal(), s.cfg.Checkout.FlatShippingRate, s.cfg.Checkout.FreeShippingThreshold)
	order.Recalculate(shipping)
}

// place reserves stock for every line, then inserts the order and its audit event.
// With strict unset a shortfall is recorded on the order instead of aborting;
// the webhook uses that mode because the buyer has already paid.
func (s *OrderService) place(ctx context.Context, tx *repository.Repositories, order *domain.Order, strict bool) ([]string, error) {
	var shortfalls []string
	for _, item := range order.Items {
		err := tx.Product.ReserveStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}
		var insufficient *errors.ErrInsufficientStock
		if strict || !(stderrors.As(err, &insufficient) || isNotFound(err)) {
			return nil, err
		}
		shortfalls = append(shortfalls, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	if len(shortfalls) > 0 {
		order.Notes = appendNote(order.Notes, fmt.Sprintf("Stock shortfall at placement: %v", shortfalls))
	}

	if err := tx.Order.Create(ctx, order); err != nil {
		return nil, err
	}
	err := tx.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: domain.OrderEventCreated,
		EventData: map[string]interface{}{
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"item_count":   order.ItemCount(),
			"final_amount": order.FinalAmount.String(),
		},
	})
	return shortfalls, err
}

// StartPayment creates (or, for the same order, re-fetches) the processor intent for order
func (s *OrderService) StartPayment(ctx context.Context, user *domain.User, order *domain.Order) (*CheckoutResult, error) {
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.PaymentIntentRequest{
		AmountMinor: domain.ToMinorUnits(order.FinalAmount),
		CustomerID:  customerID,
		Metadata: map[string]string{
			"orderId":      order.ID.String(),
			"orderNumber":  order.OrderNumber,
			"userId":       user.ID.String(),
			"checkoutType": checkoutTypeExistingOrder,
		},
		IdempotencyKey: "order-" + order.ID.String(),
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, err
	}

	if order.StripePaymentIntentID == nil || *order.StripePaymentIntentID != intent.ID {
		order.StripePaymentIntentID = &intent.ID
		if err := s.repos.Order.Update(ctx, order); err != nil {
			return nil, err
		}
		if err := s.repos.OrderEvent.Create(ctx, &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: domain.OrderEventPaymentIntentCreated,
			EventData: map[string]interface{}{"payment_intent_id": intent.ID, "amount_minor": intent.AmountMinor},
		}); err != nil {
			s.logger.Warn("Failed to record payment intent event", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	return &CheckoutResult{
		Order:           order,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PublishableKey:  s.gateway.PublishableKey(),
	}, nil
}

// ensureCustomer creates the processor customer on first use
func (s *OrderService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, payment.CustomerRequest{
		Email:  user.Email,
		Name:   user.Name,
		UserID: user.ID.String(),
	})
	if err != nil {
		return "", err
	}
	if err := s.repos.User.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	user.StripeCustomerID = &customerID
	return customerID, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	return s.repos.Order.ListByUserID(ctx, userID, limit, offset)
}

// GetMine returns the order when userID placed it or asAdmin is set
func (s *OrderService) GetMine(ctx context.Context, userID, orderID uuid.UUID, asAdmin bool) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !asAdmin && !order.OwnedBy(userID) {
		return nil, &errors.ErrForbidden{Message: "not authorized to access this order"}
	}
	return order, nil
}

// Cancel is the customer-initiated cancellation. It restores reserved stock.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID, reason string) (*domain.Order, error) {
	var order *domain.Order
	err := s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		var err error
		order, err = tx.Order.LockByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.OwnedBy(userID) {
			return &errors.ErrForbidden{Message: "not authorized to cancel this order"}
		}
		if !order.Status.CustomerCancellable() {
			return &errors.ErrInvalidStateTransition{From: order.Status, To: domain.OrderStatusCancelled}
		}
		if reason == "" {
			reason = "Cancelled by customer"
		}
		return s.cancel(ctx, tx, order, reason, "customer")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order cancelled by customer", zap.String("order_id", orderID.String()), zap.String("user_id", userID.String()))
	s.effects.Run(s.statusEffects(order)...)
	return order, nil
}

// cancel moves order to cancelled and puts its items back on the shelf
func (s *OrderService) cancel(ctx context.Context, tx *repository.Repositories, order *domain.Order, reason, actor string) error {
	from := order.Status
	if !from.CanTransitionTo(domain.OrderStatusCancelled) {
		return &errors.ErrInvalidStateTransition{From: from, To: domain.OrderStatusCancelled}
	}

	now := time.Now()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancelReason = &reason
	if err := tx.Order.Update(ctx, order); err != nil {
		return err
	}

	for _, item := range order.Items {
		if err := tx.Product.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			if isNotFound(err) {
				s.logger.Warn("Product gone, stock not restored",
					zap.String("order_id", order.ID.String()), zap.String("product_id", item.ProductID.String()))
				continue
			}
			return err
		}
	}

	return tx.OrderEvent.Create(ctx, &domain.OrderEvent{
		OrderID:   order.ID,
		EventType: domain.OrderEventCancelled,
		EventData: map[string]interface{}{"from": from, "reason": reason, "actor": actor},
	})
}

func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	return s.repos.Order.List(ctx, filter)
}

// UpdateStatus is the admin transition. Re-applying the current status only updates the tracking number.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, req UpdateOrderStatusRequest) (*domain.Order, error) {
	var order *domain.Order
	changed := false
	err := s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		var err error
		order, err = tx.Order.LockByID(ctx, orderID)
		if err != nil {
			return err
		}

		from := order.Status
		if from == req.Status {
			if req.TrackingNumber != nil && derefString(order.TrackingNumber) != *req.TrackingNumber {
				order.TrackingNumber = req.TrackingNumber
				return tx.Order.Update(ctx, order)
			}
			return nil
		}
		if !from.CanTransitionTo(req.Status) {
			return &errors.ErrInvalidStateTransition{From: from, To: req.Status}
		}
		changed = true

		if req.Status == domain.OrderStatusCancelled {
			reason := req.Note
			if reason == "" {
				reason = "Cancelled by store"
			}
			return s.cancel(ctx, tx, order, reason, "admin:"+actorID.String())
		}

		now := time.Now()
		order.Status = req.Status
		switch req.Status {
		case domain.OrderStatusShipped:
			order.ShippedAt = &now
			if req.TrackingNumber != nil {
				order.TrackingNumber = req.TrackingNumber
			}
		case domain.OrderStatusDelivered:
			order.DeliveredAt = &now
		}
		if req.Note != "" {
			order.Notes = appendNote(order.Notes, req.Note)
		}
		if err := tx.Order.Update(ctx, order); err != nil {
			return err
		}

		data := map[string]interface{}{"from": from, "to": req.Status, "actor": actorID.String()}
		if req.TrackingNumber != nil {
			data["tracking_number"] = *req.TrackingNumber
		}
		if req.Note != "" {
			data["note"] = req.Note
		}
		return tx.OrderEvent.Create(ctx, &domain.OrderEvent{OrderID: order.ID, EventType: domain.OrderEventStatusChange, EventData: data})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("Order status updated",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(order.Status)),
			zap.String("actor_id", actorID.String()),
		)
		s.effects.Run(s.statusEffects(order)...)
	}
	return order, nil
}

// UpdatePaymentStatus is the admin override; refunded is only reachable from completed
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actorID, orderID uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
		var err error
		order, err = tx.Order.LockByID(ctx, orderID)
		if err != nil {
			return err
		}

		from := order.PaymentStatus
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			return &errors.ErrValidation{
				Message: fmt.Sprintf("cannot change payment status from %s to %s", from, status),
				Fields:  map[string]string{"paymentStatus": "transition"},
			}
		}

		order.PaymentStatus = status
		if status == domain.PaymentStatusCompleted && order.PaidAt == nil {
			now := time.Now()
			order.PaidAt = &now
		}
		if err := tx.Order.Update(ctx, order); err != nil {
			return err
		}
		return tx.OrderEvent.Create(ctx, &domain.OrderEvent{
			OrderID:   order.ID,
			EventType: domain.OrderEventPaymentStatusChange,
			EventData: map[string]interface{}{"from": from, "to": status, "actor": actorID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Events returns the audit trail of an order
func (s *OrderService) Events(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderEvent, error) {
	if _, err := s.repos.Order.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repos.OrderEvent.GetByOrderID(ctx, orderID)
}

// SweepStalePending cancels unpaid orders older than the pending TTL and releases their stock
func (s *OrderService) SweepStalePending(ctx context.Context) (int, error) {
	ttl := s.cfg.Checkout.PendingOrderTTL
	if ttl <= 0 {
		return 0, nil
	}

	stale, err := s.repos.Order.ListStalePending(ctx, time.Now().Add(-ttl), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, candidate := range stale {
		var order *domain.Order
		err := s.repos.Tx.WithinTx(ctx, func(tx *repository.Repositories) error {
			var err error
			order, err = tx.Order.LockByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// paid between listing and locking
			if order.Status != domain.OrderStatusPending || order.PaymentStatus == domain.PaymentStatusCompleted {
				order = nil
				return nil
			}
			return s.cancel(ctx, tx, order, "Payment not received in time", "sweeper")
		})
		if err != nil {
			s.logger.Warn("Failed to sweep pending order", zap.String("order_id", candidate.ID.String()), zap.Error(err))
			continue
		}
		if order != nil {
			cancelled++
			s.effects.Run(s.statusEffects(order)...)
		}
	}

	if cancelled > 0 {
		s.logger.Info("Swept stale pending orders", zap.Int("cancelled", cancelled), zap.Duration("ttl", ttl))
	}
	return cancelled, nil
}

// RunPendingSweepLoop sweeps once, then every SweepInterval. Call from a goroutine.
func (s *OrderService) RunPendingSweepLoop(ctx context.Context) {
	interval := s.cfg.Checkout.SweepInterval
	if interval <= 0 || s.cfg.Checkout.PendingOrderTTL <= 0 {
		s.logger.Debug("Pending order sweep disabled")
		return
	}

	sweep := func() {
		s.sweepMu.Lock()
		defer s.sweepMu.Unlock()
		if _, err := s.SweepStalePending(ctx); err != nil {
			s.logger.Error("Pending order sweep failed", zap.Error(err))
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func (s *OrderService) placedEffects(order *domain.Order) []Effect {
	orderID := order.ID
	userID := order.UserID
	number := order.OrderNumber
	return []Effect{
		{
			Name: "notify:order_placed",
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Notify(ctx, userID, domain.NotificationTypeOrder,
					"Order placed", fmt.Sprintf("Your order %s has been placed and is awaiting payment.", number), &orderID)
				return err
			},
		},
		{
			Name: "notify:admins_new_order",
			Run: func(ctx context.Context) error {
				return s.notifications.NotifyAdmins(ctx, domain.NotificationTypeOrder,
					"New order", fmt.Sprintf("Order %s was placed.", number), &orderID)
			},
		},
	}
}

// paidEffects runs once an order's payment is confirmed
func (s *OrderService) paidEffects(order *domain.Order) []Effect {
	snapshot := *order
	orderID := order.ID
	userID := order.UserID
	return []Effect{
		{
			Name: "mail:order_confirmation",
			Run: func(ctx context.Context) error {
				user, err := s.repos.User.GetByID(ctx, userID)
				if err != nil {
					return err
				}
				msg, err := s.composer.OrderConfirmation(user, &snapshot)
				if err != nil {
					return err
				}
				return s.mailer.Send(ctx, msg)
			},
		},
		{
			Name: "notify:payment_received",
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Notify(ctx, userID, domain.NotificationTypePayment,
					"Payment received", fmt.Sprintf("Payment for order %s was received. We're getting it ready.", snapshot.OrderNumber), &orderID)
				return err
			},
		},
		s.analytics.TrackEffect(domain.AnalyticsPurchase, &userID, nil, map[string]interface{}{
			"orderId": orderID.String(),
			"amount":  snapshot.FinalAmount.String(),
			"items":   snapshot.ItemCount(),
		}),
	}
}

func (s *OrderService) statusEffects(order *domain.Order) []Effect {
	snapshot := *order
	orderID := order.ID
	userID := order.UserID
	return []Effect{
		{
			Name: "mail:order_status",
			Run: func(ctx context.Context) error {
				user, err := s.repos.User.GetByID(ctx, userID)
				if err != nil {
					return err
				}
				msg, err := s.composer.OrderStatus(user, &snapshot)
				if err != nil {
					return err
				}
				return s.mailer.Send(ctx, msg)
			},
		},
		{
			Name: "notify:order_status",
			Run: func(ctx context.Context) error {
				_, err := s.notifications.Notify(ctx, userID, domain.NotificationTypeOrder,
					"Order "+string(snapshot.Status), fmt.Sprintf("Order %s is now %s.", snapshot.OrderNumber, snapshot.Status), &orderID)
				return err
			},
		},
	}
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
