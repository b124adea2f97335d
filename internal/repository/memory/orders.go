package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

type orderRepository struct {
	s *Store
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt

	generated := order.OrderNumber == ""
	for {
		if generated {
			order.OrderNumber = domain.NewOrderNumber(order.CreatedAt)
		}
		if r.findLocked(func(o *domain.Order) bool { return o.OrderNumber == order.OrderNumber }) == nil {
			break
		}
		if !generated {
			return &errors.ErrConflict{Message: "order number already in use: " + order.OrderNumber}
		}
	}
	if order.StripeSessionID != nil {
		sid := *order.StripeSessionID
		if r.findLocked(func(o *domain.Order) bool { return o.StripeSessionID != nil && *o.StripeSessionID == sid }) != nil {
			return &errors.ErrConflict{Message: "order already exists (orders_stripe_session_id_key)"}
		}
	}
	if order.StripePaymentIntentID != nil {
		pi := *order.StripePaymentIntentID
		if r.findLocked(func(o *domain.Order) bool { return o.StripePaymentIntentID != nil && *o.StripePaymentIntentID == pi }) != nil {
			return &errors.ErrConflict{Message: "order already exists (orders_stripe_payment_intent_id_key)"}
		}
	}
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	r.s.data.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.data.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return cloneOrder(o), nil
}

// LockByID relies on the transactor's serialisation for exclusivity
func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.find(orderNumber, func(o *domain.Order) bool { return o.OrderNumber == orderNumber })
}

func (r *orderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return r.find(intentID, func(o *domain.Order) bool {
		return o.StripePaymentIntentID != nil && *o.StripePaymentIntentID == intentID
	})
}

func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.find(sessionID, func(o *domain.Order) bool {
		return o.StripeSessionID != nil && *o.StripeSessionID == sessionID
	})
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.data.orders[order.ID]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: order.ID.String()}
	}
	if order.StripePaymentIntentID != nil {
		pi := *order.StripePaymentIntentID
		other := r.findLocked(func(o *domain.Order) bool {
			return o.ID != order.ID && o.StripePaymentIntentID != nil && *o.StripePaymentIntentID == pi
		})
		if other != nil {
			return &errors.ErrConflict{Message: "order payment reference already in use (orders_stripe_payment_intent_id_key)"}
		}
	}

	order.UpdatedAt = time.Now()
	updated := cloneOrder(existing)
	updated.PaymentMethod = order.PaymentMethod
	updated.PaymentStatus = order.PaymentStatus
	updated.Status = order.Status
	updated.StripePaymentIntentID = order.StripePaymentIntentID
	updated.StripeSessionID = order.StripeSessionID
	updated.TransactionID = order.TransactionID
	updated.TrackingNumber = order.TrackingNumber
	updated.Notes = order.Notes
	updated.CancelReason = order.CancelReason
	updated.PaidAt = order.PaidAt
	updated.ShippedAt = order.ShippedAt
	updated.DeliveredAt = order.DeliveredAt
	updated.CancelledAt = order.CancelledAt
	updated.UpdatedAt = order.UpdatedAt
	r.s.data.orders[order.ID] = updated
	return nil
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	return r.list(func(o *domain.Order) bool { return o.UserID == userID }, limit, offset)
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	search := strings.ToUpper(strings.TrimSpace(filter.Search))
	return r.list(func(o *domain.Order) bool {
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			return false
		}
		return search == "" || strings.HasPrefix(o.OrderNumber, search)
	}, filter.Limit, filter.Offset)
}

func (r *orderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	stale := r.collect(func(o *domain.Order) bool {
		return o.Status == domain.OrderStatusPending &&
			o.PaymentStatus == domain.PaymentStatusPending &&
			o.CreatedAt.Before(createdBefore)
	})
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *orderRepository) HasDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	found := r.findLocked(func(o *domain.Order) bool {
		return o.UserID == userID && o.Status == domain.OrderStatusDelivered && o.ContainsProduct(productID)
	})
	return found != nil, nil
}

func (r *orderRepository) list(match func(o *domain.Order) bool, limit, offset int) ([]*domain.Order, int, error) {
	matched := r.collect(match)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, limit, offset), len(matched), nil
}

func (r *orderRepository) collect(match func(o *domain.Order) bool) []*domain.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matched := []*domain.Order{}
	for _, o := range r.s.data.orders {
		if match(o) {
			matched = append(matched, cloneOrder(o))
		}
	}
	return matched
}

func (r *orderRepository) find(label string, match func(o *domain.Order) bool) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if o := r.findLocked(match); o != nil {
		return cloneOrder(o), nil
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: label}
}

func (r *orderRepository) findLocked(match func(o *domain.Order) bool) *domain.Order {
	for _, o := range r.s.data.orders {
		if match(o) {
			return o
		}
	}
	return nil
}

type orderEventRepository struct {
	s *Store
}

func (r *orderEventRepository) Create(ctx context.Context, event *domain.OrderEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	r.s.data.orderEvents = append(r.s.data.orderEvents, &cp)
	return nil
}

func (r *orderEventRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	events := []*domain.OrderEvent{}
	for _, e := range r.s.data.orderEvents {
		if e.OrderID == orderID {
			cp := *e
			events = append(events, &cp)
		}
	}
	return events, nil
}

type idempotencyKeyRepository struct {
	s *Store
}

func idempotencyMapKey(userID uuid.UUID, key string) string {
	return userID.String() + "/" + key
}

func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, userID uuid.UUID, key string) (*domain.IdempotencyKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k, ok := r.s.data.idempotency[idempotencyMapKey(userID, key)]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	mk := idempotencyMapKey(key.UserID, key.Key)
	if _, ok := r.s.data.idempotency[mk]; ok {
		return &errors.ErrConflict{Message: "idempotency key already used"}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	cp := *key
	r.s.data.idempotency[mk] = &cp
	return nil
}

type webhookEventRepository struct {
	s *Store
}

func (r *webhookEventRepository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.data.webhookEvents[eventID]; ok {
		return false, nil
	}
	r.s.data.webhookEvents[eventID] = domain.ProcessedWebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return true, nil
}
