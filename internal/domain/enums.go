package domain

// OrderStatus represents the fulfilment status of a storefront order
type OrderStatus string

const (
	// PENDING - created, awaiting payment
	OrderStatusPending OrderStatus = "pending"
	// CONFIRMED - payment completed
	OrderStatusConfirmed OrderStatus = "confirmed"
	// PROCESSING - being packed
	OrderStatusProcessing OrderStatus = "processing"
	// SHIPPED - handed to carrier
	OrderStatusShipped OrderStatus = "shipped"
	// DELIVERED - received by customer
	OrderStatusDelivered OrderStatus = "delivered"
	// CANCELLED - cancelled by customer, admin, payment failure or sweep
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions lists every allowed (from -> to) edge. Anything absent is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// CustomerCancellable reports whether the buyer may still cancel the order.
// Shipped, delivered and already-cancelled orders are out of the customer's hands.
func (s OrderStatus) CustomerCancellable() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return false
	default:
		return s.CanTransitionTo(OrderStatusCancelled)
	}
}

// OrderStatuses returns all statuses in lifecycle order
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// PaymentStatus is independent of OrderStatus; handlers keep them in step
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a payment status transition is valid
func (s PaymentStatus) CanTransitionTo(newStatus PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return newStatus == PaymentStatusCompleted || newStatus == PaymentStatusFailed
	case PaymentStatusFailed:
		// a new intent may succeed after a declined card
		return newStatus == PaymentStatusCompleted
	case PaymentStatusCompleted:
		return newStatus == PaymentStatusRefunded
	default:
		return false
	}
}

// PaymentMethod is the closed set of checkout methods
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodCard   PaymentMethod = "card"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodStripe || m == PaymentMethodCard
}

// Role is the authorization role of a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// MessageStatus tracks contact-form messages through the back-office
type MessageStatus string

const (
	MessageStatusNew      MessageStatus = "new"
	MessageStatusRead     MessageStatus = "read"
	MessageStatusReplied  MessageStatus = "replied"
	MessageStatusArchived MessageStatus = "archived"
)

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusNew, MessageStatusRead, MessageStatusReplied, MessageStatusArchived:
		return true
	default:
		return false
	}
}

// NotificationType classifies in-app notifications
type NotificationType string

const (
	NotificationTypeOrder     NotificationType = "order"
	NotificationTypePayment   NotificationType = "payment"
	NotificationTypePromotion NotificationType = "promotion"
	NotificationTypeSystem    NotificationType = "system"
)

// AnalyticsEventType classifies tracked storefront events
type AnalyticsEventType string

const (
	AnalyticsPageView    AnalyticsEventType = "page_view"
	AnalyticsProductView AnalyticsEventType = "product_view"
	AnalyticsAddToCart   AnalyticsEventType = "add_to_cart"
	AnalyticsPurchase    AnalyticsEventType = "purchase"
	AnalyticsSearch      AnalyticsEventType = "search"
	AnalyticsSignup      AnalyticsEventType = "signup"
)

func (t AnalyticsEventType) IsValid() bool {
	switch t {
	case AnalyticsPageView, AnalyticsProductView, AnalyticsAddToCart, AnalyticsPurchase, AnalyticsSearch, AnalyticsSignup:
		return true
	default:
		return false
	}
}

// Order audit event types
const (
	OrderEventCreated              = "order_created"
	OrderEventStatusChange         = "status_change"
	OrderEventPaymentStatusChange  = "payment_status_change"
	OrderEventPaymentIntentCreated = "payment_intent_created"
	OrderEventCancelled            = "order_cancelled"
)
