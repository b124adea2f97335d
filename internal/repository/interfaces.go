package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
)

// UserRepository defines user data access methods.
// Cart and wishlist are embedded in the user document and written whole.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateCart(ctx context.Context, id uuid.UUID, cart []domain.CartLine) error
	UpdateWishlist(ctx context.Context, id uuid.UUID, wishlist []domain.WishlistLine) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	List(ctx context.Context, filter UserFilter) ([]*domain.User, int, error)
	ListAdmins(ctx context.Context) ([]*domain.User, error)
}

// ProductRepository defines catalog data access methods
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	// ReserveStock decrements quantity by n only if quantity >= n and the product is active.
	// Returns *errors.ErrInsufficientStock when no row qualifies.
	ReserveStock(ctx context.Context, id uuid.UUID, n int) error
	RestoreStock(ctx context.Context, id uuid.UUID, n int) error
	UpdateRating(ctx context.Context, id uuid.UUID, rating float64, numReviews int) error
	ListLowStock(ctx context.Context, threshold, limit int) ([]*domain.Product, error)
}

// CategoryRepository defines category data access methods
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderRepository defines order data access methods
type OrderRepository interface {
	// Create assigns ID and, when empty, OrderNumber. OrderNumber never changes afterwards.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// LockByID reads the order and holds a row lock until the surrounding transaction ends
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// Update writes the mutable fields (status, payment fields, tracking, timestamps, notes).
	Update(ctx context.Context, order *domain.Order) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, int, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error)
	HasDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// OrderEventRepository defines order event data access methods
type OrderEventRepository interface {
	Create(ctx context.Context, event *domain.OrderEvent) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderEvent, error)
}

// ReviewRepository defines review data access methods
type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*domain.Review, int, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Review, error)
	// RatingSummary returns the average rating and review count for a product
	RatingSummary(ctx context.Context, productID uuid.UUID) (float64, int, error)
}

// MessageRepository defines contact message data access methods
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, message *domain.Message) error
	List(ctx context.Context, status domain.MessageStatus, limit, offset int) ([]*domain.Message, int, error)
}

// NotificationRepository defines notification data access methods
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUserID(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*domain.Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// AnalyticsRepository stores tracked events and computes dashboard aggregates
type AnalyticsRepository interface {
	Create(ctx context.Context, event *domain.AnalyticsEvent) error
	Dashboard(ctx context.Context, since time.Time, topN int) (*domain.DashboardStats, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, userID uuid.UUID, key string) (*domain.IdempotencyKey, error)
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// WebhookEventRepository remembers which provider events were applied
type WebhookEventRepository interface {
	// Record stores the event id; inserted is false when it was already present
	Record(ctx context.Context, eventID, eventType string) (inserted bool, err error)
}

// Transactor runs fn with repositories bound to one transaction.
// fn's error rolls everything back; nil commits.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repositories) error) error
}

// ProductFilter drives the catalog listing
type ProductFilter struct {
	CategoryID      *uuid.UUID
	Search          string
	MinPrice        *float64
	MaxPrice        *float64
	InStockOnly     bool
	FeaturedOnly    bool
	IncludeInactive bool
	Sort            string // price_asc, price_desc, newest, rating, name
	Limit           int
	Offset          int
}

// OrderFilter drives the admin order listing
type OrderFilter struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Search        string // order number prefix
	Limit         int
	Offset        int
}

// UserFilter drives the admin user listing
type UserFilter struct {
	Role   domain.Role
	Search string
	Limit  int
	Offset int
}

// Repositories aggregates all repositories
type Repositories struct {
	User           UserRepository
	Product        ProductRepository
	Category       CategoryRepository
	Order          OrderRepository
	OrderEvent     OrderEventRepository
	Review         ReviewRepository
	Message        MessageRepository
	Notification   NotificationRepository
	Analytics      AnalyticsRepository
	IdempotencyKey IdempotencyKeyRepository
	WebhookEvent   WebhookEventRepository
	Tx             Transactor
}
