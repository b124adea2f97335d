package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, not quoted strings, to match what the SPA sends.
	decimal.MarshalJSONWithoutQuotes = true
}

// Address is a user's saved address
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// CartLine is one product in a user's embedded cart
type CartLine struct {
	ProductID uuid.UUID `json:"product"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// WishlistLine is one product in a user's embedded wishlist
type WishlistLine struct {
	ProductID uuid.UUID `json:"product"`
	AddedAt   time.Time `json:"addedAt"`
}

// User represents a storefront account
type User struct {
	ID               uuid.UUID      `json:"id"`
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	PasswordHash     string         `json:"-"`
	Role             Role           `json:"role"`
	Phone            string         `json:"phone,omitempty"`
	Address          *Address       `json:"address,omitempty"`
	Avatar           string         `json:"avatar,omitempty"`
	IsActive         bool           `json:"isActive"`
	Cart             []CartLine     `json:"cart"`
	Wishlist         []WishlistLine `json:"wishlist"`
	StripeCustomerID *string        `json:"-"`
	LastLogin        *time.Time     `json:"lastLogin,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// IsAdmin reports whether the user may use the back-office
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Category groups products in the catalog
type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	IsActive    bool       `json:"isActive"`
	SortOrder   int        `json:"sortOrder"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Product is a catalog entry. Quantity is the shared stock counter.
type Product struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Price        decimal.Decimal  `json:"price"`
	ComparePrice *decimal.Decimal `json:"comparePrice,omitempty"`
	CategoryID   *uuid.UUID       `json:"category,omitempty"`
	Brand        string           `json:"brand,omitempty"`
	SKU          string           `json:"sku,omitempty"`
	Images       []string         `json:"images"`
	Tags         []string         `json:"tags"`
	Quantity     int              `json:"quantity"`
	IsActive     bool             `json:"isActive"`
	IsFeatured   bool             `json:"isFeatured"`
	Rating       float64          `json:"rating"`
	NumReviews   int              `json:"numReviews"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// PrimaryImage returns the first image or ""
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ShippingAddress is the flat address snapshotted on an order
type ShippingAddress struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// OrderItem is a line item; Price is the unit price snapshotted at order time
type OrderItem struct {
	ProductID uuid.UUID       `json:"product"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is the target of checkout and payment reconciliation
type Order struct {
	ID                    uuid.UUID       `json:"id"`
	OrderNumber           string          `json:"orderNumber"`
	UserID                uuid.UUID       `json:"user"`
	Items                 []OrderItem     `json:"items"`
	TotalAmount           decimal.Decimal `json:"totalAmount"`
	ShippingCost          decimal.Decimal `json:"shippingCost"`
	FinalAmount           decimal.Decimal `json:"finalAmount"`
	ShippingAddress       ShippingAddress `json:"shippingAddress"`
	PaymentMethod         PaymentMethod   `json:"paymentMethod"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus"`
	Status                OrderStatus     `json:"status"`
	StripePaymentIntentID *string         `json:"stripePaymentIntentId,omitempty"`
	StripeSessionID       *string         `json:"stripeSessionId,omitempty"`
	TransactionID         *string         `json:"transactionId,omitempty"`
	TrackingNumber        *string         `json:"trackingNumber,omitempty"`
	Notes                 string          `json:"notes,omitempty"`
	CancelReason          *string         `json:"cancelReason,omitempty"`
	PaidAt                *time.Time      `json:"paidAt,omitempty"`
	ShippedAt             *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt           *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt           *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// Review is one rating per {user, product, order}
type Review struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user"`
	UserName           string     `json:"userName,omitempty"`
	ProductID          uuid.UUID  `json:"product"`
	OrderID            *uuid.UUID `json:"order,omitempty"`
	Rating             int        `json:"rating"`
	Title              string     `json:"title,omitempty"`
	Comment            string     `json:"comment"`
	IsVerifiedPurchase bool       `json:"isVerifiedPurchase"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Message is a contact-form submission handled in the back-office
type Message struct {
	ID        uuid.UUID     `json:"id"`
	UserID    *uuid.UUID    `json:"user,omitempty"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Subject   string        `json:"subject"`
	Body      string        `json:"message"`
	Status    MessageStatus `json:"status"`
	Reply     *string       `json:"reply,omitempty"`
	RepliedAt *time.Time    `json:"repliedAt,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Notification is an in-app message for one user
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	OrderID   *uuid.UUID       `json:"order,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

// AnalyticsEvent is a tracked storefront interaction
type AnalyticsEvent struct {
	ID        uuid.UUID              `json:"id"`
	Type      AnalyticsEventType     `json:"type"`
	UserID    *uuid.UUID             `json:"user,omitempty"`
	ProductID *uuid.UUID             `json:"product,omitempty"`
	SessionID string                 `json:"sessionId,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// OrderEvent represents an audit event for an order
type OrderEvent struct {
	ID        uuid.UUID              `json:"id"`
	OrderID   uuid.UUID              `json:"order"`
	EventType string                 `json:"eventType"`
	EventData map[string]interface{} `json:"eventData,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// IdempotencyKey stores idempotency information for order creation
type IdempotencyKey struct {
	Key         string
	UserID      uuid.UUID
	OrderID     uuid.UUID
	RequestHash string
	CreatedAt   time.Time
}

// ProcessedWebhookEvent records a provider event id that has already been applied
type ProcessedWebhookEvent struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// ProductSales is a row of the best-sellers report
type ProductSales struct {
	ProductID uuid.UUID       `json:"product"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"unitsSold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailyRevenue is a row of the revenue-per-day report
type DailyRevenue struct {
	Day     string          `json:"day"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DashboardStats aggregates the admin dashboard
type DashboardStats struct {
	TotalRevenue   decimal.Decimal            `json:"totalRevenue"`
	TotalOrders    int                        `json:"totalOrders"`
	TotalUsers     int                        `json:"totalUsers"`
	TotalProducts  int                        `json:"totalProducts"`
	OrdersByStatus map[OrderStatus]int        `json:"ordersByStatus"`
	EventCounts    map[AnalyticsEventType]int `json:"eventCounts"`
	TopProducts    []ProductSales             `json:"topProducts"`
	DailyRevenue   []DailyRevenue             `json:"dailyRevenue"`
	LowStock       []*Product                 `json:"lowStock"`
}
