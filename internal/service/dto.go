package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
)

// RegisterRequest represents the sign-up payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Phone    string `json:"phone" binding:"omitempty,max=30"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest only touches the fields that are present
type UpdateProfileRequest struct {
	Name    *string         `json:"name" binding:"omitempty,min=2,max=100"`
	Phone   *string         `json:"phone" binding:"omitempty,max=30"`
	Address *domain.Address `json:"address"`
	Avatar  *string         `json:"avatar" binding:"omitempty,url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=128"`
}

type AdminUpdateUserRequest struct {
	Role     *domain.Role `json:"role" binding:"omitempty,oneof=customer admin"`
	IsActive *bool        `json:"isActive"`
}

// CartItemRequest adds a product to the cart; Quantity defaults to 1
type CartItemRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"omitempty,min=1,max=99"`
}

// UpdateCartItemRequest sets the line quantity; 0 removes the line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0,max=99"`
}

type WishlistRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
}

type MoveToCartRequest struct {
	Quantity int `json:"quantity" binding:"omitempty,min=1,max=99"`
}

// ShippingAddressRequest is the address captured at checkout
type ShippingAddressRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Street     string `json:"street" binding:"required,max=200"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"required,max=100"`
	PostalCode string `json:"postalCode" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,max=60"`
	Phone      string `json:"phone" binding:"required,max=30"`
}

func (r ShippingAddressRequest) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:       r.Name,
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		Phone:      r.Phone,
	}
}

type CreateOrderRequest struct {
	ShippingAddress ShippingAddressRequest `json:"shippingAddress" binding:"required"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod" binding:"omitempty,paymentmethod"`
	Notes           string                 `json:"notes" binding:"max=500"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type UpdateOrderStatusRequest struct {
	Status         domain.OrderStatus `json:"status" binding:"required,orderstatus"`
	TrackingNumber *string            `json:"trackingNumber" binding:"omitempty,max=100"`
	Note           string             `json:"note" binding:"max=500"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus domain.PaymentStatus `json:"paymentStatus" binding:"required,paymentstatus"`
}

// CreatePaymentIntentRequest pays an existing order when OrderID is set, otherwise the current cart
type CreatePaymentIntentRequest struct {
	OrderID *uuid.UUID `json:"orderId"`
}

type CreateCheckoutSessionRequest struct {
	ShippingAddress *ShippingAddressRequest `json:"shippingAddress"`
}

// ProductRequest creates a product
type ProductRequest struct {
	Name         string           `json:"name" binding:"required,max=200"`
	Description  string           `json:"description" binding:"required,max=5000"`
	Price        decimal.Decimal  `json:"price"`
	ComparePrice *decimal.Decimal `json:"comparePrice"`
	CategoryID   *uuid.UUID       `json:"category"`
	Brand        string           `json:"brand" binding:"max=100"`
	SKU          string           `json:"sku" binding:"max=100"`
	Images       []string         `json:"images" binding:"omitempty,max=10,dive,url"`
	Tags         []string         `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	Quantity     int              `json:"quantity" binding:"min=0"`
	IsActive     *bool            `json:"isActive"`
	IsFeatured   bool             `json:"isFeatured"`
}

// ProductPatchRequest updates only the fields that are present
type ProductPatchRequest struct {
	Name         *string          `json:"name" binding:"omitempty,max=200"`
	Description  *string          `json:"description" binding:"omitempty,max=5000"`
	Price        *decimal.Decimal `json:"price"`
	ComparePrice *decimal.Decimal `json:"comparePrice"`
	CategoryID   *uuid.UUID       `json:"category"`
	Brand        *string          `json:"brand" binding:"omitempty,max=100"`
	SKU          *string          `json:"sku" binding:"omitempty,max=100"`
	Images       []string         `json:"images" binding:"omitempty,max=10,dive,url"`
	Tags         []string         `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	Quantity     *int             `json:"quantity" binding:"omitempty,min=0"`
	IsActive     *bool            `json:"isActive"`
	IsFeatured   *bool            `json:"isFeatured"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type CategoryRequest struct {
	Name        string     `json:"name" binding:"required,max=100"`
	Slug        string     `json:"slug" binding:"omitempty,max=120"`
	Description string     `json:"description" binding:"max=1000"`
	Image       string     `json:"image" binding:"omitempty,url"`
	ParentID    *uuid.UUID `json:"parent"`
	IsActive    *bool      `json:"isActive"`
	SortOrder   int        `json:"sortOrder"`
}

type ReviewRequest struct {
	ProductID uuid.UUID  `json:"productId" binding:"required"`
	OrderID   *uuid.UUID `json:"orderId"`
	Rating    int        `json:"rating" binding:"required,min=1,max=5"`
	Title     string     `json:"title" binding:"max=120"`
	Comment   string     `json:"comment" binding:"required,min=3,max=2000"`
}

type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Title   *string `json:"title" binding:"omitempty,max=120"`
	Comment *string `json:"comment" binding:"omitempty,min=3,max=2000"`
}

// ContactRequest is the public contact form
type ContactRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,min=10,max=5000"`
}

type ReplyMessageRequest struct {
	Reply string `json:"reply" binding:"required,max=5000"`
}

type UpdateMessageStatusRequest struct {
	Status domain.MessageStatus `json:"status" binding:"required,messagestatus"`
}

type TrackEventRequest struct {
	Type      domain.AnalyticsEventType `json:"type" binding:"required,analyticsevent"`
	ProductID *uuid.UUID                `json:"productId"`
	SessionID string                    `json:"sessionId" binding:"max=100"`
	Path      string                    `json:"path" binding:"max=500"`
	Metadata  map[string]interface{}    `json:"metadata"`
}

// NotifyRequest is an admin-authored notification for one user
type NotifyRequest struct {
	UserID  uuid.UUID               `json:"userId" binding:"required"`
	Type    domain.NotificationType `json:"type" binding:"omitempty,oneof=order payment promotion system"`
	Title   string                  `json:"title" binding:"required,max=200"`
	Message string                  `json:"message" binding:"required,max=2000"`
}
