package service

import (
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
)

// Deps are the collaborators shared by every service
type Deps struct {
	Config  *config.Config
	Repos   *repository.Repositories
	Gateway payment.Gateway
	Mailer  mail.Mailer
	Images  media.ImageStore
	Effects *Effects
	Logger  *zap.Logger
}

// Services aggregates all services
type Services struct {
	Tokens        *TokenIssuer
	Auth          *AuthService
	Cart          *CartService
	Wishlist      *WishlistService
	Catalog       *CatalogService
	Orders        *OrderService
	Payments      *PaymentService
	Reviews       *ReviewService
	Messages      *MessageService
	Notifications *NotificationService
	Analytics     *AnalyticsService
	Images        media.ImageStore
	Effects       *Effects
}

// New wires the services together
func New(d Deps) *Services {
	composer := mail.Composer{StoreName: "Storefront", ClientURL: d.Config.ClientURL}
	tokens := NewTokenIssuer(d.Config.JWT.Secret, d.Config.JWT.Expiry)

	notifications := NewNotificationService(d.Repos, d.Logger)
	analytics := NewAnalyticsService(d.Repos, d.Effects, d.Logger)
	catalog := NewCatalogService(d.Repos, d.Logger)
	cart := NewCartService(d.Repos, d.Config.Checkout, analytics, d.Logger)
	orders := NewOrderService(d.Config, d.Repos, d.Gateway, d.Mailer, composer, notifications, analytics, d.Effects, d.Logger)

	return &Services{
		Tokens:        tokens,
		Auth:          NewAuthService(d.Repos, tokens, d.Mailer, composer, analytics, d.Effects, d.Logger),
		Cart:          cart,
		Wishlist:      NewWishlistService(d.Repos, cart, d.Logger),
		Catalog:       catalog,
		Orders:        orders,
		Payments:      NewPaymentService(d.Config, d.Repos, d.Gateway, orders, d.Effects, d.Logger),
		Reviews:       NewReviewService(d.Repos, d.Logger),
		Messages:      NewMessageService(d.Repos, d.Mailer, composer, notifications, d.Effects, d.Logger),
		Notifications: notifications,
		Analytics:     analytics,
		Images:        d.Images,
		Effects:       d.Effects,
	}
}
