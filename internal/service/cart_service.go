package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// CartService manages the cart embedded in each user
type CartService struct {
	repos     *repository.Repositories
	checkout  config.CheckoutConfig
	analytics *AnalyticsService
	logger    *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repos *repository.Repositories, checkout config.CheckoutConfig, analytics *AnalyticsService, logger *zap.Logger) *CartService {
	return &CartService{repos: repos, checkout: checkout, analytics: analytics, logger: logger}
}

// CartItemView is a cart line joined with its product
type CartItemView struct {
	Product   *domain.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"addedAt"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	// Available is false when the product was deactivated or stock fell below Quantity
	Available bool `json:"available"`
}

// CartView is the priced cart
type CartView struct {
	Items        []CartItemView  `json:"items"`
	ItemCount    int             `json:"itemCount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Total        decimal.Decimal `json:"total"`
}

func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user.Cart)
}

// Add increments an existing line or appends a new one
func (s *CartService) Add(ctx context.Context, userID uuid.UUID, req CartItemRequest) (*CartView, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	product, err := s.activeProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart := user.Cart
	idx := findCartLine(cart, req.ProductID)
	newQty := qty
	if idx >= 0 {
		newQty += cart[idx].Quantity
	}
	if product.Quantity < newQty {
		return nil, &errors.ErrInsufficientStock{ProductID: product.ID.String(), ProductName: product.Name, Requested: newQty, Available: product.Quantity}
	}

	if idx >= 0 {
		cart[idx].Quantity = newQty
	} else {
		cart = append(cart, domain.CartLine{ProductID: req.ProductID, Quantity: qty, AddedAt: time.Now()})
	}
	if err := s.repos.User.UpdateCart(ctx, userID, cart); err != nil {
		return nil, err
	}

	s.analytics.effects.Run(s.analytics.TrackEffect(domain.AnalyticsAddToCart, &userID, &product.ID,
		map[string]interface{}{"quantity": qty}))
	return s.view(ctx, cart)
}

// UpdateQuantity revalidates against live stock; quantity 0 removes the line
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	if quantity == 0 {
		return s.Remove(ctx, userID, productID)
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart := user.Cart
	idx := findCartLine(cart, productID)
	if idx < 0 {
		return nil, &errors.ErrNotFound{Resource: "cart item", ID: productID.String()}
	}

	product, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Quantity < quantity {
		return nil, &errors.ErrInsufficientStock{ProductID: product.ID.String(), ProductName: product.Name, Requested: quantity, Available: product.Quantity}
	}

	cart[idx].Quantity = quantity
	if err := s.repos.User.UpdateCart(ctx, userID, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) Remove(ctx context.Context, userID, productID uuid.UUID) (*CartView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := findCartLine(user.Cart, productID)
	if idx < 0 {
		return nil, &errors.ErrNotFound{Resource: "cart item", ID: productID.String()}
	}

	cart := append(user.Cart[:idx:idx], user.Cart[idx+1:]...)
	if err := s.repos.User.UpdateCart(ctx, userID, cart); err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repos.User.UpdateCart(ctx, userID, []domain.CartLine{})
}

// activeProduct returns 404 for missing and deactivated products alike
func (s *CartService) activeProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.repos.Product.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return product, nil
}

func (s *CartService) view(ctx context.Context, cart []domain.CartLine) (*CartView, error) {
	ids := make([]uuid.UUID, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repos.Product.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &CartView{Items: []CartItemView{}, Subtotal: decimal.Zero}
	for _, line := range cart {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Items = append(view.Items, CartItemView{
			Product:   product,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt,
			LineTotal: lineTotal,
			Available: product.IsActive && product.Quantity >= line.Quantity,
		})
		view.ItemCount += line.Quantity
		view.Subtotal = view.Subtotal.Add(lineTotal)
	}

	view.ShippingCost = decimal.Zero
	if len(view.Items) > 0 {
		view.ShippingCost = domain.ShippingCostFor(view.Subtotal, s.checkout.FlatShippingRate, s.checkout.FreeShippingThreshold)
	}
	view.Total = view.Subtotal.Add(view.ShippingCost)
	return view, nil
}

func findCartLine(cart []domain.CartLine, productID uuid.UUID) int {
	for i, line := range cart {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
