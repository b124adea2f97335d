package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// WishlistService manages the wishlist embedded in each user
type WishlistService struct {
	repos  *repository.Repositories
	cart   *CartService
	logger *zap.Logger
}

// NewWishlistService creates a new wishlist service
func NewWishlistService(repos *repository.Repositories, cart *CartService, logger *zap.Logger) *WishlistService {
	return &WishlistService{repos: repos, cart: cart, logger: logger}
}

// WishlistItemView is a wishlist line joined with its product
type WishlistItemView struct {
	Product *domain.Product `json:"product"`
	AddedAt time.Time       `json:"addedAt"`
}

func (s *WishlistService) Get(ctx context.Context, userID uuid.UUID) ([]WishlistItemView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, user.Wishlist)
}

// Add rejects a product that is already on the list
func (s *WishlistService) Add(ctx context.Context, userID, productID uuid.UUID) ([]WishlistItemView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.cart.activeProduct(ctx, productID); err != nil {
		return nil, err
	}
	if findWishlistLine(user.Wishlist, productID) >= 0 {
		return nil, &errors.ErrConflict{Message: "product is already in your wishlist"}
	}

	wishlist := append(user.Wishlist, domain.WishlistLine{ProductID: productID, AddedAt: time.Now()})
	if err := s.repos.User.UpdateWishlist(ctx, userID, wishlist); err != nil {
		return nil, err
	}
	return s.view(ctx, wishlist)
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) ([]WishlistItemView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := findWishlistLine(user.Wishlist, productID)
	if idx < 0 {
		return nil, &errors.ErrNotFound{Resource: "wishlist item", ID: productID.String()}
	}

	wishlist := append(user.Wishlist[:idx:idx], user.Wishlist[idx+1:]...)
	if err := s.repos.User.UpdateWishlist(ctx, userID, wishlist); err != nil {
		return nil, err
	}
	return s.view(ctx, wishlist)
}

func (s *WishlistService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repos.User.UpdateWishlist(ctx, userID, []domain.WishlistLine{})
}

// MoveToCart adds the product to the cart, then drops it from the wishlist
func (s *WishlistService) MoveToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartView, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if findWishlistLine(user.Wishlist, productID) < 0 {
		return nil, &errors.ErrNotFound{Resource: "wishlist item", ID: productID.String()}
	}

	cart, err := s.cart.Add(ctx, userID, CartItemRequest{ProductID: productID, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	if _, err := s.Remove(ctx, userID, productID); err != nil {
		s.logger.Warn("Product moved to cart but not removed from wishlist",
			zap.String("user_id", userID.String()), zap.String("product_id", productID.String()), zap.Error(err))
	}
	return cart, nil
}

func (s *WishlistService) view(ctx context.Context, wishlist []domain.WishlistLine) ([]WishlistItemView, error) {
	ids := make([]uuid.UUID, 0, len(wishlist))
	for _, line := range wishlist {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repos.Product.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := []WishlistItemView{}
	for _, line := range wishlist {
		if product, ok := products[line.ProductID]; ok {
			items = append(items, WishlistItemView{Product: product, AddedAt: line.AddedAt})
		}
	}
	return items, nil
}

func findWishlistLine(wishlist []domain.WishlistLine, productID uuid.UUID) int {
	for i, line := range wishlist {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
