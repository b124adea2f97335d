package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

// HandleGetCart handles GET /api/user/cart
func HandleGetCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := svc.Cart.Get(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"cart": cart})
	}
}

// HandleAddToCart handles POST /api/user/cart
func HandleAddToCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CartItemRequest
		if !bindJSON(c, &req) {
			return
		}

		cart, err := svc.Cart.Add(c.Request.Context(), currentUser(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Item added to cart", gin.H{"cart": cart})
	}
}

// HandleUpdateCartItem handles PUT /api/user/cart/:productId
func HandleUpdateCartItem(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := paramUUID(c, "productId")
		if !ok {
			return
		}
		var req service.UpdateCartItemRequest
		if !bindJSON(c, &req) {
			return
		}

		cart, err := svc.Cart.UpdateQuantity(c.Request.Context(), currentUser(c).ID, productID, req.Quantity)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Cart updated", gin.H{"cart": cart})
	}
}

// HandleRemoveFromCart handles DELETE /api/user/cart/:productId
func HandleRemoveFromCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := paramUUID(c, "productId")
		if !ok {
			return
		}

		cart, err := svc.Cart.Remove(c.Request.Context(), currentUser(c).ID, productID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Item removed from cart", gin.H{"cart": cart})
	}
}

// HandleClearCart handles DELETE /api/user/cart
func HandleClearCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Cart.Clear(c.Request.Context(), currentUser(c).ID); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Cart cleared", nil)
	}
}

// HandleGetWishlist handles GET /api/user/wishlist
func HandleGetWishlist(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.Wishlist.Get(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"wishlist": items})
	}
}

// HandleAddToWishlist handles POST /api/user/wishlist
func HandleAddToWishlist(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.WishlistRequest
		if !bindJSON(c, &req) {
			return
		}

		items, err := svc.Wishlist.Add(c.Request.Context(), currentUser(c).ID, req.ProductID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Item added to wishlist", gin.H{"wishlist": items})
	}
}

// HandleRemoveFromWishlist handles DELETE /api/user/wishlist/:productId
func HandleRemoveFromWishlist(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := paramUUID(c, "productId")
		if !ok {
			return
		}

		items, err := svc.Wishlist.Remove(c.Request.Context(), currentUser(c).ID, productID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Item removed from wishlist", gin.H{"wishlist": items})
	}
}

// HandleClearWishlist handles DELETE /api/user/wishlist
func HandleClearWishlist(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Wishlist.Clear(c.Request.Context(), currentUser(c).ID); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Wishlist cleared", nil)
	}
}

// HandleMoveToCart handles POST /api/user/wishlist/:productId/move-to-cart
func HandleMoveToCart(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := paramUUID(c, "productId")
		if !ok {
			return
		}
		var req service.MoveToCartRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}

		cart, err := svc.Wishlist.MoveToCart(c.Request.Context(), currentUser(c).ID, productID, req.Quantity)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Item moved to cart", gin.H{"cart": cart})
	}
}
