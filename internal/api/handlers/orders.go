package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleCreateOrder handles POST /api/orders. A repeated Idempotency-Key with the same body
// returns the original order with 200 instead of placing a second one.
func HandleCreateOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateOrderRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := svc.Orders.CreateFromCart(c.Request.Context(), currentUser(c).ID, req, middleware.GetIdempotencyRequest(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if result.Replayed {
			respondMessage(c, http.StatusOK, "Order already created", result)
			return
		}
		respondMessage(c, http.StatusCreated, "Order created successfully", result)
	}
}

// HandleListMyOrders handles GET /api/orders
func HandleListMyOrders(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, offset := pageParams(c)

		orders, total, err := svc.Orders.ListMine(c.Request.Context(), currentUser(c).ID, limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondPage(c, "orders", orders, total, page, limit)
	}
}

// HandleGetOrder handles GET /api/orders/:id for the owner or an admin
func HandleGetOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		user := currentUser(c)

		order, err := svc.Orders.GetMine(c.Request.Context(), user.ID, id, user.IsAdmin())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"order": order})
	}
}

// HandleGetOrderEvents handles GET /api/orders/:id/events
func HandleGetOrderEvents(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		user := currentUser(c)

		if _, err := svc.Orders.GetMine(c.Request.Context(), user.ID, id, user.IsAdmin()); err != nil {
			respondError(c, logger, err)
			return
		}
		events, err := svc.Orders.Events(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"events": events})
	}
}

// HandleCancelOrder handles PUT /api/orders/:id/cancel
func HandleCancelOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.CancelOrderRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}

		order, err := svc.Orders.Cancel(c.Request.Context(), currentUser(c).ID, id, req.Reason)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Order cancelled successfully", gin.H{"order": order})
	}
}
