package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleDashboard handles GET /api/admin/dashboard and GET /api/analytics/dashboard
func HandleDashboard(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

		stats, err := svc.Analytics.Dashboard(c.Request.Context(), days)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, stats)
	}
}

// HandleListOrders handles GET /api/admin/orders
func HandleListOrders(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, offset := pageParams(c)
		filter := repository.OrderFilter{
			Status:        domain.OrderStatus(c.Query("status")),
			PaymentStatus: domain.PaymentStatus(c.Query("paymentStatus")),
			Search:        c.Query("search"),
			Limit:         limit,
			Offset:        offset,
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			fail(c, http.StatusBadRequest, "invalid status filter", []FieldError{{Field: "status", Message: "is not a recognised value"}})
			return
		}
		if filter.PaymentStatus != "" && !filter.PaymentStatus.IsValid() {
			fail(c, http.StatusBadRequest, "invalid payment status filter", []FieldError{{Field: "paymentStatus", Message: "is not a recognised value"}})
			return
		}

		orders, total, err := svc.Orders.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondPage(c, "orders", orders, total, page, limit)
	}
}

// HandleUpdateOrderStatus handles PUT /api/admin/orders/:id/status
func HandleUpdateOrderStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.UpdateOrderStatusRequest
		if !bindJSON(c, &req) {
			return
		}

		order, err := svc.Orders.UpdateStatus(c.Request.Context(), currentUser(c).ID, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Order status updated", gin.H{"order": order})
	}
}

// HandleUpdatePaymentStatus handles PUT /api/admin/orders/:id/payment-status
func HandleUpdatePaymentStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.UpdatePaymentStatusRequest
		if !bindJSON(c, &req) {
			return
		}

		order, err := svc.Orders.UpdatePaymentStatus(c.Request.Context(), currentUser(c).ID, id, req.PaymentStatus)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Payment status updated", gin.H{"order": order})
	}
}

// HandleSweepPending handles POST /api/admin/orders/sweep-pending
func HandleSweepPending(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cancelled, err := svc.Orders.SweepStalePending(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"cancelled": cancelled})
	}
}

// HandleListUsers handles GET /api/admin/users
func HandleListUsers(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, offset := pageParams(c)
		filter := repository.UserFilter{
			Role:   domain.Role(c.Query("role")),
			Search: c.Query("search"),
			Limit:  limit,
			Offset: offset,
		}

		users, total, err := svc.Auth.ListUsers(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondPage(c, "users", users, total, page, limit)
	}
}

// HandleUpdateUser handles PUT /api/admin/users/:id
func HandleUpdateUser(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.AdminUpdateUserRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := svc.Auth.UpdateUser(c.Request.Context(), currentUser(c).ID, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "User updated successfully", gin.H{"user": user})
	}
}

// HandleSendNotification handles POST /api/admin/notifications
func HandleSendNotification(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.NotifyRequest
		if !bindJSON(c, &req) {
			return
		}
		if _, err := svc.Auth.Profile(c.Request.Context(), req.UserID); err != nil {
			respondError(c, logger, err)
			return
		}

		n, err := svc.Notifications.Notify(c.Request.Context(), req.UserID, req.Type, req.Title, req.Message, nil)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Notification sent", gin.H{"notification": n})
	}
}
