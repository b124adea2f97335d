package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

// HandleListNotifications handles GET /api/notifications?unread=true
func HandleListNotifications(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, offset := pageParams(c)

		result, err := svc.Notifications.ListMine(c.Request.Context(), currentUser(c).ID, c.Query("unread") == "true", limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{
			"notifications": result.Notifications,
			"unread":        result.Unread,
			"pagination":    Pagination{Page: page, Limit: limit, Total: result.Total, Pages: (result.Total + limit - 1) / limit},
		})
	}
}

// HandleMarkNotificationRead handles PUT /api/notifications/:id/read
func HandleMarkNotificationRead(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		if err := svc.Notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Notification marked as read", nil)
	}
}

// HandleMarkAllNotificationsRead handles PUT /api/notifications/read-all
func HandleMarkAllNotificationsRead(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := svc.Notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": count})
	}
}

// HandleDeleteNotification handles DELETE /api/notifications/:id
func HandleDeleteNotification(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		if err := svc.Notifications.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Notification deleted", nil)
	}
}
