package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleCreateMessage handles POST /api/messages (public contact form)
func HandleCreateMessage(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ContactRequest
		if !bindJSON(c, &req) {
			return
		}

		msg, err := svc.Messages.Create(c.Request.Context(), optionalUserID(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Message sent successfully", gin.H{"message": msg})
	}
}

// HandleListMessages handles GET /api/messages (admin)
func HandleListMessages(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, offset := pageParams(c)

		messages, total, err := svc.Messages.List(c.Request.Context(), domain.MessageStatus(c.Query("status")), limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondPage(c, "messages", messages, total, page, limit)
	}
}

// HandleGetMessage handles GET /api/messages/:id (admin)
func HandleGetMessage(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		msg, err := svc.Messages.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"message": msg})
	}
}

// HandleReplyMessage handles POST /api/messages/:id/reply (admin)
func HandleReplyMessage(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.ReplyMessageRequest
		if !bindJSON(c, &req) {
			return
		}

		msg, err := svc.Messages.Reply(c.Request.Context(), id, req.Reply)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Reply sent successfully", gin.H{"message": msg})
	}
}

// HandleUpdateMessageStatus handles PUT /api/messages/:id/status (admin)
func HandleUpdateMessageStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.UpdateMessageStatusRequest
		if !bindJSON(c, &req) {
			return
		}

		msg, err := svc.Messages.UpdateStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"message": msg})
	}
}

// HandleArchiveMessage handles DELETE /api/messages/:id (admin). Messages are archived, not removed.
func HandleArchiveMessage(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		if _, err := svc.Messages.Archive(c.Request.Context(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Message archived", nil)
	}
}
