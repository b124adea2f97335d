package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

// HandleTrackEvent handles POST /api/analytics/track. Tracking failures are logged, never surfaced.
func HandleTrackEvent(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.TrackEventRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := svc.Analytics.Track(c.Request.Context(), optionalUserID(c), req); err != nil {
			logger.Warn("Failed to track analytics event", zap.String("type", string(req.Type)), zap.Error(err))
		}
		respond(c, http.StatusOK, gin.H{"tracked": true})
	}
}
