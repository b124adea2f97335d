package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

// HandleCreateReview handles POST /api/reviews
func HandleCreateReview(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ReviewRequest
		if !bindJSON(c, &req) {
			return
		}

		review, err := svc.Reviews.Create(c.Request.Context(), currentUser(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "Review submitted successfully", gin.H{"review": review})
	}
}

// HandleMyReviews handles GET /api/reviews/mine
func HandleMyReviews(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviews, err := svc.Reviews.ListMine(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"reviews": reviews})
	}
}

// HandleUpdateReview handles PUT /api/reviews/:id
func HandleUpdateReview(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		var req service.UpdateReviewRequest
		if !bindJSON(c, &req) {
			return
		}
		user := currentUser(c)

		review, err := svc.Reviews.Update(c.Request.Context(), user.ID, user.IsAdmin(), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Review updated successfully", gin.H{"review": review})
	}
}

// HandleDeleteReview handles DELETE /api/reviews/:id
func HandleDeleteReview(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}
		user := currentUser(c)

		if err := svc.Reviews.Delete(c.Request.Context(), user.ID, user.IsAdmin(), id); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Review deleted successfully", nil)
	}
}
