package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/handlers"
	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/service"
)

const requestIDHeader = "X-Request-ID"

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc *service.Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidators()

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Storefront API",
			"endpoints": []string{
				"GET /health",
				"/api/auth", "/api/products", "/api/categories", "/api/user/cart", "/api/user/wishlist",
				"/api/orders", "/api/payments", "/api/reviews", "/api/messages", "/api/notifications",
				"/api/analytics", "/api/admin",
				"POST /api/webhook/stripe",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Processor webhooks read the raw body and sit outside the rate limiter
	router.POST("/api/webhook/stripe", handlers.HandleStripeWebhook(svc, logger))
	router.POST("/api/payments/webhook", handlers.HandleStripeWebhook(svc, logger))

	requireAuth := middleware.AuthMiddleware(svc.Auth, logger)
	optionalAuth := middleware.OptionalAuthMiddleware(svc.Auth, logger)
	requireAdmin := middleware.AdminMiddleware()
	maxUpload := cfg.Upload.MaxFileSize

	api := router.Group("/api")
	api.Use(middleware.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max).Middleware())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.HandleRegister(svc, logger))
			auth.POST("/login", handlers.HandleLogin(svc, logger))
			auth.POST("/logout", requireAuth, handlers.HandleLogout())
			auth.GET("/me", requireAuth, handlers.HandleGetMe(svc, logger))
			auth.PUT("/profile", requireAuth, handlers.HandleUpdateProfile(svc, logger))
			auth.PUT("/password", requireAuth, handlers.HandleChangePassword(svc, logger))
		}

		products := api.Group("/products")
		{
			products.GET("", optionalAuth, handlers.HandleListProducts(svc, logger, false))
			products.GET("/:id", optionalAuth, handlers.HandleGetProduct(svc, logger))
			products.GET("/:id/reviews", handlers.HandleProductReviews(svc, logger))
			products.POST("", requireAuth, requireAdmin, handlers.HandleCreateProduct(svc, logger))
			products.PUT("/:id", requireAuth, requireAdmin, handlers.HandleUpdateProduct(svc, logger))
			products.DELETE("/:id", requireAuth, requireAdmin, handlers.HandleDeleteProduct(svc, logger))
			products.PATCH("/:id/stock", requireAuth, requireAdmin, handlers.HandleAdjustStock(svc, logger))
			products.POST("/:id/images", requireAuth, requireAdmin, handlers.HandleUploadProductImage(svc, maxUpload, logger))
		}

		categories := api.Group("/categories")
		{
			categories.GET("", optionalAuth, handlers.HandleListCategories(svc, logger))
			categories.GET("/:id", handlers.HandleGetCategory(svc, logger))
			categories.POST("", requireAuth, requireAdmin, handlers.HandleCreateCategory(svc, logger))
			categories.PUT("/:id", requireAuth, requireAdmin, handlers.HandleUpdateCategory(svc, logger))
			categories.DELETE("/:id", requireAuth, requireAdmin, handlers.HandleDeleteCategory(svc, logger))
		}

		user := api.Group("/user", requireAuth)
		{
			user.GET("/cart", handlers.HandleGetCart(svc, logger))
			user.POST("/cart", handlers.HandleAddToCart(svc, logger))
			user.PUT("/cart/:productId", handlers.HandleUpdateCartItem(svc, logger))
			user.DELETE("/cart/:productId", handlers.HandleRemoveFromCart(svc, logger))
			user.DELETE("/cart", handlers.HandleClearCart(svc, logger))

			user.GET("/wishlist", handlers.HandleGetWishlist(svc, logger))
			user.POST("/wishlist", handlers.HandleAddToWishlist(svc, logger))
			user.DELETE("/wishlist/:productId", handlers.HandleRemoveFromWishlist(svc, logger))
			user.DELETE("/wishlist", handlers.HandleClearWishlist(svc, logger))
			user.POST("/wishlist/:productId/move-to-cart", handlers.HandleMoveToCart(svc, logger))
		}

		orders := api.Group("/orders", requireAuth)
		{
			orders.POST("", middleware.IdempotencyMiddleware(logger), handlers.HandleCreateOrder(svc, logger))
			orders.GET("", handlers.HandleListMyOrders(svc, logger))
			orders.GET("/:id", handlers.HandleGetOrder(svc, logger))
			orders.GET("/:id/events", handlers.HandleGetOrderEvents(svc, logger))
			orders.PUT("/:id/cancel", handlers.HandleCancelOrder(svc, logger))
		}

		payments := api.Group("/payments")
		{
			payments.GET("/config", handlers.HandlePaymentConfig(svc))
			payments.POST("/create-payment-intent", requireAuth, handlers.HandleCreatePaymentIntent(svc, logger))
			payments.POST("/create-checkout-session", requireAuth, handlers.HandleCreateCheckoutSession(svc, logger))
		}

		reviews := api.Group("/reviews")
		{
			reviews.GET("/product/:id", handlers.HandleProductReviews(svc, logger))
			reviews.GET("/mine", requireAuth, handlers.HandleMyReviews(svc, logger))
			reviews.POST("", requireAuth, handlers.HandleCreateReview(svc, logger))
			reviews.PUT("/:id", requireAuth, handlers.HandleUpdateReview(svc, logger))
			reviews.DELETE("/:id", requireAuth, handlers.HandleDeleteReview(svc, logger))
		}

		messages := api.Group("/messages")
		{
			messages.POST("", optionalAuth, handlers.HandleCreateMessage(svc, logger))
			messages.GET("", requireAuth, requireAdmin, handlers.HandleListMessages(svc, logger))
			messages.GET("/:id", requireAuth, requireAdmin, handlers.HandleGetMessage(svc, logger))
			messages.POST("/:id/reply", requireAuth, requireAdmin, handlers.HandleReplyMessage(svc, logger))
			messages.PUT("/:id/status", requireAuth, requireAdmin, handlers.HandleUpdateMessageStatus(svc, logger))
			messages.DELETE("/:id", requireAuth, requireAdmin, handlers.HandleArchiveMessage(svc, logger))
		}

		notifications := api.Group("/notifications", requireAuth)
		{
			notifications.GET("", handlers.HandleListNotifications(svc, logger))
			notifications.PUT("/read-all", handlers.HandleMarkAllNotificationsRead(svc, logger))
			notifications.PUT("/:id/read", handlers.HandleMarkNotificationRead(svc, logger))
			notifications.DELETE("/:id", handlers.HandleDeleteNotification(svc, logger))
		}

		analytics := api.Group("/analytics")
		{
			analytics.POST("/track", optionalAuth, handlers.HandleTrackEvent(svc, logger))
			analytics.GET("/dashboard", requireAuth, requireAdmin, handlers.HandleDashboard(svc, logger))
		}

		admin := api.Group("/admin", requireAuth, requireAdmin)
		{
			admin.GET("/dashboard", handlers.HandleDashboard(svc, logger))
			admin.GET("/orders", handlers.HandleListOrders(svc, logger))
			admin.GET("/orders/:id", handlers.HandleGetOrder(svc, logger))
			admin.GET("/orders/:id/events", handlers.HandleGetOrderEvents(svc, logger))
			admin.PUT("/orders/:id/status", handlers.HandleUpdateOrderStatus(svc, logger))
			admin.PUT("/orders/:id/payment-status", handlers.HandleUpdatePaymentStatus(svc, logger))
			admin.POST("/orders/sweep-pending", handlers.HandleSweepPending(svc, logger))
			admin.GET("/users", handlers.HandleListUsers(svc, logger))
			admin.PUT("/users/:id", handlers.HandleUpdateUser(svc, logger))
			admin.POST("/notifications", handlers.HandleSendNotification(svc, logger))
			admin.GET("/products", handlers.HandleListProducts(svc, logger, true))
			admin.POST("/upload", handlers.HandleUploadImage(svc, maxUpload, logger))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
	})

	return router
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	cfg.AllowCredentials = true
	return cfg
}

// customRecovery logs panics and answers with a generic 500 envelope
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal server error",
		})
	})
}

// loggingMiddleware logs HTTP requests and tags each with a request id
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
