package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

const UserContextKey = "user"

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware requires a valid bearer token
func AuthMiddleware(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "not authorized, no token")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			var forbidden *errors.ErrForbidden
			var unauthorized *errors.ErrUnauthorized
			switch {
			case stderrors.As(err, &forbidden):
				abort(c, http.StatusForbidden, forbidden.Message)
			case stderrors.As(err, &unauthorized):
				abort(c, http.StatusUnauthorized, "not authorized, token failed")
			default:
				logger.Error("Failed to authenticate request", zap.Error(err))
				abort(c, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user when a valid token is present and never rejects
func OptionalAuthMiddleware(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			user, err := auth.Authenticate(c.Request.Context(), token)
			if err == nil {
				c.Set(UserContextKey, user)
			} else {
				logger.Debug("Ignoring invalid optional token", zap.Error(err))
			}
		}
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserFromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "not authorized")
			return
		}
		if !user.IsAdmin() {
			abort(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// GetUserFromContext retrieves the authenticated user from the Gin context
func GetUserFromContext(c *gin.Context) (*domain.User, bool) {
	user, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}

	u, ok := user.(*domain.User)
	return u, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
