package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyContext   = "idempotency"
	maxIdempotencyKeyLen = 255
)

// IdempotencyMiddleware hashes the body of requests carrying an Idempotency-Key.
// The service decides whether the key replays an earlier order or conflicts with it.
func IdempotencyMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to POST/PUT/PATCH requests
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			abort(c, http.StatusBadRequest, "Idempotency-Key must be at most 255 characters")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			abort(c, http.StatusBadRequest, "failed to read request body")
			return
		}

		// Restore body for handler
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		hash := sha256.Sum256(body)
		c.Set(idempotencyContext, &service.IdempotencyRequest{
			Key:         key,
			RequestHash: hex.EncodeToString(hash[:]),
		})
		c.Next()
	}
}

// GetIdempotencyRequest returns nil when the request carried no Idempotency-Key
func GetIdempotencyRequest(c *gin.Context) *service.IdempotencyRequest {
	v, exists := c.Get(idempotencyContext)
	if !exists {
		return nil
	}
	req, _ := v.(*service.IdempotencyRequest)
	return req
}
