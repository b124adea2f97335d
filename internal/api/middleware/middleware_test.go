package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

type fakeAuth struct {
	users map[string]*domain.User
}

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "inactive" {
		return nil, &errors.ErrForbidden{Message: "account is deactivated"}
	}
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, &errors.ErrUnauthorized{Message: "invalid or expired token"}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter() *gin.Engine {
	auth := fakeAuth{users: map[string]*domain.User{
		"customer": {ID: uuid.New(), Role: domain.RoleCustomer, IsActive: true},
		"admin":    {ID: uuid.New(), Role: domain.RoleAdmin, IsActive: true},
	}}
	logger := zap.NewNop()

	r := gin.New()
	r.GET("/me", AuthMiddleware(auth, logger), func(c *gin.Context) {
		user, _ := GetUserFromContext(c)
		c.String(http.StatusOK, string(user.Role))
	})
	r.GET("/admin", AuthMiddleware(auth, logger), AdminMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/optional", OptionalAuthMiddleware(auth, logger), func(c *gin.Context) {
		if _, ok := GetUserFromContext(c); ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "bogus").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/me", "inactive").Code)

	w := get(r, "/me", "customer")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "customer", w.Body.String())
}

func TestAdminMiddleware(t *testing.T) {
	r := newAuthRouter()

	w := get(r, "/admin", "customer")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", "admin").Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newAuthRouter()

	assert.Equal(t, "anonymous", get(r, "/optional", "").Body.String())
	assert.Equal(t, "anonymous", get(r, "/optional", "bogus").Body.String())
	assert.Equal(t, "user", get(r, "/optional", "customer").Body.String())
}

func TestIdempotencyMiddlewareHashesBody(t *testing.T) {
	r := gin.New()
	r.Use(IdempotencyMiddleware(zap.NewNop()))
	var hashes []string
	r.POST("/orders", func(c *gin.Context) {
		body, err := c.GetRawData()
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(body))
		if idem := GetIdempotencyRequest(c); idem != nil {
			assert.Equal(t, "key-1", idem.Key)
			hashes = append(hashes, idem.RequestHash)
		}
		c.Status(http.StatusCreated)
	})

	post := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"a":1}`))
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, post("key-1"))
	assert.Equal(t, http.StatusCreated, post("key-1"))
	assert.Equal(t, http.StatusCreated, post(""))
	require.Len(t, hashes, 2)
	assert.Equal(t, hashes[0], hashes[1])
	assert.Len(t, hashes[0], 64)

	assert.Equal(t, http.StatusBadRequest, post(strings.Repeat("k", 256)))
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(time.Hour, 2).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	w := get(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	other := httptest.NewRecorder()
	r.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}
