package handlers

import (
	stderrors "errors"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/service"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// FieldError is one entry of the envelope's errors list
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the body of every API response
type Envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Pagination is attached to every list response
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func respondPage(c *gin.Context, key string, items interface{}, total, page, limit int) {
	respond(c, http.StatusOK, gin.H{
		key: items,
		"pagination": Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

func fail(c *gin.Context, status int, message string, fields []FieldError) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Errors: fields})
}

// respondError maps typed errors to status codes. Anything unrecognised is logged and
// reported as a generic 500, as are upstream provider failures (as 502).
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validation   *errors.ErrValidation
		notFound     *errors.ErrNotFound
		unauthorized *errors.ErrUnauthorized
		forbidden    *errors.ErrForbidden
		conflict     *errors.ErrConflict
		transition   *errors.ErrInvalidStateTransition
		stock        *errors.ErrInsufficientStock
		paymentSetup *service.PaymentSetupError
		upstream     *errors.ErrUpstream
	)

	switch {
	case stderrors.As(err, &paymentSetup):
		logger.Error("Payment setup failed after order placement",
			zap.String("order_id", paymentSetup.Order.ID.String()), zap.Error(paymentSetup.Err))
		c.AbortWithStatusJSON(http.StatusBadGateway, Envelope{
			Success: false,
			Message: "Order placed, but payment could not be started. Please retry payment from your orders.",
			Data:    gin.H{"order": paymentSetup.Order},
		})
	case stderrors.As(err, &validation):
		fail(c, http.StatusBadRequest, validation.Message, fieldErrors(validation.Fields))
	case stderrors.As(err, &stock):
		fail(c, http.StatusBadRequest, stock.Error(), []FieldError{{Field: "productId", Message: stock.ProductID}})
	case stderrors.As(err, &transition):
		fail(c, http.StatusBadRequest, transition.Error(), nil)
	case stderrors.As(err, &notFound):
		fail(c, http.StatusNotFound, notFound.Error(), nil)
	case stderrors.As(err, &unauthorized):
		fail(c, http.StatusUnauthorized, unauthorized.Message, nil)
	case stderrors.As(err, &forbidden):
		fail(c, http.StatusForbidden, forbidden.Message, nil)
	case stderrors.As(err, &conflict):
		fail(c, http.StatusConflict, conflict.Message, nil)
	case stderrors.Is(err, media.ErrNotConfigured):
		fail(c, http.StatusServiceUnavailable, err.Error(), nil)
	case stderrors.Is(err, media.ErrTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, err.Error(), nil)
	case stderrors.As(err, &upstream):
		logger.Error("Upstream provider failed",
			zap.String("provider", upstream.Provider), zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusBadGateway, upstream.Message, nil)
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method), zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func fieldErrors(fields map[string]string) []FieldError {
	if len(fields) == 0 {
		return nil
	}
	out := make([]FieldError, 0, len(fields))
	for field, msg := range fields {
		out = append(out, FieldError{Field: field, Message: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// bindJSON reports a 400 with the per-field errors and returns false when binding fails
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed", bindingErrors(err))
		return false
	}
	return true
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid "+name, []FieldError{{Field: name, Message: "must be a UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page (1-based) and limit from the query string
func pageParams(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit, (page - 1) * limit
}

// currentUser is only called behind AuthMiddleware
func currentUser(c *gin.Context) *domain.User {
	user, _ := middleware.GetUserFromContext(c)
	return user
}

func optionalUserID(c *gin.Context) *uuid.UUID {
	if user, ok := middleware.GetUserFromContext(c); ok {
		return &user.ID
	}
	return nil
}
