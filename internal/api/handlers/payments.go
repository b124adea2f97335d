package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/service"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = 65536
)

// HandlePaymentConfig handles GET /api/payments/config
func HandlePaymentConfig(svc *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, http.StatusOK, svc.Payments.Config())
	}
}

// HandleCreatePaymentIntent handles POST /api/payments/create-payment-intent
func HandleCreatePaymentIntent(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreatePaymentIntentRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}

		result, err := svc.Payments.CreatePaymentIntent(c.Request.Context(), currentUser(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

// HandleCreateCheckoutSession handles POST /api/payments/create-checkout-session
func HandleCreateCheckoutSession(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateCheckoutSessionRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}

		result, err := svc.Payments.CreateCheckoutSession(c.Request.Context(), currentUser(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

// HandleStripeWebhook handles POST /api/webhook/stripe and POST /api/payments/webhook.
// The body is read raw because the signature covers the exact bytes sent.
func HandleStripeWebhook(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
		if err != nil {
			logger.Error("Failed to read webhook body", zap.Error(err))
			fail(c, http.StatusBadRequest, "failed to read body", nil)
			return
		}
		if len(payload) > maxWebhookBodyBytes {
			fail(c, http.StatusRequestEntityTooLarge, "payload too large", nil)
			return
		}

		result, err := svc.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader(stripeSignatureHeader))
		if err != nil {
			if stderrors.Is(err, payment.ErrWebhookNotConfigured) {
				logger.Error("Webhook received but STRIPE_WEBHOOK_SECRET is not set")
				fail(c, http.StatusServiceUnavailable, "webhook not configured", nil)
				return
			}
			var sigErr *payment.SignatureError
			if stderrors.As(err, &sigErr) {
				fail(c, http.StatusBadRequest, "Webhook Error: "+sigErr.Error(), nil)
				return
			}
			// 5xx makes the processor redeliver the event
			fail(c, http.StatusInternalServerError, "webhook processing failed", nil)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
