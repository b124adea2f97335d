package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

func intentObject(id string, amount int64, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"object":   "payment_intent",
		"amount":   amount,
		"metadata": metadata,
	}
}

func TestWebhookIntentSucceededConfirmsOrder(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 2)
	placed := placeOrder(t, env, user)
	before := env.order(t, placed.Order.ID)

	result := env.deliver(t, "evt_ok", string(payment.EventPaymentIntentSucceeded), intentObject(placed.PaymentIntentID, 3000, map[string]string{
		"orderId":      before.ID.String(),
		"checkoutType": checkoutTypeExistingOrder,
	}))
	assert.True(t, result.Received)
	assert.False(t, result.Duplicate)
	require.NotNil(t, result.OrderID)

	after := env.order(t, before.ID)
	assert.Equal(t, domain.OrderStatusConfirmed, after.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, after.PaymentStatus)
	require.NotNil(t, after.TransactionID)
	assert.Equal(t, placed.PaymentIntentID, *after.TransactionID)
	require.NotNil(t, after.PaidAt)

	assert.Equal(t, before.OrderNumber, after.OrderNumber)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.TotalAmount.Equal(after.TotalAmount))
	assert.True(t, before.FinalAmount.Equal(after.FinalAmount))
	assert.Equal(t, before.ShippingAddress, after.ShippingAddress)
	assert.Equal(t, before.StripePaymentIntentID, after.StripePaymentIntentID)
	assert.Equal(t, before.Notes, after.Notes)
	assert.Equal(t, 3, env.stock(t, p.ID))

	sent := env.mailer.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, user.Email, sent[len(sent)-1].To)
}

func TestWebhookIntentFailedCancelsOrder(t *testing.T) {
	for _, eventType := range []payment.EventType{payment.EventPaymentIntentPaymentFailed, payment.EventPaymentIntentCanceled} {
		t.Run(string(eventType), func(t *testing.T) {
			env := newTestEnv(t)
			user := env.user(t, domain.RoleCustomer)
			p := env.product(t, "a", 10, 5)
			env.addToCart(t, user.ID, p, 2)
			placed := placeOrder(t, env, user)

			object := intentObject(placed.PaymentIntentID, 3000, nil)
			object["last_payment_error"] = map[string]interface{}{"message": "Your card was declined."}
			env.deliver(t, "evt_fail", string(eventType), object)

			after := env.order(t, placed.Order.ID)
			assert.Equal(t, domain.PaymentStatusFailed, after.PaymentStatus)
			assert.Equal(t, domain.OrderStatusCancelled, after.Status)
			require.NotNil(t, after.CancelReason)
			assert.Contains(t, *after.CancelReason, "declined")
			assert.Equal(t, 5, env.stock(t, p.ID))
		})
	}
}

func TestWebhookFailureCancelsUnpaidOrderPastPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	admin := env.user(t, domain.RoleAdmin)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 2)
	placed := placeOrder(t, env, user)
	assert.Equal(t, 3, env.stock(t, p.ID))

	_, err := env.svc.Orders.UpdateStatus(ctx, admin.ID, placed.Order.ID, UpdateOrderStatusRequest{Status: domain.OrderStatusConfirmed})
	require.NoError(t, err)

	env.deliver(t, "evt_fail_confirmed", string(payment.EventPaymentIntentPaymentFailed), intentObject(placed.PaymentIntentID, 3000, nil))

	after := env.order(t, placed.Order.ID)
	assert.Equal(t, domain.PaymentStatusFailed, after.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, after.Status)
	assert.Equal(t, 5, env.stock(t, p.ID))
}

func TestWebhookFailureKeepsShippedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	admin := env.user(t, domain.RoleAdmin)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	placed := placeOrder(t, env, user)

	for _, next := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped} {
		_, err := env.svc.Orders.UpdateStatus(ctx, admin.ID, placed.Order.ID, UpdateOrderStatusRequest{Status: next})
		require.NoError(t, err)
	}

	env.deliver(t, "evt_fail_shipped", string(payment.EventPaymentIntentPaymentFailed), intentObject(placed.PaymentIntentID, 2000, nil))

	after := env.order(t, placed.Order.ID)
	assert.Equal(t, domain.PaymentStatusFailed, after.PaymentStatus)
	assert.Equal(t, domain.OrderStatusShipped, after.Status)
	assert.Equal(t, 4, env.stock(t, p.ID))
}

func TestWebhookAmountMismatchIsFlagged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	admin := env.user(t, domain.RoleAdmin)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 2)
	placed := placeOrder(t, env, user)

	env.deliver(t, "evt_short", string(payment.EventPaymentIntentSucceeded), intentObject(placed.PaymentIntentID, 1, map[string]string{
		"orderId":      placed.Order.ID.String(),
		"checkoutType": checkoutTypeExistingOrder,
	}))

	after := env.order(t, placed.Order.ID)
	assert.Equal(t, domain.PaymentStatusCompleted, after.PaymentStatus)
	assert.Contains(t, after.Notes, "Amount mismatch: charged 0.01, order total 30.00")

	notes, _, err := env.repos.Notification.ListByUserID(ctx, admin.ID, false, 10, 0)
	require.NoError(t, err)
	var titles []string
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Payment amount mismatch")
}

func TestWebhookFailureIgnoredForPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	placed := placeOrder(t, env, user)
	meta := map[string]string{"orderId": placed.Order.ID.String(), "checkoutType": checkoutTypeExistingOrder}

	env.deliver(t, "evt_1", string(payment.EventPaymentIntentSucceeded), intentObject(placed.PaymentIntentID, 2000, meta))
	env.deliver(t, "evt_2", string(payment.EventPaymentIntentPaymentFailed), intentObject(placed.PaymentIntentID, 2000, meta))

	after := env.order(t, placed.Order.ID)
	assert.Equal(t, domain.OrderStatusConfirmed, after.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, after.PaymentStatus)
	assert.Equal(t, 4, env.stock(t, p.ID))
}

func TestWebhookPaymentAfterCancellationFlagsRefund(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, domain.RoleCustomer)
	env.user(t, domain.RoleAdmin)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	placed := placeOrder(t, env, user)
	_, err := env.svc.Orders.Cancel(context.Background(), user.ID, placed.Order.ID, "")
	require.NoError(t, err)

	env.deliver(t, "evt_late", string(payment.EventPaymentIntentSucceeded), intentObject(placed.PaymentIntentID, 2000, map[string]string{
		"orderId":      placed.Order.ID.String(),
		"checkoutType": checkoutTypeExistingOrder,
	}))

	after := env.order(t, placed.Order.ID)
	assert.Equal(t, domain.OrderStatusCancelled, after.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, after.PaymentStatus)
	assert.Contains(t, after.Notes, "refund required")
}

func TestWebhookReplayIsAcknowledgedOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	placed := placeOrder(t, env, user)
	object := intentObject(placed.PaymentIntentID, 2000, map[string]string{
		"orderId":      placed.Order.ID.String(),
		"checkoutType": checkoutTypeExistingOrder,
	})

	first := env.deliver(t, "evt_same", string(payment.EventPaymentIntentSucceeded), object)
	mails := len(env.mailer.Sent())
	second := env.deliver(t, "evt_same", string(payment.EventPaymentIntentSucceeded), object)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, mails, len(env.mailer.Sent()))
}

func checkoutSessionObject(t *testing.T, env *testEnv, sessionID string, user *domain.User) map[string]interface{} {
	t.Helper()
	u, err := env.repos.User.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	items, err := env.svc.Orders.PriceCart(context.Background(), u.Cart)
	require.NoError(t, err)
	encoded, err := encodeMetadataItems(items)
	require.NoError(t, err)

	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": "paid",
		"amount_total":   3000,
		"payment_intent": "pi_for_" + sessionID,
		"metadata": map[string]string{
			"userId":       user.ID.String(),
			"checkoutType": checkoutTypeSession,
			"items":        encoded,
		},
		"customer_details": map[string]interface{}{
			"email": user.Email,
			"name":  "Ada Lovelace",
			"phone": "+44 1",
		},
		"shipping_details": map[string]interface{}{
			"name": "Ada Lovelace",
			"address": map[string]interface{}{
				"line1":       "1 Analytical Way",
				"city":        "London",
				"postal_code": "N1 9GU",
				"country":     "GB",
			},
		},
	}
}

func TestCheckoutSessionCompletedCreatesExactlyOneOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 2)
	object := checkoutSessionObject(t, env, "cs_test_1", user)

	first := env.deliver(t, "evt_cs", string(payment.EventCheckoutSessionCompleted), object)
	second := env.deliver(t, "evt_cs", string(payment.EventCheckoutSessionCompleted), object)
	third := env.deliver(t, "evt_cs_redelivered", string(payment.EventCheckoutSessionCompleted), object)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.False(t, third.Duplicate)
	assert.Equal(t, 1, env.orderCount(t))
	require.NotNil(t, first.OrderID)
	assert.Equal(t, *first.OrderID, *third.OrderID)

	order, err := env.repos.Order.GetBySessionID(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, "1 Analytical Way", order.ShippingAddress.Street)
	assert.Equal(t, "+44 1", order.ShippingAddress.Phone)
	assert.Equal(t, domain.NotAvailable, order.ShippingAddress.State)
	assert.True(t, order.TotalAmount.Equal(order.Subtotal()))
	assert.Equal(t, 3, env.stock(t, p.ID))

	u, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, u.Cart)
}

func TestCheckoutSessionUnpaidIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	object := checkoutSessionObject(t, env, "cs_unpaid", user)
	object["payment_status"] = "unpaid"

	result := env.deliver(t, "evt_unpaid", string(payment.EventCheckoutSessionCompleted), object)
	assert.True(t, result.Ignored)
	assert.Equal(t, 0, env.orderCount(t))
}

func TestCartPaymentIntentFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 2)

	result, err := env.svc.Payments.CreatePaymentIntent(ctx, user.ID, CreatePaymentIntentRequest{})
	require.NoError(t, err)
	assert.Nil(t, result.Order)
	assert.NotEmpty(t, result.ClientSecret)
	assert.Equal(t, 0, env.orderCount(t))

	intent, ok := env.gateway.LastPaymentIntent()
	require.True(t, ok)
	assert.Equal(t, checkoutTypeCart, intent.Metadata["checkoutType"])
	assert.Equal(t, int64(3000), intent.AmountMinor)

	env.deliver(t, "evt_cart", string(payment.EventPaymentIntentSucceeded), intentObject(result.PaymentIntentID, intent.AmountMinor, intent.Metadata))

	orders, total, err := env.repos.Order.ListByUserID(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	order := orders[0]
	assert.Equal(t, domain.NAShippingAddress(), order.ShippingAddress)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, 3, env.stock(t, p.ID))
}

func TestPaymentIntentForExistingOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	other := env.user(t, domain.RoleCustomer)
	p := env.product(t, "a", 10, 5)
	env.addToCart(t, user.ID, p, 1)
	placed := placeOrder(t, env, user)

	again, err := env.svc.Payments.CreatePaymentIntent(ctx, user.ID, CreatePaymentIntentRequest{OrderID: &placed.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, placed.Order.ID, again.Order.ID)
	assert.NotEmpty(t, again.ClientSecret)

	_, err = env.svc.Payments.CreatePaymentIntent(ctx, other.ID, CreatePaymentIntentRequest{OrderID: &placed.Order.ID})
	var forbidden *errors.ErrForbidden
	require.True(t, stderrors.As(err, &forbidden))
}

func TestCheckoutSessionMetadataLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, domain.RoleCustomer)
	env.addToCart(t, user.ID, env.product(t, "a", 10, 5), 1)

	session, err := env.svc.Payments.CreateCheckoutSession(ctx, user.ID, CreateCheckoutSessionRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, session.URL)
	require.Len(t, env.gateway.CheckoutSessions, 1)
	req := env.gateway.CheckoutSessions[0]
	assert.Equal(t, user.ID.String(), req.Metadata["userId"])
	assert.NotEmpty(t, req.ShippingCountries)
	// flat shipping is charged as its own line
	assert.Len(t, req.LineItems, 2)

	for i := 0; i < 10; i++ {
		env.addToCart(t, user.ID, env.product(t, fmt.Sprintf("p%d", i), 10, 5), 1)
	}
	_, err = env.svc.Payments.CreateCheckoutSession(ctx, user.ID, CreateCheckoutSessionRequest{})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	payload, _ := signedEvent(t, "evt_bad", string(payment.EventPaymentIntentSucceeded), intentObject("pi_x", 1, nil))

	_, err := env.svc.Payments.HandleWebhook(context.Background(), payload, "t=1,v1=bad")
	var sigErr *payment.SignatureError
	require.True(t, stderrors.As(err, &sigErr))
}

func TestWebhookIgnoresUnknownTypesAndOrders(t *testing.T) {
	env := newTestEnv(t)

	result := env.deliver(t, "evt_other", "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})
	assert.True(t, result.Ignored)

	result = env.deliver(t, "evt_orphan", string(payment.EventPaymentIntentSucceeded), intentObject("pi_unknown", 100, map[string]string{"checkoutType": checkoutTypeExistingOrder}))
	assert.True(t, result.Ignored)
	_, total, err := env.repos.Order.List(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
