package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/handlers"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/memory"
	"github.com/jafarshop/storefront/internal/service"
)

const webhookSecret = "whsec_router_test"

type testServer struct {
	router *gin.Engine
	repos  *repository.Repositories
	svc    *service.Services
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []handlers.FieldError `json:"errors"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, configure func(*config.Config)) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		Environment: "test",
		ClientURL:   "http://shop.test",
		CORSOrigin:  "http://shop.test",
		JWT:         config.JWTConfig{Secret: "router-secret", Expiry: time.Hour},
		Stripe:      config.StripeConfig{WebhookSecret: webhookSecret, Currency: "usd"},
		RateLimit:   config.RateLimitConfig{Window: time.Minute, Max: 1000},
		Upload:      config.UploadConfig{MaxFileSize: 1 << 20},
		Checkout: config.CheckoutConfig{
			FlatShippingRate:      decimal.NewFromInt(10),
			FreeShippingThreshold: decimal.NewFromInt(100),
			PendingOrderTTL:       time.Hour,
			SweepInterval:         time.Minute,
		},
	}
	if configure != nil {
		configure(cfg)
	}
	repos := memory.NewRepositories(logger)
	images, err := media.New(cfg.Cloudinary, cfg.Upload.MaxFileSize, logger)
	require.NoError(t, err)

	svc := service.New(service.Deps{
		Config:  cfg,
		Repos:   repos,
		Gateway: payment.NewOfflineGateway(cfg.Stripe.WebhookSecret, cfg.Stripe.Currency, logger),
		Mailer:  mail.NewMockMailer(logger),
		Images:  images,
		Effects: service.NewEffects(false, logger),
		Logger:  logger,
	})
	return &testServer{router: NewRouter(cfg, svc, logger), repos: repos, svc: svc}
}

// userWithToken stores a user directly and signs a token for it
func (s *testServer) userWithToken(t *testing.T, role domain.Role) (*domain.User, string) {
	t.Helper()
	u := &domain.User{
		Name:         "Router " + string(role),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, s.repos.User.Create(context.Background(), u))
	token, err := s.svc.Tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) product(t *testing.T, price int64, qty int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: "Widget", Description: "A widget", Price: decimal.NewFromInt(price), Quantity: qty, IsActive: true}
	require.NoError(t, s.repos.Product.Create(context.Background(), p))
	return p
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func shippingAddress() map[string]string {
	return map[string]string{
		"name":       "Ada Lovelace",
		"street":     "1 Analytical Way",
		"city":       "London",
		"state":      "LDN",
		"postalCode": "N1 9GU",
		"country":    "GB",
		"phone":      "+44 20 0000 0000",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w, env := s.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w, env = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])

	w, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)

	w, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &login)
	require.NotEmpty(t, login.Token)

	w, _ = s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		User domain.User `json:"user"`
	}
	decodeData(t, env, &me)
	assert.Equal(t, "ada@example.com", me.User.Email)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	_, customer := s.userWithToken(t, domain.RoleCustomer)
	_, admin := s.userWithToken(t, domain.RoleAdmin)

	w, _ := s.do(t, http.MethodGet, "/api/admin/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodGet, "/api/admin/orders", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = s.do(t, http.MethodGet, "/api/admin/orders?status=lost", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/products", customer, map[string]interface{}{"name": "x", "description": "y", "price": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckoutFlowWithIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	_, token := s.userWithToken(t, domain.RoleCustomer)
	p := s.product(t, 25, 4)

	w, _ := s.do(t, http.MethodPost, "/api/user/cart", token, map[string]interface{}{"productId": p.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := map[string]interface{}{"shippingAddress": shippingAddress()}
	w, env := s.do(t, http.MethodPost, "/api/orders", token, body, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.CheckoutResult
	decodeData(t, env, &created)
	require.NotNil(t, created.Order)
	assert.NotEmpty(t, created.ClientSecret)
	assert.True(t, created.Order.FinalAmount.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, domain.OrderStatusPending, created.Order.Status)

	w, env = s.do(t, http.MethodPost, "/api/orders", token, body, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var replayed service.CheckoutResult
	decodeData(t, env, &replayed)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, created.Order.ID, replayed.Order.ID)
	assert.Equal(t, created.ClientSecret, replayed.ClientSecret)

	other := map[string]interface{}{"shippingAddress": shippingAddress(), "notes": "leave at door"}
	w, _ = s.do(t, http.MethodPost, "/api/orders", token, other, "Idempotency-Key", "checkout-1")
	assert.Equal(t, http.StatusConflict, w.Code)

	stored, err := s.repos.Product.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Quantity)

	w, env = s.do(t, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Orders     []domain.Order      `json:"orders"`
		Pagination handlers.Pagination `json:"pagination"`
	}
	decodeData(t, env, &list)
	assert.Len(t, list.Orders, 1)
	assert.Equal(t, 1, list.Pagination.Total)

	w, _ = s.do(t, http.MethodPut, "/api/orders/"+created.Order.ID.String()+"/cancel", token, map[string]string{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stored, err = s.repos.Product.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Quantity)
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.userWithToken(t, domain.RoleCustomer)

	w, env := s.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{
		"shippingAddress": map[string]string{"name": "Ada"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["shippingAddress.street"], env.Errors)
	assert.True(t, fields["shippingAddress.city"], env.Errors)

	noState := shippingAddress()
	delete(noState, "state")
	w, env = s.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{"shippingAddress": noState})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "shippingAddress.state", env.Errors[0].Field)

	w, _ = s.do(t, http.MethodPost, "/api/orders", token, []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{"shippingAddress": shippingAddress()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "empty")
}

func TestAdminOrderStatusTransitions(t *testing.T) {
	s := newTestServer(t)
	_, customer := s.userWithToken(t, domain.RoleCustomer)
	_, admin := s.userWithToken(t, domain.RoleAdmin)
	p := s.product(t, 150, 3)

	s.do(t, http.MethodPost, "/api/user/cart", customer, map[string]interface{}{"productId": p.ID})
	w, env := s.do(t, http.MethodPost, "/api/orders", customer, map[string]interface{}{"shippingAddress": shippingAddress()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.CheckoutResult
	decodeData(t, env, &created)
	path := "/api/admin/orders/" + created.Order.ID.String() + "/status"

	w, _ = s.do(t, http.MethodPut, path, admin, map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPut, path, admin, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, _ = s.do(t, http.MethodPut, path, admin, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodGet, "/api/orders/"+created.Order.ID.String(), customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	_, stranger := s.userWithToken(t, domain.RoleCustomer)
	w, _ = s.do(t, http.MethodGet, "/api/orders/"+created.Order.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/orders/not-a-uuid", customer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func signedWebhook(t *testing.T, id, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: webhookSecret, Timestamp: time.Now()})
	return sp.Payload, sp.Header
}

func TestStripeWebhookRoutes(t *testing.T) {
	s := newTestServer(t)
	user, token := s.userWithToken(t, domain.RoleCustomer)
	p := s.product(t, 40, 2)

	s.do(t, http.MethodPost, "/api/user/cart", token, map[string]interface{}{"productId": p.ID})
	w, env := s.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{"shippingAddress": shippingAddress()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.CheckoutResult
	decodeData(t, env, &created)

	payload, _ := signedWebhook(t, "evt_forged", "payment_intent.succeeded", map[string]interface{}{"id": created.PaymentIntentID})
	w, env = s.do(t, http.MethodPost, "/api/webhook/stripe", "", payload, "Stripe-Signature", "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "Webhook Error")

	object := map[string]interface{}{
		"id":       created.PaymentIntentID,
		"object":   "payment_intent",
		"amount":   5000,
		"metadata": map[string]string{"orderId": created.Order.ID.String(), "userId": user.ID.String()},
	}
	payload, header := signedWebhook(t, "evt_paid", "payment_intent.succeeded", object)
	w, _ = s.do(t, http.MethodPost, "/api/webhook/stripe", "", payload, "Stripe-Signature", header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ack service.WebhookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Received)
	assert.False(t, ack.Duplicate)

	// the duplicated route shares the handler and the processed-event ledger
	w, _ = s.do(t, http.MethodPost, "/api/payments/webhook", "", payload, "Stripe-Signature", header)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Duplicate)

	order, err := s.repos.Order.GetByID(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
}

func TestStripeWebhookWithoutSecret(t *testing.T) {
	s := newTestServerWith(t, func(cfg *config.Config) { cfg.Stripe.WebhookSecret = "" })
	user, token := s.userWithToken(t, domain.RoleCustomer)
	p := s.product(t, 40, 2)

	s.do(t, http.MethodPost, "/api/user/cart", token, map[string]interface{}{"productId": p.ID})
	w, env := s.do(t, http.MethodPost, "/api/orders", token, map[string]interface{}{"shippingAddress": shippingAddress()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.CheckoutResult
	decodeData(t, env, &created)

	// signed with the empty key anyone can compute
	payload, err := json.Marshal(map[string]interface{}{
		"id":     "evt_empty_key",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]interface{}{"object": map[string]interface{}{
			"id":       created.PaymentIntentID,
			"object":   "payment_intent",
			"amount":   1,
			"metadata": map[string]string{"orderId": created.Order.ID.String(), "userId": user.ID.String()},
		}},
	})
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "", Timestamp: time.Now()})

	for _, path := range []string{"/api/webhook/stripe", "/api/payments/webhook"} {
		w, env = s.do(t, http.MethodPost, path, "", sp.Payload, "Stripe-Signature", sp.Header)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, "webhook not configured", env.Message)
	}

	order, err := s.repos.Order.GetByID(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
}

func TestPanicRecoveryHidesDetails(t *testing.T) {
	s := newTestServer(t)
	s.router.GET("/boom", func(c *gin.Context) { panic("database password is hunter2") })

	w, env := s.do(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestUploadWithoutImageHost(t *testing.T) {
	s := newTestServer(t)
	_, admin := s.userWithToken(t, domain.RoleAdmin)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "pic.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestContactMessageAndCatalog(t *testing.T) {
	s := newTestServer(t)
	_, admin := s.userWithToken(t, domain.RoleAdmin)
	s.product(t, 12, 5)

	w, _ := s.do(t, http.MethodPost, "/api/messages", "", map[string]string{
		"name": "Grace", "email": "grace@example.com", "subject": "Hello", "message": "Do you ship to Amman?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodGet, "/api/messages?status=new", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Messages []domain.Message `json:"messages"`
	}
	decodeData(t, env, &inbox)
	assert.Len(t, inbox.Messages, 1)

	w, env = s.do(t, http.MethodPost, "/api/categories", admin, map[string]string{"name": "Home & Kitchen"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodGet, "/api/categories/home-kitchen", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/products?search=widget&limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Products   []domain.Product    `json:"products"`
		Pagination handlers.Pagination `json:"pagination"`
	}
	decodeData(t, env, &page)
	assert.Len(t, page.Products, 1)
	assert.Equal(t, 5, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Pages)
}
