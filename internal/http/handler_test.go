package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoply/checkout-service/internal/cart"
	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/checkout"
	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/metrics"
	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
	"github.com/shoply/checkout-service/internal/pricing"
	"github.com/shoply/checkout-service/internal/webhook"
)

type testGateway struct {
	failCreates bool
	outcomes    map[string]string
	intents     map[string]payment.Intent
}

func newTestGateway() *testGateway {
	return &testGateway{outcomes: map[string]string{}, intents: map[string]payment.Intent{}}
}

func (g *testGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currencyCode string, metadata map[string]string) (payment.Intent, error) {
	if g.failCreates {
		return payment.Intent{}, &payment.GatewayError{Op: "create intent", Err: errors.New("down")}
	}
	intent := payment.Intent{
		ID:           "pi_" + metadata["orderNumber"],
		ClientSecret: "secret_" + metadata["orderNumber"],
		Status:       payment.IntentStatusPending,
		Amount:       amount,
		Currency:     currencyCode,
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *testGateway) RetrieveIntent(ctx context.Context, intentID string) (payment.Intent, error) {
	intent, ok := g.intents[intentID]
	if !ok {
		return payment.Intent{}, &payment.GatewayError{Op: "retrieve intent", Err: errors.New("no such intent")}
	}
	if status, ok := g.outcomes[intentID]; ok {
		intent.Status = status
	}
	return intent, nil
}

type stack struct {
	router   http.Handler
	gw       *testGateway
	carts    *cart.MemoryStore
	products *catalog.MemoryRepository
	orders   *order.MemoryRepository
	verifier *webhook.Verifier
}

type stockReleaser struct{ products *catalog.MemoryRepository }

func (s stockReleaser) ReleaseStock(ctx context.Context, items []order.Item) error {
	lines := make([]catalog.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, catalog.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return s.products.Release(ctx, lines)
}

type noNotify struct{}

func (noNotify) Notify(ctx context.Context, event string, o *order.Order) {}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	conv := currency.DefaultConverter()
	carts := cart.NewMemoryStore()
	products := catalog.NewMemoryRepository()
	orders := order.NewMemoryRepository()
	gw := newTestGateway()

	payments := payment.NewOrchestrator(orders, gw, conv, "USD", time.Second, noNotify{}, log)
	orderSvc := order.NewService(orders, stockReleaser{products}, noNotify{}, log)
	verifier := webhook.NewVerifier("whsec_test")
	webhooks := webhook.NewHandler(verifier, payments, log)

	checkoutSvc := checkout.NewService(
		cart.NewSnapshotter(carts, products),
		products, orders, payments, checkout.NewMemoryAttemptStore(),
		pricing.NewCalculator(conv), conv,
		pricing.ShippingPolicy{
			FlatFee:   currency.MustMoney("5.00", "USD"),
			FreeAbove: currency.MustMoney("50.00", "USD"),
		},
		decimal.RequireFromString("0.08"),
		noNotify{}, log,
	)

	m := metrics.NewServerMetricsOn(prometheus.NewRegistry(), "test")
	h := NewHandler(checkoutSvc, orderSvc, products, payments, webhooks, conv, m, log)
	return &stack{
		router:   NewRouter(h, m),
		gw:       gw,
		carts:    carts,
		products: products,
		orders:   orders,
		verifier: verifier,
	}
}

func (s *stack) seed(t *testing.T, productID, price string, stock int) {
	t.Helper()
	require.NoError(t, s.products.Upsert(context.Background(), catalog.Product{
		ID:    productID,
		SKU:   "SKU-" + productID,
		Name:  "product " + productID,
		Price: currency.MustMoney(price, "USD"),
		Stock: stock,
	}))
}

func (s *stack) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func checkoutBody(userID string) map[string]any {
	return map[string]any{
		"userId":        userID,
		"currency":      "EUR",
		"paymentMethod": "card",
		"shippingAddress": map[string]string{
			"line1":      "1 Main St",
			"city":       "Berlin",
			"postalCode": "10115",
			"country":    "DE",
		},
	}
}

func (s *stack) checkout(t *testing.T, userID, key string) checkout.Response {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody(userID), map[string]string{"Idempotency-Key": key})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp checkout.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListCurrencies(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, http.MethodGet, "/api/currencies", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Base       string   `json:"base"`
		Currencies []string `json:"currencies"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "USD", body.Base)
	assert.Contains(t, body.Currencies, "EUR")
}

func TestGetStock(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 7)

	rec := s.do(t, http.MethodGet, "/api/products/p1/stock", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp stockResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Stock)

	rec = s.do(t, http.MethodGet, "/api/products/ghost/stock", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdjustStock(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 7)

	rec := s.do(t, http.MethodPost, "/api/products/adjust-stock",
		map[string]any{"productId": "p1", "op": "add", "quantity": 3}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp stockResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.Stock)

	rec = s.do(t, http.MethodPost, "/api/products/adjust-stock",
		map[string]any{"productId": "p1", "op": "subtract", "quantity": 99}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/products/adjust-stock",
		map[string]any{"productId": "p1", "op": "divide", "quantity": 2}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutEndToEnd(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 2, currency.MustMoney("10.00", "USD"))

	resp := s.checkout(t, "u1", "key-1")
	assert.Equal(t, order.StatusProcessing, resp.Status)
	assert.NotEmpty(t, resp.ClientSecret)

	// Replay returns 200 and the same order.
	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("u1"), map[string]string{"Idempotency-Key": "key-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var replay checkout.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&replay))
	assert.Equal(t, resp.OrderID, replay.OrderID)
}

func TestCheckoutRejectsMissingKey(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 1, currency.MustMoney("10.00", "USD"))

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("u1"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Field string `json:"field"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Idempotency-Key", resp.Field)
}

func TestCheckoutInsufficientStockConflict(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 1)
	s.carts.AddLine("u1", "p1", 3, currency.MustMoney("10.00", "USD"))

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("u1"), map[string]string{"Idempotency-Key": "key-1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Available int `json:"available"`
		Requested int `json:"requested"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Available)
	assert.Equal(t, 3, resp.Requested)
}

func TestCheckoutGatewayDown(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 1, currency.MustMoney("10.00", "USD"))
	s.gw.failCreates = true

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("u1"), map[string]string{"Idempotency-Key": "key-1"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 2, currency.MustMoney("10.00", "USD"))
	resp := s.checkout(t, "u1", "key-1")

	// Pay via synchronous confirm.
	intentID := "pi_" + resp.OrderNumber
	s.gw.outcomes[intentID] = payment.IntentStatusSucceeded
	rec := s.do(t, http.MethodPost, "/api/payments/"+intentID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/"+resp.OrderID+"/ship",
		map[string]string{"trackingNumber": "TRK-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var shipped order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&shipped))
	assert.Equal(t, order.StatusShipped, shipped.Status)
	assert.Equal(t, "TRK-1", shipped.TrackingNumber)

	rec = s.do(t, http.MethodPost, "/api/orders/"+resp.OrderID+"/deliver", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Terminal: cancellation now conflicts.
	rec = s.do(t, http.MethodPost, "/api/orders/"+resp.OrderID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelRestocks(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 2, currency.MustMoney("10.00", "USD"))
	resp := s.checkout(t, "u1", "key-1")

	rec := s.do(t, http.MethodPost, "/api/orders/"+resp.OrderID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cancelled))
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	p, err := s.products.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestListUserOrders(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 1, currency.MustMoney("10.00", "USD"))
	s.checkout(t, "u1", "key-1")

	rec := s.do(t, http.MethodGet, "/api/users/u1/orders", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []order.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&orders))
	assert.Len(t, orders, 1)

	rec = s.do(t, http.MethodGet, "/api/users/nobody/orders", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestPaymentWebhook(t *testing.T) {
	s := newStack(t)
	s.seed(t, "p1", "10.00", 5)
	s.carts.AddLine("u1", "p1", 2, currency.MustMoney("10.00", "USD"))
	resp := s.checkout(t, "u1", "key-1")
	intentID := "pi_" + resp.OrderNumber

	body, err := json.Marshal(webhook.Event{ID: "evt_1", Type: webhook.EventIntentSucceeded, IntentID: intentID})
	require.NoError(t, err)

	// Wrong signature is rejected and the order does not move.
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Correctly signed event marks the order paid.
	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", s.verifier.Sign(body))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	ord, err := s.orders.GetByIntentID(context.Background(), intentID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, ord.Status)

	// Redelivery is acknowledged without a second transition.
	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", s.verifier.Sign(body))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentWebhookIgnoresUnknownTypes(t *testing.T) {
	s := newStack(t)
	body, err := json.Marshal(webhook.Event{ID: "evt_1", Type: "charge.updated", IntentID: "pi_x"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", s.verifier.Sign(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Handled bool `json:"handled"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Handled)
}
