package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shoply/checkout-service/internal/metrics"
)

func NewRouter(h *Handler, m *metrics.ServerMetrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	if m != nil {
		r.Use(m.Middleware)
	}

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/api/currencies", h.ListCurrencies)

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/{productId}/stock", h.GetStock)
		r.Post("/adjust-stock", h.AdjustStock)
	})

	r.Post("/api/checkout", h.Checkout)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/{orderId}", h.GetOrder)
		r.Post("/{orderId}/cancel", h.CancelOrder)
		r.Post("/{orderId}/ship", h.ShipOrder)
		r.Post("/{orderId}/deliver", h.DeliverOrder)
	})
	r.Get("/api/users/{userId}/orders", h.ListUserOrders)

	r.Post("/api/payments/{intentId}/confirm", h.ConfirmPayment)
	r.Post("/api/webhooks/payment", h.PaymentWebhook)

	return r
}
