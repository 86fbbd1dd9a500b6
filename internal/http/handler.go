package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/checkout"
	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/metrics"
	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
	"github.com/shoply/checkout-service/internal/webhook"
)

type Handler struct {
	checkout *checkout.Service
	orders   *order.Service
	products catalog.Repository
	payments *payment.Orchestrator
	webhooks *webhook.Handler
	conv     *currency.Converter
	metrics  *metrics.ServerMetrics
	log      *slog.Logger
}

func NewHandler(
	checkoutSvc *checkout.Service,
	orders *order.Service,
	products catalog.Repository,
	payments *payment.Orchestrator,
	webhooks *webhook.Handler,
	conv *currency.Converter,
	m *metrics.ServerMetrics,
	log *slog.Logger,
) *Handler {
	return &Handler{
		checkout: checkoutSvc,
		orders:   orders,
		products: products,
		payments: payments,
		webhooks: webhooks,
		conv:     conv,
		metrics:  m,
		log:      log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"base":       h.conv.Base(),
		"currencies": h.conv.Supported(),
	})
}
