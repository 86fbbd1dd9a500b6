package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/checkout"
	"github.com/shoply/checkout-service/internal/payment"
)

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	resp, err := h.checkout.Checkout(r.Context(), key, req)
	if err != nil {
		h.countCheckout(err)
		writeError(w, err)
		return
	}

	if resp.Replayed {
		h.metrics.Checkouts.WithLabelValues("replayed").Inc()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	h.metrics.Checkouts.WithLabelValues("created").Inc()
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) countCheckout(err error) {
	var stockErr *catalog.InsufficientStockError
	var vErr *checkout.ValidationError
	var gwErr *payment.GatewayError
	switch {
	case errors.As(err, &stockErr):
		h.metrics.Checkouts.WithLabelValues("insufficient_stock").Inc()
		h.metrics.StockDenied.Inc()
	case errors.As(err, &vErr):
		h.metrics.Checkouts.WithLabelValues("invalid").Inc()
	case errors.As(err, &gwErr):
		h.metrics.Checkouts.WithLabelValues("gateway_error").Inc()
	default:
		h.metrics.Checkouts.WithLabelValues("error").Inc()
	}
}
