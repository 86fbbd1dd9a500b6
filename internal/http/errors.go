package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shoply/checkout-service/internal/cart"
	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/checkout"
	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
	"github.com/shoply/checkout-service/internal/webhook"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP status codes. Client
// mistakes are 400, business conflicts 409, missing aggregates 404 and
// gateway trouble 502; anything unrecognized stays a 500 with no detail
// leaked.
func writeError(w http.ResponseWriter, err error) {
	var vErr *checkout.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message, Field: vErr.Field})
		return
	}

	var stockErr *catalog.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient stock",
			"productId": stockErr.ProductID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
		return
	}

	var transErr *order.InvalidTransitionError
	if errors.As(err, &transErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": transErr.Error(),
			"from":  transErr.From,
			"event": transErr.Event,
		})
		return
	}

	switch {
	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidAdjustment),
		errors.Is(err, currency.ErrUnsupportedCurrency),
		errors.Is(err, webhook.ErrBadSignature):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, checkout.ErrAttemptInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "payment gateway unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
