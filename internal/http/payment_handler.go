package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoply/checkout-service/internal/webhook"
)

// maxWebhookBody bounds webhook payloads; gateway events are small.
const maxWebhookBody = 1 << 20

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.payments.ConfirmPayment(r.Context(), chi.URLParam(r, "intentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// PaymentWebhook verifies the signature over the exact raw body before any
// parsing happens.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if _, err := h.webhooks.HandleRaw(r.Context(), body, sig); err != nil {
		// Unconsumed event types are acknowledged so the gateway stops
		// redelivering them.
		if errors.Is(err, webhook.ErrUnknownEventType) {
			writeJSON(w, http.StatusOK, map[string]any{"received": true, "handled": false})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "handled": true})
}
