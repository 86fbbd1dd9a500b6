package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.failed"
)

// Event is the envelope the payment gateway posts to our webhook endpoint.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"paymentIntentId"`
}

// ErrUnknownEventType marks event types we do not consume. The HTTP layer
// acknowledges these so the gateway stops redelivering them.
var ErrUnknownEventType = errors.New("unhandled webhook event type")

// Handler verifies and applies gateway webhook events. It is the
// reconciliation path for payments whose synchronous confirmation never
// reached us; outcomes flow through the same idempotent application as the
// confirm endpoint, so redeliveries are harmless.
type Handler struct {
	verifier     *Verifier
	orchestrator *payment.Orchestrator
	log          *slog.Logger
}

func NewHandler(verifier *Verifier, orchestrator *payment.Orchestrator, log *slog.Logger) *Handler {
	return &Handler{verifier: verifier, orchestrator: orchestrator, log: log}
}

// HandleRaw verifies the signature over the exact body bytes, decodes the
// event and applies it. Verification failures must surface before any
// decoding so unsigned payloads never reach business logic.
func (h *Handler) HandleRaw(ctx context.Context, body []byte, signature string) (*order.Order, error) {
	if err := h.verifier.Verify(body, signature); err != nil {
		return nil, err
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	return h.HandleEvent(ctx, ev)
}

// HandleEvent applies a verified event to the owning order.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) (*order.Order, error) {
	var succeeded bool
	switch ev.Type {
	case EventIntentSucceeded:
		succeeded = true
	case EventIntentFailed:
		succeeded = false
	default:
		h.log.Info("ignoring webhook event", "eventId", ev.ID, "type", ev.Type)
		return nil, ErrUnknownEventType
	}

	if ev.IntentID == "" {
		return nil, fmt.Errorf("webhook event %s carries no intent id", ev.ID)
	}

	ord, applied, err := h.orchestrator.ApplyOutcome(ctx, ev.IntentID, succeeded)
	if err != nil {
		return nil, err
	}
	if !applied {
		h.log.Info("webhook redelivery, outcome already applied",
			"eventId", ev.ID, "orderId", ord.ID, "status", ord.Status)
	} else {
		h.log.Info("webhook outcome applied",
			"eventId", ev.ID, "orderId", ord.ID, "status", ord.Status)
	}
	return ord, nil
}
