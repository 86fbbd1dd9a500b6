package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/order"
)

// Orchestrator opens and tracks payment authorizations with the external
// gateway and applies their terminal outcomes to orders. The webhook
// reconciliation path and the synchronous confirm path both funnel into
// ApplyOutcome, so replays behave identically everywhere.
type Orchestrator struct {
	orders     order.Repository
	gateway    Gateway
	conv       *currency.Converter
	settlement string
	timeout    time.Duration
	notify     order.Notifier
	log        *slog.Logger
}

func NewOrchestrator(orders order.Repository, gateway Gateway, conv *currency.Converter,
	settlementCurrency string, timeout time.Duration, notify order.Notifier, log *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{
		orders:     orders,
		gateway:    gateway,
		conv:       conv,
		settlement: settlementCurrency,
		timeout:    timeout,
		notify:     notify,
		log:        log,
	}
}

// OpenIntent asks the gateway for a new authorization covering the order
// total in the gateway's settlement currency. The order need not be
// persisted yet; nothing is written here. Gateway calls are bounded by a
// timeout and retried at most once, under the same idempotency key, so the
// provider never opens a duplicate authorization.
func (o *Orchestrator) OpenIntent(ctx context.Context, ord *order.Order) (Intent, error) {
	settled, err := o.conv.Convert(currency.NewMoney(ord.Total, ord.Currency), o.settlement)
	if err != nil {
		return Intent{}, fmt.Errorf("settlement conversion: %w", err)
	}

	metadata := map[string]string{
		"orderNumber": ord.OrderNumber,
		"userId":      ord.UserID,
	}

	intent, err := o.createOnce(ctx, settled, metadata)
	if err == nil {
		return intent, nil
	}
	if ctx.Err() != nil {
		return Intent{}, &GatewayError{Op: "create intent", Err: ctx.Err()}
	}

	o.log.Warn("intent creation failed, retrying once",
		"orderNumber", ord.OrderNumber, "error", err)
	return o.createOnce(ctx, settled, metadata)
}

func (o *Orchestrator) createOnce(ctx context.Context, amount currency.Money, metadata map[string]string) (Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.gateway.CreateIntent(callCtx, amount.Amount, amount.Currency, metadata)
}

// AttachIntent stores the intent id on a persisted order and applies the
// pending -> processing transition in the same conditional update.
func (o *Orchestrator) AttachIntent(ctx context.Context, orderID, intentID string) (*order.Order, error) {
	return o.orders.MarkProcessing(ctx, orderID, intentID)
}

// CreateIntent is the idempotent authorization entry point for a persisted
// order: an already attached intent is re-fetched, never re-created.
func (o *Orchestrator) CreateIntent(ctx context.Context, ord *order.Order) (Intent, *order.Order, error) {
	if ord.PaymentIntentID != "" {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		intent, err := o.gateway.RetrieveIntent(callCtx, ord.PaymentIntentID)
		if err != nil {
			return Intent{}, nil, err
		}
		return intent, ord, nil
	}

	intent, err := o.OpenIntent(ctx, ord)
	if err != nil {
		return Intent{}, nil, err
	}

	updated, err := o.AttachIntent(ctx, ord.ID, intent.ID)
	if err != nil {
		return Intent{}, nil, err
	}
	o.notify.Notify(ctx, "order.processing", updated)
	return intent, updated, nil
}

// ConfirmPayment is the synchronous path: re-query the gateway and apply
// whatever terminal state it reports. A still-pending intent changes nothing.
func (o *Orchestrator) ConfirmPayment(ctx context.Context, intentID string) (*order.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	intent, err := o.gateway.RetrieveIntent(callCtx, intentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case IntentStatusSucceeded:
		ord, _, err := o.ApplyOutcome(ctx, intentID, true)
		return ord, err
	case IntentStatusFailed:
		ord, _, err := o.ApplyOutcome(ctx, intentID, false)
		return ord, err
	default:
		return o.orders.GetByIntentID(ctx, intentID)
	}
}

// ApplyOutcome applies a terminal payment outcome to the order owning the
// intent, exactly once. Replays of an already applied outcome are no-ops;
// the boolean reports whether a transition actually happened.
func (o *Orchestrator) ApplyOutcome(ctx context.Context, intentID string, succeeded bool) (*order.Order, bool, error) {
	ord, err := o.orders.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, false, err
	}

	implied := order.StatusFailed
	if succeeded {
		implied = order.StatusPaid
	}
	if ord.Status == implied {
		return ord, false, nil
	}

	if succeeded {
		ord, err = o.orders.MarkPaid(ctx, ord.ID)
	} else {
		ord, err = o.orders.MarkPaymentFailed(ctx, ord.ID)
	}
	if err != nil {
		// A concurrent delivery may have won the conditional update between
		// our read and write; that replay is still a no-op.
		var invalid *order.InvalidTransitionError
		if errors.As(err, &invalid) && invalid.From == implied {
			current, getErr := o.orders.GetByID(ctx, invalid.OrderID)
			if getErr != nil {
				return nil, false, getErr
			}
			return current, false, nil
		}
		return nil, false, err
	}

	if succeeded {
		o.notify.Notify(ctx, "order.paid", ord)
	} else {
		o.notify.Notify(ctx, "order.payment_failed", ord)
	}
	return ord, true, nil
}
