package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shoply/checkout-service/internal/cart"
	"github.com/shoply/checkout-service/internal/catalog"
	"github.com/shoply/checkout-service/internal/currency"
	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/payment"
	"github.com/shoply/checkout-service/internal/pricing"
)

// Service runs the checkout pipeline: validate, claim the idempotency key,
// snapshot the cart, price it, reserve stock, open the payment authorization
// and only then persist the order. A failure before the insert unwinds the
// side effects of the steps before it and releases the key, leaving nothing
// behind. After the insert the key stays claimed so a same-key retry returns
// the stored order instead of creating a second one.
type Service struct {
	carts    *cart.Snapshotter
	stock    catalog.Repository
	orders   order.Repository
	payments *payment.Orchestrator
	attempts AttemptStore
	pricer   *pricing.Calculator
	conv     *currency.Converter
	policy   pricing.ShippingPolicy
	taxRate  decimal.Decimal
	notify   order.Notifier
	log      *slog.Logger
}

func NewService(
	carts *cart.Snapshotter,
	stock catalog.Repository,
	orders order.Repository,
	payments *payment.Orchestrator,
	attempts AttemptStore,
	pricer *pricing.Calculator,
	conv *currency.Converter,
	policy pricing.ShippingPolicy,
	taxRate decimal.Decimal,
	notify order.Notifier,
	log *slog.Logger,
) *Service {
	return &Service{
		carts:    carts,
		stock:    stock,
		orders:   orders,
		payments: payments,
		attempts: attempts,
		pricer:   pricer,
		conv:     conv,
		policy:   policy,
		taxRate:  taxRate,
		notify:   notify,
		log:      log,
	}
}

// Checkout converts the user's cart into a paid-for order. Replays under an
// already claimed idempotency key return the original order without running
// the pipeline again.
func (s *Service) Checkout(ctx context.Context, idempotencyKey string, req Request) (*Response, error) {
	if err := s.validate(idempotencyKey, &req); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	existingID, claimed, err := s.attempts.Claim(ctx, idempotencyKey, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.replay(ctx, existingID)
	}

	resp, persisted, err := s.run(ctx, orderID, req)
	if err != nil {
		// Once the order row exists the key stays claimed: a same-key
		// retry must land in replay and recover, never rerun the
		// pipeline for a second order.
		if !persisted {
			if relErr := s.attempts.Release(ctx, idempotencyKey); relErr != nil {
				s.log.Error("failed to release idempotency key",
					"key", idempotencyKey, "error", relErr)
			}
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) validate(idempotencyKey string, req *Request) error {
	if idempotencyKey == "" {
		return &ValidationError{Field: "Idempotency-Key", Message: "header is required"}
	}
	if req.UserID == "" {
		return &ValidationError{Field: "userId", Message: "is required"}
	}
	if req.Currency == "" {
		req.Currency = s.conv.Base()
	}
	if !s.conv.IsSupported(req.Currency) {
		return &ValidationError{Field: "currency", Message: fmt.Sprintf("%q is not supported", req.Currency)}
	}
	if req.Discount.IsNegative() {
		return &ValidationError{Field: "discount", Message: "must not be negative"}
	}
	if req.ShippingAddress.Line1 == "" {
		return &ValidationError{Field: "shippingAddress.line1", Message: "is required"}
	}
	if req.ShippingAddress.Country == "" {
		return &ValidationError{Field: "shippingAddress.country", Message: "is required"}
	}
	if req.PaymentMethod == "" {
		return &ValidationError{Field: "paymentMethod", Message: "is required"}
	}
	if req.BillingAddress.Line1 == "" {
		req.BillingAddress = req.ShippingAddress
	} else if req.BillingAddress.Country == "" {
		return &ValidationError{Field: "billingAddress.country", Message: "is required"}
	}
	return nil
}

// run executes the pipeline under a freshly claimed key. The persisted
// return reports whether the order row was inserted; the caller releases the
// key only when run fails before the insert.
func (s *Service) run(ctx context.Context, orderID string, req Request) (*Response, bool, error) {
	snap, err := s.carts.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, false, err
	}

	totals, err := s.pricer.ComputeTotals(snap.Lines, req.Currency, s.policy, s.taxRate, req.Discount)
	if err != nil {
		return nil, false, err
	}

	reserve := reserveLines(snap)
	if err := s.stock.Reserve(ctx, reserve); err != nil {
		return nil, false, err
	}

	ord := &order.Order{
		ID:            orderID,
		OrderNumber:   order.NewOrderNumber(time.Now()),
		UserID:        req.UserID,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Currency:      req.Currency,
		Subtotal:      totals.Subtotal.Amount,
		Tax:           totals.Tax.Amount,
		ShippingCost:  totals.Shipping.Amount,
		Discount:      totals.Discount.Amount,
		Total:         totals.Total.Amount,
		Items:         orderItems(snap),
	}

	// The authorization is opened before the order is persisted: a gateway
	// failure here leaves no order row at all, only the unwound reservation.
	intent, err := s.payments.OpenIntent(ctx, ord)
	if err != nil {
		s.unwindStock(ctx, reserve)
		return nil, false, err
	}

	if err := s.orders.Create(ctx, ord); err != nil {
		s.unwindStock(ctx, reserve)
		return nil, false, fmt.Errorf("persist order: %w", err)
	}

	updated, err := s.payments.AttachIntent(ctx, ord.ID, intent.ID)
	if err != nil {
		// The order row exists, so the key stays claimed: a same-key
		// retry lands in replay, which re-runs the attach.
		return nil, true, fmt.Errorf("attach payment intent: %w", err)
	}

	s.notify.Notify(ctx, "order.created", updated)
	s.log.Info("checkout completed",
		"orderId", updated.ID, "orderNumber", updated.OrderNumber,
		"userId", req.UserID, "total", totals.Total.String())

	return &Response{
		OrderID:      updated.ID,
		OrderNumber:  updated.OrderNumber,
		Status:       updated.Status,
		Totals:       totals,
		ClientSecret: intent.ClientSecret,
	}, true, nil
}

// replay serves a request whose idempotency key was claimed by an earlier
// attempt. The stored order is returned as-is; the client secret comes from
// the orchestrator, which re-fetches an attached intent and opens one for an
// order whose original attach failed. The gateway dedupes intent creation on
// the order number, so recovery never double-authorizes.
func (s *Service) replay(ctx context.Context, orderID string) (*Response, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, order.ErrNotFound) {
		return nil, ErrAttemptInProgress
	}
	if err != nil {
		return nil, err
	}

	var clientSecret string
	if ord.PaymentIntentID != "" || ord.Status == order.StatusPending {
		intent, updated, err := s.payments.CreateIntent(ctx, ord)
		if err != nil {
			s.log.Warn("could not recover intent for replayed checkout",
				"orderId", ord.ID, "error", err)
		} else {
			clientSecret = intent.ClientSecret
			ord = updated
		}
	}

	return &Response{
		OrderID:      ord.ID,
		OrderNumber:  ord.OrderNumber,
		Status:       ord.Status,
		Totals:       totalsFromOrder(ord),
		ClientSecret: clientSecret,
		Replayed:     true,
	}, nil
}

func (s *Service) unwindStock(ctx context.Context, lines []catalog.Line) {
	if err := s.stock.Release(ctx, lines); err != nil {
		s.log.Error("failed to release reserved stock", "error", err)
	}
}

func reserveLines(snap cart.Snapshot) []catalog.Line {
	lines := make([]catalog.Line, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, catalog.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return lines
}

func orderItems(snap cart.Snapshot) []order.Item {
	items := make([]order.Item, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, order.Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.Amount,
			Currency:  l.UnitPrice.Currency,
		})
	}
	return items
}

func totalsFromOrder(o *order.Order) pricing.Totals {
	return pricing.Totals{
		Subtotal: currency.NewMoney(o.Subtotal, o.Currency),
		Shipping: currency.NewMoney(o.ShippingCost, o.Currency),
		Tax:      currency.NewMoney(o.Tax, o.Currency),
		Discount: currency.NewMoney(o.Discount, o.Currency),
		Total:    currency.NewMoney(o.Total, o.Currency),
	}
}
