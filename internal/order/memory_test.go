package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestOrder() *Order {
	return &Order{
		OrderNumber:   NewOrderNumber(time.Now()),
		UserID:        "u1",
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Currency:      "EUR",
		Subtotal:      decimal.RequireFromString("17.00"),
		Tax:           decimal.RequireFromString("1.36"),
		ShippingCost:  decimal.RequireFromString("8.50"),
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("26.86"),
		Items: []Item{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Currency: "USD"},
		},
	}
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newTestOrder()
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	upd, err := repo.MarkProcessing(ctx, o.ID, "pi_123")
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if upd.Status != StatusProcessing || upd.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected order after intent: %+v", upd)
	}

	upd, err = repo.MarkPaid(ctx, o.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if upd.Status != StatusPaid || upd.PaymentStatus != PaymentPaid {
		t.Fatalf("unexpected order after payment: %+v", upd)
	}

	upd, err = repo.MarkShipped(ctx, o.ID, "TRACK-1")
	if err != nil {
		t.Fatalf("mark shipped: %v", err)
	}
	if upd.TrackingNumber != "TRACK-1" {
		t.Fatalf("tracking number not stored: %+v", upd)
	}

	upd, err = repo.MarkDelivered(ctx, o.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if !upd.Status.Terminal() {
		t.Fatalf("delivered should be terminal")
	}
}

func TestMemoryIntentSetOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newTestOrder()
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.MarkProcessing(ctx, o.ID, "pi_1"); err != nil {
		t.Fatalf("first intent: %v", err)
	}

	var invalid *InvalidTransitionError
	if _, err := repo.MarkProcessing(ctx, o.ID, "pi_2"); !errors.As(err, &invalid) {
		t.Fatalf("second intent should be rejected, got %v", err)
	}

	got, _ := repo.GetByIntentID(ctx, "pi_1")
	if got == nil || got.ID != o.ID {
		t.Fatalf("lookup by intent failed: %+v", got)
	}
	if _, err := repo.GetByIntentID(ctx, "pi_2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pi_2 must not map to an order, got %v", err)
	}
}

func TestMemoryCancelRefundsPaidOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newTestOrder()
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.MarkProcessing(ctx, o.ID, "pi_1"); err != nil {
		t.Fatalf("intent: %v", err)
	}
	if _, err := repo.MarkPaid(ctx, o.ID); err != nil {
		t.Fatalf("paid: %v", err)
	}

	upd, err := repo.MarkCancelled(ctx, o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if upd.Status != StatusCancelled || upd.PaymentStatus != PaymentRefunded {
		t.Fatalf("cancelled paid order must be refunded: %+v", upd)
	}
}

func TestMemoryCancelUnpaidKeepsPaymentStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newTestOrder()
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	upd, err := repo.MarkCancelled(ctx, o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if upd.PaymentStatus != PaymentPending {
		t.Fatalf("unpaid cancel must not refund: %+v", upd)
	}
}

func TestMemoryTerminalRejectsEverything(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := newTestOrder()
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.MarkCancelled(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var invalid *InvalidTransitionError
	if _, err := repo.MarkPaid(ctx, o.ID); !errors.As(err, &invalid) {
		t.Fatalf("paid after cancel should fail, got %v", err)
	}
	if _, err := repo.MarkCancelled(ctx, o.ID); !errors.As(err, &invalid) {
		t.Fatalf("double cancel should fail, got %v", err)
	}

	got, _ := repo.GetByID(ctx, o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("state changed by rejected transition: %+v", got)
	}
}
