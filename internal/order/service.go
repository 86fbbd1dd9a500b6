package order

import (
	"context"
	"fmt"
	"log/slog"
)

// StockReleaser returns reserved quantities to the catalog store when an
// order is cancelled.
type StockReleaser interface {
	ReleaseStock(ctx context.Context, items []Item) error
}

// Notifier is the fire-and-forget notification contract. Implementations
// must never fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, event string, o *Order)
}

// Service drives externally triggered order lifecycle operations:
// fulfillment transitions and cancellation with its compensations.
type Service struct {
	repo   Repository
	stock  StockReleaser
	notify Notifier
	log    *slog.Logger
}

func NewService(repo Repository, stock StockReleaser, notify Notifier, log *slog.Logger) *Service {
	return &Service{repo: repo, stock: stock, notify: notify, log: log}
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Ship(ctx context.Context, orderID, trackingNumber string) (*Order, error) {
	o, err := s.repo.MarkShipped(ctx, orderID, trackingNumber)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, "order.shipped", o)
	return o, nil
}

func (s *Service) Deliver(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, "order.delivered", o)
	return o, nil
}

// Cancel rejects orders at or past shipment, then applies the cancelled
// transition and compensates: reserved stock goes back to the catalog, and a
// succeeded payment is marked refunded (the repository flips payment_status
// inside the same conditional update).
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.repo.MarkCancelled(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.stock.ReleaseStock(ctx, o.Items); err != nil {
		// The order is already cancelled; stock restoration must not be
		// dropped silently.
		s.log.Error("restock after cancellation failed",
			"orderId", o.ID, "error", err)
		return nil, fmt.Errorf("order %s cancelled but restock failed: %w", o.ID, err)
	}

	s.notify.Notify(ctx, "order.cancelled", o)
	return o, nil
}
