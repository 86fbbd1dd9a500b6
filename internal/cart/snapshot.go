package cart

import (
	"context"
	"fmt"

	"github.com/shoply/checkout-service/internal/catalog"
)

// Reader is the cart store contract: current lines for a user.
type Reader interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
}

// Snapshotter reads a cart and validates it against the live catalog. The
// catalog is the system of record here; whatever a display cache said about
// the product is not trusted.
type Snapshotter struct {
	carts    Reader
	products catalog.Repository
}

func NewSnapshotter(carts Reader, products catalog.Repository) *Snapshotter {
	return &Snapshotter{carts: carts, products: products}
}

// Snapshot builds a validated snapshot for one checkout attempt. It fails on
// an empty cart, a non-positive quantity, or a product that no longer exists.
// Stock levels are deliberately not checked here; the reservation step is the
// only authority on stock.
func (s *Snapshotter) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read cart for %s: %w", userID, err)
	}
	if len(lines) == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return Snapshot{}, fmt.Errorf("product %s: %w (got %d)",
				line.ProductID, ErrInvalidQuantity, line.Quantity)
		}
		if _, err := s.products.Get(ctx, line.ProductID); err != nil {
			return Snapshot{}, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
	}

	return Snapshot{UserID: userID, Lines: lines}, nil
}
