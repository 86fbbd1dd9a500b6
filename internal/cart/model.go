package cart

import (
	"errors"

	"github.com/shoply/checkout-service/internal/currency"
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Line is one cart entry. UnitPrice is the price captured when the item was
// added to the cart; it does not track later catalog price changes.
type Line struct {
	ProductID string         `json:"productId"`
	Quantity  int            `json:"quantity"`
	UnitPrice currency.Money `json:"unitPrice"`
}

// Snapshot is the ephemeral view of a cart taken for one checkout attempt.
// It is never persisted on its own.
type Snapshot struct {
	UserID string
	Lines  []Line
}
