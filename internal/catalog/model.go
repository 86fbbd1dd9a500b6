package catalog

import (
	"fmt"

	"github.com/shoply/checkout-service/internal/currency"
)

// Product is the catalog row this service reads for pricing and mutates for
// stock reservation. Stock never goes negative.
type Product struct {
	ID    string         `json:"productId"`
	SKU   string         `json:"sku"`
	Name  string         `json:"name"`
	Price currency.Money `json:"price"`
	Stock int            `json:"stock"`
}

// Line is one product/quantity pair of a reservation.
type Line struct {
	ProductID string
	Quantity  int
}

// InsufficientStockError names the first product that could not be reserved
// and how much of it was actually available.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
