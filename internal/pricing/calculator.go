package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shoply/checkout-service/internal/cart"
	"github.com/shoply/checkout-service/internal/currency"
)

// ShippingPolicy is a flat fee waived once the subtotal clears a threshold.
// Fee and threshold carry their own currencies and are converted into the
// order currency at computation time.
type ShippingPolicy struct {
	FlatFee   currency.Money
	FreeAbove currency.Money
}

// Totals is the full price breakdown of one checkout, with every component
// in the target currency.
type Totals struct {
	Subtotal currency.Money `json:"subtotal"`
	Shipping currency.Money `json:"shippingCost"`
	Tax      currency.Money `json:"tax"`
	Discount currency.Money `json:"discount"`
	Total    currency.Money `json:"total"`
}

type Calculator struct {
	conv *currency.Converter
}

func NewCalculator(conv *currency.Converter) *Calculator {
	return &Calculator{conv: conv}
}

// ComputeTotals prices a line set in the target currency.
//
// Each line's captured unit price is converted into the target exactly once;
// every later step works purely in the target currency, so there is no
// compounding conversion error. Tax applies to the subtotal only, never to
// shipping. The invariant total = round(subtotal + tax + shipping - discount)
// holds for the returned breakdown.
func (c *Calculator) ComputeTotals(lines []cart.Line, target string, policy ShippingPolicy, taxRate decimal.Decimal, discount decimal.Decimal) (Totals, error) {
	if !c.conv.IsSupported(target) {
		return Totals{}, fmt.Errorf("%w: %s", currency.ErrUnsupportedCurrency, target)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		unit, err := c.conv.Convert(line.UnitPrice, target)
		if err != nil {
			return Totals{}, fmt.Errorf("price line %s: %w", line.ProductID, err)
		}
		subtotal = subtotal.Add(unit.Amount.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping, err := c.shippingFor(subtotal, target, policy)
	if err != nil {
		return Totals{}, err
	}

	tax := taxRate.Mul(subtotal).Round(2)
	total := subtotal.Add(shipping).Add(tax).Sub(discount).Round(2)

	return Totals{
		Subtotal: currency.NewMoney(subtotal, target),
		Shipping: currency.NewMoney(shipping, target),
		Tax:      currency.NewMoney(tax, target),
		Discount: currency.NewMoney(discount, target),
		Total:    currency.NewMoney(total, target),
	}, nil
}

func (c *Calculator) shippingFor(subtotal decimal.Decimal, target string, policy ShippingPolicy) (decimal.Decimal, error) {
	if policy.FlatFee.IsZero() {
		return decimal.Zero, nil
	}
	if !policy.FreeAbove.IsZero() {
		threshold, err := c.conv.Convert(policy.FreeAbove, target)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("shipping threshold: %w", err)
		}
		if subtotal.GreaterThanOrEqual(threshold.Amount) {
			return decimal.Zero, nil
		}
	}
	fee, err := c.conv.Convert(policy.FlatFee, target)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("shipping fee: %w", err)
	}
	return fee.Amount, nil
}
