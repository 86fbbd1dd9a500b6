package currency

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Converter translates amounts between a fixed set of ISO-4217 currencies.
// Rates are expressed relative to a single base currency: rates[code] is how
// many units of code one unit of the base buys. Cross rates go through the
// base, so rate(A, B) = rates[B] / rates[A].
type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter builds a converter from textual rates. The base currency must
// appear in the rate table with rate 1.
func NewConverter(base string, rates map[string]string) (*Converter, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for code, raw := range rates {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", code, err)
		}
		if d.Sign() <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, raw)
		}
		parsed[code] = d
	}
	baseRate, ok := parsed[base]
	if !ok {
		return nil, fmt.Errorf("base currency %s missing from rate table", base)
	}
	if !baseRate.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("base currency %s must have rate 1, got %s", base, baseRate)
	}
	return &Converter{base: base, rates: parsed}, nil
}

// DefaultRates is the built-in rate table used when no rates are configured.
// Only currencies whose unit is within an order of magnitude of the base
// belong here: two-decimal rounding cannot keep a round trip within one cent
// for a rate like JPY's ~110:1.
var DefaultRates = map[string]string{
	"USD": "1",
	"EUR": "0.85",
	"GBP": "0.73",
	"CAD": "1.21",
}

func DefaultConverter() *Converter {
	c, err := NewConverter("USD", DefaultRates)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Converter) Base() string { return c.base }

func (c *Converter) IsSupported(code string) bool {
	_, ok := c.rates[code]
	return ok
}

// Supported returns the supported currency codes in sorted order.
func (c *Converter) Supported() []string {
	codes := make([]string, 0, len(c.rates))
	for code := range c.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Rate returns the multiplier that converts an amount in from-currency into
// to-currency. Identical codes yield exactly 1.
func (c *Converter) Rate(from, to string) (decimal.Decimal, error) {
	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	// 16 digits of precision on the cross rate keeps rounding error under
	// half a cent for any plausible amount.
	return toRate.DivRound(fromRate, 16), nil
}

// Convert moves m into the target currency, rounding half-up to 2 decimal
// places. Converting to the same currency returns m unchanged. Round-trip
// conversion is not exact; callers relying on it hold a bug.
func (c *Converter) Convert(m Money, to string) (Money, error) {
	if m.Currency == to {
		if !c.IsSupported(to) {
			return Money{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
		}
		return m, nil
	}
	rate, err := c.Rate(m.Currency, to)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Mul(rate).Round(2), Currency: to}, nil
}

// DisplayPrice converts for presentation only. When the target currency is
// not supported the original price is returned instead of an error, so a
// listing never fails on a bad display currency.
func (c *Converter) DisplayPrice(m Money, to string) Money {
	converted, err := c.Convert(m, to)
	if err != nil {
		return m
	}
	return converted
}
