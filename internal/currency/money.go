package currency

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single currency. Amounts are never mixed across
// currencies without going through a Converter.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func NewMoney(amount decimal.Decimal, code string) Money {
	return Money{Amount: amount, Currency: code}
}

// MustMoney parses amount and panics on malformed input. Intended for
// configuration defaults and tests.
func MustMoney(amount, code string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(fmt.Sprintf("invalid money amount %q: %v", amount, err))
	}
	return Money{Amount: d, Currency: code}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}
