package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/shoply/checkout-service/internal/order"
	"github.com/shoply/checkout-service/internal/pricing"
)

// Address is a shipping or billing address. Validation is deliberately
// shallow; carrier-grade address verification is out of scope.
type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Request is one checkout attempt for a user's current cart. An empty
// billing address falls back to the shipping address.
type Request struct {
	UserID          string          `json:"userId"`
	Currency        string          `json:"currency"`
	ShippingAddress Address         `json:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Discount        decimal.Decimal `json:"discount"`
}

// Response is what the client needs to finish paying: the persisted order,
// its price breakdown and the gateway client secret for the payment step.
type Response struct {
	OrderID      string         `json:"orderId"`
	OrderNumber  string         `json:"orderNumber"`
	Status       order.Status   `json:"status"`
	Totals       pricing.Totals `json:"totals"`
	ClientSecret string         `json:"clientSecret"`
	Replayed     bool           `json:"-"`
}
