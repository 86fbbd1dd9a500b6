package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Intent is the gateway object representing a pending authorization. The
// gateway owns it; we keep only its id on the order plus a cached status.
type Intent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"clientSecret"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

const (
	IntentStatusPending   = "pending"
	IntentStatusSucceeded = "succeeded"
	IntentStatusFailed    = "failed"
)

// Gateway is the external payment provider contract.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currencyCode string, metadata map[string]string) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
}

// GatewayError marks failures talking to the provider. Raised before an
// order exists it is fail-closed and retryable; raised afterwards the order
// is driven to failed instead of being left orphaned.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
