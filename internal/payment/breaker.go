package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// BreakerGateway wraps a Gateway with a circuit breaker so a dead provider
// fails fast instead of tying up checkout requests.
type BreakerGateway struct {
	inner Gateway
	cb    *gobreaker.CircuitBreaker[Intent]
}

func NewBreakerGateway(inner Gateway) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker[Intent](gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &BreakerGateway{inner: inner, cb: cb}
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currencyCode string, metadata map[string]string) (Intent, error) {
	intent, err := g.cb.Execute(func() (Intent, error) {
		return g.inner.CreateIntent(ctx, amount, currencyCode, metadata)
	})
	if err != nil {
		return Intent{}, wrapBreakerErr("create intent", err)
	}
	return intent, nil
}

func (g *BreakerGateway) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	intent, err := g.cb.Execute(func() (Intent, error) {
		return g.inner.RetrieveIntent(ctx, intentID)
	})
	if err != nil {
		return Intent{}, wrapBreakerErr("retrieve intent", err)
	}
	return intent, nil
}

func wrapBreakerErr(op string, err error) error {
	if _, ok := err.(*GatewayError); ok {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}
