package checkout

import (
	"errors"
	"fmt"
)

// ValidationError rejects a checkout request before any side effect runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrAttemptInProgress is returned when an idempotency key is already
// claimed but its order has not been persisted yet, i.e. a concurrent
// request with the same key is still running.
var ErrAttemptInProgress = errors.New("checkout with this idempotency key is already in progress")
