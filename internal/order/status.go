package order

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Event is a state machine input. Fulfillment events are externally
// triggered; payment events arrive through the orchestrator or the webhook
// reconciliation path.
type Event string

const (
	EventIntentCreated    Event = "payment_intent_created"
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPaymentFailed    Event = "payment_failed"
	EventShipped          Event = "shipped"
	EventDelivered        Event = "delivered"
	EventCancelled        Event = "cancelled"
)

// transitions is the single source of truth for legal status changes. Every
// repository implementation derives its guards from this table.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventIntentCreated: StatusProcessing,
		EventCancelled:     StatusCancelled,
	},
	StatusProcessing: {
		EventPaymentSucceeded: StatusPaid,
		EventPaymentFailed:    StatusFailed,
		EventCancelled:        StatusCancelled,
	},
	StatusPaid: {
		EventShipped:   StatusShipped,
		EventCancelled: StatusCancelled,
	},
	StatusShipped: {
		EventDelivered: StatusDelivered,
	},
}

// InvalidTransitionError reports a rejected state change; the order is left
// untouched when it is returned.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	Event   Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: event %q not allowed in status %q", e.OrderID, e.Event, e.From)
}

// Next returns the status reached by applying ev in from, or an
// InvalidTransitionError if the table has no such edge.
func Next(orderID string, from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", &InvalidTransitionError{OrderID: orderID, From: from, Event: ev}
}

// Terminal reports whether no event can move an order out of s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// SourceStatuses returns every status from which ev may fire. Used to
// build conditional SQL guards.
func SourceStatuses(ev Event) []Status {
	var froms []Status
	for _, s := range []Status{StatusPending, StatusProcessing, StatusPaid, StatusShipped} {
		if _, ok := transitions[s][ev]; ok {
			froms = append(froms, s)
		}
	}
	return froms
}
