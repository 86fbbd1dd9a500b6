package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "shoply.events"

	OrderCreatedRoutingKey       = "order.created.v1"
	OrderProcessingRoutingKey    = "order.processing.v1"
	OrderPaidRoutingKey          = "order.paid.v1"
	OrderPaymentFailedRoutingKey = "order.payment_failed.v1"
	OrderShippedRoutingKey       = "order.shipped.v1"
	OrderDeliveredRoutingKey     = "order.delivered.v1"
	OrderCancelledRoutingKey     = "order.cancelled.v1"
)

// routingKeys maps the internal notification event names to their versioned
// routing keys on the exchange. Unknown names are dropped, not published.
var routingKeys = map[string]string{
	"order.created":        OrderCreatedRoutingKey,
	"order.processing":     OrderProcessingRoutingKey,
	"order.paid":           OrderPaidRoutingKey,
	"order.payment_failed": OrderPaymentFailedRoutingKey,
	"order.shipped":        OrderShippedRoutingKey,
	"order.delivered":      OrderDeliveredRoutingKey,
	"order.cancelled":      OrderCancelledRoutingKey,
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
