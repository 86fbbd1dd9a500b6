package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/shoply/checkout-service/internal/order"
)

// OrderEvent is the envelope published for every order lifecycle change.
// Consumers key on eventName and partition on the order id.
type OrderEvent struct {
	EventID      string          `json:"eventId"`
	EventName    string          `json:"eventName"`
	OrderID      string          `json:"orderId"`
	OrderNumber  string          `json:"orderNumber"`
	UserID       string          `json:"userId"`
	Status       string          `json:"status"`
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total"`
	Items        []OrderLine     `json:"items,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

type OrderLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Currency  string          `json:"currency"`
}

// Publisher fans order notifications out to the events exchange. It
// implements order.Notifier: publish failures are logged and swallowed so a
// messaging outage never fails a checkout or a webhook.
type Publisher struct {
	ch  *amqp.Channel
	log *slog.Logger
}

func NewPublisher(conn *amqp.Connection, log *slog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}
	return &Publisher{ch: ch, log: log}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) Notify(ctx context.Context, event string, o *order.Order) {
	key, ok := routingKeys[event]
	if !ok {
		p.log.Warn("no routing key for event, dropping", "event", event)
		return
	}

	body, err := json.Marshal(NewOrderEvent(event, o))
	if err != nil {
		p.log.Error("marshal order event", "event", event, "error", err)
		return
	}

	if err := p.publishJSON(ctx, key, body); err != nil {
		p.log.Error("publish order event",
			"event", event, "orderId", o.ID, "error", err)
	}
}

// NewOrderEvent builds the envelope for one lifecycle change. Items ride
// along only on creation and cancellation, where downstream consumers need
// the line detail.
func NewOrderEvent(event string, o *order.Order) OrderEvent {
	ev := OrderEvent{
		EventID:     uuid.NewString(),
		EventName:   event,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Currency:    o.Currency,
		Total:       o.Total,
		Timestamp:   time.Now().UTC(),
	}
	if event == "order.created" || event == "order.cancelled" {
		for _, it := range o.Items {
			ev.Items = append(ev.Items, OrderLine{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Currency:  it.Currency,
			})
		}
	}
	return ev
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// NopNotifier discards notifications. Demo mode runs on it when no broker
// is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, event string, o *order.Order) {}
