// Package notify tells downstream collaborators (mailers, dashboards) about
// order lifecycle changes. Delivery is best-effort: callers log failures and
// carry on.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storeapi/internal/models"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventPaymentUpdated     EventType = "order.payment_updated"
	EventOrderCancelled     EventType = "order.cancelled"
)

type Event struct {
	Type          EventType            `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	UserID        string               `json:"userId,omitempty"`
	CustomerEmail string               `json:"customerEmail,omitempty"`
	OrderStatus   models.OrderStatus   `json:"orderStatus"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	TotalAmount   float64              `json:"totalAmount"`
	Currency      models.Currency      `json:"currency"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func NewEvent(eventType EventType, order models.Order) Event {
	e := Event{
		Type:          eventType,
		OrderID:       order.ID.Hex(),
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.Customer.Email,
		OrderStatus:   order.OrderStatus,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		OccurredAt:    time.Now().UTC(),
	}
	if order.UserID != nil {
		e.UserID = order.UserID.Hex()
	}
	return e
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// RedisNotifier publishes events as JSON on a pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// LogNotifier is used when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info().
		Str("event", string(event.Type)).
		Str("orderNumber", event.OrderNumber).
		Str("orderStatus", string(event.OrderStatus)).
		Str("paymentStatus", string(event.PaymentStatus)).
		Msg("order event")
	return nil
}
