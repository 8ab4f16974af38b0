package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

const (
	EventsExchange         = "ecommerce.events"
	OrderCreatedRoutingKey = "order.created.v1"
	OrderCreatedEventName  = "OrderCreated"
	producerName           = "api-gateway"
)

// EventEnvelope is the common envelope of events on the events exchange.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	OccurredAt    time.Time `json:"occurredAt"`
	Payload       T         `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID model.ID         `json:"orderId"`
	UserID  model.ID         `json:"userId"`
	Items   []model.CartItem `json:"items"`
	Total   float64          `json:"total"`
}

type OrderCreatedEnvelope = EventEnvelope[OrderCreatedPayload]

func NewOrderCreated(correlationID string, p OrderCreatedPayload, now time.Time) OrderCreatedEnvelope {
	return OrderCreatedEnvelope{
		EventName:     OrderCreatedEventName,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      producerName,
		PartitionKey:  p.OrderID.String(),
		OccurredAt:    now.UTC(),
		Payload:       p,
	}
}

// AMQPPublisher publishes gateway events to the topic exchange. amqp channels
// are not safe for concurrent publishing, so publishes are serialized.
type AMQPPublisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare the exchange so publish never fails due to missing infra
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}

	return &AMQPPublisher{ch: ch}, nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

func (p *AMQPPublisher) PublishOrderCreated(ctx context.Context, ev OrderCreatedEnvelope) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		OrderCreatedRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     ev.EventID,
			CorrelationId: ev.CorrelationID,
			Timestamp:     ev.OccurredAt,
			Type:          ev.EventName,
			Body:          body,
		},
	)
}
