package broker

import (
	"context"
	"time"
)

// Producer publishes onto the target exchange, or onto the delay exchange
// for messages that must reappear on the consumer queue after a delay. One
// attempt per call; retry policy belongs to the caller.
type Producer interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]interface{}) error
	PublishDelayed(ctx context.Context, routingKey string, body []byte, delay time.Duration, headers map[string]interface{}) error
	Close() error
}

// Consumer delivers each matching message exactly once to the handler. The
// handler owns settlement: exactly one of Ack or Nack per delivery.
type Consumer interface {
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
}

type HandlerFunc func(ctx context.Context, d *Delivery)

// Acknowledger settles deliveries by tag. amqp091's channel acknowledger
// satisfies it directly.
type Acknowledger interface {
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple bool, requeue bool) error
}

// Delivery is one inbound message plus its settlement handle.
type Delivery struct {
	RoutingKey    string
	CorrelationID string
	Headers       map[string]interface{}
	Body          []byte

	tag   uint64
	acker Acknowledger
}

func NewDelivery(routingKey, correlationID string, headers map[string]interface{}, body []byte, tag uint64, acker Acknowledger) *Delivery {
	return &Delivery{
		RoutingKey:    routingKey,
		CorrelationID: correlationID,
		Headers:       headers,
		Body:          body,
		tag:           tag,
		acker:         acker,
	}
}

func (d *Delivery) Ack() error {
	return d.acker.Ack(d.tag, false)
}

func (d *Delivery) Nack(requeue bool) error {
	return d.acker.Nack(d.tag, false, requeue)
}
