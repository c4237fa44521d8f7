package broker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/logger"
	"projectnotify/pkg/logging"
)

const dialMaxRetries = 5

// dial connects with exponential backoff. Only the initial connection is
// retried; anything after that is the caller's failure to handle.
func dial(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	operation := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialMaxRetries)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// declareDelayExchange declares the x-delayed-message exchange backing
// delayed redelivery. Messages published here with an x-delay header show up
// on bound queues no earlier than that many milliseconds later.
func declareDelayExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "topic"})
}

// RabbitMQProducer publishes to the target exchange over one connection and
// to the delay exchange over the source-broker connection, mirroring where
// the consumer queue lives. Channels are not safe for concurrent publish,
// hence the mutexes.
type RabbitMQProducer struct {
	cfg    config.RabbitMQConfig
	logger logger.Logger

	targetConn *amqp.Connection
	targetMu   sync.Mutex
	targetCh   *amqp.Channel

	delayConn *amqp.Connection
	delayMu   sync.Mutex
	delayCh   *amqp.Channel
}

func NewRabbitMQProducer(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQProducer, error) {
	targetConn, err := dial(cfg.TargetURL)
	if err != nil {
		return nil, err
	}

	targetCh, err := targetConn.Channel()
	if err != nil {
		targetConn.Close()
		return nil, fmt.Errorf("failed to open target channel: %w", err)
	}

	if err := targetCh.ExchangeDeclare(cfg.TargetExchange, "topic", true, false, false, false, nil); err != nil {
		targetConn.Close()
		return nil, fmt.Errorf("failed to declare target exchange %s: %w", cfg.TargetExchange, err)
	}

	delayConn, err := dial(cfg.SourceURL)
	if err != nil {
		targetConn.Close()
		return nil, err
	}

	delayCh, err := delayConn.Channel()
	if err != nil {
		targetConn.Close()
		delayConn.Close()
		return nil, fmt.Errorf("failed to open delay channel: %w", err)
	}

	if err := declareDelayExchange(delayCh, cfg.DelayExchange); err != nil {
		targetConn.Close()
		delayConn.Close()
		return nil, fmt.Errorf("failed to declare delay exchange %s: %w", cfg.DelayExchange, err)
	}

	return &RabbitMQProducer{
		cfg:        cfg,
		logger:     log,
		targetConn: targetConn,
		targetCh:   targetCh,
		delayConn:  delayConn,
		delayCh:    delayCh,
	}, nil
}

func (p *RabbitMQProducer) Publish(ctx context.Context, routingKey string, body []byte, headers map[string]interface{}) error {
	p.targetMu.Lock()
	defer p.targetMu.Unlock()

	err := p.targetCh.PublishWithContext(ctx, p.cfg.TargetExchange, routingKey, false, false,
		publishing(ctx, body, headers))
	if err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", p.cfg.TargetExchange, routingKey, err)
	}
	return nil
}

func (p *RabbitMQProducer) PublishDelayed(ctx context.Context, routingKey string, body []byte, delay time.Duration, headers map[string]interface{}) error {
	merged := delayHeaders(headers, delay)

	p.delayMu.Lock()
	defer p.delayMu.Unlock()

	err := p.delayCh.PublishWithContext(ctx, p.cfg.DelayExchange, routingKey, false, false,
		publishing(ctx, body, merged))
	if err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", p.cfg.DelayExchange, routingKey, err)
	}
	return nil
}

// Healthy reports whether both broker connections are still open.
func (p *RabbitMQProducer) Healthy() error {
	if p.targetConn == nil || p.targetConn.IsClosed() {
		return fmt.Errorf("target broker connection closed")
	}
	if p.delayConn == nil || p.delayConn.IsClosed() {
		return fmt.Errorf("source broker connection closed")
	}
	return nil
}

func (p *RabbitMQProducer) Close() error {
	var err error
	if p.targetConn != nil {
		err = p.targetConn.Close()
	}
	if p.delayConn != nil {
		if closeErr := p.delayConn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func publishing(ctx context.Context, body []byte, headers map[string]interface{}) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: logging.GetCorrelationID(ctx),
		Timestamp:     time.Now(),
		Headers:       amqp.Table(headers),
		Body:          body,
	}
}

// delayHeaders copies the caller's headers and adds the plugin's delay
// header in milliseconds. The input map is never mutated.
func delayHeaders(headers map[string]interface{}, delay time.Duration) map[string]interface{} {
	merged := make(map[string]interface{}, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged[constants.DelayHeader] = delay.Milliseconds()
	return merged
}

// RabbitMQConsumer consumes the source queue. It declares the source
// exchange, the queue, one binding per routing key, and a binding to the
// delay exchange so re-queued reminders come back through the same queue.
type RabbitMQConsumer struct {
	cfg         config.RabbitMQConfig
	routingKeys []string
	reminderKey string
	logger      logger.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
	wg   sync.WaitGroup
}

func NewRabbitMQConsumer(cfg config.RabbitMQConfig, routingKeys []string, reminderKey string, log logger.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		cfg:         cfg,
		routingKeys: routingKeys,
		reminderKey: reminderKey,
		logger:      log,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	conn, err := dial(c.cfg.SourceURL)
	if err != nil {
		return err
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	c.ch = ch

	// Prefetch bounds in-flight handler goroutines.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	if err := ch.ExchangeDeclare(c.cfg.SourceExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare source exchange %s: %w", c.cfg.SourceExchange, err)
	}

	queue, err := ch.QueueDeclare(c.cfg.SourceQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.SourceQueue, err)
	}

	for _, key := range c.routingKeys {
		if err := ch.QueueBind(queue.Name, key, c.cfg.SourceExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", key, c.cfg.SourceExchange, err)
		}
	}

	if err := declareDelayExchange(ch, c.cfg.DelayExchange); err != nil {
		return fmt.Errorf("failed to declare delay exchange %s: %w", c.cfg.DelayExchange, err)
	}
	if err := ch.QueueBind(queue.Name, c.reminderKey, c.cfg.DelayExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s to %s: %w", c.reminderKey, c.cfg.DelayExchange, err)
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", queue.Name, err)
	}

	c.logger.Infow("Waiting for messages",
		"queue", queue.Name,
		"exchange", c.cfg.SourceExchange,
		"bindings", c.routingKeys,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.wg.Add(1)
			go func(d amqp.Delivery) {
				defer c.wg.Done()
				defer func() {
					// A panicking handler must not take the consumer down,
					// and its delivery must still be settled.
					if r := recover(); r != nil {
						c.logger.Errorw("Recovered from handler panic",
							"error", r,
							"routing_key", d.RoutingKey,
							"stack", string(debug.Stack()),
						)
						_ = d.Nack(false, false)
					}
				}()
				handler(ctx, NewDelivery(d.RoutingKey, d.CorrelationId, d.Headers, d.Body, d.DeliveryTag, d.Acknowledger))
			}(d)
		}
	}
}

func (c *RabbitMQConsumer) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.wg.Wait()
	return err
}
