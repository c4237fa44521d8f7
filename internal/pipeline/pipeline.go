package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"projectnotify/internal/broker"
	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
	"projectnotify/internal/logger"
	"projectnotify/internal/notification"
	"projectnotify/pkg/logging"
	"projectnotify/pkg/metrics"
)

// Pipeline drives one delivery from decode through fan-out to settlement.
// Every delivery ends in exactly one Ack or one Nack without requeue;
// malformed or failing messages are dropped, not retried. The only
// recovery mechanism is the TTL-bounded reminder chain.
type Pipeline struct {
	engine    *notification.Engine
	producer  broker.Producer
	directory directory.Client
	mirror    *notification.SlackMirror
	reminder  config.ReminderConfig
	logger    logger.Logger
}

func New(engine *notification.Engine, producer broker.Producer, dir directory.Client,
	mirror *notification.SlackMirror, reminder config.ReminderConfig, log logger.Logger) *Pipeline {
	return &Pipeline{
		engine:    engine,
		producer:  producer,
		directory: dir,
		mirror:    mirror,
		reminder:  reminder,
		logger:    log,
	}
}

// Handle processes one delivery end to end. It is safe to call concurrently
// for distinct deliveries.
func (p *Pipeline) Handle(ctx context.Context, d *broker.Delivery) {
	start := time.Now()

	correlationID := d.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	ctx = logging.WithEventType(ctx, d.RoutingKey)

	p.logger.InfowCtx(ctx, "Receiving event")

	bundle, err := p.evaluate(ctx, d)
	if err != nil {
		p.reject(ctx, d, err)
		return
	}

	if err := p.fanOut(ctx, d, bundle); err != nil {
		p.reject(ctx, d, err)
		return
	}

	if err := d.Ack(); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to ack delivery", "error", err)
		return
	}

	metrics.EventsConsumedTotal.WithLabelValues(d.RoutingKey, "acked").Inc()
	metrics.ObserveEventProcessingDuration(d.RoutingKey, time.Since(start))
	p.logger.InfowCtx(ctx, "Successfully handled event")
}

// reject settles a failed delivery. Nothing is requeued: redelivery is the
// bus's business, not the pipeline's.
func (p *Pipeline) reject(ctx context.Context, d *broker.Delivery, err error) {
	switch {
	case directory.IsNotFound(err):
		// Events can outrun the directory; an already-deleted project is
		// an expected drop, not an operational fault.
		p.logger.WarnwCtx(ctx, "Dropping event, referenced entity missing", "error", err)
	case directory.IsUnauthorized(err):
		p.logger.ErrorwCtx(ctx, "Dropping event, directory credentials rejected", "error", err)
	default:
		p.logger.ErrorwCtx(ctx, "Dropping event", "error", err)
	}
	if nackErr := d.Nack(false); nackErr != nil {
		p.logger.ErrorwCtx(ctx, "Failed to nack delivery", "error", nackErr)
	}
	metrics.EventsConsumedTotal.WithLabelValues(d.RoutingKey, "nacked").Inc()
}

// evaluate decodes the delivery by routing key and runs the matching rule.
// Unknown routing keys yield an empty bundle so unrelated traffic on a
// shared exchange never poisons the queue.
func (p *Pipeline) evaluate(ctx context.Context, d *broker.Delivery) (*notification.Bundle, error) {
	switch d.RoutingKey {
	case constants.EventProjectDraftCreated:
		var project directory.Project
		if err := json.Unmarshal(d.Body, &project); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.ProjectDraftCreated(ctx, &project)

	case constants.EventProjectUpdated:
		var event notification.ProjectUpdatedEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.ProjectUpdated(ctx, &event, d.Body)

	case constants.EventProjectMemberAdded:
		var event notification.MemberEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.MemberAdded(ctx, &event)

	case constants.EventProjectMemberRemoved:
		var event notification.MemberEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.MemberRemoved(ctx, &event)

	case constants.EventProjectMemberUpdated:
		var event notification.MemberUpdatedEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.MemberUpdated(ctx, &event)

	case p.reminder.RoutingKey:
		var event notification.ReminderEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", d.RoutingKey, err)
		}
		return p.engine.ProjectUnclaimed(ctx, &event, d.Body)

	default:
		p.logger.DebugwCtx(ctx, "Ignoring unknown routing key")
		return &notification.Bundle{}, nil
	}
}

// fanOut publishes every entry in the bundle. All destinations are
// attempted as one unit: the first hard failure aborts and the whole
// delivery is dropped, with no partial retry of individual destinations.
func (p *Pipeline) fanOut(ctx context.Context, d *broker.Delivery, bundle *notification.Bundle) error {
	for _, topic := range bundle.Discourse {
		err := p.directory.CreateTopic(ctx, directory.Topic{
			Reference:   "project",
			ReferenceID: fmt.Sprintf("%d", topic.ProjectID),
			Tag:         "PRIMARY",
			Title:       topic.Title,
			Body:        topic.Body,
		})
		if err != nil {
			return fmt.Errorf("discourse notice for project %d: %w", topic.ProjectID, err)
		}
		metrics.NotificationsPublishedTotal.WithLabelValues("discourse").Inc()
	}

	if err := p.publishChat(ctx, constants.NotifyManagerChat, "chat.manager", bundle.ManagerChat); err != nil {
		return err
	}
	if err := p.publishChat(ctx, constants.NotifyCopilotChat, "chat.copilot", bundle.CopilotChat); err != nil {
		return err
	}

	if bundle.Delayed != nil {
		if err := p.rearm(ctx, d, bundle.Delayed); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) publishChat(ctx context.Context, routingKey, channel string, messages []notification.ChatMessage) error {
	for _, msg := range messages {
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding %s notice: %w", channel, err)
		}
		if err := p.producer.Publish(ctx, routingKey, body, nil); err != nil {
			return fmt.Errorf("%s notice: %w", channel, err)
		}
		metrics.NotificationsPublishedTotal.WithLabelValues(channel).Inc()

		if p.mirror.Enabled() {
			// Mirror delivery is best effort; a webhook outage must not
			// drop the event.
			if err := p.mirror.Send(ctx, msg); err != nil {
				p.logger.WarnwCtx(ctx, "Slack mirror delivery failed", "error", err)
			}
		}
	}
	return nil
}

// rearm republishes the delayed payload with a decremented TTL header. A
// message without the header starts a fresh chain with the configured
// budget; the chain ends silently when the budget runs out. All chain state
// lives in the message itself, so a crash loses nothing.
func (p *Pipeline) rearm(ctx context.Context, d *broker.Delivery, payload []byte) error {
	ttl := p.reminder.MaxAttempts
	if incoming, ok := headerTTL(d.Headers); ok {
		ttl = incoming - 1
	}

	if ttl <= 0 {
		metrics.RemindersExhaustedTotal.Inc()
		p.logger.InfowCtx(ctx, "Reminder budget exhausted, ending chain")
		return nil
	}

	headers := map[string]interface{}{constants.TTLHeader: ttl}
	if err := p.producer.PublishDelayed(ctx, p.reminder.RoutingKey, payload, p.reminder.Delay, headers); err != nil {
		return fmt.Errorf("scheduling reminder: %w", err)
	}

	metrics.RemindersScheduledTotal.Inc()
	p.logger.InfowCtx(ctx, "Reminder scheduled",
		"remaining", ttl,
		"delay", p.reminder.Delay,
	)
	return nil
}

// headerTTL reads the reminder budget from delivery headers. AMQP decodes
// numbers into a handful of Go types depending on the publisher.
func headerTTL(headers map[string]interface{}) (int, bool) {
	v, ok := headers[constants.TTLHeader]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
