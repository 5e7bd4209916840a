package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social_scheduler/internal/domain"
)

// RabbitMQ publishes post lifecycle events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "events", "exchange", cfg.Exchange)
	logger.Info("connected to rabbitmq", "queue", cfg.QueueName, "routing_key", cfg.RoutingKey)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology makes sure the exchange exists and the consumer queue is
// bound to it, so events are kept even before a consumer first connects.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// newMessage encodes event as a persistent JSON message. Action, post id and
// platform go into headers so consumers can route without decoding the body.
func newMessage(event *domain.Event, now time.Time) (amqp.Publishing, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = now.UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{"action": string(event.Action)}
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    event.Timestamp,
		Body:         body,
	}
	if event.Post != nil {
		headers["post_id"] = event.Post.ID
		headers["platform"] = string(event.Post.Platform)
		msg.MessageId = fmt.Sprintf("%s.%s", event.Post.ID, event.Action)
	}
	msg.Headers = headers

	return msg, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, event *domain.Event) error {
	msg, err := newMessage(event, time.Now())
	if err != nil {
		return err
	}

	if err := r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	r.logger.Debug("published event", "action", event.Action, "message_id", msg.MessageId)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
