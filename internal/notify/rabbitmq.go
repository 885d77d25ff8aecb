package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitNotifier publishes messages to a topic exchange.
// Room messages use video.<id>.<event>, global ones video.global.<event>.
type RabbitNotifier struct {
	channel  amqpPublisher
	closer   func() error
	exchange string
	logger   *slog.Logger
}

// NewRabbitNotifier opens a channel on conn and declares the exchange.
func NewRabbitNotifier(conn *amqp.Connection, exchange string, logger *slog.Logger) (*RabbitNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	n := newRabbitNotifier(ch, exchange, logger)
	n.closer = ch.Close
	return n, nil
}

func newRabbitNotifier(ch amqpPublisher, exchange string, logger *slog.Logger) *RabbitNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitNotifier{channel: ch, exchange: exchange, logger: logger}
}

// RoutingKey maps an event name onto the topic key space.
func RoutingKey(scope, event string) string {
	return fmt.Sprintf("video.%s.%s", scope, event)
}

func (n *RabbitNotifier) Progress(ctx context.Context, msg ProgressMessage) error {
	if err := n.publish(ctx, RoutingKey(msg.VideoID.String(), EventUpdate), envelope{Event: EventUpdate, Data: msg}); err != nil {
		return err
	}
	return n.publish(ctx, RoutingKey("global", GlobalProgress), envelope{Event: GlobalProgress, Data: msg})
}

func (n *RabbitNotifier) Finished(ctx context.Context, msg FinishedMessage) error {
	if err := n.publish(ctx, RoutingKey(msg.VideoID.String(), EventFinished), envelope{Event: EventFinished, Data: msg}); err != nil {
		return err
	}
	return n.publish(ctx, RoutingKey("global", GlobalComplete), envelope{Event: GlobalComplete, Data: msg})
}

func (n *RabbitNotifier) publish(ctx context.Context, key string, body envelope) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", body.Event, err)
	}
	err = n.channel.PublishWithContext(ctx,
		n.exchange,
		key,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         raw,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	n.logger.DebugContext(ctx, "notify.rabbitmq.published", "routing_key", key)
	return nil
}

func (n *RabbitNotifier) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}
