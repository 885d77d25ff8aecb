package async

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// JobRoutingKey is the key processing requests are published under.
const JobRoutingKey = "video.process"

// JobRequest is the wire form of a processing request.
type JobRequest struct {
	VideoID string `json:"videoId"`
	Force   bool   `json:"force,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

type IntakeConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// Intake feeds processing requests from RabbitMQ into a Queue.
type Intake struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	target  Queue
	logger  *slog.Logger
}

func NewIntake(cfg IntakeConfig, target Queue, logger *slog.Logger) (*Intake, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, JobRoutingKey, cfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind job queue: %w", err)
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 16
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Intake{conn: conn, channel: ch, queue: cfg.Queue, target: target, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (in *Intake) Run(ctx context.Context) error {
	deliveries, err := in.channel.ConsumeWithContext(ctx, in.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	in.logger.Info("job intake started", "queue", in.queue)

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("job intake stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				in.logger.Warn("delivery channel closed")
				return nil
			}
			in.deliver(ctx, d)
		}
	}
}

func (in *Intake) deliver(ctx context.Context, d amqp.Delivery) {
	job, err := DecodeJob(d.Body, d.Timestamp)
	if err != nil {
		in.logger.Warn("rejecting malformed job", "error", err, "delivery_tag", d.DeliveryTag)
		in.settle(d, d.Nack(false, false), "nack")
		return
	}
	if err := in.target.Enqueue(ctx, job); err != nil {
		in.logger.Warn("enqueue failed, requeueing", "video_id", job.VideoID, "error", err)
		in.settle(d, d.Nack(false, true), "nack")
		return
	}
	in.settle(d, d.Ack(false), "ack")
}

func (in *Intake) settle(d amqp.Delivery, err error, op string) {
	if err != nil {
		in.logger.Warn("delivery settle failed", "op", op, "delivery_tag", d.DeliveryTag, "error", err)
	}
}

// DecodeJob parses a JobRequest body.
func DecodeJob(body []byte, submitted time.Time) (Job, error) {
	var req JobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	id, err := uuid.Parse(req.VideoID)
	if err != nil {
		return Job{}, fmt.Errorf("invalid videoId %q: %w", req.VideoID, err)
	}
	if submitted.IsZero() {
		submitted = time.Now()
	}
	return Job{VideoID: id, Force: req.Force, SubmittedAt: submitted, TraceID: req.TraceID}, nil
}

func (in *Intake) Close() error {
	if in.channel != nil {
		in.channel.Close()
	}
	if in.conn != nil {
		return in.conn.Close()
	}
	return nil
}
