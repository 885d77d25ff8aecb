package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobKeyTTL is how long a finished job hash is kept around.
const JobKeyTTL = 24 * time.Hour

type redisCmdable interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisNotifier publishes on pub/sub channels and mirrors the latest state into job:<id>.
type RedisNotifier struct {
	client redisCmdable
	closer func() error
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	n := newRedisNotifier(client, logger)
	n.closer = client.Close
	return n
}

func newRedisNotifier(client redisCmdable, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger, now: time.Now}
}

// JobKey is the hash holding a video's latest progress.
func JobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (n *RedisNotifier) Progress(ctx context.Context, msg ProgressMessage) error {
	id := msg.VideoID.String()
	if err := n.client.HSet(ctx, JobKey(id),
		"status", string(msg.Status),
		"progress", strconv.Itoa(msg.Progress),
		"updated_at", n.now().UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", JobKey(id), err)
	}
	if err := n.publish(ctx, Room(msg.VideoID), envelope{Event: EventUpdate, Data: msg}); err != nil {
		return err
	}
	return n.publish(ctx, GlobalProgress, msg)
}

func (n *RedisNotifier) Finished(ctx context.Context, msg FinishedMessage) error {
	id := msg.VideoID.String()
	key := JobKey(id)
	if err := n.client.HSet(ctx, key,
		"status", string(msg.Status),
		"progress", strconv.Itoa(msg.Progress),
		"sensitivity", string(msg.Sensitivity),
		"sensitivity_score", strconv.Itoa(msg.SensitivityScore),
		"risk_level", string(msg.RiskLevel),
		"message", msg.Message,
		"completed_at", n.now().UTC().Format(time.RFC3339),
	).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	if err := n.client.Expire(ctx, key, JobKeyTTL).Err(); err != nil {
		n.logger.WarnContext(ctx, "notify.redis.expire.failed", "key", key, "error", err)
	}
	if err := n.publish(ctx, Room(msg.VideoID), envelope{Event: EventFinished, Data: msg}); err != nil {
		return err
	}
	return n.publish(ctx, GlobalComplete, msg)
}

func (n *RedisNotifier) publish(ctx context.Context, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}
	if err := n.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	if n.closer == nil {
		return nil
	}
	return n.closer()
}
