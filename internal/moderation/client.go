package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/metrics"
)

// Client wraps an Adapter with a per-call timeout and bounded, linearly backed-off retries.
type Client struct {
	adapter  Adapter
	http     *http.Client
	schema   *jsonschema.Schema
	logger   *slog.Logger
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the base wait; attempt k waits k*base before the next try.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

func NewClient(adapter Adapter, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		adapter:  adapter,
		http:     &http.Client{},
		logger:   logger.With("provider", adapter.Name()),
		timeout:  30 * time.Second,
		attempts: 2,
		backoff:  time.Second,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	if sm := adapter.Schema(); sm != nil {
		schema, err := CompileSchema(sm)
		if err != nil {
			return nil, fmt.Errorf("%s response schema: %w", adapter.Name(), err)
		}
		c.schema = schema
	}
	return c, nil
}

func (c *Client) Provider() string { return c.adapter.Name() }
func (c *Client) Models() []string { return c.adapter.Models() }
func (c *Client) Ready() error     { return c.adapter.Ready() }

// Classify scores one frame. It never returns an error: when every attempt
// fails the result is a zero score tagged error.
func (c *Client) Classify(ctx context.Context, frame entity.Frame) entity.FrameScore {
	provider := c.adapter.Name()
	if err := c.adapter.Ready(); err != nil {
		c.logger.Error("classifier.not_ready", "frame", frame.Index, "error", err)
		metrics.FramesClassifiedTotal.WithLabelValues(provider, "error").Inc()
		return entity.ErrorFrameScore(frame.Index, err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		score, err := c.classifyOnce(ctx, frame)
		if err == nil {
			metrics.FramesClassifiedTotal.WithLabelValues(provider, "success").Inc()
			c.logger.Debug("classifier.frame_scored",
				"frame", frame.Index,
				"attempt", attempt,
				"nsfw", score.NSFW, "violence", score.Violence, "scene", score.Scene,
				"composite", score.Composite(),
			)
			return score
		}
		lastErr = err
		if attempt == c.attempts || ctx.Err() != nil {
			break
		}

		wait := time.Duration(attempt) * c.backoff
		c.logger.Warn("classifier.retry",
			"frame", frame.Index,
			"attempt", attempt,
			"max_attempts", c.attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		metrics.ClassifierRetriesTotal.WithLabelValues(provider).Inc()
		if err := c.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	c.logger.Error("classifier.frame_failed", "frame", frame.Index, "attempts", c.attempts, "error", lastErr)
	metrics.FramesClassifiedTotal.WithLabelValues(provider, "error").Inc()
	return entity.ErrorFrameScore(frame.Index, lastErr)
}

func (c *Client) classifyOnce(ctx context.Context, frame entity.Frame) (entity.FrameScore, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.adapter.NewRequest(ctx, frame.Path)
	if err != nil {
		return entity.FrameScore{}, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	raw, status, err := Send(c.http, req, c.logger)
	metrics.ClassifierLatency.WithLabelValues(c.adapter.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if status != 0 {
			return entity.FrameScore{}, fmt.Errorf("%w: %v: %s", ErrProvider, err, truncate(string(raw), 256))
		}
		return entity.FrameScore{}, err
	}

	if c.schema != nil {
		if err := ValidateJSON(c.schema, raw); err != nil {
			return entity.FrameScore{}, fmt.Errorf("%w: %v", ErrProvider, err)
		}
	}

	score, err := c.adapter.Normalize(raw)
	if err != nil {
		return entity.FrameScore{}, err
	}
	score.Index = frame.Index
	if score.Source == "" {
		score.Source = constants.SourceProvider
	}
	return score, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
