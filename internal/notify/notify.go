// Package notify fans pipeline progress out to whoever is watching a video.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/metrics"
)

// Event names used on the per-video room and the global stream.
const (
	EventUpdate   = "processing:update"
	EventFinished = "processing:finished"

	GlobalProgress = "processingProgress"
	GlobalComplete = "processingComplete"
)

// ProgressMessage is emitted at every non-terminal checkpoint.
type ProgressMessage struct {
	VideoID          uuid.UUID             `json:"videoId"`
	Progress         int                   `json:"progress"`
	Status           constants.VideoStatus `json:"status"`
	Sensitivity      constants.Sensitivity `json:"sensitivity,omitempty"`
	SensitivityScore *int                  `json:"sensitivityScore,omitempty"`
	Thumbnail        string                `json:"thumbnail,omitempty"`
}

// FinishedMessage is emitted exactly once per run, after the terminal write.
type FinishedMessage struct {
	VideoID          uuid.UUID             `json:"videoId"`
	Status           constants.VideoStatus `json:"status"`
	Sensitivity      constants.Sensitivity `json:"sensitivity"`
	SensitivityScore int                   `json:"sensitivityScore"`
	RiskLevel        constants.RiskTier    `json:"riskLevel,omitempty"`
	Progress         int                   `json:"progress"`
	Thumbnail        string                `json:"thumbnail,omitempty"`
	Duration         float64               `json:"duration,omitempty"`
	Message          string                `json:"message,omitempty"`
}

// Notifier delivers pipeline messages. Delivery is best effort; callers log errors and move on.
type Notifier interface {
	Progress(ctx context.Context, msg ProgressMessage) error
	Finished(ctx context.Context, msg FinishedMessage) error
}

// Room is the per-video channel name.
func Room(id uuid.UUID) string {
	return "video:" + id.String()
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// LogNotifier writes every message to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Progress(ctx context.Context, msg ProgressMessage) error {
	n.logger.InfoContext(ctx, "notify.progress",
		"video_id", msg.VideoID,
		"room", Room(msg.VideoID),
		"progress", msg.Progress,
		"status", msg.Status,
	)
	return nil
}

func (n *LogNotifier) Finished(ctx context.Context, msg FinishedMessage) error {
	n.logger.InfoContext(ctx, "notify.finished",
		"video_id", msg.VideoID,
		"room", Room(msg.VideoID),
		"status", msg.Status,
		"sensitivity", msg.Sensitivity,
		"sensitivity_score", msg.SensitivityScore,
		"risk_level", msg.RiskLevel,
		"message", msg.Message,
	)
	return nil
}

type named struct {
	name string
	n    Notifier
}

// Multi delivers to every transport and joins their errors.
type Multi struct {
	targets []named
	logger  *slog.Logger
}

func NewMulti(logger *slog.Logger) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{logger: logger}
}

// Add registers a transport under a name used for logs and metrics.
func (m *Multi) Add(name string, n Notifier) *Multi {
	if n != nil {
		m.targets = append(m.targets, named{name: name, n: n})
	}
	return m
}

func (m *Multi) Len() int { return len(m.targets) }

func (m *Multi) Progress(ctx context.Context, msg ProgressMessage) error {
	return m.each(ctx, "progress", msg.VideoID, func(n Notifier) error { return n.Progress(ctx, msg) })
}

func (m *Multi) Finished(ctx context.Context, msg FinishedMessage) error {
	return m.each(ctx, "finished", msg.VideoID, func(n Notifier) error { return n.Finished(ctx, msg) })
}

func (m *Multi) each(ctx context.Context, kind string, id uuid.UUID, fn func(Notifier) error) error {
	var errs []error
	for _, t := range m.targets {
		if err := fn(t.n); err != nil {
			metrics.NotificationErrorsTotal.WithLabelValues(t.name).Inc()
			m.logger.WarnContext(ctx, "notify.delivery.failed",
				"transport", t.name, "kind", kind, "video_id", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
