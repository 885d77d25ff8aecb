package common

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. Format "text" gives colored console
// output; anything else is JSON.
func NewLogger(w io.Writer, t TelemetryConfig) *slog.Logger {
	if strings.EqualFold(t.LogFormat, "text") {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      t.SlogLevel(),
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: t.SlogLevel(),
	}))
}
