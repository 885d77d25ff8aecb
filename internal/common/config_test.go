package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("FRAME_COUNT", "")
	t.Setenv("SIGHTENGINE_USER", "")
	cfg := LoadConfig()

	assert.Equal(t, 12, cfg.Pipeline.FrameCount)
	assert.Equal(t, 6, cfg.Pipeline.SampleSize)
	assert.Equal(t, time.Second, cfg.Pipeline.RateLimit)
	assert.Equal(t, []string{"nudity-2.0", "offensive", "gore"}, cfg.Classifier.Models)
	assert.False(t, cfg.Classifier.HasCredentials())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("FRAME_COUNT", "20")
	t.Setenv("SAMPLE_SIZE", "8")
	t.Setenv("CLASSIFIER_RATE_LIMIT", "250ms")
	t.Setenv("SIGHTENGINE_USER", "u")
	t.Setenv("SIGHTENGINE_SECRET", "s")
	t.Setenv("SIGHTENGINE_MODELS", "nudity-2.0, gore ,")
	t.Setenv("LOG_LEVEL", "debug")
	cfg := LoadConfig()

	assert.Equal(t, 20, cfg.Pipeline.FrameCount)
	assert.Equal(t, 8, cfg.Pipeline.SampleSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.RateLimit)
	assert.True(t, cfg.Classifier.HasCredentials())
	assert.Equal(t, []string{"nudity-2.0", "gore"}, cfg.Classifier.Models)
	assert.Equal(t, slog.LevelDebug, cfg.Telemetry.SlogLevel())
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.Pipeline.SampleSize = 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeConfig))
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg = LoadConfig()
	cfg.Database.DSN = ""
	assert.True(t, HasCode(cfg.ValidateDaemon(), CodeConfig))
}

func TestOpenAIProviderConfig(t *testing.T) {
	t.Setenv("CLASSIFIER_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")
	cfg := LoadConfig()

	assert.True(t, cfg.Classifier.HasCredentials())
	assert.InDelta(t, 0.2, cfg.Classifier.OpenAI.Temperature, 1e-6)
	require.NoError(t, cfg.Validate())

	cfg.Classifier.Provider = "acme"
	assert.True(t, HasCode(cfg.Validate(), CodeConfig))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, TelemetryConfig{LogLevel: "warn", LogFormat: "json"}).Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(&buf, TelemetryConfig{LogLevel: "info", LogFormat: "json"}).Info("pipeline.run.started", "video_id", "x")
	assert.Contains(t, buf.String(), `"msg":"pipeline.run.started"`)

	buf.Reset()
	NewLogger(&buf, TelemetryConfig{LogFormat: "text"}).Info("console")
	assert.Contains(t, buf.String(), "console")
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("title", "", Required)
	v.Field("file", "clip.exe", VideoFile)
	require.True(t, v.HasErrors())
	err := v.Err()
	assert.ErrorIs(t, err, ErrValidation)

	ok := NewValidator()
	ok.Field("title", "beach", Required, MaxLength(200))
	ok.Field("file", "clip.MP4", VideoFile)
	assert.False(t, ok.HasErrors())
	assert.NoError(t, ok.Err())
}

func TestDomainRules(t *testing.T) {
	v := NewValidator()
	v.Field("id", "not-a-uuid", UUID)
	v.Field("status", "archived", VideoStatus)
	assert.Len(t, v.Errors(), 2)

	ok := NewValidator()
	ok.Field("id", "7d2b7a0e-8f9e-4a39-9d43-5a2a0b4c1e11", UUID)
	ok.Field("status", "flagged", VideoStatus)
	assert.NoError(t, ok.Err())
}

func TestLogAttrs(t *testing.T) {
	assert.Empty(t, LogAttrs(context.Background()))

	ctx := WithTraceID(WithRequestID(context.Background(), "req-1"), "trace-1")
	assert.Equal(t, []any{"request_id", "req-1", "trace_id", "trace-1"}, LogAttrs(ctx))
}
