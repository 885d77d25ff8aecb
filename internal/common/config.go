package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Media      MediaConfig
	Classifier ClassifierConfig
	Pipeline   PipelineConfig
	Notify     NotifyConfig
	Storage    StorageConfig
	Telemetry  TelemetryConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds daemon listener configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// MediaConfig holds ffmpeg and scratch-space configuration
type MediaConfig struct {
	FFmpegBin    string
	FFprobeBin   string
	ScratchDir   string
	ThumbnailDir string
	FrameWidth   int
	// WatchDir, when set, is watched by the daemon for new video files.
	WatchDir      string
	WatchDebounce time.Duration
}

// ClassifierConfig holds moderation-provider configuration
type ClassifierConfig struct {
	Provider  string
	Endpoint  string
	APIUser   string
	APISecret string
	Models    []string
	Timeout   time.Duration
	Attempts  int
	Backoff   time.Duration
	OpenAI    OpenAIConfig
}

// OpenAIConfig configures the vision-model provider
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// PipelineConfig holds orchestration knobs
type PipelineConfig struct {
	FrameCount     int
	SampleSize     int
	RateLimit      time.Duration
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// NotifyConfig holds notification transports; empty values disable a transport
type NotifyConfig struct {
	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQJobQueue string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// StorageConfig holds optional object storage for thumbnails
type StorageConfig struct {
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOUseSSL     bool
	ThumbnailBucket string
	PublicURL       string
}

// TelemetryConfig holds tracing and logging settings
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
	LogLevel     string
	LogFormat    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Media: MediaConfig{
			FFmpegBin:     getEnv("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin:    getEnv("FFPROBE_BIN", "ffprobe"),
			ScratchDir:    getEnv("SCRATCH_DIR", "./tmp/frames"),
			ThumbnailDir:  getEnv("THUMBNAIL_DIR", "./uploads/thumbnails"),
			FrameWidth:    getEnvAsInt("FRAME_WIDTH", 640),
			WatchDir:      getEnv("WATCH_DIR", ""),
			WatchDebounce: getEnvAsDuration("WATCH_DEBOUNCE", 2*time.Second),
		},
		Classifier: ClassifierConfig{
			Provider:  getEnv("CLASSIFIER_PROVIDER", "sightengine"),
			Endpoint:  getEnv("SIGHTENGINE_URL", "https://api.sightengine.com/1.0/check.json"),
			APIUser:   getEnv("SIGHTENGINE_USER", ""),
			APISecret: getEnv("SIGHTENGINE_SECRET", ""),
			Models:    getEnvAsList("SIGHTENGINE_MODELS", []string{"nudity-2.0", "offensive", "gore"}),
			Timeout:   getEnvAsDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
			Attempts:  getEnvAsInt("CLASSIFIER_ATTEMPTS", 2),
			Backoff:   getEnvAsDuration("CLASSIFIER_BACKOFF", time.Second),
			OpenAI: OpenAIConfig{
				APIKey:      getEnv("OPENAI_API_KEY", ""),
				BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Temperature: float32(getEnvAsFloat("OPENAI_TEMPERATURE", 0)),
			},
		},
		Pipeline: PipelineConfig{
			FrameCount:     getEnvAsInt("FRAME_COUNT", 12),
			SampleSize:     getEnvAsInt("SAMPLE_SIZE", 6),
			RateLimit:      getEnvAsDuration("CLASSIFIER_RATE_LIMIT", time.Second),
			Workers:        getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:      getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PIPELINE_TIMEOUT", 0),
		},
		Notify: NotifyConfig{
			RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
			RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "vidscreen.events"),
			RabbitMQJobQueue: getEnv("RABBITMQ_JOB_QUEUE", "vidscreen.process"),
			RedisAddr:        getEnv("REDIS_ADDR", ""),
			RedisPassword:    getEnv("REDIS_PASSWORD", ""),
			RedisDB:          getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			MinIOEndpoint:   getEnv("MINIO_ENDPOINT", ""),
			MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
			MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),
			ThumbnailBucket: getEnv("MINIO_THUMBNAIL_BUCKET", "thumbnails"),
			PublicURL:       getEnv("MINIO_PUBLIC_URL", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("SERVICE_NAME", "vidscreen"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			LogFormat:    getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// HasCredentials reports whether the configured provider can authenticate.
func (c ClassifierConfig) HasCredentials() bool {
	if c.Provider == "openai" {
		return c.OpenAI.APIKey != ""
	}
	return c.APIUser != "" && c.APISecret != ""
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	switch strings.ToLower(t.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Validate checks the settings every entrypoint needs. Database DSN is checked
// by callers since the CLI may run against in-memory SQLite.
func (c *Config) Validate() error {
	if c.Pipeline.FrameCount < 1 {
		return NewAppError(CodeConfig, "FRAME_COUNT must be at least 1", ErrInvalidInput)
	}
	if c.Pipeline.SampleSize < 2 {
		return NewAppError(CodeConfig, "SAMPLE_SIZE must be at least 2", ErrInvalidInput)
	}
	if c.Classifier.Attempts < 1 {
		return NewAppError(CodeConfig, "CLASSIFIER_ATTEMPTS must be at least 1", ErrInvalidInput)
	}
	if c.Classifier.Timeout <= 0 {
		return NewAppError(CodeConfig, "CLASSIFIER_TIMEOUT must be positive", ErrInvalidInput)
	}
	switch c.Classifier.Provider {
	case "", "sightengine":
		if c.Classifier.Endpoint == "" {
			return NewAppError(CodeConfig, "SIGHTENGINE_URL is required", ErrInvalidInput)
		}
	case "openai":
		if c.Classifier.OpenAI.BaseURL == "" || c.Classifier.OpenAI.Model == "" {
			return NewAppError(CodeConfig, "OPENAI_BASE_URL and OPENAI_MODEL are required", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "unknown CLASSIFIER_PROVIDER "+c.Classifier.Provider, ErrInvalidInput)
	}
	return nil
}

// ValidateDaemon adds the checks only the long-running worker needs.
func (c *Config) ValidateDaemon() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
