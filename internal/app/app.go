// Package app wires configuration into a ready-to-run pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/ingest"
	"github.com/joseph-ayodele/vidscreen/internal/media"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
	"github.com/joseph-ayodele/vidscreen/internal/moderation/openai"
	"github.com/joseph-ayodele/vidscreen/internal/moderation/sightengine"
	"github.com/joseph-ayodele/vidscreen/internal/notify"
	"github.com/joseph-ayodele/vidscreen/internal/pipeline"
	"github.com/joseph-ayodele/vidscreen/internal/repository"
	"github.com/joseph-ayodele/vidscreen/internal/storage"
)

// App holds the long-lived dependencies shared by the CLI and the daemon.
type App struct {
	Config    *common.Config
	DB        *repository.DB
	Videos    repository.VideoRepository
	Extractor *media.Extractor
	Ingestor  *ingest.FSIngestor
	Processor *pipeline.Processor
	Notifier  *notify.Multi
	Rabbit    *amqp.Connection

	closers []func() error
	logger  *slog.Logger
}

type Options struct {
	// InMemory runs against a throwaway SQLite database.
	InMemory bool
	// SQLitePath opens a SQLite file instead of Postgres when DB_URL is unset.
	SQLitePath string
}

// OpenDatabase picks Postgres when a DSN is configured, SQLite otherwise.
func OpenDatabase(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*repository.DB, error) {
	switch {
	case opts.InMemory:
		return repository.OpenInMemory(ctx, logger)
	case cfg.Database.DSN != "":
		return repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	case opts.SQLitePath != "":
		db, err := repository.OpenSQLite(ctx, "file:"+opts.SQLitePath+"?_pragma=busy_timeout(5000)", logger)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}
	return nil, common.NewAppError(common.CodeConfig, "DB_URL is required unless -inmem is set", common.ErrInvalidInput)
}

// NewClassifier builds the configured provider client.
func NewClassifier(cfg common.ClassifierConfig, logger *slog.Logger) (*moderation.Client, error) {
	var adapter moderation.Adapter
	switch cfg.Provider {
	case "", sightengine.ProviderName:
		adapter = sightengine.NewAdapter(sightengine.Config{
			Endpoint:  cfg.Endpoint,
			APIUser:   cfg.APIUser,
			APISecret: cfg.APISecret,
			Models:    cfg.Models,
		}, logger)
	case openai.ProviderName:
		a, err := openai.NewAdapter(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
		}, logger)
		if err != nil {
			return nil, err
		}
		adapter = a
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown classifier provider %q", cfg.Provider), common.ErrInvalidInput)
	}
	return moderation.NewClient(adapter, logger,
		moderation.WithTimeout(cfg.Timeout),
		moderation.WithAttempts(cfg.Attempts),
		moderation.WithBackoff(cfg.Backoff),
	)
}

// New wires the database, media tools, classifier, notifiers and processor.
// Optional transports that fail to connect are logged and skipped.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	db, err := OpenDatabase(ctx, cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { db.Close(); return nil })
	a.Videos = repository.NewVideoRepository(db, logger)
	a.Ingestor = ingest.NewFSIngestor(a.Videos, logger)

	a.Extractor = media.NewExtractor(media.Config{
		FFmpeg:       cfg.Media.FFmpegBin,
		FFprobe:      cfg.Media.FFprobeBin,
		ScratchDir:   cfg.Media.ScratchDir,
		ThumbnailDir: cfg.Media.ThumbnailDir,
		FrameWidth:   cfg.Media.FrameWidth,
	}, logger)

	classifier, err := NewClassifier(cfg.Classifier, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if !cfg.Classifier.HasCredentials() {
		logger.Warn("classifier credentials not configured, runs will fail with NO_CREDENTIALS")
	}

	a.Notifier = notify.NewMulti(logger).Add("log", notify.NewLogNotifier(logger))
	a.wireRabbit(cfg.Notify)
	a.wireRedis(ctx, cfg.Notify)

	var procOpts []pipeline.ProcessorOption
	procOpts = append(procOpts, pipeline.WithOptions(pipeline.Options{
		FrameCount: cfg.Pipeline.FrameCount,
		SampleSize: cfg.Pipeline.SampleSize,
		RateLimit:  cfg.Pipeline.RateLimit,
	}))
	if thumbs := a.thumbnailStorage(ctx, cfg.Storage); thumbs != nil {
		procOpts = append(procOpts, pipeline.WithThumbnailStore(thumbs))
	}
	a.Processor = pipeline.NewProcessor(a.Videos, a.Extractor, classifier, a.Notifier, logger, procOpts...)
	return a, nil
}

func (a *App) wireRabbit(cfg common.NotifyConfig) {
	if cfg.RabbitMQURL == "" {
		return
	}
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		a.logger.Warn("rabbitmq unavailable, skipping notifications", "error", err)
		return
	}
	rn, err := notify.NewRabbitNotifier(conn, cfg.RabbitMQExchange, a.logger)
	if err != nil {
		a.logger.Warn("rabbitmq notifier setup failed", "error", err)
		conn.Close()
		return
	}
	a.Rabbit = conn
	a.Notifier.Add("rabbitmq", rn)
	a.closers = append(a.closers, rn.Close, conn.Close)
	a.logger.Info("rabbitmq notifications enabled", "exchange", cfg.RabbitMQExchange)
}

func (a *App) wireRedis(ctx context.Context, cfg common.NotifyConfig) {
	if cfg.RedisAddr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, skipping notifications", "addr", cfg.RedisAddr, "error", err)
		client.Close()
		return
	}
	rn := notify.NewRedisNotifier(client, a.logger)
	a.Notifier.Add("redis", rn)
	a.closers = append(a.closers, rn.Close)
	a.logger.Info("redis notifications enabled", "addr", cfg.RedisAddr)
}

func (a *App) thumbnailStorage(ctx context.Context, cfg common.StorageConfig) pipeline.ThumbnailStore {
	if cfg.MinIOEndpoint == "" {
		return nil
	}
	s, err := storage.NewThumbnailStorage(storage.Config{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.ThumbnailBucket,
		PublicURL: cfg.PublicURL,
	}, a.logger)
	if err != nil {
		a.logger.Warn("object storage unavailable, thumbnails stay local", "error", err)
		return nil
	}
	if err := s.EnsureBucket(ctx); err != nil {
		a.logger.Warn("thumbnail bucket check failed, thumbnails stay local", "error", err)
		return nil
	}
	a.logger.Info("thumbnail uploads enabled", "bucket", cfg.ThumbnailBucket)
	return s
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
