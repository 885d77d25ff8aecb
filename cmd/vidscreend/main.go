package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/vidscreen/internal/app"
	"github.com/joseph-ayodele/vidscreen/internal/async"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/ingest"
	"github.com/joseph-ayodele/vidscreen/internal/metrics"
	"github.com/joseph-ayodele/vidscreen/internal/tracing"
)

// staleAfter is how long a run may sit in processing before startup marks it failed.
const staleAfter = 30 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Telemetry)
	slog.SetDefault(logger)

	if err := cfg.ValidateDaemon(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, app.Options{}, logger)
	if err != nil {
		logger.Error("failed to wire application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if n, err := a.Videos.FailStale(ctx, time.Now().Add(-staleAfter)); err != nil {
		logger.Warn("stale run recovery failed", "error", err)
	} else if n > 0 {
		logger.Info("recovered interrupted runs", "count", n)
	}

	metricsSrv := metrics.StartServer(cfg.Server.MetricsAddr, logger)

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
	)

	if cfg.Notify.RabbitMQURL != "" {
		intake, err := async.NewIntake(async.IntakeConfig{
			URL:      cfg.Notify.RabbitMQURL,
			Exchange: cfg.Notify.RabbitMQExchange,
			Queue:    cfg.Notify.RabbitMQJobQueue,
			Prefetch: cfg.Pipeline.Workers * 2,
		}, queue, logger)
		if err != nil {
			logger.Error("failed to start job intake", "error", err)
			os.Exit(1)
		}
		defer intake.Close()
		go func() {
			if err := intake.Run(ctx); err != nil {
				logger.Error("job intake stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("RABBITMQ_URL not set, jobs arrive only through WATCH_DIR", "watch_dir", cfg.Media.WatchDir)
	}

	if cfg.Media.WatchDir != "" {
		go func() {
			err := a.Ingestor.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Media.WatchDir},
				InitialScan: true,
				Debounce:    cfg.Media.WatchDebounce,
			}, ingest.Options{SkipHidden: true}, func(r ingest.IngestionResult) {
				if err := queue.Enqueue(ctx, async.Job{VideoID: r.VideoID, SubmittedAt: time.Now()}); err != nil {
					logger.Error("failed to enqueue watched video", "video_id", r.VideoID, "error", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watch directory stopped", "dir", cfg.Media.WatchDir, "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("vidscreend listening", "addr", cfg.Server.GRPCAddr, "metrics_addr", cfg.Server.MetricsAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)
	grpcServer.GracefulStop()
	if err := metricsSrv.Shutdown(drainCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}
