package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/metrics"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// VideoProcessor runs the pipeline for one video.
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, id uuid.UUID) (entity.AnalysisResult, error)
}

type ProcessorQueue struct {
	proc    VideoProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	quit    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	// mu is never held across a channel operation.
	mu      sync.Mutex
	closed  bool
	pending map[uuid.UUID]int
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithProcessTimeout bounds each run; zero leaves runs unbounded.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc VideoProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		ch:      make(chan Job, 256),
		quit:    make(chan struct{}),
		pending: make(map[uuid.UUID]int),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.dequeued(job)
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx := context.Background()
	if job.TraceID != "" {
		ctx = common.WithTraceID(ctx, job.TraceID)
	}
	var cancel context.CancelFunc = func() {}
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	res, err := q.proc.ProcessVideo(ctx, job.VideoID)
	cancel()

	waited := time.Since(job.SubmittedAt)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "video_id", job.VideoID, "code", common.CodeOf(err), "error", err)
		return
	}
	q.logger.Info("processed video successfully",
		"worker_id", workerID,
		"video_id", job.VideoID,
		"risk_tier", res.RiskTier,
		"since_submit", waited,
	)
}

func (q *ProcessorQueue) dequeued(job Job) {
	q.release(job.VideoID)
	metrics.QueueDepth.Dec()
}

func (q *ProcessorQueue) release(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending[id] <= 1 {
		delete(q.pending, id)
		return
	}
	q.pending[id]--
}

// Enqueue blocks while the buffer is full. A video already waiting is skipped unless job.Force is set.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "video_id", job.VideoID)
		return ErrQueueClosed
	}
	if q.pending[job.VideoID] > 0 && !job.Force {
		q.mu.Unlock()
		q.logger.Info("video already queued, skipping", "video_id", job.VideoID)
		return nil
	}
	q.pending[job.VideoID]++
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	metrics.QueueDepth.Inc()
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "video_id", job.VideoID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.abandon(job)
			return ctx.Err()
		case <-q.quit:
			q.abandon(job)
			return ErrQueueClosed
		}
	}
	q.logger.Info("queued video for processing", "video_id", job.VideoID, "force", job.Force)
	return nil
}

func (q *ProcessorQueue) abandon(job Job) {
	q.release(job.VideoID)
	metrics.QueueDepth.Dec()
}

// Shutdown stops intake, waits for blocked senders to give up, then drains the workers.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
