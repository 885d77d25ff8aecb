// Package pipeline drives one video from uploaded to a terminal verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/analysis"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/metrics"
	"github.com/joseph-ayodele/vidscreen/internal/moderation"
	"github.com/joseph-ayodele/vidscreen/internal/notify"
	"github.com/joseph-ayodele/vidscreen/internal/sampling"
)

const tracerName = "github.com/joseph-ayodele/vidscreen/internal/pipeline"

// Failure messages carried on the finished notification.
const (
	MessageFileNotFound = "Video file not found"
	MessageFailed       = "Processing failed"
)

type Options struct {
	FrameCount int
	SampleSize int
	// RateLimit is the pause between consecutive classifier calls.
	RateLimit time.Duration
}

// DefaultOptions extracts 12 frames, classifies 6 and waits 1s between calls.
func DefaultOptions() Options {
	return Options{FrameCount: 12, SampleSize: 6, RateLimit: time.Second}
}

// Processor coordinates claim, media, classification, aggregation and persistence.
type Processor struct {
	store      Store
	media      Media
	classifier moderation.Classifier
	notifier   notify.Notifier
	thumbs     ThumbnailStore
	opts       Options
	logger     *slog.Logger
	tracer     trace.Tracer
	sleep      func(ctx context.Context, d time.Duration) error
}

type ProcessorOption func(*Processor)

// WithThumbnailStore uploads thumbnails after they are rendered locally.
func WithThumbnailStore(s ThumbnailStore) ProcessorOption {
	return func(p *Processor) { p.thumbs = s }
}

func WithOptions(o Options) ProcessorOption {
	return func(p *Processor) {
		if o.FrameCount > 0 {
			p.opts.FrameCount = o.FrameCount
		}
		if o.SampleSize > 0 {
			p.opts.SampleSize = o.SampleSize
		}
		if o.RateLimit >= 0 {
			p.opts.RateLimit = o.RateLimit
		}
	}
}

func NewProcessor(store Store, m Media, classifier moderation.Classifier, notifier notify.Notifier, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	p := &Processor{
		store:      store,
		media:      m,
		classifier: classifier,
		notifier:   notifier,
		opts:       DefaultOptions(),
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		sleep:      sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// run holds per-run state so checkpoints stay ordered and the terminal message goes out once.
type run struct {
	id        uuid.UUID
	video     *entity.Video
	progress  int
	thumbnail string
	duration  float64
	finished  bool
	logger    *slog.Logger
}

// ProcessVideo runs the full pipeline for one video. A video that is already
// being processed is rejected with ALREADY_PROCESSING and no notifications.
func (p *Processor) ProcessVideo(ctx context.Context, id uuid.UUID) (entity.AnalysisResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_video", trace.WithAttributes(attribute.String("video.id", id.String())))
	defer span.End()

	logger := p.logger.With("video_id", id).With(common.LogAttrs(ctx)...)
	started := time.Now()

	claimStart := time.Now()
	video, err := p.store.Claim(ctx, id)
	metrics.ObserveStage("claim", claimStart)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		logger.Warn("pipeline.claim.rejected", "code", common.CodeOf(err), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim rejected")
		return entity.AnalysisResult{}, err
	}
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	r := &run{id: id, video: video, progress: video.Progress, logger: logger}
	logger.Info("pipeline.run.started", "source_path", video.SourcePath)
	p.checkpoint(ctx, r, constants.ProgressClaimed, constants.VideoStatusProcessing, entity.VideoUpdate{})

	res, err := p.execute(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.fail(ctx, r, err)
		metrics.RunsTotal.WithLabelValues(string(constants.VideoStatusFailed)).Inc()
		logger.Error("pipeline.run.failed", "code", common.CodeOf(err), "error", err, "elapsed", time.Since(started))
		return res, err
	}

	status := p.complete(ctx, r, res)
	metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	metrics.RiskTiersTotal.WithLabelValues(string(res.RiskTier)).Inc()
	span.SetAttributes(
		attribute.String("video.status", string(status)),
		attribute.String("video.risk_tier", string(res.RiskTier)),
		attribute.Float64("video.peak_score", res.PeakScore),
	)
	logger.Info("pipeline.run.completed",
		"status", status,
		"risk_tier", res.RiskTier,
		"overall", res.OverallScore,
		"peak", res.PeakScore,
		"frames", res.FramesAnalyzed,
		"elapsed", time.Since(started),
	)
	return res, nil
}

func (p *Processor) execute(ctx context.Context, r *run) (entity.AnalysisResult, error) {
	src := r.video.SourcePath
	if _, err := os.Stat(src); err != nil {
		return entity.AnalysisResult{}, common.NewAppError(common.CodeMediaNotFound, MessageFileNotFound, err)
	}

	p.stageMetadata(ctx, r)
	p.stageThumbnail(ctx, r)

	if err := p.classifier.Ready(); err != nil {
		return entity.AnalysisResult{}, common.NewAppError(common.CodeNoCredentials, "classifier is not configured", err)
	}
	p.checkpoint(ctx, r, constants.ProgressAnalyzing, constants.VideoStatusAnalyzing, entity.VideoUpdate{})

	jobKey := r.id.String()
	defer func() {
		if err := p.media.ReleaseScratch(jobKey); err != nil {
			r.logger.Warn("pipeline.scratch.release_failed", "error", err)
		}
	}()

	frames, err := p.stageExtract(ctx, r, jobKey)
	if err != nil {
		return entity.AnalysisResult{}, err
	}
	sampled := sampling.SelectFrames(frames, p.opts.SampleSize)
	r.logger.Info("pipeline.sample.selected", "extracted", len(frames), "sampled", len(sampled), "strategy", sampling.Strategy)

	scores, err := p.stageClassify(ctx, r, sampled)
	if err != nil {
		return entity.AnalysisResult{}, err
	}

	aggStart := time.Now()
	agg := analysis.NewAggregator(p.classifier.Provider(), p.classifier.Models(), sampling.Strategy)
	res, err := agg.Aggregate(scores, len(frames))
	metrics.ObserveStage("aggregate", aggStart)
	if err != nil {
		return res, err
	}

	p.checkpoint(ctx, r, constants.ProgressScored, constants.VideoStatusAnalyzing, entity.VideoUpdate{
		Sensitivity:      entity.Ptr(res.Sensitivity()),
		SensitivityScore: entity.Ptr(res.SensitivityScore()),
	})
	return res, nil
}

func (p *Processor) stageMetadata(ctx context.Context, r *run) {
	ctx, span := p.tracer.Start(ctx, "pipeline.metadata")
	defer span.End()
	defer metrics.ObserveStage("metadata", time.Now())

	meta, err := p.media.Probe(ctx, r.video.SourcePath)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("pipeline.metadata.failed", "error", err)
	} else {
		r.duration = meta.RoundedDuration()
		span.SetAttributes(attribute.Float64("video.duration", r.duration))
	}
	p.checkpoint(ctx, r, constants.ProgressMetadata, constants.VideoStatusProcessing, entity.VideoUpdate{
		Duration: entity.Ptr(r.duration),
	})
}

func (p *Processor) stageThumbnail(ctx context.Context, r *run) {
	ctx, span := p.tracer.Start(ctx, "pipeline.thumbnail")
	defer span.End()
	defer metrics.ObserveStage("thumbnail", time.Now())

	name := fmt.Sprintf("thumb-%s.jpg", r.id)
	thumb, err := p.media.GenerateThumbnail(ctx, r.video.SourcePath, name)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("pipeline.thumbnail.failed", "error", err)
		p.checkpoint(ctx, r, constants.ProgressThumbnail, constants.VideoStatusProcessing, entity.VideoUpdate{})
		return
	}

	public := thumb.PublicPath
	if p.thumbs != nil {
		if url, err := p.thumbs.UploadThumbnail(ctx, thumb.LocalPath, name); err != nil {
			r.logger.Warn("pipeline.thumbnail.upload_failed", "error", err)
		} else {
			public = url
		}
	}
	r.thumbnail = public
	p.checkpoint(ctx, r, constants.ProgressThumbnail, constants.VideoStatusProcessing, entity.VideoUpdate{
		Thumbnail: entity.Ptr(public),
	})
}

func (p *Processor) stageExtract(ctx context.Context, r *run, jobKey string) ([]entity.Frame, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	defer metrics.ObserveStage("extract", time.Now())

	frames, err := p.media.ExtractFrames(ctx, jobKey, r.video.SourcePath, p.opts.FrameCount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))
	span.SetAttributes(attribute.Int("frames.extracted", len(frames)))
	return frames, nil
}

// stageClassify scores frames one at a time with a pause between provider calls.
func (p *Processor) stageClassify(ctx context.Context, r *run, frames []entity.Frame) ([]entity.FrameScore, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.classify", trace.WithAttributes(
		attribute.String("classifier.provider", p.classifier.Provider()),
		attribute.Int("frames.sampled", len(frames)),
	))
	defer span.End()
	defer metrics.ObserveStage("classify", time.Now())

	scores := make([]entity.FrameScore, 0, len(frames))
	for i, f := range frames {
		if i > 0 && p.opts.RateLimit > 0 {
			if err := p.sleep(ctx, p.opts.RateLimit); err != nil {
				return nil, err
			}
		}
		s := p.classifier.Classify(ctx, f)
		if s.Failed() {
			r.logger.Warn("pipeline.classify.frame_failed", "frame", f.Index, "error", s.Error)
		}
		scores = append(scores, s)
	}
	return scores, nil
}

// checkpoint persists a progress step and announces it. Both are best effort.
func (p *Processor) checkpoint(ctx context.Context, r *run, progress int, status constants.VideoStatus, u entity.VideoUpdate) {
	if progress < r.progress {
		progress = r.progress
	}
	r.progress = progress
	u.Progress = entity.Ptr(progress)
	u.Status = entity.Ptr(status)
	if err := p.store.SaveJob(ctx, r.id, u); err != nil {
		r.logger.Error("pipeline.persist.failed", "progress", progress, "error", err)
	}

	msg := notify.ProgressMessage{VideoID: r.id, Progress: progress, Status: status}
	if u.Thumbnail != nil {
		msg.Thumbnail = *u.Thumbnail
	}
	if u.Sensitivity != nil {
		msg.Sensitivity = *u.Sensitivity
		msg.SensitivityScore = u.SensitivityScore
	}
	if err := p.notifier.Progress(ctx, msg); err != nil {
		r.logger.Warn("pipeline.notify.failed", "progress", progress, "error", err)
	}
}

// complete writes the verdict and sends the finished message.
func (p *Processor) complete(ctx context.Context, r *run, res entity.AnalysisResult) constants.VideoStatus {
	ctx = context.WithoutCancel(ctx)
	defer metrics.ObserveStage("persist", time.Now())

	status := res.Status()
	u := entity.VideoUpdate{
		Status:           entity.Ptr(status),
		Progress:         entity.Ptr(constants.ProgressComplete),
		Sensitivity:      entity.Ptr(res.Sensitivity()),
		SensitivityScore: entity.Ptr(res.SensitivityScore()),
		RiskLevel:        entity.Ptr(res.RiskTier),
		Analysis:         entity.Ptr(res.Analysis),
		CategoryScores:   res.CategoryScores(),
		AIMetadata:       res.AIMetadata(),
	}
	if status == constants.VideoStatusFlagged {
		u.FlaggedReason = entity.Ptr(analysis.FlaggedReason(res))
	}
	if err := p.store.SaveJob(ctx, r.id, u); err != nil {
		r.logger.Error("pipeline.persist.failed", "progress", constants.ProgressComplete, "error", err)
	}
	r.progress = constants.ProgressComplete

	p.finish(ctx, r, notify.FinishedMessage{
		VideoID:          r.id,
		Status:           status,
		Sensitivity:      res.Sensitivity(),
		SensitivityScore: res.SensitivityScore(),
		RiskLevel:        res.RiskTier,
		Progress:         constants.ProgressComplete,
		Thumbnail:        r.thumbnail,
		Duration:         r.duration,
	})
	return status
}

// fail records a failed run. It runs detached from ctx so a cancelled run still leaves the active states.
func (p *Processor) fail(ctx context.Context, r *run, cause error) {
	ctx = context.WithoutCancel(ctx)
	message := MessageFailed
	if common.HasCode(cause, common.CodeMediaNotFound) {
		message = MessageFileNotFound
	} else if cause != nil {
		message = fmt.Sprintf("%s: %s", MessageFailed, failureDetail(cause))
	}

	if err := p.store.SaveJob(ctx, r.id, entity.VideoUpdate{
		Status:   entity.Ptr(constants.VideoStatusFailed),
		Progress: entity.Ptr(constants.ProgressComplete),
	}); err != nil {
		r.logger.Error("pipeline.persist.failed", "status", constants.VideoStatusFailed, "error", err)
	}
	r.progress = constants.ProgressComplete

	p.finish(ctx, r, notify.FinishedMessage{
		VideoID:          r.id,
		Status:           constants.VideoStatusFailed,
		Sensitivity:      constants.SensitivityUnknown,
		SensitivityScore: 0,
		Progress:         constants.ProgressComplete,
		Thumbnail:        r.thumbnail,
		Duration:         r.duration,
		Message:          message,
	})
}

func (p *Processor) finish(ctx context.Context, r *run, msg notify.FinishedMessage) {
	if r.finished {
		return
	}
	r.finished = true
	if err := p.notifier.Finished(ctx, msg); err != nil {
		r.logger.Warn("pipeline.notify.failed", "progress", msg.Progress, "error", err)
	}
}

func failureDetail(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
