package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

// FrameTimestamps spreads count timestamps strictly inside (0, duration).
func FrameTimestamps(duration float64, count int) []float64 {
	if count <= 0 || duration <= 0 {
		return nil
	}
	out := make([]float64, count)
	for i := 1; i <= count; i++ {
		out[i-1] = duration * float64(i) / float64(count+1)
	}
	return out
}

// ExtractFrames writes up to count stills of sourcePath into the scratch
// directory for jobKey and returns them in timestamp order. Timestamps that
// produce no file are skipped; zero files is an error.
func (e *Extractor) ExtractFrames(ctx context.Context, jobKey, sourcePath string, count int) ([]entity.Frame, error) {
	start := time.Now()
	if count <= 0 {
		return nil, common.NewAppError(common.CodeExtractionFailed, "frame count must be positive", common.ErrInvalidInput)
	}
	meta, err := e.Probe(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	dir := e.scratchDir(jobKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	timestamps := FrameTimestamps(meta.Duration, count)
	e.logger.Info("media.frames.extract_start", "path", sourcePath, "count", count, "duration", meta.Duration)

	frames := make([]entity.Frame, 0, count)
	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			_ = e.ReleaseScratch(jobKey)
			return nil, err
		}
		out := filepath.Join(dir, fmt.Sprintf("frame-%03d.jpg", i+1))
		_, _, runErr := e.runner.Run(ctx, e.cfg.FFmpeg,
			"-hide_banner", "-loglevel", "error", "-y",
			"-ss", fmt.Sprintf("%.3f", ts),
			"-i", sourcePath,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=%d:-2", e.cfg.FrameWidth),
			"-q:v", "2",
			out,
		)
		if runErr != nil || !fileExists(out) {
			e.logger.Warn("media.frames.missing", "timestamp", ts, "position", i+1, "error", runErr)
			continue
		}
		abs, err := filepath.Abs(out)
		if err != nil {
			abs = out
		}
		frames = append(frames, entity.Frame{Path: abs, Index: len(frames)})
	}

	if len(frames) == 0 {
		_ = e.ReleaseScratch(jobKey)
		return nil, common.NewAppError(common.CodeExtractionFailed, sourcePath, ErrExtractionFailed)
	}

	e.logger.Info("media.frames.extracted",
		"path", sourcePath,
		"requested", count,
		"extracted", len(frames),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return frames, nil
}

// CleanupFrames removes the given frame files, ignoring ones already gone.
func CleanupFrames(frames []entity.Frame) int {
	removed := 0
	for _, f := range frames {
		if err := os.Remove(f.Path); err == nil {
			removed++
		}
	}
	return removed
}
