package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/vidscreen/constants"
)

const (
	thumbnailFallbackDuration = 10.0
	thumbnailMaxOffset        = 5.0
	thumbnailSize             = "1280:720"
)

// Thumbnail locates a generated poster image.
type Thumbnail struct {
	LocalPath  string
	PublicPath string
}

// ThumbnailOffset picks the poster timestamp: 20% in, capped at 5s.
func ThumbnailOffset(duration float64) float64 {
	if duration <= 0 {
		duration = thumbnailFallbackDuration
	}
	return math.Min(duration*0.2, thumbnailMaxOffset)
}

// GenerateThumbnail renders one 1280x720 still named name into the thumbnail directory.
func (e *Extractor) GenerateThumbnail(ctx context.Context, sourcePath, name string) (Thumbnail, error) {
	if err := requireFile(sourcePath); err != nil {
		return Thumbnail{}, err
	}
	duration := thumbnailFallbackDuration
	if meta, err := e.Probe(ctx, sourcePath); err == nil {
		duration = meta.Duration
	} else {
		e.logger.Warn("media.thumbnail.probe_failed", "path", sourcePath, "error", err)
	}

	if err := os.MkdirAll(e.cfg.ThumbnailDir, 0o755); err != nil {
		return Thumbnail{}, fmt.Errorf("create thumbnail dir: %w", err)
	}
	out := filepath.Join(e.cfg.ThumbnailDir, filepath.Base(name))
	_, stderr, err := e.runner.Run(ctx, e.cfg.FFmpeg,
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", fmt.Sprintf("%.3f", ThumbnailOffset(duration)),
		"-i", sourcePath,
		"-frames:v", "1",
		"-vf", "scale="+thumbnailSize,
		out,
	)
	if err != nil {
		return Thumbnail{}, fmt.Errorf("ffmpeg thumbnail: %w: %s", err, truncate(string(stderr), 512))
	}
	if !fileExists(out) {
		return Thumbnail{}, fmt.Errorf("thumbnail not written: %s", out)
	}

	e.logger.Info("media.thumbnail.generated", "path", out)
	return Thumbnail{LocalPath: out, PublicPath: constants.ThumbnailPublicPrefix + filepath.Base(out)}, nil
}
