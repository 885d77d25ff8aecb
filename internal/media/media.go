// Package media wraps ffprobe and ffmpeg for metadata, thumbnails and frame extraction.
package media

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joseph-ayodele/vidscreen/internal/common"
)

var (
	ErrMediaNotFound    = errors.New("media file not found")
	ErrProbe            = errors.New("could not determine media metadata")
	ErrExtractionFailed = errors.New("no frames were extracted")
)

type Config struct {
	FFmpeg       string // binary name or absolute path; if empty -> "ffmpeg"
	FFprobe      string // binary name or absolute path; if empty -> "ffprobe"
	ScratchDir   string // parent of the per-job frame directories
	ThumbnailDir string
	FrameWidth   int // default 640; height keeps aspect ratio
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return newExtractor(cfg, execRunner{logger: logger}, logger)
}

func newExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = "ffprobe"
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "vidscreen-frames")
	}
	if cfg.ThumbnailDir == "" {
		cfg.ThumbnailDir = "./uploads/thumbnails"
	}
	if cfg.FrameWidth <= 0 {
		cfg.FrameWidth = 640
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// scratchDir is the job-scoped directory frames for jobKey are written to.
func (e *Extractor) scratchDir(jobKey string) string {
	key := unsafeKey.ReplaceAllString(jobKey, "_")
	if key == "" {
		key = "anonymous"
	}
	return filepath.Join(e.cfg.ScratchDir, key)
}

// ReleaseScratch removes every frame written for jobKey.
func (e *Extractor) ReleaseScratch(jobKey string) error {
	dir := e.scratchDir(jobKey)
	if err := os.RemoveAll(dir); err != nil {
		e.logger.Warn("media.scratch.cleanup_failed", "dir", dir, "error", err)
		return err
	}
	e.logger.Debug("media.scratch.released", "dir", dir)
	return nil
}

func requireFile(path string) error {
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return common.NewAppError(common.CodeMediaNotFound, path, ErrMediaNotFound)
	}
	return nil
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir() && st.Size() > 0
}
