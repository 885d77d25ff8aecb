package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

// VideoStore is the part of the video repository ingest writes through.
type VideoStore interface {
	Create(ctx context.Context, v *entity.Video) (*entity.Video, error)
	GetByContentHash(ctx context.Context, hash string) (*entity.Video, error)
}

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	videos VideoStore
	logger *slog.Logger
}

func NewFSIngestor(videos VideoStore, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{videos: videos, logger: logger}
}

// IngestPath hashes the file and registers it unless a video with the same content exists.
func (i *FSIngestor) IngestPath(ctx context.Context, path string, opts Options) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}

	title := opts.Title
	if title == "" {
		title = TitleFromPath(abs)
	}
	v := common.NewValidator()
	v.Field("title", title, common.Required, common.MaxLength(200))
	v.Field("file", abs, common.Required, common.VideoFile)
	if err := v.Err(); err != nil {
		return out, err
	}

	f, err := os.Open(abs)
	if err != nil {
		i.logger.Error("open error", "path", abs, "error", err)
		return out, common.NewAppError(common.CodeMediaNotFound, "video file not found", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("close file error", "path", abs, "error", err)
		}
	}(f)

	info, err := f.Stat()
	if err != nil {
		return out, err
	}
	if info.IsDir() {
		return out, common.NewAppError("VALIDATION_ERROR", "path is a directory", common.ErrInvalidInput)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		i.logger.Error("hash error", "path", abs, "error", err)
		return out, common.WrapError(err, "hash "+abs)
	}
	hashHex := hex.EncodeToString(h.Sum(nil))
	ext := constants.NormalizeExt(filepath.Ext(abs))

	out = IngestionResult{SourcePath: abs, HashHex: hashHex, FileExt: ext, Size: info.Size()}

	existing, err := i.videos.GetByContentHash(ctx, hashHex)
	switch {
	case err == nil:
		out.VideoID = existing.ID
		out.Deduplicated = true
		i.logger.Info("ingest.deduplicated", "path", abs, "video_id", existing.ID)
		return out, nil
	case !errors.Is(err, common.ErrNotFound):
		return out, err
	}

	created, err := i.videos.Create(ctx, &entity.Video{
		Title:        title,
		OriginalName: filepath.Base(abs),
		Filename:     filepath.Base(abs),
		SourcePath:   abs,
		MimeType:     constants.MimeTypeForExt(ext),
		Owner:        opts.Owner,
		Size:         info.Size(),
		ContentHash:  hashHex,
	})
	if err != nil {
		return out, err
	}
	out.VideoID = created.ID
	i.logger.Info("ingest.registered", "path", abs, "video_id", created.ID, "size", info.Size())
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each video file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, opts Options) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	// a shared title would collide across files
	opts.Title = ""

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			stats.Scanned++
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !opts.Recursive || (opts.SkipHidden && IsHidden(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		stats.Scanned++
		if opts.SkipHidden && IsHidden(path) {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path, opts)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, common.WrapError(err, "walk "+root)
	}
	return results, stats, nil
}
