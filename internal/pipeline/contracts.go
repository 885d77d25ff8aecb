package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/media"
)

// Store is the slice of the job store a run needs.
type Store interface {
	Claim(ctx context.Context, id uuid.UUID) (*entity.Video, error)
	SaveJob(ctx context.Context, id uuid.UUID, u entity.VideoUpdate) error
}

// Media probes, renders thumbnails and extracts frames from a source file.
type Media interface {
	Probe(ctx context.Context, path string) (media.Metadata, error)
	GenerateThumbnail(ctx context.Context, sourcePath, name string) (media.Thumbnail, error)
	ExtractFrames(ctx context.Context, jobKey, sourcePath string, count int) ([]entity.Frame, error)
	ReleaseScratch(jobKey string) error
}

// ThumbnailStore publishes a rendered thumbnail and returns its public location.
type ThumbnailStore interface {
	UploadThumbnail(ctx context.Context, localPath, name string) (string, error)
}
