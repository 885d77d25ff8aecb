package ingest

import (
	"context"

	"github.com/google/uuid"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	VideoID      uuid.UUID
	Deduplicated bool
	HashHex      string
	FileExt      string
	Size         int64
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor registers local video files as uploaded videos.
type Ingestor interface {
	// IngestPath registers a single file.
	IngestPath(ctx context.Context, path string, opts Options) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, opts Options) ([]IngestionResult, DirStats, error)
}

// Options apply to every file of one ingest call.
type Options struct {
	Title      string // empty -> file name without extension
	Owner      string
	SkipHidden bool
	Recursive  bool
}
