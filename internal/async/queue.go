package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job asks for one video to be processed.
type Job struct {
	VideoID     uuid.UUID
	Force       bool // enqueue even if the video is already waiting in the queue
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
