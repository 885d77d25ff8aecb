// Package moderation calls an external image-moderation provider once per frame
// and turns its answer into a normalized FrameScore.
package moderation

import (
	"context"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

var (
	ErrNoCredentials = errors.New("classifier credentials missing")
	ErrProvider      = errors.New("provider reported failure")
)

// Adapter translates between one provider's wire format and FrameScore.
type Adapter interface {
	Name() string
	Models() []string
	// Ready returns ErrNoCredentials (or another config error) when calls cannot succeed.
	Ready() error
	NewRequest(ctx context.Context, framePath string) (*http.Request, error)
	// Schema describes a well-formed provider response; nil skips validation.
	Schema() map[string]any
	// Normalize maps a raw response body to category scores. Index and Source are set by the caller.
	Normalize(raw []byte) (entity.FrameScore, error)
}

// Classifier scores one frame. Implementations never fail: errors become
// error-tagged zero scores.
type Classifier interface {
	Classify(ctx context.Context, frame entity.Frame) entity.FrameScore
	Ready() error
	Provider() string
	Models() []string
}
