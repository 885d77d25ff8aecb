package entity

import (
	"encoding/json"
	"math"

	"github.com/joseph-ayodele/vidscreen/constants"
)

// Frame is one extracted still image. Index is its position among all extracted frames.
type Frame struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
}

// FrameScore is the normalized classifier output for one frame.
type FrameScore struct {
	Index    int                                    `json:"index"`
	NSFW     float64                                `json:"nsfw"`
	Violence float64                                `json:"violence"`
	Scene    float64                                `json:"scene"`
	Source   constants.ScoreSource                  `json:"source"`
	Error    string                                 `json:"error,omitempty"`
	Details  map[constants.Category]json.RawMessage `json:"details,omitempty"`
}

// NewFrameScore builds a score with every category clamped to [0,1].
func NewFrameScore(index int, nsfw, violence, scene float64, source constants.ScoreSource) FrameScore {
	return FrameScore{
		Index:    index,
		NSFW:     Clamp01(nsfw),
		Violence: Clamp01(violence),
		Scene:    Clamp01(scene),
		Source:   source,
	}
}

// ErrorFrameScore is the zero-valued score recorded for a frame that could not be classified.
func ErrorFrameScore(index int, err error) FrameScore {
	msg := "classification failed"
	if err != nil {
		msg = err.Error()
	}
	return FrameScore{Index: index, Source: constants.SourceError, Error: msg}
}

// Failed reports whether the score stands in for a failed call.
func (s FrameScore) Failed() bool {
	return s.Source == constants.SourceError
}

// Category returns the score for c.
func (s FrameScore) Category(c constants.Category) float64 {
	switch c {
	case constants.NSFW:
		return s.NSFW
	case constants.Violence:
		return s.Violence
	case constants.Scene:
		return s.Scene
	}
	return 0
}

// Composite is the fixed weighted blend of the three categories.
func (s FrameScore) Composite() float64 {
	if s.Failed() {
		return 0
	}
	var total float64
	for _, c := range constants.Categories() {
		total += s.Category(c) * constants.CategoryWeights[c]
	}
	return Clamp01(total)
}

// Clamp01 bounds v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
