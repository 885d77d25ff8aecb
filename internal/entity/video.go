package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/constants"
)

// Video is the unit of work the pipeline operates on.
type Video struct {
	ID               uuid.UUID                  `json:"id"`
	Title            string                     `json:"title"`
	OriginalName     string                     `json:"original_name"`
	Filename         string                     `json:"filename"`
	SourcePath       string                     `json:"source_path"`
	MimeType         string                     `json:"mime_type"`
	Owner            string                     `json:"owner,omitempty"`
	Size             int64                      `json:"size"`
	ContentHash      string                     `json:"content_hash,omitempty"`
	Status           constants.VideoStatus      `json:"status"`
	Progress         int                        `json:"progress"`
	Sensitivity      constants.Sensitivity      `json:"sensitivity"`
	SensitivityScore int                        `json:"sensitivity_score"`
	ManualReview     bool                       `json:"manual_review"`
	FlaggedReason    string                     `json:"flagged_reason,omitempty"`
	Duration         float64                    `json:"duration"`
	Thumbnail        string                     `json:"thumbnail,omitempty"`
	Analysis         string                     `json:"analysis,omitempty"`
	RiskLevel        constants.RiskTier         `json:"risk_level,omitempty"`
	CategoryScores   map[constants.Category]int `json:"category_scores,omitempty"`
	AIMetadata       *AIMetadata                `json:"ai_metadata,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// NeedsReanalysis reports whether a finished video lacks the category report.
func (v *Video) NeedsReanalysis() bool {
	if v.Status != constants.VideoStatusDone && v.Status != constants.VideoStatusFlagged {
		return false
	}
	return len(v.CategoryScores) == 0 || v.RiskLevel == ""
}

// VideoUpdate is a partial update; nil fields are left untouched.
type VideoUpdate struct {
	Status           *constants.VideoStatus
	Progress         *int
	Sensitivity      *constants.Sensitivity
	SensitivityScore *int
	FlaggedReason    *string
	Duration         *float64
	Thumbnail        *string
	Analysis         *string
	RiskLevel        *constants.RiskTier
	CategoryScores   map[constants.Category]int
	AIMetadata       *AIMetadata
}

// IsEmpty reports whether the update would change nothing.
func (u VideoUpdate) IsEmpty() bool {
	return u.Status == nil && u.Progress == nil && u.Sensitivity == nil &&
		u.SensitivityScore == nil && u.FlaggedReason == nil && u.Duration == nil &&
		u.Thumbnail == nil && u.Analysis == nil && u.RiskLevel == nil &&
		u.CategoryScores == nil && u.AIMetadata == nil
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
