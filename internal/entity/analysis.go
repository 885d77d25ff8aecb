package entity

import (
	"math"
	"time"

	"github.com/joseph-ayodele/vidscreen/constants"
)

// CategoryBreakdown summarizes one category across successful frames.
type CategoryBreakdown struct {
	Average    float64 `json:"average"`
	Max        float64 `json:"max"`
	Confidence float64 `json:"confidence"`
}

// TemporalAnalysis describes where in the clip flagged frames sit.
type TemporalAnalysis struct {
	FlaggedTimestamps []string `json:"flaggedTimestamps"`
	ConsistencyScore  float64  `json:"consistencyScore"`
}

// FrameAnalysis is the per-frame line of the report.
type FrameAnalysis struct {
	FrameIndex     int                            `json:"frameIndex"`
	Timestamp      string                         `json:"timestamp"`
	CompositeScore float64                        `json:"compositeScore"`
	IsFlagged      bool                           `json:"isFlagged"`
	Source         constants.ScoreSource          `json:"source"`
	Categories     map[constants.Category]float64 `json:"categories"`
	Errors         []string                       `json:"errors"`
}

// AnalysisMetadata records how the result was produced.
type AnalysisMetadata struct {
	ModelsUsed       []string  `json:"modelsUsed"`
	APIProvider      string    `json:"apiProvider"`
	SamplingStrategy string    `json:"samplingStrategy"`
	ProcessingDate   time.Time `json:"processingDate"`
}

// AnalysisResult is the aggregated verdict for one run.
type AnalysisResult struct {
	OverallScore        float64                                  `json:"overallScore"`
	PeakScore           float64                                  `json:"peakScore"`
	RiskTier            constants.RiskTier                       `json:"riskTier"`
	Analysis            string                                   `json:"analysis"`
	Recommendations     []string                                 `json:"recommendations"`
	Categories          map[constants.Category]CategoryBreakdown `json:"categories"`
	FlaggedFrameIndices []int                                    `json:"flaggedFrameIndices"`
	FramesAnalyzed      int                                      `json:"framesAnalyzed"`
	SuccessfulFrames    int                                      `json:"successfulFrames"`
	TotalFrames         int                                      `json:"totalFrames"`
	Temporal            TemporalAnalysis                         `json:"temporalAnalysis"`
	Frames              []FrameAnalysis                          `json:"frameAnalysis"`
	Metadata            AnalysisMetadata                         `json:"metadata"`
}

// Sensitivity is flagged iff the peak exceeds the frame flag threshold.
func (r AnalysisResult) Sensitivity() constants.Sensitivity {
	if r.PeakScore > constants.FrameFlagThreshold {
		return constants.SensitivityFlagged
	}
	return constants.SensitivitySafe
}

// SensitivityScore is the peak score on a 0..100 scale.
func (r AnalysisResult) SensitivityScore() int {
	return Percent(r.PeakScore)
}

// Status is the terminal status the tier maps to.
func (r AnalysisResult) Status() constants.VideoStatus {
	if r.RiskTier.Flags() {
		return constants.VideoStatusFlagged
	}
	return constants.VideoStatusDone
}

// CategoryScores returns per-category maxima on a 0..100 scale.
func (r AnalysisResult) CategoryScores() map[constants.Category]int {
	out := make(map[constants.Category]int, len(r.Categories))
	for c, b := range r.Categories {
		out[c] = Percent(b.Max)
	}
	return out
}

// AIMetadata is the persisted mirror of an AnalysisResult with scores scaled to 0..100.
type AIMetadata struct {
	OverallScore     int                                      `json:"overallScore"`
	MaxScore         int                                      `json:"maxScore"`
	RiskLevel        constants.RiskTier                       `json:"riskLevel"`
	FramesAnalyzed   int                                      `json:"framesAnalyzed"`
	TotalFrames      int                                      `json:"totalFrames"`
	FlaggedFrames    int                                      `json:"flaggedFrames"`
	FlaggedIndices   []int                                    `json:"flaggedFrameIndices"`
	Recommendations  []string                                 `json:"recommendations"`
	Categories       map[constants.Category]CategoryBreakdown `json:"categories"`
	TemporalAnalysis TemporalAnalysis                         `json:"temporalAnalysis"`
	FrameAnalysis    []FrameAnalysis                          `json:"frameAnalysis"`
	Metadata         AnalysisMetadata                         `json:"metadata"`
}

// AIMetadata builds the persisted form of r.
func (r AnalysisResult) AIMetadata() *AIMetadata {
	return &AIMetadata{
		OverallScore:     Percent(r.OverallScore),
		MaxScore:         Percent(r.PeakScore),
		RiskLevel:        r.RiskTier,
		FramesAnalyzed:   r.FramesAnalyzed,
		TotalFrames:      r.TotalFrames,
		FlaggedFrames:    len(r.FlaggedFrameIndices),
		FlaggedIndices:   append([]int(nil), r.FlaggedFrameIndices...),
		Recommendations:  append([]string(nil), r.Recommendations...),
		Categories:       r.Categories,
		TemporalAnalysis: r.Temporal,
		FrameAnalysis:    r.Frames,
		Metadata:         r.Metadata,
	}
}

// Percent converts a [0,1] score to a rounded 0..100 integer.
func Percent(v float64) int {
	return int(math.Round(Clamp01(v) * 100))
}
