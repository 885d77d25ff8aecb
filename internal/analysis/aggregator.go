// Package analysis turns per-frame scores into a run verdict.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

var ErrAllFramesFailed = errors.New("all classification calls failed")

// FailureRecommendations accompany an all-frames-failed run.
var FailureRecommendations = []string{"Check provider credentials", "Verify API quota"}

// Aggregator stamps results with how they were produced.
type Aggregator struct {
	provider string
	models   []string
	strategy string
	now      func() time.Time
}

func NewAggregator(provider string, models []string, strategy string) *Aggregator {
	return &Aggregator{
		provider: provider,
		models:   append([]string(nil), models...),
		strategy: strategy,
		now:      time.Now,
	}
}

// TierFor maps a peak score to its risk tier. Thresholds are strict.
func TierFor(peak float64) constants.RiskTier {
	switch {
	case peak > constants.HighRiskThreshold:
		return constants.RiskHigh
	case peak > constants.MediumRiskThreshold:
		return constants.RiskMedium
	case peak > constants.LowMediumRiskThreshold:
		return constants.RiskLowMedium
	default:
		return constants.RiskLow
	}
}

type categoryAcc struct {
	total float64
	max   float64
}

// Aggregate combines the sampled frame scores. totalFrames is the number of
// frames extracted before sampling. When no score succeeded the partial
// result is returned together with an ALL_FRAMES_FAILED error.
func (a *Aggregator) Aggregate(scores []entity.FrameScore, totalFrames int) (entity.AnalysisResult, error) {
	scores = append([]entity.FrameScore(nil), scores...)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Index < scores[j].Index })

	sampled := len(scores)
	if totalFrames < sampled {
		totalFrames = sampled
	}
	for _, s := range scores {
		if s.Index+1 > totalFrames {
			totalFrames = s.Index + 1
		}
	}

	res := entity.AnalysisResult{
		RiskTier:            constants.RiskLow,
		FramesAnalyzed:      sampled,
		TotalFrames:         totalFrames,
		Categories:          make(map[constants.Category]entity.CategoryBreakdown, 3),
		FlaggedFrameIndices: []int{},
		Frames:              make([]entity.FrameAnalysis, 0, sampled),
		Temporal:            entity.TemporalAnalysis{FlaggedTimestamps: []string{}},
		Metadata: entity.AnalysisMetadata{
			ModelsUsed:       append([]string(nil), a.models...),
			APIProvider:      a.provider,
			SamplingStrategy: a.strategy,
			ProcessingDate:   a.now().UTC(),
		},
	}

	acc := make(map[constants.Category]*categoryAcc, 3)
	for _, c := range constants.Categories() {
		acc[c] = &categoryAcc{}
	}

	var success int
	var total float64
	for _, s := range scores {
		res.Frames = append(res.Frames, frameAnalysis(s, totalFrames))
		if s.Failed() {
			continue
		}
		success++
		composite := s.Composite()
		total += composite
		res.PeakScore = math.Max(res.PeakScore, composite)
		for c, ca := range acc {
			v := s.Category(c)
			ca.total += v
			ca.max = math.Max(ca.max, v)
		}
		if composite > constants.FrameFlagThreshold {
			res.FlaggedFrameIndices = append(res.FlaggedFrameIndices, s.Index)
			res.Temporal.FlaggedTimestamps = append(res.Temporal.FlaggedTimestamps, positionLabel(s.Index, totalFrames))
		}
	}
	res.SuccessfulFrames = success

	if success == 0 {
		res.PeakScore = 0
		res.Analysis = "Analysis failed: all classification calls failed."
		res.Recommendations = append([]string(nil), FailureRecommendations...)
		return res, common.NewAppError(common.CodeAllFramesFailed,
			fmt.Sprintf("0 of %d sampled frames classified", sampled), ErrAllFramesFailed)
	}

	res.OverallScore = total / float64(success)
	confidence := float64(success) / float64(sampled)
	for c, ca := range acc {
		res.Categories[c] = entity.CategoryBreakdown{
			Average:    ca.total / float64(success),
			Max:        ca.max,
			Confidence: confidence,
		}
	}
	res.Temporal.ConsistencyScore = 1 - float64(len(res.FlaggedFrameIndices))/float64(sampled)
	res.RiskTier = TierFor(res.PeakScore)
	res.Analysis = tierAnalysis(res.RiskTier)
	res.Recommendations = recommendations(res.RiskTier, res.Categories)
	return res, nil
}

func frameAnalysis(s entity.FrameScore, totalFrames int) entity.FrameAnalysis {
	fa := entity.FrameAnalysis{
		FrameIndex:     s.Index,
		Timestamp:      positionLabel(s.Index, totalFrames),
		CompositeScore: s.Composite(),
		Source:         s.Source,
		Categories:     make(map[constants.Category]float64, 3),
		Errors:         []string{},
	}
	fa.IsFlagged = !s.Failed() && fa.CompositeScore > constants.FrameFlagThreshold
	for _, c := range constants.Categories() {
		fa.Categories[c] = s.Category(c)
	}
	if s.Error != "" {
		fa.Errors = append(fa.Errors, s.Error)
	}
	return fa
}

// positionLabel is the frame's relative position in the clip, e.g. "45%".
func positionLabel(index, totalFrames int) string {
	if totalFrames <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Floor(float64(index)/float64(totalFrames)*100)))
}
