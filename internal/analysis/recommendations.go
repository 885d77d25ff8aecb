package analysis

import (
	"fmt"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

func tierAnalysis(tier constants.RiskTier) string {
	switch tier {
	case constants.RiskHigh:
		return "High Risk: Significant sensitive content detected."
	case constants.RiskMedium:
		return "Medium Risk: Some concerning content detected."
	case constants.RiskLowMedium:
		return "Low Risk: Minor concerns detected."
	default:
		return "Content appears safe."
	}
}

func recommendations(tier constants.RiskTier, cats map[constants.Category]entity.CategoryBreakdown) []string {
	var out []string
	switch tier {
	case constants.RiskHigh:
		out = append(out, "Content should be flagged", "Manual review strongly recommended")
	case constants.RiskMedium:
		out = append(out, "Content may need review")
	case constants.RiskLowMedium:
		out = append(out, "Content likely safe with minor concerns")
	default:
		out = append(out, "Content appears safe")
	}

	if nsfw := cats[constants.NSFW].Max; nsfw > constants.NSFWAdvisoryThreshold {
		out = append(out, fmt.Sprintf("NSFW content detected (%d%%)", entity.Percent(nsfw)))
	}
	if v := cats[constants.Violence].Max; v > constants.ViolenceAdvisoryThreshold {
		out = append(out, fmt.Sprintf("Violence/gore detected (%d%%)", entity.Percent(v)))
	}
	return out
}

// FlaggedReason explains a flagged verdict in one line.
func FlaggedReason(res entity.AnalysisResult) string {
	return fmt.Sprintf("Automated analysis flagged %s risk content (peak %d%%, %d of %d frames over threshold)",
		res.RiskTier, res.SensitivityScore(), len(res.FlaggedFrameIndices), res.FramesAnalyzed)
}
