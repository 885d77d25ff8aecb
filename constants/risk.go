package constants

// RiskTier is the coarse classification derived from the peak composite score.
type RiskTier string

const (
	RiskLow       RiskTier = "low"
	RiskLowMedium RiskTier = "low-medium"
	RiskMedium    RiskTier = "medium"
	RiskHigh      RiskTier = "high"
)

// Tier thresholds on the peak score. Comparisons are strict.
const (
	HighRiskThreshold      = 0.7
	MediumRiskThreshold    = 0.5
	LowMediumRiskThreshold = 0.3

	// FrameFlagThreshold marks a single frame as flagged when its composite exceeds it.
	FrameFlagThreshold = 0.5
	// NSFWAdvisoryThreshold and ViolenceAdvisoryThreshold trigger category advisories.
	NSFWAdvisoryThreshold     = 0.6
	ViolenceAdvisoryThreshold = 0.4
)

// Flags reports whether the tier moves a video to the flagged state.
func (t RiskTier) Flags() bool {
	return t == RiskMedium || t == RiskHigh
}

// Sensitivity is the binary verdict exposed to clients.
type Sensitivity string

const (
	SensitivityUnknown Sensitivity = "unknown"
	SensitivitySafe    Sensitivity = "safe"
	SensitivityFlagged Sensitivity = "flagged"
)

// ScoreSource records where a frame score came from.
type ScoreSource string

const (
	SourceProvider ScoreSource = "provider"
	SourceFallback ScoreSource = "fallback"
	SourceError    ScoreSource = "error"
)
