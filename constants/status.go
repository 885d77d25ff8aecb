package constants

// VideoStatus is the canonical processing status stored on a video row.
type VideoStatus string

// Stable values (store these exact strings in DB).
const (
	VideoStatusUploaded   VideoStatus = "uploaded"   // waiting for a run
	VideoStatusProcessing VideoStatus = "processing" // claimed, metadata + thumbnail
	VideoStatusAnalyzing  VideoStatus = "analyzing"  // frames being classified
	VideoStatusDone       VideoStatus = "done"       // terminal, low risk
	VideoStatusFlagged    VideoStatus = "flagged"    // terminal, medium/high risk
	VideoStatusFailed     VideoStatus = "failed"     // terminal failure
)

// IsActive reports whether a run currently owns the video.
func (s VideoStatus) IsActive() bool {
	return s == VideoStatusProcessing || s == VideoStatusAnalyzing
}

// IsTerminal reports whether s ends a run.
func (s VideoStatus) IsTerminal() bool {
	switch s {
	case VideoStatusDone, VideoStatusFlagged, VideoStatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the stored status values.
func (s VideoStatus) Valid() bool {
	return s == VideoStatusUploaded || s.IsActive() || s.IsTerminal()
}

// ActiveStatuses lists the statuses a claim must not steal from.
var ActiveStatuses = []string{string(VideoStatusProcessing), string(VideoStatusAnalyzing)}

// Progress checkpoints written by the pipeline.
const (
	ProgressClaimed   = 10
	ProgressMetadata  = 20
	ProgressThumbnail = 40
	ProgressAnalyzing = 50
	ProgressScored    = 90
	ProgressComplete  = 100
)
