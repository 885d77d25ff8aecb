package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

type stubLister struct {
	videos []*entity.Video
	asked  []constants.VideoStatus
}

func (s *stubLister) ListByStatus(_ context.Context, statuses ...constants.VideoStatus) ([]*entity.Video, error) {
	s.asked = statuses
	return s.videos, nil
}

func TestExportVideosXLSX(t *testing.T) {
	flagged := &entity.Video{
		ID:               uuid.New(),
		Title:            "beach",
		Status:           constants.VideoStatusFlagged,
		Sensitivity:      constants.SensitivityFlagged,
		SensitivityScore: 55,
		RiskLevel:        constants.RiskMedium,
		CategoryScores:   map[constants.Category]int{constants.NSFW: 55, constants.Violence: 12, constants.Scene: 3},
		UpdatedAt:        time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		AIMetadata: &entity.AIMetadata{FrameAnalysis: []entity.FrameAnalysis{
			{FrameIndex: 0, Timestamp: "0%", CompositeScore: 0.1, Source: constants.SourceProvider},
			{FrameIndex: 6, Timestamp: "50%", CompositeScore: 0.55, IsFlagged: true, Source: constants.SourceProvider},
		}},
	}
	pending := &entity.Video{ID: uuid.New(), Title: "pending", Status: constants.VideoStatusUploaded}
	lister := &stubLister{videos: []*entity.Video{flagged, pending}}

	raw, err := NewService(lister, nil).ExportVideosXLSX(context.Background(), constants.VideoStatusFlagged, constants.VideoStatusUploaded)
	require.NoError(t, err)
	assert.Equal(t, []constants.VideoStatus{constants.VideoStatusFlagged, constants.VideoStatusUploaded}, lister.asked)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(VideosSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Video ID", rows[0][0])
	assert.Equal(t, flagged.ID.String(), rows[1][0])
	assert.Equal(t, "medium", rows[1][3])
	assert.Equal(t, "55", rows[1][6])
	assert.Equal(t, "—", rows[2][3])

	frames, err := f.GetRows(FramesSheet)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "6", frames[2][1])
	assert.Equal(t, "55", frames[2][3])
	assert.Equal(t, "TRUE", frames[2][4])
}

func TestExportVideosPDF(t *testing.T) {
	flagged := &entity.Video{
		ID:               uuid.New(),
		Title:            "café footage",
		Status:           constants.VideoStatusFlagged,
		Sensitivity:      constants.SensitivityFlagged,
		SensitivityScore: 72,
		RiskLevel:        constants.RiskHigh,
		FlaggedReason:    "High Risk: Significant sensitive content detected.",
		AIMetadata: &entity.AIMetadata{
			FramesAnalyzed:   6,
			TotalFrames:      12,
			Recommendations:  []string{"Manual review required", "NSFW content detected (72%)"},
			TemporalAnalysis: entity.TemporalAnalysis{FlaggedTimestamps: []string{"50%"}, ConsistencyScore: 0.83},
		},
	}
	lister := &stubLister{videos: []*entity.Video{flagged, {ID: uuid.New(), Status: constants.VideoStatusUploaded}}}

	raw, err := NewService(lister, nil).ExportVideosPDF(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))
	assert.Empty(t, lister.asked)

	empty, err := NewService(&stubLister{}, nil).ExportVideosPDF(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}
