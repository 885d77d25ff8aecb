package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

const (
	VideosSheet = "Videos"
	FramesSheet = "Frames"
)

// VideoLister is the read side of the video store.
type VideoLister interface {
	ListByStatus(ctx context.Context, statuses ...constants.VideoStatus) ([]*entity.Video, error)
}

// Service produces XLSX moderation reports.
type Service struct {
	videos VideoLister
	logger *slog.Logger
}

func NewService(videos VideoLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{videos: videos, logger: logger}
}

// ExportVideosXLSX returns a workbook with one row per video and one row per analysed frame.
// With no statuses every video is included.
func (s *Service) ExportVideosXLSX(ctx context.Context, statuses ...constants.VideoStatus) ([]byte, error) {
	start := time.Now()

	videos, err := s.videos.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	// excelize starts with "Sheet1"; rename it so the report opens on the summary.
	if err := f.SetSheetName("Sheet1", VideosSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(FramesSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(VideosSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, VideosSheet, 1, []any{
		"Video ID", "Title", "Status", "Risk Level", "Sensitivity", "Score",
		"NSFW", "Violence", "Scene", "Duration (s)", "Flagged Reason", "Analysis", "Source Path", "Updated",
	})
	writeRow(f, FramesSheet, 1, []any{
		"Video ID", "Frame", "Position", "Composite", "Flagged", "Source", "Errors",
	})

	row, frameRow := 2, 2
	for _, v := range videos {
		writeRow(f, VideosSheet, row, []any{
			v.ID.String(),
			v.Title,
			string(v.Status),
			orDash(string(v.RiskLevel)),
			string(v.Sensitivity),
			v.SensitivityScore,
			v.CategoryScores[constants.NSFW],
			v.CategoryScores[constants.Violence],
			v.CategoryScores[constants.Scene],
			v.Duration,
			v.FlaggedReason,
			truncate(v.Analysis, 140),
			v.SourcePath,
			v.UpdatedAt.UTC().Format(time.RFC3339),
		})
		row++

		if v.AIMetadata == nil {
			continue
		}
		for _, fa := range v.AIMetadata.FrameAnalysis {
			writeRow(f, FramesSheet, frameRow, []any{
				v.ID.String(),
				fa.FrameIndex,
				fa.Timestamp,
				entity.Percent(fa.CompositeScore),
				fa.IsFlagged,
				string(fa.Source),
				truncate(fmt.Sprint(fa.Errors), 140),
			})
			frameRow++
		}
	}

	_ = f.SetColWidth(VideosSheet, "A", "A", 38) // id
	_ = f.SetColWidth(VideosSheet, "B", "B", 28) // title
	_ = f.SetColWidth(VideosSheet, "C", "J", 12)
	_ = f.SetColWidth(VideosSheet, "K", "L", 48) // reason, analysis
	_ = f.SetColWidth(VideosSheet, "M", "M", 60) // path
	_ = f.SetColWidth(FramesSheet, "A", "A", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"videos", len(videos),
		"frames", frameRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
