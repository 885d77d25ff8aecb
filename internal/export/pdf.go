package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

// ExportVideosPDF renders a printable moderation report: one section per video
// with its verdict, category peaks, recommendations and flagged positions.
func (s *Service) ExportVideosPDF(ctx context.Context, statuses ...constants.VideoStatus) ([]byte, error) {
	start := time.Now()

	videos, err := s.videos.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("vidscreen moderation report", false)
	pdf.SetAuthor("vidscreen", false)
	pdf.SetCreationDate(start)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Moderation report")
	pdf.Ln(11)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s, %d video(s)", start.UTC().Format("2006-01-02 15:04 MST"), len(videos)))
	pdf.Ln(10)

	if len(videos) == 0 {
		pdf.MultiCell(0, 6, "No videos matched.", "", "L", false)
	}
	for i, v := range videos {
		if i > 0 {
			pdf.Ln(4)
		}
		writeVideoSection(pdf, tr, v)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}

	s.logger.Info("export.pdf.ok",
		"videos", len(videos),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeVideoSection(pdf *gofpdf.Fpdf, tr func(string) string, v *entity.Video) {
	title := v.Title
	if strings.TrimSpace(title) == "" {
		title = v.OriginalName
	}

	pdf.SetFont("Helvetica", "B", 13)
	r, g, b := tierColor(v.RiskLevel)
	pdf.SetTextColor(r, g, b)
	pdf.CellFormat(0, 8, tr(truncate(title, 80)), "B", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 10)
	lines := []string{
		fmt.Sprintf("ID: %s", v.ID),
		fmt.Sprintf("Status: %s    Risk: %s    Sensitivity: %s (%d%%)",
			v.Status, orNone(string(v.RiskLevel)), v.Sensitivity, v.SensitivityScore),
		fmt.Sprintf("NSFW %d%%    Violence %d%%    Scene %d%%    Duration %.1fs",
			v.CategoryScores[constants.NSFW], v.CategoryScores[constants.Violence], v.CategoryScores[constants.Scene], v.Duration),
	}
	if v.FlaggedReason != "" {
		lines = append(lines, "Reason: "+v.FlaggedReason)
	}
	if v.Analysis != "" {
		lines = append(lines, "Analysis: "+v.Analysis)
	}
	for _, l := range lines {
		pdf.MultiCell(0, 5, tr(l), "", "L", false)
	}

	md := v.AIMetadata
	if md == nil {
		return
	}
	if len(md.Recommendations) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 6, "Recommendations")
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		for _, rec := range md.Recommendations {
			pdf.MultiCell(0, 5, tr("- "+rec), "", "L", false)
		}
	}
	if ts := md.TemporalAnalysis.FlaggedTimestamps; len(ts) > 0 {
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("Flagged at: %s (consistency %.2f)",
			strings.Join(ts, ", "), md.TemporalAnalysis.ConsistencyScore)), "", "L", false)
	}
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, tr(fmt.Sprintf("%d/%d frames analysed by %s (%s)",
		md.FramesAnalyzed, md.TotalFrames, orNone(md.Metadata.APIProvider), strings.Join(md.Metadata.ModelsUsed, ", "))), "", "L", false)
}

func tierColor(tier constants.RiskTier) (int, int, int) {
	switch tier {
	case constants.RiskHigh:
		return 180, 20, 20
	case constants.RiskMedium:
		return 200, 110, 0
	}
	return 0, 0, 0
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
