package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
	"github.com/joseph-ayodele/vidscreen/internal/export"
	"github.com/joseph-ayodele/vidscreen/internal/ingest"
)

func runAdd(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("add", flag.ContinueOnError)
	var (
		file      = flags.String("file", "", "video file to register")
		dir       = flags.String("dir", "", "directory whose video files should be registered")
		recursive = flags.Bool("recursive", false, "descend into subdirectories of -dir")
		title     = flags.String("title", "", "title (defaults to the file name)")
		owner     = flags.String("owner", "", "owner recorded on the video")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if (*file == "") == (*dir == "") {
		return common.NewAppError("VALIDATION_ERROR", "exactly one of -file or -dir is required", common.ErrInvalidInput)
	}

	if *file != "" {
		res, err := registerVideo(ctx, c, *file, *title, *owner)
		if err != nil {
			return err
		}
		printIngested(c, res)
		return nil
	}

	results, stats, err := c.app.Ingestor.IngestDirectory(ctx, *dir, ingest.Options{
		Owner:      *owner,
		SkipHidden: true,
		Recursive:  *recursive,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != "" {
			c.logger.Error("failed to register video", "path", r.SourcePath, "error", r.Err)
			continue
		}
		printIngested(c, r)
	}
	c.logger.Info("add.directory", "dir", *dir, "matched", stats.Matched,
		"registered", stats.Succeeded-stats.Deduplicated, "duplicates", stats.Deduplicated, "failed", stats.Failed)
	if stats.Succeeded == 0 {
		return errors.New("no videos registered")
	}
	return nil
}

func printIngested(c *cli, r ingest.IngestionResult) {
	if r.Deduplicated {
		fmt.Fprintf(c.out, "%s\t%s\t(already registered)\n", r.VideoID, r.SourcePath)
		return
	}
	fmt.Fprintf(c.out, "%s\t%s\n", r.VideoID, r.SourcePath)
}

// registerVideo registers path, or returns the existing video with identical content.
func registerVideo(ctx context.Context, c *cli, path, title, owner string) (ingest.IngestionResult, error) {
	return c.app.Ingestor.IngestPath(ctx, path, ingest.Options{Title: title, Owner: owner})
}

func runProcess(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("process", flag.ContinueOnError)
	var (
		idStr = flags.String("id", "", "video id to process")
		file  = flags.String("file", "", "register this file first, then process it")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	var id uuid.UUID
	switch {
	case *idStr != "":
		if err := common.NewValidator().Field("id", *idStr, common.UUID).Err(); err != nil {
			return err
		}
		id = uuid.MustParse(*idStr)
	case *file != "":
		r, err := registerVideo(ctx, c, *file, "", "")
		if err != nil {
			return err
		}
		id = r.VideoID
	default:
		return common.NewAppError("VALIDATION_ERROR", "-id or -file is required", common.ErrInvalidInput)
	}

	res, err := c.app.Processor.ProcessVideo(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Video %s: %s risk, score %d%%, %d/%d frames flagged\n",
		id, res.RiskTier, res.SensitivityScore(), len(res.FlaggedFrameIndices), res.FramesAnalyzed)
	for _, r := range res.Recommendations {
		fmt.Fprintf(c.out, "  - %s\n", r)
	}
	return nil
}

// batchSummary counts batch outcomes by risk tier.
type batchSummary struct {
	byTier   map[constants.RiskTier]int
	failures int
	skipped  int
}

func newBatchSummary() *batchSummary {
	return &batchSummary{byTier: make(map[constants.RiskTier]int)}
}

func (s *batchSummary) record(res entity.AnalysisResult, err error) {
	switch {
	case common.HasCode(err, common.CodeAlreadyProcessing):
		s.skipped++
	case err != nil:
		s.failures++
	default:
		s.byTier[res.RiskTier]++
	}
}

func (s *batchSummary) processed() int {
	n := 0
	for _, v := range s.byTier {
		n += v
	}
	return n
}

func (s *batchSummary) print(c *cli, total int) {
	fmt.Fprintf(c.out, "Batch complete!\n")
	fmt.Fprintf(c.out, "- Videos: %d\n", total)
	fmt.Fprintf(c.out, "- Processed: %d\n", s.processed())
	for _, tier := range []constants.RiskTier{constants.RiskLow, constants.RiskLowMedium, constants.RiskMedium, constants.RiskHigh} {
		fmt.Fprintf(c.out, "  - %s: %d\n", tier, s.byTier[tier])
	}
	fmt.Fprintf(c.out, "- Failures: %d\n", s.failures)
	if s.skipped > 0 {
		fmt.Fprintf(c.out, "- Skipped (already processing): %d\n", s.skipped)
	}
}

func processBatch(ctx context.Context, c *cli, videos []*entity.Video, delay time.Duration) *batchSummary {
	summary := newBatchSummary()
	for i, v := range videos {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				c.logger.Warn("batch interrupted", "remaining", len(videos)-i)
				summary.print(c, len(videos))
				return summary
			case <-time.After(delay):
			}
		}
		c.logger.Info("processing video", "video_id", v.ID, "title", v.Title, "n", i+1, "of", len(videos))
		res, err := c.app.Processor.ProcessVideo(ctx, v.ID)
		if err != nil {
			c.logger.Error("failed to process video", "video_id", v.ID, "error", err)
		}
		summary.record(res, err)
	}
	summary.print(c, len(videos))
	return summary
}

func runProcessAll(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("process-all", flag.ContinueOnError)
	delay := flags.Duration("delay", 10*time.Second, "pause between videos")
	if err := flags.Parse(args); err != nil {
		return err
	}
	videos, err := c.app.Videos.ListByStatus(ctx, constants.VideoStatusUploaded, constants.VideoStatusFailed)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Fprintln(c.out, "No videos waiting for processing.")
		return nil
	}
	processBatch(ctx, c, videos, *delay)
	return nil
}

func runReanalyze(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("reanalyze", flag.ContinueOnError)
	delay := flags.Duration("delay", 5*time.Second, "pause between videos")
	if err := flags.Parse(args); err != nil {
		return err
	}
	videos, err := c.app.Videos.ListNeedingReanalysis(ctx)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Fprintln(c.out, "All finished videos have category scores.")
		return nil
	}
	processBatch(ctx, c, videos, *delay)
	return nil
}

func runCleanOrphans(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("clean-orphans", flag.ContinueOnError)
	dryRun := flags.Bool("dry-run", false, "list orphans without deleting them")
	if err := flags.Parse(args); err != nil {
		return err
	}
	removed, err := cleanOrphans(ctx, c, *dryRun)
	if err != nil {
		return err
	}
	verb := "Deleted"
	if *dryRun {
		verb = "Would delete"
	}
	fmt.Fprintf(c.out, "%s %d orphaned video(s).\n", verb, len(removed))
	return nil
}

// cleanOrphans removes videos whose source file no longer exists, along with their local thumbnail.
func cleanOrphans(ctx context.Context, c *cli, dryRun bool) ([]*entity.Video, error) {
	videos, err := c.app.Videos.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []*entity.Video
	for _, v := range videos {
		if _, err := os.Stat(v.SourcePath); err == nil || !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		orphans = append(orphans, v)
		if dryRun {
			c.logger.Info("orphan found", "video_id", v.ID, "source_path", v.SourcePath)
			continue
		}
		if err := c.app.Videos.Delete(ctx, v.ID); err != nil {
			c.logger.Error("failed to delete orphan", "video_id", v.ID, "error", err)
			continue
		}
		if strings.HasPrefix(v.Thumbnail, constants.ThumbnailPublicPrefix) {
			local := filepath.Join(c.app.Config.Media.ThumbnailDir, filepath.Base(v.Thumbnail))
			if err := os.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.logger.Warn("failed to remove thumbnail", "path", local, "error", err)
			}
		}
		c.logger.Info("orphan deleted", "video_id", v.ID, "source_path", v.SourcePath)
	}
	return orphans, nil
}

func runCheck(ctx context.Context, c *cli, args []string) error {
	videos, err := c.app.Videos.ListAll(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tRISK\tSCORE\tFILE\tNOTE")
	for _, v := range videos {
		note := ""
		if v.NeedsReanalysis() {
			note = "needs reanalysis"
		}
		file := "ok"
		if _, err := os.Stat(v.SourcePath); err != nil {
			file = "missing"
		}
		risk := string(v.RiskLevel)
		if risk == "" {
			risk = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%d\t%s\t%s\n",
			v.ID, v.Title, v.Status, v.Progress, risk, v.SensitivityScore, file, note)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d video(s)\n", len(videos))
	return nil
}

func runExport(ctx context.Context, c *cli, args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	var (
		out      = flags.String("out", "vidscreen-report.xlsx", "output file path")
		format   = flags.String("format", "", "xlsx or pdf (default from -out extension)")
		statuses = flags.String("status", "", "comma-separated statuses to include (default all)")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	var filter []constants.VideoStatus
	v := common.NewValidator()
	for _, s := range strings.Split(*statuses, ",") {
		if s = strings.TrimSpace(s); s != "" {
			v.Field("status", s, common.VideoStatus)
			filter = append(filter, constants.VideoStatus(s))
		}
	}
	if err := v.Err(); err != nil {
		return err
	}

	kind := strings.ToLower(*format)
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(*out)), ".")
	}
	svc := export.NewService(c.app.Videos, c.logger)
	var raw []byte
	var err error
	switch kind {
	case "xlsx":
		raw, err = svc.ExportVideosXLSX(ctx, filter...)
	case "pdf":
		raw, err = svc.ExportVideosPDF(ctx, filter...)
	default:
		return common.NewAppError("VALIDATION_ERROR", fmt.Sprintf("unsupported export format %q", kind), common.ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(c.out, "Report written to %s\n", *out)
	return nil
}
