package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/app"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

func newTestCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	cfg := common.LoadConfig()
	cfg.Notify = common.NotifyConfig{}
	cfg.Storage = common.StorageConfig{}
	cfg.Media.ThumbnailDir = t.TempDir()

	a, err := app.New(context.Background(), cfg, app.Options{InMemory: true}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var out bytes.Buffer
	return &cli{app: a, out: &out, logger: slog.Default()}, &out
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("video:"+name), 0o644))
	return p
}

func TestAddDirectoryRegistersOnlyVideos(t *testing.T) {
	c, out := newTestCLI(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.mp4")
	writeFile(t, dir, "b.MOV")
	writeFile(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "c.mp4")

	require.NoError(t, runAdd(context.Background(), c, []string{"-dir", dir}))

	videos, err := c.app.Videos.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, constants.VideoStatusUploaded, videos[0].Status)
	assert.Contains(t, out.String(), "a.mp4")

	titles := []string{videos[0].Title, videos[1].Title}
	assert.ElementsMatch(t, []string{"a", "b"}, titles)

	out.Reset()
	require.NoError(t, runAdd(context.Background(), c, []string{"-dir", dir, "-recursive"}))
	videos, err = c.app.Videos.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, videos, 3)
	assert.Contains(t, out.String(), "already registered")
}

func TestAddRejectsBadInput(t *testing.T) {
	c, _ := newTestCLI(t)
	ctx := context.Background()

	err := runAdd(ctx, c, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	err = runAdd(ctx, c, []string{"-file", filepath.Join(t.TempDir(), "missing.mp4")})
	assert.Error(t, err)

	_, err = registerVideo(ctx, c, writeFile(t, t.TempDir(), "x.exe"), "x", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCleanOrphans(t *testing.T) {
	c, _ := newTestCLI(t)
	ctx := context.Background()
	dir := t.TempDir()

	keep, err := registerVideo(ctx, c, writeFile(t, dir, "keep.mp4"), "keep", "")
	require.NoError(t, err)
	gonePath := writeFile(t, dir, "gone.mp4")
	gone, err := registerVideo(ctx, c, gonePath, "gone", "")
	require.NoError(t, err)

	thumb := filepath.Join(c.app.Config.Media.ThumbnailDir, "thumb-"+gone.VideoID.String()+".jpg")
	require.NoError(t, os.WriteFile(thumb, []byte("jpg"), 0o644))
	require.NoError(t, c.app.Videos.SaveJob(ctx, gone.VideoID, entity.VideoUpdate{
		Thumbnail: entity.Ptr(constants.ThumbnailPublicPrefix + filepath.Base(thumb)),
	}))
	require.NoError(t, os.Remove(gonePath))

	orphans, err := cleanOrphans(ctx, c, true)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	_, err = c.app.Videos.LoadJob(ctx, gone.VideoID)
	require.NoError(t, err)

	orphans, err = cleanOrphans(ctx, c, false)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, gone.VideoID, orphans[0].ID)

	_, err = c.app.Videos.LoadJob(ctx, gone.VideoID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = c.app.Videos.LoadJob(ctx, keep.VideoID)
	assert.NoError(t, err)
	_, err = os.Stat(thumb)
	assert.True(t, os.IsNotExist(err))
}

func TestCheckPrintsTable(t *testing.T) {
	c, out := newTestCLI(t)
	ctx := context.Background()
	v, err := registerVideo(ctx, c, writeFile(t, t.TempDir(), "beach.mp4"), "beach", "")
	require.NoError(t, err)
	require.NoError(t, c.app.Videos.SaveJob(ctx, v.VideoID, entity.VideoUpdate{Status: entity.Ptr(constants.VideoStatusDone)}))

	require.NoError(t, runCheck(ctx, c, nil))
	assert.Contains(t, out.String(), v.VideoID.String())
	assert.Contains(t, out.String(), "needs reanalysis")
	assert.Contains(t, out.String(), "1 video(s)")
}

func TestBatchSummary(t *testing.T) {
	s := newBatchSummary()
	s.record(entity.AnalysisResult{RiskTier: constants.RiskLow}, nil)
	s.record(entity.AnalysisResult{RiskTier: constants.RiskMedium}, nil)
	s.record(entity.AnalysisResult{RiskTier: constants.RiskMedium}, nil)
	s.record(entity.AnalysisResult{}, errors.New("boom"))
	s.record(entity.AnalysisResult{}, common.NewAppError(common.CodeAlreadyProcessing, "busy", common.ErrConflict))

	assert.Equal(t, 3, s.processed())
	assert.Equal(t, 2, s.byTier[constants.RiskMedium])
	assert.Equal(t, 1, s.failures)
	assert.Equal(t, 1, s.skipped)

	var buf bytes.Buffer
	s.print(&cli{out: &buf}, 5)
	assert.Contains(t, buf.String(), "- medium: 2")
	assert.Contains(t, buf.String(), "- Failures: 1")
}

func TestExportWritesWorkbook(t *testing.T) {
	c, _ := newTestCLI(t)
	ctx := context.Background()
	_, err := registerVideo(ctx, c, writeFile(t, t.TempDir(), "a.mp4"), "a", "")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, runExport(ctx, c, []string{"-out", out, "-status", "uploaded"}))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	pdf := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, runExport(ctx, c, []string{"-out", pdf}))
	raw, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))

	err = runExport(ctx, c, []string{"-out", "report.csv"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	err = runExport(ctx, c, []string{"-out", pdf, "-status", "archived"})
	assert.ErrorIs(t, err, common.ErrValidation)
}
