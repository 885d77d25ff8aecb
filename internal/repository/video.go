package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vidscreen/constants"
	"github.com/joseph-ayodele/vidscreen/internal/common"
	"github.com/joseph-ayodele/vidscreen/internal/entity"
)

// VideoRepository is the durable job store the pipeline reads and writes.
type VideoRepository interface {
	Create(ctx context.Context, v *entity.Video) (*entity.Video, error)
	LoadJob(ctx context.Context, id uuid.UUID) (*entity.Video, error)
	GetByContentHash(ctx context.Context, hash string) (*entity.Video, error)
	SaveJob(ctx context.Context, id uuid.UUID, u entity.VideoUpdate) error
	Claim(ctx context.Context, id uuid.UUID) (*entity.Video, error)
	ListByStatus(ctx context.Context, statuses ...constants.VideoStatus) ([]*entity.Video, error)
	ListNeedingReanalysis(ctx context.Context) ([]*entity.Video, error)
	ListAll(ctx context.Context) ([]*entity.Video, error)
	FailStale(ctx context.Context, before time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var videoColumns = []string{
	"id", "title", "original_name", "filename", "source_path", "mime_type", "owner", "size", "content_hash",
	"status", "progress", "sensitivity", "sensitivity_score", "manual_review", "flagged_reason",
	"duration", "thumbnail", "analysis", "risk_level", "category_scores", "ai_metadata",
	"created_at", "updated_at",
}

type videoRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewVideoRepository(db *DB, logger *slog.Logger) VideoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &videoRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *videoRepository) Create(ctx context.Context, v *entity.Video) (*entity.Video, error) {
	if v == nil || v.SourcePath == "" {
		return nil, common.NewAppError("VALIDATION_ERROR", "video source path is required", common.ErrInvalidInput)
	}
	out := *v
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Status == "" {
		out.Status = constants.VideoStatusUploaded
	}
	if out.Sensitivity == "" {
		out.Sensitivity = constants.SensitivityUnknown
	}
	now := r.now()
	out.CreatedAt, out.UpdatedAt = now, now

	scores, err := marshalNullable(out.CategoryScores, len(out.CategoryScores) == 0)
	if err != nil {
		return nil, err
	}
	meta, err := marshalNullable(out.AIMetadata, out.AIMetadata == nil)
	if err != nil {
		return nil, err
	}

	query, args := r.db.builder().Insert(videosTable).
		Columns(videoColumns...).
		Values(
			out.ID.String(), out.Title, out.OriginalName, out.Filename, out.SourcePath, out.MimeType, out.Owner, out.Size, out.ContentHash,
			string(out.Status), out.Progress, string(out.Sensitivity), out.SensitivityScore, out.ManualReview, out.FlaggedReason,
			out.Duration, out.Thumbnail, out.Analysis, string(out.RiskLevel), scores, meta,
			out.CreatedAt, out.UpdatedAt,
		).Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create video", "video_id", out.ID, "error", err)
		return nil, common.NewAppError(common.CodePersistence, "create video", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Info("video registered", "video_id", out.ID, "source_path", out.SourcePath)
	return &out, nil
}

func (r *videoRepository) LoadJob(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	query, args := r.db.builder().Select(videoColumns...).
		From(entsql.Table(videosTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	videos, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to load video", "video_id", id, "error", err)
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("video %s: %w", id, common.ErrNotFound)
	}
	return videos[0], nil
}

// GetByContentHash returns the oldest video registered with the given content hash.
func (r *videoRepository) GetByContentHash(ctx context.Context, hash string) (*entity.Video, error) {
	if hash == "" {
		return nil, fmt.Errorf("empty content hash: %w", common.ErrInvalidInput)
	}
	query, args := r.db.builder().Select(videoColumns...).
		From(entsql.Table(videosTable)).
		Where(entsql.EQ("content_hash", hash)).
		OrderBy("created_at").
		Limit(1).
		Query()
	videos, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("video with hash %s: %w", hash, common.ErrNotFound)
	}
	return videos[0], nil
}

// SaveJob applies the non-nil fields of u and bumps updated_at.
func (r *videoRepository) SaveJob(ctx context.Context, id uuid.UUID, u entity.VideoUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	b := r.db.builder().Update(videosTable).Set("updated_at", r.now())
	if u.Status != nil {
		b.Set("status", string(*u.Status))
	}
	if u.Progress != nil {
		b.Set("progress", *u.Progress)
	}
	if u.Sensitivity != nil {
		b.Set("sensitivity", string(*u.Sensitivity))
	}
	if u.SensitivityScore != nil {
		b.Set("sensitivity_score", *u.SensitivityScore)
	}
	if u.FlaggedReason != nil {
		b.Set("flagged_reason", *u.FlaggedReason)
	}
	if u.Duration != nil {
		b.Set("duration", *u.Duration)
	}
	if u.Thumbnail != nil {
		b.Set("thumbnail", *u.Thumbnail)
	}
	if u.Analysis != nil {
		b.Set("analysis", *u.Analysis)
	}
	if u.RiskLevel != nil {
		b.Set("risk_level", string(*u.RiskLevel))
	}
	if u.CategoryScores != nil {
		raw, err := json.Marshal(u.CategoryScores)
		if err != nil {
			return fmt.Errorf("marshal category scores: %w", err)
		}
		b.Set("category_scores", string(raw))
	}
	if u.AIMetadata != nil {
		raw, err := json.Marshal(u.AIMetadata)
		if err != nil {
			return fmt.Errorf("marshal ai metadata: %w", err)
		}
		b.Set("ai_metadata", string(raw))
	}

	query, args := b.Where(entsql.EQ("id", id.String())).Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to save video", "video_id", id, "error", err)
		return common.NewAppError(common.CodePersistence, "save video", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// Claim moves a video into processing unless a run is already active for it.
// The previous verdict is cleared so a re-analysis starts from scratch.
func (r *videoRepository) Claim(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	active := make([]any, 0, len(constants.ActiveStatuses))
	for _, s := range constants.ActiveStatuses {
		active = append(active, s)
	}
	query, args := r.db.builder().Update(videosTable).
		Set("status", string(constants.VideoStatusProcessing)).
		Set("progress", constants.ProgressClaimed).
		Set("sensitivity", string(constants.SensitivityUnknown)).
		Set("sensitivity_score", 0).
		Set("flagged_reason", "").
		Set("analysis", "").
		Set("risk_level", "").
		SetNull("category_scores").
		SetNull("ai_metadata").
		Set("updated_at", r.now()).
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.NotIn("status", active...),
		)).
		Query()

	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to claim video", "video_id", id, "error", err)
		return nil, common.NewAppError(common.CodePersistence, "claim video", errors.Join(common.ErrDatabase, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, common.NewAppError(common.CodePersistence, "claim video", errors.Join(common.ErrDatabase, err))
	}
	if n == 0 {
		v, err := r.LoadJob(ctx, id)
		if err != nil {
			return nil, err
		}
		r.logger.Warn("video already processing", "video_id", id, "status", v.Status)
		return nil, common.NewAppError(common.CodeAlreadyProcessing,
			fmt.Sprintf("video %s is %s", id, v.Status), common.ErrConflict)
	}
	return r.LoadJob(ctx, id)
}

func (r *videoRepository) ListByStatus(ctx context.Context, statuses ...constants.VideoStatus) ([]*entity.Video, error) {
	sel := r.db.builder().Select(videoColumns...).From(entsql.Table(videosTable))
	if len(statuses) > 0 {
		args := make([]any, len(statuses))
		for i, s := range statuses {
			args[i] = string(s)
		}
		sel.Where(entsql.In("status", args...))
	}
	query, args := sel.OrderBy("created_at").Query()
	return r.query(ctx, query, args)
}

// ListNeedingReanalysis returns finished videos that are missing the category report.
func (r *videoRepository) ListNeedingReanalysis(ctx context.Context) ([]*entity.Video, error) {
	query, args := r.db.builder().Select(videoColumns...).
		From(entsql.Table(videosTable)).
		Where(entsql.And(
			entsql.In("status", string(constants.VideoStatusDone), string(constants.VideoStatusFlagged)),
			entsql.Or(
				entsql.IsNull("category_scores"),
				entsql.EQ("risk_level", ""),
			),
		)).
		OrderBy("created_at").
		Query()
	return r.query(ctx, query, args)
}

func (r *videoRepository) ListAll(ctx context.Context) ([]*entity.Video, error) {
	return r.ListByStatus(ctx)
}

// FailStale marks runs that have been active since before the cutoff as failed.
func (r *videoRepository) FailStale(ctx context.Context, before time.Time) (int64, error) {
	active := make([]any, 0, len(constants.ActiveStatuses))
	for _, s := range constants.ActiveStatuses {
		active = append(active, s)
	}
	query, args := r.db.builder().Update(videosTable).
		Set("status", string(constants.VideoStatusFailed)).
		Set("progress", constants.ProgressComplete).
		Set("flagged_reason", "Processing interrupted").
		Set("updated_at", r.now()).
		Where(entsql.And(
			entsql.In("status", active...),
			entsql.LT("updated_at", before.UTC()),
		)).
		Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, common.NewAppError(common.CodePersistence, "fail stale runs", errors.Join(common.ErrDatabase, err))
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Warn("stale runs marked failed", "count", n, "before", before)
	}
	return n, nil
}

func (r *videoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query, args := r.db.builder().Delete(videosTable).Where(entsql.EQ("id", id.String())).Query()
	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete video", "video_id", id, "error", err)
		return common.NewAppError(common.CodePersistence, "delete video", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("video %s: %w", id, common.ErrNotFound)
	}
	r.logger.Info("video deleted", "video_id", id)
	return nil
}

func (r *videoRepository) query(ctx context.Context, query string, args []any) ([]*entity.Video, error) {
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewAppError(common.CodePersistence, "query videos", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodePersistence, "query videos", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}

func scanVideo(rows *sql.Rows) (*entity.Video, error) {
	var (
		v                              entity.Video
		id                             string
		status, sensitivity, riskLevel string
		scores, meta                   sql.NullString
	)
	err := rows.Scan(
		&id, &v.Title, &v.OriginalName, &v.Filename, &v.SourcePath, &v.MimeType, &v.Owner, &v.Size, &v.ContentHash,
		&status, &v.Progress, &sensitivity, &v.SensitivityScore, &v.ManualReview, &v.FlaggedReason,
		&v.Duration, &v.Thumbnail, &v.Analysis, &riskLevel, &scores, &meta,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan video: %w", err)
	}
	if v.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan video id %q: %w", id, err)
	}
	v.Status = constants.VideoStatus(status)
	v.Sensitivity = constants.Sensitivity(sensitivity)
	v.RiskLevel = constants.RiskTier(riskLevel)
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &v.CategoryScores); err != nil {
			return nil, fmt.Errorf("decode category scores for %s: %w", id, err)
		}
	}
	if meta.Valid && meta.String != "" {
		v.AIMetadata = &entity.AIMetadata{}
		if err := json.Unmarshal([]byte(meta.String), v.AIMetadata); err != nil {
			return nil, fmt.Errorf("decode ai metadata for %s: %w", id, err)
		}
	}
	return &v, nil
}

func marshalNullable(v any, null bool) (any, error) {
	if null {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}
