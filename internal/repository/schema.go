package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const videosTable = "videos"

var videosDDL = map[string]string{
	dialect.Postgres: `CREATE TABLE IF NOT EXISTS videos (
	id                UUID PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	original_name     TEXT NOT NULL DEFAULT '',
	filename          TEXT NOT NULL DEFAULT '',
	source_path       TEXT NOT NULL,
	mime_type         TEXT NOT NULL DEFAULT '',
	owner             TEXT NOT NULL DEFAULT '',
	size              BIGINT NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'uploaded',
	progress          INTEGER NOT NULL DEFAULT 0,
	sensitivity       TEXT NOT NULL DEFAULT 'unknown',
	sensitivity_score INTEGER NOT NULL DEFAULT 0,
	manual_review     BOOLEAN NOT NULL DEFAULT FALSE,
	flagged_reason    TEXT NOT NULL DEFAULT '',
	duration          DOUBLE PRECISION NOT NULL DEFAULT 0,
	thumbnail         TEXT NOT NULL DEFAULT '',
	analysis          TEXT NOT NULL DEFAULT '',
	risk_level        TEXT NOT NULL DEFAULT '',
	category_scores   TEXT,
	ai_metadata       TEXT,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`,
	dialect.SQLite: `CREATE TABLE IF NOT EXISTS videos (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	original_name     TEXT NOT NULL DEFAULT '',
	filename          TEXT NOT NULL DEFAULT '',
	source_path       TEXT NOT NULL,
	mime_type         TEXT NOT NULL DEFAULT '',
	owner             TEXT NOT NULL DEFAULT '',
	size              INTEGER NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'uploaded',
	progress          INTEGER NOT NULL DEFAULT 0,
	sensitivity       TEXT NOT NULL DEFAULT 'unknown',
	sensitivity_score INTEGER NOT NULL DEFAULT 0,
	manual_review     BOOLEAN NOT NULL DEFAULT 0,
	flagged_reason    TEXT NOT NULL DEFAULT '',
	duration          REAL NOT NULL DEFAULT 0,
	thumbnail         TEXT NOT NULL DEFAULT '',
	analysis          TEXT NOT NULL DEFAULT '',
	risk_level        TEXT NOT NULL DEFAULT '',
	category_scores   TEXT,
	ai_metadata       TEXT,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
)`,
}

var videosIndexes = []string{
	`CREATE INDEX IF NOT EXISTS videos_status_idx ON videos (status)`,
	`CREATE INDEX IF NOT EXISTS videos_content_hash_idx ON videos (content_hash)`,
}

// EnsureSchema creates the videos table for dev and test databases.
func (d *DB) EnsureSchema(ctx context.Context) error {
	ddl, ok := videosDDL[d.Dialect()]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d.Dialect())
	}
	for _, stmt := range append([]string{ddl}, videosIndexes...) {
		if _, err := d.SQL().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	d.logger.Debug("schema ensured", "table", videosTable, "dialect", d.Dialect())
	return nil
}
