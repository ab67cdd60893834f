package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the DDL for the tables owned by this service. Statements are
// idempotent so Migrate can run at every startup.
const schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id               UUID PRIMARY KEY,
	config           JSONB NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	error_message    TEXT,
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	total_urls       INTEGER NOT NULL DEFAULT 0,
	urls_scraped     INTEGER NOT NULL DEFAULT 0,
	urls_failed      INTEGER NOT NULL DEFAULT 0,
	urls_skipped     INTEGER NOT NULL DEFAULT 0,
	current_depth    INTEGER NOT NULL DEFAULT 0,
	error_count      INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_crawl_jobs_status ON crawl_jobs (status);

CREATE TABLE IF NOT EXISTS fetched_pages (
	id                UUID PRIMARY KEY,
	job_id            UUID NOT NULL REFERENCES crawl_jobs (id) ON DELETE CASCADE,
	url               TEXT NOT NULL,
	final_url         TEXT NOT NULL,
	parent_url        TEXT,
	http_status       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	error_message     TEXT,
	title             TEXT NOT NULL DEFAULT '',
	extracted_text    TEXT NOT NULL DEFAULT '',
	language          TEXT NOT NULL DEFAULT 'unknown',
	outbound_links    JSONB NOT NULL DEFAULT '[]',
	depth_level       INTEGER NOT NULL,
	fetch_duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fetched_pages_job_id ON fetched_pages (job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_fetched_pages_job_url ON fetched_pages (job_id, url);
`

// Migrate creates the tables used by this service if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
