// Package db owns the schema for the extraction pipeline. Tables are created
// idempotently at process start; there is no migration tooling on purpose.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
    id              UUID PRIMARY KEY,
    user_id         UUID,
    upload_asset_id UUID NOT NULL,
    status          TEXT NOT NULL DEFAULT 'queued',
    logs            TEXT NOT NULL DEFAULT '',
    error_message   TEXT NOT NULL DEFAULT '',
    result_json     JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at    TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS assets (
    id            UUID PRIMARY KEY,
    owner_type    TEXT NOT NULL,
    owner_id      UUID,
    file_url      TEXT NOT NULL,
    file_type     TEXT NOT NULL,
    file_size     BIGINT NOT NULL DEFAULT 0,
    original_name TEXT NOT NULL DEFAULT '',
    kind          TEXT NOT NULL DEFAULT '',
    job_id        UUID,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_job_id ON assets (job_id)`,
	`CREATE TABLE IF NOT EXISTS extraction_queue (
    id               UUID PRIMARY KEY,
    job_id           UUID NOT NULL,
    payload          JSONB NOT NULL,
    status           TEXT NOT NULL DEFAULT 'queued',
    attempts         INT NOT NULL DEFAULT 0,
    max_attempts     INT NOT NULL DEFAULT 3,
    stall_count      INT NOT NULL DEFAULT 0,
    run_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    locked_by        TEXT,
    lease_expires_at TIMESTAMPTZ,
    last_error       TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at     TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_queue_claim ON extraction_queue (status, run_at)`,
}

// Ensure creates the pipeline tables when they do not exist yet. Safe to run
// from every process at startup.
func Ensure(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
