package dataset

import (
	"context"
	"fmt"
)

// schemaStatements creates the prefilter schema idempotently
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS prefilter`,
	`CREATE TABLE IF NOT EXISTS prefilter.observations (
		dataset_id TEXT             NOT NULL,
		row_no     BIGINT           NOT NULL,
		subject_id TEXT             NOT NULL,
		t          DOUBLE PRECISION NULL,
		var_name   TEXT             NOT NULL,
		value      TEXT             NOT NULL DEFAULT '',
		PRIMARY KEY (dataset_id, row_no)
	)`,
	`CREATE TABLE IF NOT EXISTS prefilter.population (
		dataset_id TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		PRIMARY KEY (dataset_id, subject_id)
	)`,
	`CREATE TABLE IF NOT EXISTS prefilter.var_types (
		dataset_id TEXT NOT NULL,
		var_name   TEXT NOT NULL,
		value_type TEXT NOT NULL,
		PRIMARY KEY (dataset_id, var_name)
	)`,
	`CREATE TABLE IF NOT EXISTS prefilter.runs (
		run_id      UUID             PRIMARY KEY,
		dataset_id  TEXT             NOT NULL,
		config_hash TEXT             NOT NULL DEFAULT '',
		threshold   DOUBLE PRECISION NOT NULL,
		max_t       DOUBLE PRECISION NOT NULL,
		status      TEXT             NOT NULL,
		input_rows  INTEGER          NOT NULL DEFAULT 0,
		output_rows INTEGER          NOT NULL DEFAULT 0,
		stages      JSONB,
		coverage    JSONB,
		error       TEXT             NOT NULL DEFAULT '',
		started_at  TIMESTAMPTZ      NOT NULL,
		duration_ms BIGINT           NOT NULL DEFAULT 0,
		created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_dataset_started
		ON prefilter.runs (dataset_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS prefilter.filtered_observations (
		run_id     UUID             NOT NULL REFERENCES prefilter.runs (run_id) ON DELETE CASCADE,
		row_no     BIGINT           NOT NULL,
		subject_id TEXT             NOT NULL,
		t          DOUBLE PRECISION NULL,
		var_name   TEXT             NOT NULL,
		value      TEXT             NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, row_no)
	)`,
}

// EnsureSchema creates the prefilter schema and tables if missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
