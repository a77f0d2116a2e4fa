package database

import (
	"context"
	"fmt"
)

// schemaDDL bootstraps the three record tables and the ingestion audit
// trail. Identifiers are externally assigned, so ids are plain primary
// keys with no sequence. department_id/job_id are soft references by
// design: no foreign key constraints.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id         BIGINT PRIMARY KEY,
		department TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id  BIGINT PRIMARY KEY,
		job TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS hired_employees (
		id            BIGINT PRIMARY KEY,
		name          TEXT NOT NULL,
		datetime      TIMESTAMPTZ NOT NULL,
		department_id BIGINT,
		job_id        BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS hired_employees_datetime_idx
		ON hired_employees (datetime)`,
	`CREATE TABLE IF NOT EXISTS ingestions (
		id          UUID PRIMARY KEY,
		table_key   TEXT NOT NULL,
		file_name   TEXT NOT NULL,
		status      TEXT NOT NULL,
		inserted    BIGINT NOT NULL,
		error_count INT NOT NULL,
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ingestions_created_at_idx
		ON ingestions (created_at DESC)`,
}

// EnsureSchema creates all tables and indexes if they do not exist.
// Run once at startup: ingestion assumes the schema is ready.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := d.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
