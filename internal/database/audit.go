package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hiringdata/api/internal/core"
)

// RecordIngestion appends one entry to the ingestion audit trail.
func (d *DB) RecordIngestion(ctx context.Context, rec core.IngestionRecord) error {
	const sql = `
		INSERT INTO ingestions
			(id, table_key, file_name, status, inserted, error_count, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := d.pool.Exec(ctx, sql,
		rec.ID,
		rec.Table,
		rec.FileName,
		string(rec.Status),
		rec.Inserted,
		rec.ErrorCount,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record ingestion: %w", err)
	}
	return nil
}

// ListIngestions returns the most recent audit entries, newest first.
func (d *DB) ListIngestions(ctx context.Context, limit int) ([]core.IngestionRecord, error) {
	const sql = `
		SELECT id, table_key, file_name, status, inserted, error_count, duration_ms, created_at
		FROM ingestions
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := d.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestions: %w", err)
	}
	defer rows.Close()

	result := make([]core.IngestionRecord, 0, limit)
	for rows.Next() {
		var rec core.IngestionRecord
		var status string
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.Table, &rec.FileName, &status,
			&rec.Inserted, &rec.ErrorCount, &durationMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion: %w", err)
		}
		rec.Status = core.IngestStatus(status)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ingestions: %w", err)
	}

	return result, nil
}
