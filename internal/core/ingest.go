package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ingest processes one headerless CSV payload for a registered table.
//
// Rows are validated in file order, numbered by physical line (1-based,
// blank lines advance the numbering without producing rows), and buffered;
// every batchSize valid rows are flushed as one bulk insert-if-absent
// call. The whole file runs inside a single transaction: a fatal fault
// rolls back every batch, while per-row validation errors and per-batch
// insert failures are collected and reported without aborting the rest
// of the file.
//
// The returned error is non-nil only for fatal faults (limiter
// saturation, cancelled context, storage faults outside the per-batch
// path); everything else is expressed through IngestResult.Status.
func (s *Service) Ingest(ctx context.Context, tableKey, fileName string, data []byte) (*IngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()

	result := &IngestResult{
		Table:    tableKey,
		FileName: fileName,
	}

	// Preconditions: any violation rejects the request before a single
	// row is parsed.
	def, ok := Get(tableKey)
	if !ok {
		return reject(result, fmt.Sprintf("Unknown table '%s'.", tableKey), start), nil
	}
	if fileName == "" || data == nil {
		return reject(result, "No file provided.", start), nil
	}
	if !strings.HasSuffix(fileName, ".csv") {
		return reject(result, "File must be a CSV.", start), nil
	}
	if len(def.Info.Columns) == 0 {
		return reject(result, "Expected header not defined for this table.", start), nil
	}

	records, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var (
		errs     []string
		inserted int64
	)

	txErr := s.db.InTransaction(ctx, func(ctx context.Context, store Store) error {
		batch := make([]pendingRow, 0, s.batchSize)

		flush := func(final bool) error {
			var err error
			batch, inserted, errs, err = s.flushBatch(ctx, store, def, batch, inserted, errs, final)
			return err
		}

		for _, row := range records {
			rec, rerr := ParseRow(def, row.fields, row.line)
			if rerr != nil {
				errs = append(errs, rerr.Message)
				continue
			}

			batch = append(batch, pendingRow{line: row.line, rec: rec})
			if len(batch) >= s.batchSize {
				if err := flush(false); err != nil {
					return err
				}
			}
		}

		return flush(true)
	})
	if txErr != nil {
		return nil, txErr
	}

	result.Duration = time.Since(start)
	result.Errors = errs
	result.Flushed = inserted

	if len(errs) > 0 {
		result.Status = StatusPartialFailure
		result.Inserted = inserted
		result.Message = fmt.Sprintf("Completed with errors. Inserted approximately %d records.", inserted)
	} else {
		total, err := s.db.Count(ctx, def.Info.Table)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", def.Info.Table, err)
		}
		result.Status = StatusSuccess
		result.Inserted = total
		result.Message = fmt.Sprintf("Successfully processed file. Total records in table: %d", total)
	}

	s.audit(ctx, result)

	return result, nil
}

// pendingRow is a validated record waiting in the flush buffer. The
// originating line number is kept for flush-time reference errors.
type pendingRow struct {
	line int
	rec  any
}

// flushBatch screens the batch against soft references when enabled,
// then writes it as one bulk insert-if-absent call. A failed bulk insert
// becomes an error entry; remaining batches are still attempted.
func (s *Service) flushBatch(ctx context.Context, store Store, def TableDefinition, batch []pendingRow, inserted int64, errs []string, final bool) ([]pendingRow, int64, []string, error) {
	if len(batch) == 0 {
		return batch[:0], inserted, errs, nil
	}

	if s.validateRefs && len(def.References) > 0 {
		var err error
		batch, errs, err = screenReferences(ctx, store, def, batch, errs)
		if err != nil {
			return nil, inserted, errs, err
		}
		if len(batch) == 0 {
			return batch[:0], inserted, errs, nil
		}
	}

	rows := make([][]any, len(batch))
	for i, p := range batch {
		rows[i] = def.Row(p.rec)
	}

	if _, err := store.BulkInsertSkipExisting(ctx, def.Info.Table, def.Info.Columns, rows); err != nil {
		if final {
			errs = append(errs, fmt.Sprintf("Bulk create error (final batch): %v", err))
		} else {
			errs = append(errs, fmt.Sprintf("Bulk create error: %v", err))
		}
		return batch[:0], inserted, errs, nil
	}

	return batch[:0], inserted + int64(len(batch)), errs, nil
}

// screenReferences drops batch rows whose soft references do not resolve,
// turning each into a row error. One query per referenced table per batch.
func screenReferences(ctx context.Context, store Store, def TableDefinition, batch []pendingRow, errs []string) ([]pendingRow, []string, error) {
	existing := make([]map[int64]struct{}, len(def.References))
	for ri, ref := range def.References {
		ids := make([]int64, 0, len(batch))
		for _, p := range batch {
			ids = append(ids, ref.Key(p.rec))
		}
		found, err := store.ExistingIDs(ctx, ref.Table, ids)
		if err != nil {
			return nil, errs, fmt.Errorf("check %s references: %w", ref.Table, err)
		}
		existing[ri] = found
	}

	kept := batch[:0]
	for _, p := range batch {
		ok := true
		for ri, ref := range def.References {
			id := ref.Key(p.rec)
			if _, found := existing[ri][id]; !found {
				errs = append(errs, fmt.Sprintf("Row %d: %s %d does not exist.", p.line, ref.Column, id))
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, p)
		}
	}

	return kept, errs, nil
}

func reject(result *IngestResult, message string, start time.Time) *IngestResult {
	result.Status = StatusRejected
	result.Message = message
	result.Duration = time.Since(start)
	return result
}

// audit records the completed ingestion. Best effort: a failed audit
// write is logged, never surfaced to the caller.
func (s *Service) audit(ctx context.Context, result *IngestResult) {
	rec := IngestionRecord{
		ID:         uuid.New().String(),
		Table:      result.Table,
		FileName:   result.FileName,
		Status:     result.Status,
		Inserted:   result.Inserted,
		ErrorCount: len(result.Errors),
		Duration:   result.Duration,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.db.RecordIngestion(ctx, rec); err != nil {
		slog.Warn("record ingestion failed",
			"table", rec.Table,
			"file", rec.FileName,
			"error", err,
		)
	}
}
