// Package core implements the CSV ingestion pipeline: table descriptors,
// row parsing and validation, and batched insert-if-absent writes. It has
// no transport dependencies and talks to storage through narrow ports.
package core

import (
	"context"
	"time"
)

// FieldKind is the expected data type of a CSV column.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldText
	FieldTimestamp
)

// FieldSpec describes one positional CSV column.
type FieldSpec struct {
	Name string    // column name, also the database column
	Kind FieldKind // expected type
}

// TableInfo identifies a table and its CSV shape. Files are headerless;
// Columns gives the fixed positional order.
type TableInfo struct {
	Key     string   // route key: "departments"
	Label   string   // display name: "Departments"
	Table   string   // database table name
	Columns []string // positional column names, derived from FieldSpecs
}

// Reference declares a soft foreign key carried by a record. References
// are not enforced by the storage layer; when reference validation is
// enabled, the ingestor screens batches against them at flush time.
type Reference struct {
	Column string             // CSV/database column name, used in error messages
	Table  string             // referenced table
	Key    func(rec any) int64 // extracts the referenced id from a record
}

// TableDefinition contains everything needed to ingest one record kind.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec

	// Build assembles a typed record from converted field values, given
	// in FieldSpecs order.
	Build func(fields []any) any

	// Row flattens a record into insert values in Info.Columns order.
	Row func(rec any) []any

	References []Reference
}

// IngestStatus classifies the outcome of one ingestion.
type IngestStatus string

const (
	// StatusSuccess means every row was validated and flushed.
	StatusSuccess IngestStatus = "success"
	// StatusPartialFailure means at least one row or batch error was
	// collected; valid rows were still inserted.
	StatusPartialFailure IngestStatus = "partial_failure"
	// StatusRejected means a precondition failed and no rows were processed.
	StatusRejected IngestStatus = "rejected"
)

// IngestResult is the outcome of ingesting one CSV payload.
type IngestResult struct {
	Status   IngestStatus
	Message  string
	Table    string
	FileName string

	// Inserted is the final table row count on success, or the
	// approximate number of rows inserted on partial failure.
	Inserted int64

	// Flushed is the number of rows written by this request regardless
	// of outcome. Used for accounting and metrics.
	Flushed int64

	// Errors holds per-row and per-batch error messages in occurrence order.
	Errors []string

	Duration time.Duration
}

// IngestionRecord is one entry of the ingestion audit trail.
type IngestionRecord struct {
	ID         string
	Table      string
	FileName   string
	Status     IngestStatus
	Inserted   int64
	ErrorCount int
	Duration   time.Duration
	CreatedAt  time.Time
}

// Store is the storage port the ingestor writes through. Inside a
// transaction all calls run on that transaction.
type Store interface {
	// BulkInsertSkipExisting inserts rows into table, silently skipping
	// any row whose id already exists. Returns the attempted row count.
	// Implementations must isolate a failed bulk insert so the enclosing
	// transaction stays usable.
	BulkInsertSkipExisting(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Count returns the total number of stored rows in table.
	Count(ctx context.Context, table string) (int64, error)

	// ExistingIDs reports which of the given ids exist in table.
	ExistingIDs(ctx context.Context, table string, ids []int64) (map[int64]struct{}, error)
}

// Database is the full storage port held by the Service.
type Database interface {
	Store

	// InTransaction runs fn inside a single transaction, committing on
	// nil and rolling back every write on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, s Store) error) error

	// RecordIngestion appends an entry to the ingestion audit trail.
	RecordIngestion(ctx context.Context, rec IngestionRecord) error
}
