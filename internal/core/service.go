package core

import (
	"context"
	"time"
)

// DefaultBatchSize is the number of validated rows buffered before each
// bulk insert when no size is configured.
const DefaultBatchSize = 1000

// Options configures a Service.
type Options struct {
	// BatchSize bounds the in-memory buffer of validated rows
	// (default: DefaultBatchSize).
	BatchSize int

	// ValidateReferences enables flush-time existence checks for soft
	// references (hired employee department/job ids).
	ValidateReferences bool

	// MaxConcurrent and MaxWaitTime configure the ingestion limiter.
	MaxConcurrent int
	MaxWaitTime   time.Duration
}

// Service is the entry point for ingestion operations.
type Service struct {
	db           Database
	batchSize    int
	validateRefs bool
	limiter      *IngestLimiter
}

// NewService creates a Service over the given storage port.
func NewService(db Database, opts Options) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Service{
		db:           db,
		batchSize:    batchSize,
		validateRefs: opts.ValidateReferences,
		limiter:      NewIngestLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
	}
}

// BatchSize returns the configured flush threshold.
func (s *Service) BatchSize() int {
	return s.batchSize
}

// RowCount returns the stored row count for a registered table.
func (s *Service) RowCount(ctx context.Context, tableKey string) (int64, error) {
	def, ok := Get(tableKey)
	if !ok {
		return 0, &UnknownTableError{Key: tableKey}
	}
	return s.db.Count(ctx, def.Info.Table)
}

// WaitForIngestions blocks until in-flight ingestions finish or ctx is
// cancelled. Used during graceful shutdown.
func (s *Service) WaitForIngestions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveIngestions returns the number of in-flight ingestions.
func (s *Service) ActiveIngestions() int {
	return s.limiter.ActiveCount()
}

// UnknownTableError indicates a request for an unregistered table key.
type UnknownTableError struct {
	Key string
}

func (e *UnknownTableError) Error() string {
	return "unknown table: " + e.Key
}
