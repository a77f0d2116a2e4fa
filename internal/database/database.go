// Package database implements the storage ports over PostgreSQL using
// pgx. Bulk writes are insert-if-absent: conflicting ids are skipped
// atomically by the database, never overwritten.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hiringdata/api/internal/core"
)

// DBTX is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the pgx-backed storage implementation.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a DB over the given connection pool.
func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// Ping verifies database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// InTransaction runs fn inside a single transaction. The transaction is
// committed when fn returns nil and rolled back otherwise, so no
// partially applied work survives a fatal fault.
func (d *DB) InTransaction(ctx context.Context, fn func(ctx context.Context, s core.Store) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// BulkInsertSkipExisting inserts rows outside any transaction.
func (d *DB) BulkInsertSkipExisting(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return bulkInsertSkipExisting(ctx, d.pool, table, columns, rows)
}

// Count returns the total number of rows stored in table.
func (d *DB) Count(ctx context.Context, table string) (int64, error) {
	return count(ctx, d.pool, table)
}

// ExistingIDs reports which of the given ids exist in table.
func (d *DB) ExistingIDs(ctx context.Context, table string, ids []int64) (map[int64]struct{}, error) {
	return existingIDs(ctx, d.pool, table, ids)
}

// txStore is the storage port bound to an open transaction.
type txStore struct {
	tx pgx.Tx
}

// BulkInsertSkipExisting writes one batch inside a nested transaction
// (a savepoint), so a failed bulk insert leaves the enclosing file
// transaction usable for the remaining batches.
func (s *txStore) BulkInsertSkipExisting(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	nested, err := s.tx.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin savepoint: %w", err)
	}

	n, err := bulkInsertSkipExisting(ctx, nested, table, columns, rows)
	if err != nil {
		_ = nested.Rollback(ctx)
		return 0, err
	}

	if err := nested.Commit(ctx); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	return n, nil
}

func (s *txStore) Count(ctx context.Context, table string) (int64, error) {
	return count(ctx, s.tx, table)
}

func (s *txStore) ExistingIDs(ctx context.Context, table string, ids []int64) (map[int64]struct{}, error) {
	return existingIDs(ctx, s.tx, table, ids)
}

// bulkInsertSkipExisting executes one multi-row INSERT ... ON CONFLICT
// (id) DO NOTHING. The skip is enforced per record by the database, which
// is what keeps concurrent ingestions of the same kind safe. Returns the
// attempted row count.
func bulkInsertSkipExisting(ctx context.Context, db DBTX, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	sql, args := buildInsertSQL(table, columns, rows)

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk insert into %s: %w", table, err)
	}

	slog.Debug("bulk insert",
		"table", table,
		"attempted", len(rows),
		"inserted", tag.RowsAffected(),
	)

	return int64(len(rows)), nil
}

// buildInsertSQL renders the multi-VALUES insert statement and flattens
// row values into positional args. Table and column names only ever come
// from registered table definitions, and are sanitized regardless.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for ri, row := range rows {
		if ri > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for ci := range columns {
			if ci > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", len(args)+1)
			args = append(args, row[ci])
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (id) DO NOTHING")

	return b.String(), args
}

func count(ctx context.Context, db DBTX, table string) (int64, error) {
	var n int64
	sql := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
	if err := db.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func existingIDs(ctx context.Context, db DBTX, table string, ids []int64) (map[int64]struct{}, error) {
	result := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sql := "SELECT id FROM " + pgx.Identifier{table}.Sanitize() + " WHERE id = ANY($1)"
	rows, err := db.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("query %s ids: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		result[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s ids: %w", table, err)
	}

	return result, nil
}
