package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hiringdata/api/internal/reports"
)

// HiresWithNames returns every hiring event of the given year joined
// with its department and job names. Inner joins: events whose
// department or job id does not resolve are excluded.
func (d *DB) HiresWithNames(ctx context.Context, year int) ([]reports.Hire, error) {
	const sql = `
		SELECT d.department, j.job, EXTRACT(MONTH FROM h.datetime)::int
		FROM hired_employees h
		INNER JOIN departments d ON h.department_id = d.id
		INNER JOIN jobs j ON h.job_id = j.id
		WHERE EXTRACT(YEAR FROM h.datetime) = $1`

	rows, err := d.pool.Query(ctx, sql, year)
	if err != nil {
		return nil, fmt.Errorf("query hires: %w", err)
	}
	defer rows.Close()

	var result []reports.Hire
	for rows.Next() {
		var h reports.Hire
		var month int
		if err := rows.Scan(&h.Department, &h.Job, &month); err != nil {
			return nil, fmt.Errorf("scan hire: %w", err)
		}
		h.Month = time.Month(month)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read hires: %w", err)
	}

	return result, nil
}

// DepartmentHireCounts returns per-department hire totals for the given
// year. Departments with no hires that year are absent (inner join).
func (d *DB) DepartmentHireCounts(ctx context.Context, year int) ([]reports.DepartmentCount, error) {
	const sql = `
		SELECT d.id, d.department, COUNT(h.id)
		FROM departments d
		INNER JOIN hired_employees h ON h.department_id = d.id
		WHERE EXTRACT(YEAR FROM h.datetime) = $1
		GROUP BY d.id, d.department`

	rows, err := d.pool.Query(ctx, sql, year)
	if err != nil {
		return nil, fmt.Errorf("query department counts: %w", err)
	}
	defer rows.Close()

	var result []reports.DepartmentCount
	for rows.Next() {
		var c reports.DepartmentCount
		if err := rows.Scan(&c.ID, &c.Department, &c.Hired); err != nil {
			return nil, fmt.Errorf("scan department count: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read department counts: %w", err)
	}

	return result, nil
}
