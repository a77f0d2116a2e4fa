// Package reports computes the two hiring reports: quarterly hire counts
// per department and job, and departments hiring above the yearly mean.
// The store supplies year-filtered joined rows; grouping, quarter
// bucketing, averaging and ordering happen here.
package reports

import (
	"context"
	"sort"
	"time"
)

// DefaultYear is the reporting year when none is requested.
const DefaultYear = 2021

// Hire is one hiring event joined with its department and job names.
// Events whose department or job does not resolve are excluded by the
// store's inner join and never reach the engine.
type Hire struct {
	Department string
	Job        string
	Month      time.Month
}

// DepartmentCount is the number of hires for one department in the
// reporting year. Departments with zero hires never appear.
type DepartmentCount struct {
	ID         int64  `json:"id"`
	Department string `json:"department"`
	Hired      int64  `json:"hired"`
}

// QuarterRow is the hire count of one (department, job) pair, bucketed
// into the four calendar quarters.
type QuarterRow struct {
	Department string `json:"department"`
	Job        string `json:"job"`
	Q1         int64  `json:"q1"`
	Q2         int64  `json:"q2"`
	Q3         int64  `json:"q3"`
	Q4         int64  `json:"q4"`
}

// Store is the read port the engine aggregates over.
type Store interface {
	// HiresWithNames returns every hiring event of the given year joined
	// with department and job names (inner-join semantics).
	HiresWithNames(ctx context.Context, year int) ([]Hire, error)

	// DepartmentHireCounts returns per-department hire totals for the
	// given year, one entry per department with at least one hire.
	DepartmentHireCounts(ctx context.Context, year int) ([]DepartmentCount, error)
}

// Engine executes the reporting computations.
type Engine struct {
	store Store
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// HiresByQuarter returns hire counts per (department, job) pair split by
// calendar quarter, ordered by department then job ascending. Pairs with
// no hires in the year are omitted.
func (e *Engine) HiresByQuarter(ctx context.Context, year int) ([]QuarterRow, error) {
	hires, err := e.store.HiresWithNames(ctx, year)
	if err != nil {
		return nil, err
	}

	type key struct {
		department string
		job        string
	}

	groups := make(map[key]*QuarterRow)
	for _, h := range hires {
		k := key{department: h.Department, job: h.Job}
		row, ok := groups[k]
		if !ok {
			row = &QuarterRow{Department: h.Department, Job: h.Job}
			groups[k] = row
		}
		switch quarterOf(h.Month) {
		case 1:
			row.Q1++
		case 2:
			row.Q2++
		case 3:
			row.Q3++
		case 4:
			row.Q4++
		}
	}

	result := make([]QuarterRow, 0, len(groups))
	for _, row := range groups {
		result = append(result, *row)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Department != result[j].Department {
			return result[i].Department < result[j].Department
		}
		return result[i].Job < result[j].Job
	})

	return result, nil
}

// DepartmentsAboveAverage returns the departments whose hire count is
// strictly greater than the mean of all per-department counts for the
// year, ordered by hire count descending. An empty year yields an empty
// result, never a fault.
func (e *Engine) DepartmentsAboveAverage(ctx context.Context, year int) ([]DepartmentCount, error) {
	counts, err := e.store.DepartmentHireCounts(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return []DepartmentCount{}, nil
	}

	var total int64
	for _, c := range counts {
		total += c.Hired
	}
	// Mean of the per-department totals: each department weighs once.
	mean := float64(total) / float64(len(counts))

	result := make([]DepartmentCount, 0, len(counts))
	for _, c := range counts {
		if float64(c.Hired) > mean {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Hired != result[j].Hired {
			return result[i].Hired > result[j].Hired
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// quarterOf maps a calendar month to its quarter bucket
// (Q1 = Jan-Mar ... Q4 = Oct-Dec).
func quarterOf(m time.Month) int {
	return (int(m)-1)/3 + 1
}
