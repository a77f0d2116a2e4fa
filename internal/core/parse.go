package core

// parse.go turns one raw CSV row into a typed record or a row error.
// Parsing is pure: no storage access, no side effects. Error messages are
// user-facing and reference the 1-based row number.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the only accepted hire timestamp profile:
// UTC, seconds precision, literal Z suffix. Other formats are rejected,
// never coerced.
const TimestampLayout = "2006-01-02T15:04:05"

// RowError is a recoverable validation error for a single CSV row.
// The offending row is excluded from insertion; ingestion continues.
type RowError struct {
	Line    int
	Message string
}

func (e *RowError) Error() string {
	return e.Message
}

// ParseRow validates one raw row against the table definition and returns
// the typed record. row numbering is 1-based with no header row.
func ParseRow(def TableDefinition, row []string, n int) (any, *RowError) {
	if len(row) != len(def.Info.Columns) {
		return nil, &RowError{
			Line: n,
			Message: fmt.Sprintf("Row %d: Incorrect number of columns. Expected %d, got %d.",
				n, len(def.Info.Columns), len(row)),
		}
	}

	fields := make([]any, len(row))
	for i, spec := range def.FieldSpecs {
		v, rerr := convertCell(row[i], spec, n)
		if rerr != nil {
			return nil, rerr
		}
		fields[i] = v
	}

	return def.Build(fields), nil
}

// convertCell converts a raw cell to the semantic type of its field spec.
func convertCell(raw string, spec FieldSpec, n int) (any, *RowError) {
	trimmed := strings.TrimSpace(raw)

	switch spec.Kind {
	case FieldInt:
		if trimmed == "" {
			return nil, emptyFieldError(n, spec.Name)
		}
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, &RowError{
				Line:    n,
				Message: fmt.Sprintf("Row %d: Invalid integer value '%s' for field '%s'.", n, raw, spec.Name),
			}
		}
		return v, nil

	case FieldTimestamp:
		if trimmed == "" {
			return nil, emptyFieldError(n, spec.Name)
		}
		t, err := parseTimestamp(trimmed)
		if err != nil {
			return nil, &RowError{
				Line:    n,
				Message: fmt.Sprintf("Row %d: Invalid datetime format '%s'. Use ISO format YYYY-MM-DDTHH:MM:SSZ.", n, raw),
			}
		}
		return t, nil

	default: // FieldText
		if trimmed == "" {
			return nil, emptyFieldError(n, spec.Name)
		}
		return trimmed, nil
	}
}

func emptyFieldError(n int, field string) *RowError {
	return &RowError{
		Line:    n,
		Message: fmt.Sprintf("Row %d: Field '%s' must not be empty.", n, field),
	}
}

// parseTimestamp parses the fixed UTC profile. The literal Z suffix is
// required; anything beyond seconds precision or carrying an offset fails.
func parseTimestamp(s string) (time.Time, error) {
	rest, ok := strings.CutSuffix(s, "Z")
	if !ok {
		return time.Time{}, fmt.Errorf("missing Z suffix")
	}
	// time.Parse tolerates fractional seconds the layout does not name,
	// so the fixed width has to be checked before parsing.
	if len(rest) != len(TimestampLayout) {
		return time.Time{}, fmt.Errorf("wrong length for profile")
	}
	t, err := time.Parse(TimestampLayout, rest)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// rawRow is one decoded CSV record together with the physical line it
// starts on. The reader emits no record for a blank line, but the line
// still advances the numbering, so a file with interior blank lines
// reports errors by file line.
type rawRow struct {
	line   int
	fields []string
}

// parseCSV decodes the full file into records. FieldsPerRecord is
// disabled so column-count mismatches surface as per-row errors instead
// of aborting the read.
func parseCSV(data []byte) ([]rawRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []rawRow
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rawRow{line: line, fields: fields})
	}
}
