package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hiringdata/api/internal/core"
	"github.com/hiringdata/api/internal/logging"
	"github.com/hiringdata/api/internal/metrics"
	"github.com/hiringdata/api/internal/reports"
)

// handleUpload ingests one CSV file posted as the multipart form field
// "file". Response status follows the ingestion outcome: 201 on full
// success, 207 when rows failed, 400 when the request was rejected
// before processing.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "table")
	if _, ok := core.Get(tableKey); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown table '%s'.", tableKey))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var (
		fileName string
		data     []byte
	)
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		fileName = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			writeFileReadError(w, err)
			return
		}

	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// A missing form field falls through with empty name and data;
		// the ingestor rejects it with its own message.

	default:
		writeFileReadError(w, err)
		return
	}

	result, err := s.ingestor.Ingest(ctx, tableKey, fileName, data)
	if err != nil {
		if errors.Is(err, core.ErrTooManyIngestions) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logging.FromContext(r.Context()).Error("ingestion failed",
			"table", tableKey,
			"file", fileName,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	metrics.ObserveIngestion(tableKey, string(result.Status), result.Flushed, len(result.Errors), result.Duration)

	switch result.Status {
	case core.StatusRejected:
		writeError(w, http.StatusBadRequest, result.Message)

	case core.StatusPartialFailure:
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"message": result.Message,
			"errors":  result.Errors,
		})

	default:
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": result.Message,
		})
	}
}

// writeFileReadError reports a failed multipart read. A body truncated
// by MaxBytesReader surfaces as a MaxBytesError and maps to 413 so an
// oversized upload is not misreported as a missing file.
func writeFileReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the maximum size of %d bytes.", maxErr.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not read file: %v.", err))
}

// handleHiresByQuarter serves quarterly hire counts per department and
// job. The reporting year defaults to 2021 and can be overridden with
// the year query parameter.
func (s *Server) handleHiresByQuarter(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rows, err := s.reports.HiresByQuarter(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleDepartmentsAboveAverage serves the departments whose hire count
// exceeds the yearly per-department mean.
func (s *Server) handleDepartmentsAboveAverage(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	rows, err := s.reports.DepartmentsAboveAverage(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// handleListTables lists the registered table definitions.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	type tableInfo struct {
		Key     string   `json:"key"`
		Label   string   `json:"label"`
		Table   string   `json:"table"`
		Columns []string `json:"columns"`
	}

	defs := core.All()
	result := make([]tableInfo, 0, len(defs))
	for _, def := range defs {
		result = append(result, tableInfo{
			Key:     def.Info.Key,
			Label:   def.Info.Label,
			Table:   def.Info.Table,
			Columns: def.Info.Columns,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListIngestions serves the most recent ingestion audit entries.
func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid limit '%s'.", raw))
			return
		}
		limit = n
	}

	recs, err := s.audit.ListIngestions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	type entry struct {
		ID         string    `json:"id"`
		Table      string    `json:"table"`
		FileName   string    `json:"file_name"`
		Status     string    `json:"status"`
		Inserted   int64     `json:"inserted"`
		ErrorCount int       `json:"error_count"`
		DurationMs int64     `json:"duration_ms"`
		CreatedAt  time.Time `json:"created_at"`
	}

	result := make([]entry, 0, len(recs))
	for _, rec := range recs {
		result = append(result, entry{
			ID:         rec.ID,
			Table:      rec.Table,
			FileName:   rec.FileName,
			Status:     string(rec.Status),
			Inserted:   rec.Inserted,
			ErrorCount: rec.ErrorCount,
			DurationMs: rec.Duration.Milliseconds(),
			CreatedAt:  rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports storage connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// yearParam parses the optional year query parameter, writing a 400
// response on invalid input.
func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return reports.DefaultYear, true
	}

	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid year '%s'.", raw))
		return 0, false
	}

	return year, true
}
