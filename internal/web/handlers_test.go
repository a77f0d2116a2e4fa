package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hiringdata/api/internal/config"
	"github.com/hiringdata/api/internal/core"
	_ "github.com/hiringdata/api/internal/core/tables"
	"github.com/hiringdata/api/internal/reports"
	"github.com/hiringdata/api/internal/web"
)

type fakeIngestor struct {
	result   *core.IngestResult
	err      error
	gotTable string
	gotFile  string
	gotData  []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, tableKey, fileName string, data []byte) (*core.IngestResult, error) {
	f.gotTable = tableKey
	f.gotFile = fileName
	f.gotData = data
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &core.IngestResult{Status: core.StatusSuccess, Message: "ok"}, nil
}

type fakeReportStore struct {
	hires  []reports.Hire
	counts []reports.DepartmentCount
	err    error
}

func (f *fakeReportStore) HiresWithNames(_ context.Context, _ int) ([]reports.Hire, error) {
	return f.hires, f.err
}

func (f *fakeReportStore) DepartmentHireCounts(_ context.Context, _ int) ([]reports.DepartmentCount, error) {
	return f.counts, f.err
}

type fakeAuditor struct {
	recs []core.IngestionRecord
	err  error
}

func (f *fakeAuditor) ListIngestions(_ context.Context, limit int) ([]core.IngestionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recs) {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upload.MaxFileSize = 10 << 20
	cfg.Upload.Timeout = time.Minute
	return cfg
}

func newTestServer(ing *fakeIngestor, store *fakeReportStore, aud *fakeAuditor, ping *fakePinger) *web.Server {
	if ing == nil {
		ing = &fakeIngestor{}
	}
	if store == nil {
		store = &fakeReportStore{}
	}
	if aud == nil {
		aud = &fakeAuditor{}
	}
	if ping == nil {
		ping = &fakePinger{}
	}
	return web.NewServer(ing, reports.NewEngine(store), aud, ping, testConfig())
}

// uploadRequest builds a multipart POST carrying one CSV file field.
func uploadRequest(t *testing.T, path, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader(content)); err != nil {
		t.Fatalf("copy file content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHandleUpload_Success(t *testing.T) {
	ing := &fakeIngestor{result: &core.IngestResult{
		Status:  core.StatusSuccess,
		Message: "Successfully processed file. Total records in table: 12",
	}}
	srv := newTestServer(ing, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/departments", "departments.csv", "1,Engineering\n")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec, &body)
	if body.Message != "Successfully processed file. Total records in table: 12" {
		t.Errorf("message = %q", body.Message)
	}

	if ing.gotTable != "departments" {
		t.Errorf("table = %q, want %q", ing.gotTable, "departments")
	}
	if ing.gotFile != "departments.csv" {
		t.Errorf("file = %q, want %q", ing.gotFile, "departments.csv")
	}
	if string(ing.gotData) != "1,Engineering\n" {
		t.Errorf("data = %q", ing.gotData)
	}
}

func TestHandleUpload_PartialFailure(t *testing.T) {
	ing := &fakeIngestor{result: &core.IngestResult{
		Status:  core.StatusPartialFailure,
		Message: "Completed with errors. Inserted approximately 1 records.",
		Errors:  []string{"Row 2: Invalid datetime format 'x'. Use ISO format YYYY-MM-DDTHH:MM:SSZ."},
	}}
	srv := newTestServer(ing, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/hired-employees", "hires.csv", "data")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMultiStatus)
	}

	var body struct {
		Message string   `json:"message"`
		Errors  []string `json:"errors"`
	}
	decodeBody(t, rec, &body)
	if len(body.Errors) != 1 {
		t.Errorf("errors = %v, want 1", body.Errors)
	}
}

func TestHandleUpload_Rejected(t *testing.T) {
	ing := &fakeIngestor{result: &core.IngestResult{
		Status:  core.StatusRejected,
		Message: "File must be a CSV.",
	}}
	srv := newTestServer(ing, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/departments", "departments.txt", "1,x\n")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "File must be a CSV." {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandleUpload_UnknownTable(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/payroll", "payroll.csv", "1,x\n")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "Unknown table 'payroll'." {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandleUpload_MissingFileField(t *testing.T) {
	ing := &fakeIngestor{result: &core.IngestResult{
		Status:  core.StatusRejected,
		Message: "No file provided.",
	}}
	srv := newTestServer(ing, nil, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload/departments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ing.gotFile != "" || ing.gotData != nil {
		t.Errorf("ingestor got file %q data %q, want empty", ing.gotFile, ing.gotData)
	}
}

func TestHandleUpload_FileTooLarge(t *testing.T) {
	ing := &fakeIngestor{}
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	srv := web.NewServer(ing, reports.NewEngine(&fakeReportStore{}), &fakeAuditor{}, &fakePinger{}, cfg)

	req := uploadRequest(t, "/api/upload/departments", "departments.csv", strings.Repeat("1,Engineering\n", 100))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusRequestEntityTooLarge, rec.Body.String())
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "File exceeds the maximum size of 64 bytes." {
		t.Errorf("error = %q", body.Error)
	}
	if ing.gotData != nil {
		t.Errorf("ingestor was invoked with data %q", ing.gotData)
	}
}

func TestHandleUpload_LimiterSaturated(t *testing.T) {
	ing := &fakeIngestor{err: core.ErrTooManyIngestions}
	srv := newTestServer(ing, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/departments", "departments.csv", "1,x\n")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleUpload_FatalError(t *testing.T) {
	ing := &fakeIngestor{err: errors.New("connection lost")}
	srv := newTestServer(ing, nil, nil, nil)

	req := uploadRequest(t, "/api/upload/departments", "departments.csv", "1,x\n")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "An error occurred: connection lost" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandleHiresByQuarter(t *testing.T) {
	store := &fakeReportStore{hires: []reports.Hire{
		{Department: "Staff", Job: "Recruiter", Month: time.April},
		{Department: "Staff", Job: "Recruiter", Month: time.May},
		{Department: "Staff", Job: "Manager", Month: time.December},
	}}
	srv := newTestServer(nil, store, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/hires-by-quarter", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var rows []reports.QuarterRow
	decodeBody(t, rec, &rows)
	want := []reports.QuarterRow{
		{Department: "Staff", Job: "Manager", Q4: 1},
		{Department: "Staff", Job: "Recruiter", Q2: 2},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("rows[%d] = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestHandleHiresByQuarter_EmptyYearIsJSONArray(t *testing.T) {
	srv := newTestServer(nil, &fakeReportStore{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/hires-by-quarter?year=1999", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandleDepartmentsAboveAverage(t *testing.T) {
	store := &fakeReportStore{counts: []reports.DepartmentCount{
		{ID: 1, Department: "Accounting", Hired: 3},
		{ID: 2, Department: "Engineering", Hired: 5},
		{ID: 3, Department: "Sales", Hired: 4},
	}}
	srv := newTestServer(nil, store, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/departments-above-average", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var rows []reports.DepartmentCount
	decodeBody(t, rec, &rows)
	if len(rows) != 1 || rows[0].ID != 2 {
		t.Errorf("rows = %+v, want only Engineering", rows)
	}
}

func TestReports_InvalidYear(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)

	for _, path := range []string{
		"/api/reports/hires-by-quarter?year=abc",
		"/api/reports/departments-above-average?year=abc",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusBadRequest)
		}

		var body struct {
			Error string `json:"error"`
		}
		decodeBody(t, rec, &body)
		if body.Error != "Invalid year 'abc'." {
			t.Errorf("%s: error = %q", path, body.Error)
		}
	}
}

func TestHandleListTables(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var tables []struct {
		Key     string   `json:"key"`
		Columns []string `json:"columns"`
	}
	decodeBody(t, rec, &tables)

	keys := make(map[string]bool)
	for _, tbl := range tables {
		keys[tbl.Key] = true
	}
	for _, want := range []string{"departments", "jobs", "hired-employees"} {
		if !keys[want] {
			t.Errorf("missing table %q in %v", want, keys)
		}
	}
}

func TestHandleListIngestions(t *testing.T) {
	aud := &fakeAuditor{recs: []core.IngestionRecord{
		{
			ID:        "b03f9a10-0000-0000-0000-000000000001",
			Table:     "departments",
			FileName:  "departments.csv",
			Status:    core.StatusSuccess,
			Inserted:  12,
			Duration:  120 * time.Millisecond,
			CreatedAt: time.Date(2021, 7, 1, 10, 0, 0, 0, time.UTC),
		},
	}}
	srv := newTestServer(nil, nil, aud, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ingestions", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []struct {
		Table      string `json:"table"`
		Status     string `json:"status"`
		DurationMs int64  `json:"duration_ms"`
	}
	decodeBody(t, rec, &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %+v, want 1", entries)
	}
	if entries[0].Table != "departments" || entries[0].Status != "success" || entries[0].DurationMs != 120 {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestHandleListIngestions_InvalidLimit(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)

	for _, limit := range []string{"0", "-5", "501", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/ingestions?limit="+limit, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit %q: status = %d, want %d", limit, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(nil, nil, nil, &fakePinger{})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("storage down", func(t *testing.T) {
		srv := newTestServer(nil, nil, nil, &fakePinger{err: errors.New("down")})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})
}
