// Package web provides the HTTP transport for the ingestion and
// reporting service. It is a thin layer: preconditions, outcomes and
// error detail all come from the core and reports packages.
package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hiringdata/api/internal/config"
	"github.com/hiringdata/api/internal/core"
	"github.com/hiringdata/api/internal/metrics"
	"github.com/hiringdata/api/internal/reports"
	"github.com/hiringdata/api/internal/web/middleware"
)

// Ingestor is the ingestion entry point consumed by the upload handler.
type Ingestor interface {
	Ingest(ctx context.Context, tableKey, fileName string, data []byte) (*core.IngestResult, error)
}

// Auditor serves the ingestion history endpoint.
type Auditor interface {
	ListIngestions(ctx context.Context, limit int) ([]core.IngestionRecord, error)
}

// Pinger reports storage connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the hiring-data API.
type Server struct {
	ingestor Ingestor
	reports  *reports.Engine
	audit    Auditor
	pinger   Pinger
	router   *chi.Mux
	server   *http.Server
	cfg      *config.Config
}

// NewServer assembles the router and middleware chain.
func NewServer(ingestor Ingestor, engine *reports.Engine, audit Auditor, pinger Pinger, cfg *config.Config) *Server {
	s := &Server{
		ingestor: ingestor,
		reports:  engine,
		audit:    audit,
		pinger:   pinger,
		router:   chi.NewRouter(),
		cfg:      cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Post("/upload/{table}", s.handleUpload)
		r.Get("/ingestions", s.handleListIngestions)

		r.Get("/reports/hires-by-quarter", s.handleHiresByQuarter)
		r.Get("/reports/departments-above-average", s.handleDepartmentsAboveAverage)
	})
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
