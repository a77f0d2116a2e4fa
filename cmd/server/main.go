package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hiringdata/api/internal/config"
	"github.com/hiringdata/api/internal/core"
	_ "github.com/hiringdata/api/internal/core/tables" // register table definitions
	"github.com/hiringdata/api/internal/database"
	"github.com/hiringdata/api/internal/logging"
	"github.com/hiringdata/api/internal/reports"
	"github.com/hiringdata/api/internal/web"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"batch_size", cfg.Upload.BatchSize,
		"max_concurrent", cfg.Upload.MaxConcurrent,
		"validate_references", cfg.Upload.ValidateReferences,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	db := database.New(pool)

	// Ingestion assumes the schema exists; bootstrap it once here.
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	service := core.NewService(db, core.Options{
		BatchSize:          cfg.Upload.BatchSize,
		ValidateReferences: cfg.Upload.ValidateReferences,
		MaxConcurrent:      cfg.Upload.MaxConcurrent,
		MaxWaitTime:        cfg.Upload.MaxWaitTime,
	})
	engine := reports.NewEngine(db)
	server := web.NewServer(service, engine, db, db, cfg)

	slog.Info("tables registered", "count", core.TableCount())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.ActiveIngestions(); active > 0 {
			slog.Info("waiting for ingestions to complete", "active", active)
			if err := service.WaitForIngestions(shutdownCtx); err != nil {
				slog.Warn("ingestions did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
