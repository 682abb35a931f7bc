// Command server runs the platform HTTP API with its background services.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/dedpost/platform/internal/app"
	"github.com/dedpost/platform/internal/app/httpapi"
	"github.com/dedpost/platform/internal/app/metrics"
	"github.com/dedpost/platform/internal/app/storage/postgres"
	"github.com/dedpost/platform/internal/config"
	"github.com/dedpost/platform/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "server")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	stores, closeDB, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	if closeDB != nil {
		defer closeDB()
	}

	application, err := app.New(stores, app.Options{
		SettingsCacheTTL:   cfg.Ledger.SettingsCacheTTL.Std(),
		PostRetries:        cfg.Ledger.PostRetries,
		ReconcileInterval:  cfg.Ledger.ReconcileInterval.Std(),
		ReconcileGraceAge:  cfg.Ledger.ReconcileGraceAge.Std(),
		ReconcileBatchSize: cfg.Ledger.ReconcileBatchSize,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	api, err := httpapi.NewHandler(application, httpapi.Config{
		AuditFile: os.Getenv("AUDIT_LOG_FILE"),
	}, log)
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      metrics.InstrumentHandler(mux),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown incomplete")
	}

	log.Info("server stopped")
	return nil
}

// buildStores connects to PostgreSQL when a DSN is configured, falling back
// to the in-memory store otherwise.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database DSN configured; using in-memory storage")
		return app.Stores{}, nil, nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.EnsureSchema(pingCtx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ensure schema: %w", err)
	}

	store := postgres.New(db)
	log.Info("connected to postgres")
	return app.Stores{
		Users:    store,
		Posts:    store,
		Settings: store,
		Ledger:   store,
		Stats:    store,
	}, func() { db.Close() }, nil
}
