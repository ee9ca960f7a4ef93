// Command radarview serves the latest radar animations over HTTP.
//
// Usage:
//
//	radarview -db-path radar_images.db -output outputs -addr :8080
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/dbopen"
	"github.com/hazyhaar/radarlapse/internal/config"
	"github.com/hazyhaar/radarlapse/viewer"
)

func main() {
	configPath := flag.String("config", "", "path to radar.yaml")
	dbPath := flag.String("db-path", "", "path to the SQLite catalog (overrides config)")
	outputDir := flag.String("output", "", "directory of GIF artifacts (overrides config)")
	addr := flag.String("addr", "", "listen address (overrides config, default :8080)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("radarview: config", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Catalog = *dbPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *addr != "" {
		cfg.Viewer.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("radarview: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := dbopen.Open(cfg.Catalog, cfg.Database.Options()...)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := catalog.Init(ctx, db); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Viewer.Addr,
		Handler:           viewer.New(db, cfg.OutputDir, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("radarview: listening", "addr", cfg.Viewer.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
