// Command radarreset archives produced GIFs into a dated directory and
// recreates an empty catalog. Run it while no capture batch is active.
//
// Usage:
//
//	radarreset -config radar.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hazyhaar/radarlapse/archive"
	"github.com/hazyhaar/radarlapse/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to radar.yaml")
	dbPath := flag.String("db-path", "", "path to the SQLite catalog (overrides config)")
	outputDir := flag.String("output", "", "directory of GIF artifacts (overrides config)")
	archiveDir := flag.String("archive", "", "archive root (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("radarreset: config", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Catalog = *dbPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *archiveDir != "" {
		cfg.ArchiveDir = *archiveDir
	}

	res, err := archive.Run(context.Background(), archive.Options{
		OutputDir:  cfg.OutputDir,
		ArchiveDir: cfg.ArchiveDir,
		Catalog:    cfg.Catalog,
		DB:         cfg.Database.Options(),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("radarreset: fatal", "error", err)
		os.Exit(1)
	}
	fmt.Printf("archived %d files to %s\n", res.Moved, res.Dir)
}
