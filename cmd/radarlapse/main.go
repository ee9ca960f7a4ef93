// Command radarlapse captures radar time-lapses for the configured locations.
//
// Usage:
//
//	radarlapse                                  # built-in locations, one batch
//	radarlapse -config radar.yaml -every 15m    # periodic batches until SIGTERM
//	radarlapse -city Calgary -zoom 1 -frames 5  # one location
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/radarlapse/capture"
	"github.com/hazyhaar/radarlapse/internal/config"
	"github.com/hazyhaar/radarlapse/radar"
)

func main() {
	configPath := flag.String("config", "", "path to radar.yaml (default: built-in locations)")
	frames := flag.Int("frames", 10, "number of frames per capture")
	dbPath := flag.String("db-path", "radar_images.db", "path to the SQLite catalog")
	outputDir := flag.String("output", "outputs", "directory for GIF artifacts")
	debug := flag.Bool("debug", false, "show the browser window")
	every := flag.Duration("every", 0, "run a batch on this interval until interrupted (0 = once)")
	noWrite := flag.Bool("no-write", false, "record catalog entries without writing GIFs")
	city := flag.String("city", "", "capture only this location")
	zoom := flag.Int("zoom", 0, "zoom steps for -city (negative zooms out)")
	providerName := flag.String("provider", "weathernetwork", "provider for -city: weathernetwork, windy, rainviewer")
	mode := flag.String("mode", "", "display mode for -city (windy: satellite, radar)")
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
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("radarlapse: config", "error", err)
		os.Exit(1)
	}

	// Explicit flags win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "frames":
			cfg.Frames = *frames
		case "db-path":
			cfg.Catalog = *dbPath
		case "output":
			cfg.OutputDir = *outputDir
		case "debug":
			cfg.Browser.Debug = *debug
		case "every":
			cfg.Every = *every
		}
	})
	if *city != "" {
		cfg.Locations = []capture.Location{{Name: *city, Provider: *providerName, Zoom: *zoom, Mode: *mode}}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("radarlapse: config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, !*noWrite); err != nil {
		logger.Error("radarlapse: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, write bool) error {
	var opts []radar.Option
	if !write {
		opts = append(opts, radar.WithoutWrite())
	}
	app, err := radar.Open(ctx, cfg, logger, radar.Deps{}, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Every > 0 {
		return radar.NewScheduler(app.Orchestrator, cfg.Every, logger, printReport).Run(ctx)
	}

	rep := app.Orchestrator.Run(ctx)
	printReport(rep)
	if rep.Failed() == len(rep.Outcomes) && len(rep.Outcomes) > 0 {
		return fmt.Errorf("all %d captures failed", len(rep.Outcomes))
	}
	return nil
}

func printReport(r radar.Report) {
	fmt.Printf("run %s: %d locations, %d failed, %s\n",
		r.RunID, len(r.Outcomes), r.Failed(), r.Duration.Round(time.Second))
	for _, o := range r.Outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Printf("  %-20s %-24s frames=%d  %s\n", o.Location.Name, o.Result.Filename, o.Result.Frames, status)
	}
}
