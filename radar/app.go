package radar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/radarlapse/assemble"
	"github.com/hazyhaar/radarlapse/capture"
	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/dbopen"
	"github.com/hazyhaar/radarlapse/geocode"
	"github.com/hazyhaar/radarlapse/internal/config"
	"github.com/hazyhaar/radarlapse/notify"
)

// App is a fully wired capture pipeline.
type App struct {
	DB           *sql.DB
	Store        *catalog.Store
	Router       *notify.Router
	Worker       *capture.Worker
	Orchestrator *Orchestrator
}

// Deps overrides collaborators of Open; zero fields use the real ones.
type Deps struct {
	Opener   capture.Opener
	Resolver geocode.Resolver
	Sinks    []notify.Sink
}

// Open wires the catalog, notification sinks, geocoder, browser and worker
// described by cfg. opts are applied to the Orchestrator.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := dbopen.Open(cfg.Catalog, cfg.Database.Options()...)
	if err != nil {
		return nil, fmt.Errorf("radar: open catalog: %w", err)
	}
	if err := catalog.Init(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	sinks := deps.Sinks
	if sinks == nil {
		if sinks, err = buildSinks(cfg.Sinks, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	router := notify.NewRouter(logger, sinks...)

	storeOpts := []catalog.Option{
		catalog.WithKeepPerKey(cfg.KeepPerKey),
		catalog.WithLogger(logger),
	}
	if router.Len() > 0 {
		storeOpts = append(storeOpts, catalog.WithOnCommit(router.OnCommit(15*time.Second)))
	}
	store := catalog.New(db, storeOpts...)

	resolver := deps.Resolver
	if resolver == nil {
		resolver = buildResolver(cfg.Geocoder)
	}

	opener := deps.Opener
	if opener == nil {
		bc := cfg.Browser
		bc.Logger = logger
		opener = capture.Chrome(bc)
	}

	worker := capture.NewWorker(resolver, opener, store,
		assemble.New(cfg.OutputDir, assemble.WithDelay(cfg.Capture.FrameDelay), assemble.WithLogger(logger)),
		capture.WithSettle(cfg.Capture.Settle),
		capture.WithFrameInterval(cfg.Capture.FrameInterval),
		capture.WithWaitTimeout(cfg.Capture.WaitTimeout),
		capture.WithClickDelay(cfg.Capture.ClickDelay),
		capture.WithLogger(logger),
	)

	orchOpts := append([]Option{WithParallel(cfg.Parallel), WithLogger(logger)}, opts...)
	orch := NewOrchestrator(worker, pipeline{store: store, router: router}, cfg.Locations, cfg.Frames, orchOpts...)

	return &App{DB: db, Store: store, Router: router, Worker: worker, Orchestrator: orch}, nil
}

// pipeline stops the catalog writer, then waits for the notifications of
// its last commits.
type pipeline struct {
	store  *catalog.Store
	router *notify.Router
}

func (p pipeline) Shutdown() {
	p.store.Shutdown()
	p.router.Drain()
}

// Close shuts the catalog writer down, then closes sinks and the database.
func (a *App) Close() error {
	a.Orchestrator.Shutdown()
	return errors.Join(a.Router.Close(), a.DB.Close())
}

func buildResolver(cfg config.GeocoderConfig) geocode.Resolver {
	var chain geocode.Chain
	if len(cfg.Static) > 0 {
		chain = append(chain, geocode.Static(cfg.Static))
	}
	if !cfg.Disabled {
		opts := []geocode.NominatimOption{geocode.WithUserAgent(cfg.UserAgent)}
		if cfg.NominatimURL != "" {
			opts = append(opts, geocode.WithNominatimURL(cfg.NominatimURL))
		}
		chain = append(chain, geocode.NewNominatim(opts...))
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

func buildSinks(cfgs []config.SinkConfig, logger *slog.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink
	for _, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, notify.NewStdout(nil))
		case "webhook":
			sinks = append(sinks, notify.NewWebhook(sc.URL,
				notify.WithWebhookRetries(sc.Retries), notify.WithWebhookLogger(logger)))
		case "mqtt":
			m, err := notify.DialMQTT(sc.MQTT)
			if err != nil {
				for _, s := range sinks {
					s.Close()
				}
				return nil, fmt.Errorf("radar: sink: %w", err)
			}
			sinks = append(sinks, m)
		default:
			return nil, fmt.Errorf("radar: unknown sink type %q", sc.Type)
		}
	}
	return sinks, nil
}
