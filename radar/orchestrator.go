// Package radar runs capture batches: one worker per monitored location in
// parallel, joined before the catalog is shut down.
package radar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/radarlapse/capture"
	"github.com/hazyhaar/radarlapse/idgen"
)

// Capturer runs one capture. *capture.Worker implements it.
type Capturer interface {
	RunCapture(ctx context.Context, loc capture.Location, frameCount int, forceWrite bool) (capture.Result, error)
}

// Shutdowner drains and stops the catalog writer. *catalog.Store implements it.
type Shutdowner interface {
	Shutdown()
}

// Outcome is the result of one location in a batch.
type Outcome struct {
	Location capture.Location
	Result   capture.Result
	Err      error
}

// Report summarises one batch.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Failed counts locations whose capture returned an error.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Orchestrator fans a batch out over its locations.
type Orchestrator struct {
	capturer   Capturer
	store      Shutdowner
	locations  []capture.Location
	frames     int
	forceWrite bool
	parallel   int
	newID      idgen.Generator
	logger     *slog.Logger

	once sync.Once
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallel caps the number of concurrent workers. 0 means one per location.
func WithParallel(n int) Option { return func(o *Orchestrator) { o.parallel = n } }

// WithoutWrite records catalog events without writing artifact files.
func WithoutWrite() Option { return func(o *Orchestrator) { o.forceWrite = false } }

// WithIDGenerator sets the run ID generator. Default: idgen.Run.
func WithIDGenerator(g idgen.Generator) Option { return func(o *Orchestrator) { o.newID = g } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// NewOrchestrator creates an Orchestrator capturing frames frames per location.
func NewOrchestrator(c Capturer, store Shutdowner, locations []capture.Location, frames int, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		capturer:   c,
		store:      store,
		locations:  locations,
		frames:     frames,
		forceWrite: true,
		newID:      idgen.Run,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one batch, then shuts the catalog down.
func (o *Orchestrator) Run(ctx context.Context) Report {
	r := o.RunBatch(ctx)
	o.Shutdown()
	return r
}

// RunBatch starts one worker per location and waits for all of them. A
// failing location never cancels the others.
func (o *Orchestrator) RunBatch(ctx context.Context) Report {
	rep := Report{RunID: o.newID(), Started: time.Now()}
	log := o.logger.With("run_id", rep.RunID)
	log.Info("radar: batch started", "locations", len(o.locations), "frames", o.frames)

	rep.Outcomes = make([]Outcome, len(o.locations))
	var g errgroup.Group
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i, loc := range o.locations {
		g.Go(func() error {
			res, err := o.capturer.RunCapture(ctx, loc, o.frames, o.forceWrite)
			rep.Outcomes[i] = Outcome{Location: loc, Result: res, Err: err}
			if err != nil {
				log.Error("radar: capture failed", "worker", idgen.Worker(rep.RunID, loc.Name), "error", err)
			}
			return nil
		})
	}
	g.Wait()

	rep.Duration = time.Since(rep.Started)
	log.Info("radar: batch finished", "failed", rep.Failed(), "duration", rep.Duration)
	return rep
}

// Shutdown stops the catalog writer once. Later calls are no-ops.
func (o *Orchestrator) Shutdown() {
	o.once.Do(func() {
		if o.store != nil {
			o.store.Shutdown()
		}
	})
}
