package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/radarlapse/assemble"
	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/geocode"
	"github.com/hazyhaar/radarlapse/provider"
)

// Worker runs captures. A Worker holds no per-capture state and may run
// captures for several locations concurrently.
type Worker struct {
	resolver  geocode.Resolver
	opener    Opener
	store     Submitter
	assembler Assembler

	settle      time.Duration
	interval    time.Duration
	waitTimeout time.Duration
	clickDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithSettle sets the delay after navigation. Default: 5s.
func WithSettle(d time.Duration) Option { return func(w *Worker) { w.settle = d } }

// WithFrameInterval sets the delay between frames. Default: 1s.
func WithFrameInterval(d time.Duration) Option { return func(w *Worker) { w.interval = d } }

// WithWaitTimeout bounds every element wait. Default: 10s.
func WithWaitTimeout(d time.Duration) Option { return func(w *Worker) { w.waitTimeout = d } }

// WithClickDelay sets the delay between repeated clicks. Default: 1s.
func WithClickDelay(d time.Duration) Option { return func(w *Worker) { w.clickDelay = d } }

// WithSleep replaces the context-aware sleep used for every fixed delay.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Worker) { w.sleep = fn }
}

// WithClock sets the time source for artifact names.
func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option { return func(w *Worker) { w.logger = l } }

// NewWorker creates a Worker. resolver may be nil (coordinates always
// undefined); assembler may be nil when no capture writes files.
func NewWorker(resolver geocode.Resolver, opener Opener, store Submitter, assembler Assembler, opts ...Option) *Worker {
	w := &Worker{
		resolver:  resolver,
		opener:    opener,
		store:     store,
		assembler: assembler,
		settle:    5 * time.Second,
		interval:  time.Second,
		sleep:     sleepCtx,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// RunCapture captures frameCount frames of loc. The catalog event is
// submitted whether or not the browser part succeeded; files are written
// only when forceWrite is set.
func (w *Worker) RunCapture(ctx context.Context, loc Location, frameCount int, forceWrite bool) (Result, error) {
	log := w.logger.With("location", loc.Name, "provider", loc.Provider, "zoom", loc.Zoom)
	started := w.now()

	coords := w.resolve(ctx, log, loc.Name)
	pageURL, err := provider.PageURL(loc.Provider, coords)
	if err != nil {
		return Result{}, fmt.Errorf("capture: %s: %w", loc.Name, err)
	}

	res := Result{Filename: assemble.Filename(started, loc.Name, loc.Zoom, loc.Source())}

	frames, outcomes := w.captureFrames(ctx, log, loc, pageURL, frameCount)
	res.Frames = len(frames)
	res.Outcomes = outcomes

	ev := catalog.Event{City: loc.Name, Zoom: loc.Zoom, Source: loc.Source(), Filename: res.Filename}
	if err := w.store.Submit(ev); err != nil {
		return res, fmt.Errorf("capture: %s: submit: %w", loc.Name, err)
	}

	if !forceWrite {
		log.Info("capture: done", "filename", res.Filename, "frames", res.Frames, "duration", time.Since(started))
		return res, nil
	}
	if w.assembler == nil {
		return res, fmt.Errorf("capture: %s: no assembler configured", loc.Name)
	}
	art, err := w.assembler.Assemble(frames, res.Filename)
	if err != nil {
		return res, fmt.Errorf("capture: %s: %w", loc.Name, err)
	}
	res.Artifact = &art

	log.Info("capture: done", "filename", res.Filename, "frames", res.Frames,
		"primary", art.PrimaryFile, "thumbnail", art.ThumbnailFile, "duration", time.Since(started))
	return res, nil
}

func (w *Worker) resolve(ctx context.Context, log *slog.Logger, name string) *geocode.Coordinates {
	if w.resolver == nil {
		return nil
	}
	c, err := w.resolver.Resolve(ctx, name)
	if err != nil {
		log.Warn("capture: coordinates not found", "error", err)
		return nil
	}
	log.Debug("capture: coordinates resolved", "coords", c.String())
	return &c
}

// captureFrames runs the browser part of a capture. Every failure is logged
// here and only shortens the returned sequence.
func (w *Worker) captureFrames(ctx context.Context, log *slog.Logger, loc Location, pageURL string, frameCount int) (assemble.FrameSequence, []provider.Outcome) {
	sess, err := w.opener.Open(ctx)
	if err != nil {
		log.Error("capture: open browser session", "error", err)
		return nil, nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("capture: close browser session", "error", err)
		}
	}()

	log.Info("capture: loading radar page", "url", pageURL)
	if err := sess.Navigate(ctx, pageURL); err != nil {
		log.Error("capture: navigate", "error", err)
	}
	if err := w.sleep(ctx, w.settle); err != nil {
		return nil, nil
	}

	p, err := provider.New(loc.Provider, sess, provider.Options{
		Zoom:        loc.Zoom,
		Mode:        loc.Mode,
		WaitTimeout: w.waitTimeout,
		ClickDelay:  w.clickDelay,
		Sleep:       w.sleep,
	})
	if err != nil {
		log.Error("capture: provider", "error", err)
		return nil, nil
	}
	d := provider.NewDriver(p)
	defer d.Close()

	outcomes, _ := d.Prepare(ctx)
	play, _ := d.Animate(ctx)
	outcomes = append(outcomes, play)
	logOutcomes(log, outcomes)

	frames := make(assemble.FrameSequence, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		if i > 0 {
			if err := w.sleep(ctx, w.interval); err != nil {
				break
			}
		}
		log.Debug("capture: collecting frame", "frame", i+1, "of", frameCount)
		img, err := d.CaptureFrame(ctx)
		if err != nil {
			log.Warn("capture: frame failed", "frame", i+1, "error", err)
			continue
		}
		frames = append(frames, img)
	}
	return frames, outcomes
}

func logOutcomes(log *slog.Logger, outcomes []provider.Outcome) {
	for _, o := range outcomes {
		if o.OK() {
			log.Debug("capture: step ok", "step", o.Step)
			continue
		}
		log.Warn("capture: step failed", "step", o.Step, "error", o.Err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
