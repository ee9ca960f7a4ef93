package radar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs batches on a fixed interval. Batches never overlap.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
	logger   *slog.Logger
	onReport func(Report)

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler. onReport may be nil.
func NewScheduler(orch *Orchestrator, interval time.Duration, logger *slog.Logger, onReport func(Report)) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{orch: orch, interval: interval, logger: logger, onReport: onReport}
}

// Run starts the first batch immediately and then one per interval until ctx
// is done. It waits for the batch in flight, then shuts the catalog down.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("radar: schedule interval must be positive, got %v", s.interval)
	}

	cron := gocron.NewScheduler(time.UTC)
	_, err := cron.Every(s.interval).StartImmediately().SingletonMode().Do(s.runBatch, ctx)
	if err != nil {
		return fmt.Errorf("radar: schedule: %w", err)
	}

	s.logger.Info("radar: scheduler started", "every", s.interval)
	cron.StartAsync()
	<-ctx.Done()

	cron.Stop()
	s.stop()
	s.orch.Shutdown()
	s.logger.Info("radar: scheduler stopped")
	return nil
}

// runBatch is the scheduled job. It is a no-op once stop has begun.
func (s *Scheduler) runBatch(ctx context.Context) {
	if !s.begin(ctx) {
		return
	}
	defer s.wg.Done()
	rep := s.orch.RunBatch(ctx)
	if s.onReport != nil {
		s.onReport(rep)
	}
}

// begin registers a batch unless the scheduler is stopping. Add and the
// stopping check share the mutex, so no batch is registered after stop
// has started waiting.
func (s *Scheduler) begin(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping || ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// stop refuses new batches and waits for the one in flight.
func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.wg.Wait()
}
