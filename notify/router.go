package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/radarlapse/catalog"
)

// Router fans out notifications to all configured sinks. One sink error
// does not block the others; errors are logged and the first
// encountered is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger

	startOnce sync.Once
	drainOnce sync.Once
	queue     chan catalog.Commit
	delivered chan struct{}
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, n Notification) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, n); err != nil {
			r.logger.Warn("notify: send failed", "filename", n.Entry.Filename, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// commitBuffer bounds the commits waiting for delivery. The catalog writer
// only blocks when that many are pending.
const commitBuffer = 64

// OnCommit returns a catalog commit hook. The hook queues the commit and
// returns; one delivery goroutine sends queued commits in order, each with
// the given timeout. Drain stops it.
func (r *Router) OnCommit(timeout time.Duration) func(catalog.Commit) {
	r.startOnce.Do(func() {
		r.queue = make(chan catalog.Commit, commitBuffer)
		r.delivered = make(chan struct{})
		go r.deliver(timeout)
	})
	return func(c catalog.Commit) { r.queue <- c }
}

func (r *Router) deliver(timeout time.Duration) {
	defer close(r.delivered)
	for c := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		r.Send(ctx, FromCommit(c))
		cancel()
	}
}

// Drain waits until every queued commit has been delivered and stops the
// delivery goroutine. The commit hook must not be called afterwards. Safe
// to call more than once, and a no-op when OnCommit was never used.
func (r *Router) Drain() {
	if r.queue == nil {
		return
	}
	r.drainOnce.Do(func() { close(r.queue) })
	<-r.delivered
}

// Close drains pending commits, then closes every sink.
func (r *Router) Close() error {
	r.Drain()
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
