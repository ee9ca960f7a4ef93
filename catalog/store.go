package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/radarlapse/dbopen"
)

// ErrClosed is returned by Submit once Shutdown has started or the writer
// has exited.
var ErrClosed = errors.New("catalog: store closed")

// Commit describes one applied event: the inserted entry and the filenames
// of the rows evicted in the same transaction.
type Commit struct {
	Entry   Entry
	Evicted []string
}

// message is one mailbox item. A stop message ends the writer after every
// message queued before it has been applied.
type message struct {
	event Event
	stop  bool
}

// Store is the single writer of the catalog. Producers call Submit from any
// goroutine; one writer goroutine applies events strictly in arrival order,
// each in its own transaction.
type Store struct {
	db       *sql.DB
	keep     int
	now      func() time.Time
	logger   *slog.Logger
	onCommit func(Commit)

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []message
	closing bool
	exited  bool
	done    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithKeepPerKey overrides DefaultKeepPerKey. Values below 1 are ignored.
func WithKeepPerKey(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

// WithClock sets the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOnCommit registers a hook called by the writer after each successful
// commit. The hook runs on the writer goroutine and must not block for long.
func WithOnCommit(fn func(Commit)) Option {
	return func(s *Store) { s.onCommit = fn }
}

// New creates a store on db and starts its writer. The schema must already
// exist (see Init).
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		keep:   DefaultKeepPerKey,
		now:    time.Now,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.cond = sync.NewCond(&s.mu)
	go s.writeLoop()
	return s
}

// Submit enqueues an event. It never blocks on the database.
func (s *Store) Submit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.exited {
		return ErrClosed
	}
	s.queue = append(s.queue, message{event: e})
	s.cond.Signal()
	return nil
}

// Pending returns the number of queued messages not yet applied.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shutdown queues the stop message and blocks until the writer has applied
// every earlier event and exited. Safe to call more than once.
func (s *Store) Shutdown() {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		s.queue = append(s.queue, message{stop: true})
		s.cond.Signal()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Store) next() message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		s.cond.Wait()
	}
	m := s.queue[0]
	s.queue[0] = message{}
	s.queue = s.queue[1:]
	return m
}

func (s *Store) writeLoop() {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.exited = true
		s.mu.Unlock()
	}()

	for {
		m := s.next()
		if m.stop {
			s.logger.Debug("catalog: writer stopped")
			return
		}
		c, err := s.apply(context.Background(), m.event)
		if err != nil {
			s.logger.Error("catalog: apply event", "key", m.event.Key().String(), "filename", m.event.Filename, "error", err)
			continue
		}
		s.logger.Info("catalog: entry recorded",
			"id", c.Entry.ID, "key", c.Entry.Key().String(), "filename", c.Entry.Filename, "evicted", len(c.Evicted))
		if s.onCommit != nil {
			s.onCommit(c)
		}
	}
}

// apply inserts the entry and deletes the surplus rows of its key in one
// transaction.
func (s *Store) apply(ctx context.Context, e Event) (Commit, error) {
	created := s.now().UTC()
	c := Commit{Entry: Entry{
		City:      e.City,
		Zoom:      e.Zoom,
		Source:    e.Source,
		Filename:  e.Filename,
		CreatedAt: created,
	}}

	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO radar_images (city, zoom, filename, source, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.City, e.Zoom, e.Filename, e.Source, created.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		if c.Entry.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, filename FROM radar_images
			WHERE city = ? AND zoom = ? AND source = ?
			ORDER BY created_at DESC, id DESC
			LIMIT -1 OFFSET ?`, e.City, e.Zoom, e.Source, s.keep)
		if err != nil {
			return fmt.Errorf("select surplus: %w", err)
		}
		ids, names, err := collectSurplus(rows)
		if err != nil {
			return err
		}
		c.Evicted = names

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM radar_images WHERE id = ?`, id); err != nil {
				return fmt.Errorf("delete %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return Commit{}, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}

// surplusRows is the part of *sql.Rows read by collectSurplus.
type surplusRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// collectSurplus reads (id, filename) pairs and always closes rows. An
// iteration error aborts so the transaction never evicts a partial set.
func collectSurplus(rows surplusRows) ([]int64, []string, error) {
	defer rows.Close()
	var (
		ids   []int64
		names []string
	)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, nil, fmt.Errorf("scan surplus: %w", err)
		}
		ids = append(ids, id)
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate surplus: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, fmt.Errorf("close surplus: %w", err)
	}
	return ids, names, nil
}
