// Package dbopen opens the radar catalog on modernc.org/sqlite.
//
// Every connection gets WAL journaling, so viewer reads never wait on the
// capture writer, plus foreign keys, a busy timeout and a synchronous level.
// The last two come from the database section of the config file:
//
//	db, err := dbopen.Open(cfg.Catalog,
//		dbopen.WithMkdirAll(),
//		dbopen.WithBusyTimeout(cfg.Database.BusyTimeout),
//		dbopen.WithSynchronous(cfg.Database.Synchronous))
//
// Tests use dbopen.OpenMemory(t).
package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	driverName = "sqlite"

	// DefaultBusyTimeout is how long a connection waits on a locked database.
	DefaultBusyTimeout = 10 * time.Second
	// DefaultSynchronous is safe under WAL and avoids an fsync per commit.
	DefaultSynchronous = "NORMAL"
)

var synchronousModes = map[string]bool{"OFF": true, "NORMAL": true, "FULL": true, "EXTRA": true}

type settings struct {
	busyTimeout time.Duration
	synchronous string
	mkdirAll    bool
	schemas     []string
}

// Option customises Open.
type Option func(*settings)

// WithBusyTimeout sets PRAGMA busy_timeout. Zero keeps DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithSynchronous sets PRAGMA synchronous (OFF, NORMAL, FULL or EXTRA,
// any case). Empty keeps DefaultSynchronous.
func WithSynchronous(mode string) Option {
	return func(s *settings) {
		if mode != "" {
			s.synchronous = strings.ToUpper(mode)
		}
	}
}

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(s *settings) { s.mkdirAll = true } }

// WithSchema runs DDL once the pragmas are in place.
func WithSchema(ddl string) Option {
	return func(s *settings) { s.schemas = append(s.schemas, ddl) }
}

// Open opens the SQLite database at path and verifies it answers a ping.
// The caller blank-imports modernc.org/sqlite.
func Open(path string, opts ...Option) (*sql.DB, error) {
	s := settings{busyTimeout: DefaultBusyTimeout, synchronous: DefaultSynchronous}
	for _, o := range opts {
		o(&s)
	}
	if !synchronousModes[s.synchronous] {
		return nil, fmt.Errorf("dbopen: unknown synchronous mode %q", s.synchronous)
	}

	if s.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := s.prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s settings) prepare(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
		"PRAGMA synchronous = " + s.synchronous,
	}
	stmts = append(stmts, s.schemas...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dbopen: %s: %w", firstLine(stmt), err)
		}
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("dbopen: ping: %w", err)
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// OpenMemory opens a private in-memory database closed by t.Cleanup. It is
// limited to one connection because every ":memory:" connection is a
// separate database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// RunTx runs fn in one transaction and commits it, rolling back when fn
// fails. There is no retry on SQLITE_BUSY: the catalog has a single writer.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}
