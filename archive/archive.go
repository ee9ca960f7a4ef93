// Package archive moves produced artifacts into a dated directory and resets
// the catalog.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/dbopen"
)

// Options configures Run.
type Options struct {
	OutputDir  string
	ArchiveDir string
	Catalog    string
	// DB is passed to dbopen.Open when the catalog is recreated.
	DB []dbopen.Option
	// Now defaults to time.Now; it picks the YYYYMMDD directory.
	Now    func() time.Time
	Logger *slog.Logger
}

// Result reports what Run did.
type Result struct {
	Dir   string
	Moved int
}

// Run moves every file of OutputDir into ArchiveDir/YYYYMMDD, deletes the
// catalog database with its WAL side files and recreates an empty schema.
// It must not run while a capture batch is writing.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	res := Result{Dir: filepath.Join(opts.ArchiveDir, opts.Now().Format("20060102"))}
	if err := os.MkdirAll(res.Dir, 0o755); err != nil {
		return res, fmt.Errorf("archive: mkdir: %w", err)
	}

	entries, err := os.ReadDir(opts.OutputDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return res, fmt.Errorf("archive: read outputs: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(opts.OutputDir, e.Name())
		if err := os.Rename(src, filepath.Join(res.Dir, e.Name())); err != nil {
			return res, fmt.Errorf("archive: move %s: %w", e.Name(), err)
		}
		res.Moved++
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(opts.Catalog + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return res, fmt.Errorf("archive: remove catalog: %w", err)
		}
	}

	db, err := dbopen.Open(opts.Catalog, append([]dbopen.Option{dbopen.WithMkdirAll()}, opts.DB...)...)
	if err != nil {
		return res, fmt.Errorf("archive: recreate catalog: %w", err)
	}
	defer db.Close()
	if err := catalog.Init(ctx, db); err != nil {
		return res, err
	}

	opts.Logger.Info("archive: done", "dir", res.Dir, "moved", res.Moved, "catalog", opts.Catalog)
	return res, nil
}
