// Package catalog records produced artifacts in SQLite and keeps at most
// KeepPerKey entries per (city, zoom, source) key.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema for the radar_images table. Apply with Init or dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS radar_images (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	city TEXT NOT NULL,
	zoom INTEGER NOT NULL,
	filename TEXT NOT NULL,
	source TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_radar_images_key ON radar_images(city, zoom, source, created_at);
`

// DefaultKeepPerKey is the retention bound per key.
const DefaultKeepPerKey = 5

// timeLayout is fixed width so lexical order of created_at equals time order.
const timeLayout = "2006-01-02 15:04:05.000000"

// Key identifies one retention bucket.
type Key struct {
	City   string `json:"city"`
	Zoom   int    `json:"zoom"`
	Source string `json:"source"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/z%d/%s", k.City, k.Zoom, k.Source)
}

// Event asks the store to record one produced artifact.
type Event struct {
	City     string
	Zoom     int
	Source   string
	Filename string
}

// Key returns the retention key of the event.
func (e Event) Key() Key { return Key{City: e.City, Zoom: e.Zoom, Source: e.Source} }

// Entry is one catalog row.
type Entry struct {
	ID        int64     `json:"id"`
	City      string    `json:"city"`
	Zoom      int       `json:"zoom"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the retention key of the entry.
func (e Entry) Key() Key { return Key{City: e.City, Zoom: e.Zoom, Source: e.Source} }

// Init creates the radar_images table if it doesn't exist.
func Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: init schema: %w", err)
	}
	return nil
}

// Latest returns the most recent entry of every key, ordered by city, zoom
// and source.
func Latest(ctx context.Context, db *sql.DB) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, city, zoom, source, filename, created_at FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY city, zoom, source
				ORDER BY created_at DESC, id DESC
			) AS rn
			FROM radar_images
		) WHERE rn = 1
		ORDER BY city, zoom, source`)
	if err != nil {
		return nil, fmt.Errorf("catalog: latest: %w", err)
	}
	return scanEntries(rows)
}

// Entries returns every entry of one key, newest first.
func Entries(ctx context.Context, db *sql.DB, k Key) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, city, zoom, source, filename, created_at
		FROM radar_images
		WHERE city = ? AND zoom = ? AND source = ?
		ORDER BY created_at DESC, id DESC`, k.City, k.Zoom, k.Source)
	if err != nil {
		return nil, fmt.Errorf("catalog: entries %s: %w", k, err)
	}
	return scanEntries(rows)
}

// Count returns the total number of rows.
func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM radar_images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: count: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var created sql.NullString
		if err := rows.Scan(&e.ID, &e.City, &e.Zoom, &e.Source, &e.Filename, &created); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		if created.Valid {
			e.CreatedAt = parseTime(created.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// parseTime accepts the store's own layout and SQLite's CURRENT_TIMESTAMP
// layout for rows inserted by other tools.
func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
