// Package viewer serves the latest artifact of every catalog key over HTTP.
package viewer

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/radarlapse/assemble"
	"github.com/hazyhaar/radarlapse/catalog"
)

// Image is one entry of /api/latest.
type Image struct {
	City         string    `json:"city"`
	Zoom         int       `json:"zoom"`
	Source       string    `json:"source"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

type server struct {
	db        *sql.DB
	outputDir string
	logger    *slog.Logger
}

// New returns the viewer handler. It only reads the catalog.
func New(db *sql.DB, outputDir string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{db: db, outputDir: outputDir, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Get("/", s.index)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/latest", s.latestJSON)
	r.Get("/outputs/{filename}", s.output)
	return r
}

func (s *server) latest(r *http.Request) ([]Image, error) {
	entries, err := catalog.Latest(r.Context(), s.db)
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(entries))
	for _, e := range entries {
		images = append(images, Image{
			City:         e.City,
			Zoom:         e.Zoom,
			Source:       e.Source,
			Filename:     e.Filename,
			CreatedAt:    e.CreatedAt,
			URL:          outputURL(e.Filename),
			ThumbnailURL: outputURL(assemble.ThumbnailName(e.Filename)),
		})
	}
	return images, nil
}

func (s *server) latestJSON(w http.ResponseWriter, r *http.Request) {
	images, err := s.latest(r)
	if err != nil {
		s.logger.Error("viewer: latest", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *server) index(w http.ResponseWriter, r *http.Request) {
	images, err := s.latest(r)
	if err != nil {
		s.logger.Error("viewer: latest", "error", err)
		http.Error(w, "catalog unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, images); err != nil {
		s.logger.Warn("viewer: render index", "error", err)
	}
}

func (s *server) output(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	full := filepath.Join(s.outputDir, name)
	if _, err := os.Stat(full); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeFile(w, r, full)
}

func outputURL(filename string) string {
	return "/outputs/" + url.PathEscape(filename)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Weather radar</title>
<style>
body{font-family:sans-serif;margin:1.5rem;background:#111;color:#eee}
.grid{display:flex;flex-wrap:wrap;gap:1rem}
figure{margin:0}
figcaption{font-size:.85rem;color:#aaa}
a{color:inherit}
</style>
</head>
<body>
<h1>Weather radar</h1>
<div class="grid">
{{range .}}<figure>
<a href="{{.URL}}"><img src="{{.ThumbnailURL}}" alt="{{.City}}"></a>
<figcaption>{{.City}} · z{{.Zoom}} · {{.Source}}<br>{{.CreatedAt.Format "2006-01-02 15:04"}} UTC</figcaption>
</figure>
{{else}}<p>No captures yet.</p>
{{end}}</div>
</body>
</html>`))
