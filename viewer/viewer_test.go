package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/dbopen"
)

func setup(t *testing.T) (http.Handler, string) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(catalog.Schema))
	store := catalog.New(db)
	store.Submit(catalog.Event{City: "Calgary", Zoom: 1, Source: "weathernetwork", Filename: "old.gif"})
	store.Submit(catalog.Event{City: "Calgary", Zoom: 1, Source: "weathernetwork", Filename: "new.gif"})
	store.Submit(catalog.Event{City: "Powell River", Zoom: 2, Source: "windy+satellite", Filename: "pr.gif"})
	store.Shutdown()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new.gif"), []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}
	return New(db, dir, nil), dir
}

func TestLatestJSON(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var images []Image
	if err := json.Unmarshal(rec.Body.Bytes(), &images); err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("images: got %d, want 2", len(images))
	}
	if images[0].Filename != "new.gif" || images[0].ThumbnailURL != "/outputs/new_scaled.gif" {
		t.Errorf("got %+v", images[0])
	}
	if images[1].URL != "/outputs/pr.gif" {
		t.Errorf("got %+v", images[1])
	}
}

func TestIndex(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/outputs/new_scaled.gif") || !strings.Contains(body, "Powell River") {
		t.Fatalf("body missing entries: %s", body)
	}
}

func TestOutput(t *testing.T) {
	h, _ := setup(t)
	cases := []struct {
		path string
		code int
	}{
		{"/outputs/new.gif", http.StatusOK},
		{"/outputs/missing.gif", http.StatusNotFound},
		{"/outputs/..%2Fradar_images.db", http.StatusNotFound},
		{"/outputs/.hidden", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))
		if rec.Code != c.code {
			t.Errorf("%s: got %d, want %d", c.path, rec.Code, c.code)
		}
	}
}

func TestHealthz(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(context.Background()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options: got %q", got)
	}
}

func TestHead(t *testing.T) {
	h, _ := setup(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /healthz: got %d", rec.Code)
	}
}
