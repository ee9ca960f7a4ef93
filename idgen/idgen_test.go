package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 {
		t.Fatalf("UUIDv7: got length %d, want 36", len(id))
	}
	if id[14] != '7' {
		t.Fatalf("UUIDv7: version nibble %q, want 7 (%s)", id[14], id)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		next := gen()
		if next <= prev {
			t.Fatalf("UUIDv7: %q not after %q", next, prev)
		}
		prev = next
	}
}

func TestRun_Prefix(t *testing.T) {
	id := Run()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("Run: got %q, want run_ prefix", id)
	}
	if _, err := Parse(id); err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
}

func TestWorker_Slug(t *testing.T) {
	got := Worker("run_x", "Powell  River")
	if got != "run_x/powell-river" {
		t.Fatalf("Worker: got %q, want %q", got, "run_x/powell-river")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("run_not-a-uuid"); err == nil {
		t.Fatal("Parse: expected error for invalid UUID")
	}
}
