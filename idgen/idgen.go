// Package idgen produces the identifiers radarlapse attaches to capture runs
// and log lines.
//
// Run IDs are UUIDv7 so that they sort by start time; per-location worker IDs
// compose a prefix on top of the run ID.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Run is the generator used for orchestrator runs ("run_<uuidv7>").
var Run Generator = Prefixed("run_", Default)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Worker derives the ID of one capture worker inside a run. The location name
// is lower-cased and spaces become dashes so the ID stays greppable.
func Worker(runID, location string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(location), "-"))
	return fmt.Sprintf("%s/%s", runID, slug)
}

// Parse validates a UUID string, ignoring any "run_" style prefix.
func Parse(s string) (string, error) {
	raw := s
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		raw = s[i+1:]
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("idgen: invalid UUID %q: %w", s, err)
	}
	return u.String(), nil
}
