// Package capture runs one end-to-end radar capture for a monitored location:
// resolve coordinates, drive the provider page in a private browser session,
// collect frames, record the artifact in the catalog and optionally assemble
// it.
package capture

import (
	"context"

	"github.com/hazyhaar/radarlapse/assemble"
	"github.com/hazyhaar/radarlapse/capture/internal/browser"
	"github.com/hazyhaar/radarlapse/catalog"
	"github.com/hazyhaar/radarlapse/provider"
)

// Location is one monitored location. It is immutable for a run.
type Location struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Provider string `yaml:"provider" json:"provider" validate:"required,oneof=weathernetwork windy rainviewer"`
	Zoom     int    `yaml:"zoom" json:"zoom" validate:"gte=-10,lte=10"`
	Mode     string `yaml:"mode" json:"mode,omitempty"`
}

// Source is the catalog source label of the location.
func (l Location) Source() string { return provider.Source(l.Provider, l.Mode) }

// Key is the catalog retention key of the location.
func (l Location) Key() catalog.Key {
	return catalog.Key{City: l.Name, Zoom: l.Zoom, Source: l.Source()}
}

// Session is an open browser page.
type Session interface {
	provider.Page
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Opener starts a new, private browser session.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// BrowserConfig configures Chrome sessions.
type BrowserConfig = browser.Config

// Chrome returns an Opener that launches one Chrome process per session.
func Chrome(cfg BrowserConfig) Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		s, err := browser.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Submitter accepts catalog events. *catalog.Store implements it.
type Submitter interface {
	Submit(e catalog.Event) error
}

// Assembler writes the artifacts of a frame sequence.
// *assemble.Assembler implements it.
type Assembler interface {
	Assemble(frames assemble.FrameSequence, filename string) (assemble.Artifact, error)
}

// Result describes one capture.
type Result struct {
	Filename string
	// Frames is the number of frames actually captured.
	Frames   int
	Outcomes []provider.Outcome
	// Artifact is set only when the capture was asked to write files.
	Artifact *assemble.Artifact
}

// Failed returns the outcomes that did not succeed.
func (r Result) Failed() []provider.Outcome {
	var out []provider.Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}
