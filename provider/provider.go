// Package provider drives one remote radar map page so that it can be
// captured as a time-lapse.
//
// Each provider implements three capabilities: Prepare normalises the page
// (consent banners, overlays, fullscreen, display mode, zoom), Animate starts
// the page's own time-lapse playback and CaptureFrame snapshots the viewport.
// The remote pages change without notice, so every UI step is best-effort: a
// failure becomes an Outcome that the caller logs, never an error that stops
// the capture.
package provider

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"
)

// Provider names as they appear in configuration and in catalog sources.
const (
	WeatherNetworkName = "weathernetwork"
	WindyName          = "windy"
	RainViewerName     = "rainviewer"
)

var (
	// ErrUnknownProvider is returned by New for an unregistered name.
	ErrUnknownProvider = errors.New("provider: unknown provider")
	// ErrOutOfOrder is returned by Driver when a lifecycle step is called
	// from the wrong state.
	ErrOutOfOrder = errors.New("provider: lifecycle step out of order")
)

// Page is the slice of a browser tab a provider needs.
type Page interface {
	// WaitElement blocks until selector matches or ctx is done.
	WaitElement(ctx context.Context, selector string) (Element, error)
	// FindElement reports whether selector matches right now, without waiting.
	FindElement(ctx context.Context, selector string) (Element, bool, error)
	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Element is one matched DOM node.
type Element interface {
	Click(ctx context.Context) error
	// Hide sets visibility:hidden so the node keeps its layout slot.
	Hide(ctx context.Context) error
}

// Provider is the capability set every radar site implements.
type Provider interface {
	Name() string
	Prepare(ctx context.Context) []Outcome
	Animate(ctx context.Context) Outcome
	CaptureFrame(ctx context.Context) (image.Image, error)
}

// Outcome records the result of one best-effort UI step.
type Outcome struct {
	Step string
	Err  error
}

// OK reports whether the step succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.Err == nil {
		return o.Step + ": ok"
	}
	return o.Step + ": " + o.Err.Error()
}

// Options configures page interaction timing and the requested view.
type Options struct {
	Zoom int
	Mode string

	// WaitTimeout bounds every element wait. Default: 10s.
	WaitTimeout time.Duration
	// ClickDelay separates repeated clicks (zoom, mode panel). Default: 1s;
	// negative disables the delay.
	ClickDelay time.Duration

	// Sleep is used for every fixed delay; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) defaults() {
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Second
	}
	if o.ClickDelay == 0 {
		o.ClickDelay = time.Second
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
}

// Factory builds a provider bound to an open page.
type Factory func(page Page, opts Options) Provider

var registry = map[string]Factory{
	WeatherNetworkName: func(p Page, o Options) Provider { return NewWeatherNetwork(p, o) },
	WindyName:          func(p Page, o Options) Provider { return NewWindy(p, o) },
	RainViewerName:     func(p Page, o Options) Provider { return NewRainViewer(p, o) },
}

// New selects the provider variant by configured name.
func New(name string, page Page, opts Options) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return f(page, opts), nil
}

// Names lists the registered provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
