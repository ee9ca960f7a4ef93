package provider

import (
	"context"
	"fmt"
	"image"
)

const (
	windyLayerFold = `[data-do="unfold,radarSat"]`
	windyZoomIn    = `[data-do="bcast,zoomIn"]`
	windyZoomOut   = `[data-do="bcast,zoomOut"]`
	windyPlayPause = `#playpause`
	windyPlayRef   = `[data-ref="play"]`
)

// windyModes maps a requested display mode to its layer control. Modes not
// listed here leave the page on whatever layer it opened with.
var windyModes = map[string]string{
	"satellite": `[data-do="set,satellite"]`,
	"radar":     `[data-do="set,radar"]`,
}

var windyDistractions = []string{
	"#search-weather-bg",
	"#plugin-rhpane",
	"#rh-icons",
	"#logo-wrapper",
}

// Windy drives windy.com, a multi-layer map with a selectable display mode.
type Windy struct {
	session
}

// NewWindy binds the provider to an open page.
func NewWindy(page Page, opts Options) *Windy {
	return &Windy{session: newSession(page, opts)}
}

func (w *Windy) Name() string { return WindyName }

// Prepare selects the display mode, applies zoom, hides the side panels and
// lets the map settle for one click delay.
func (w *Windy) Prepare(ctx context.Context) []Outcome {
	var out []Outcome
	if o, ok := w.selectMode(ctx); ok {
		out = append(out, o)
	}
	out = append(out, w.zoom(ctx, windyZoomIn, windyZoomOut))
	out = append(out, w.hideSteps(ctx, windyDistractions)...)
	if err := w.opts.Sleep(ctx, w.opts.ClickDelay); err != nil {
		out = append(out, Outcome{Step: "settle", Err: err})
	}
	return out
}

// selectMode opens the layer panel, clicks the mode control and folds the
// panel again. ok is false when no mode step applies.
func (w *Windy) selectMode(ctx context.Context) (o Outcome, ok bool) {
	control, known := windyModes[w.opts.Mode]
	if !known {
		return Outcome{}, false
	}
	step := "mode " + w.opts.Mode

	fold, err := w.wait(ctx, windyLayerFold)
	if err != nil {
		return Outcome{Step: step, Err: err}, true
	}
	if err := fold.Click(ctx); err != nil {
		return Outcome{Step: step, Err: fmt.Errorf("open layer panel: %w", err)}, true
	}
	if err := w.opts.Sleep(ctx, w.opts.ClickDelay); err != nil {
		return Outcome{Step: step, Err: err}, true
	}
	btn, err := w.wait(ctx, control)
	if err != nil {
		return Outcome{Step: step, Err: err}, true
	}
	if err := btn.Click(ctx); err != nil {
		return Outcome{Step: step, Err: fmt.Errorf("click %s: %w", control, err)}, true
	}
	if err := fold.Click(ctx); err != nil {
		return Outcome{Step: step, Err: fmt.Errorf("close layer panel: %w", err)}, true
	}
	return Outcome{Step: step}, true
}

// Animate clicks #playpause when it is already on the page, otherwise waits
// for the [data-ref="play"] control.
func (w *Windy) Animate(ctx context.Context) Outcome {
	el, found, err := w.page.FindElement(ctx, windyPlayPause)
	if err == nil && found {
		if err := el.Click(ctx); err != nil {
			return Outcome{Step: "play", Err: fmt.Errorf("click %s: %w", windyPlayPause, err)}
		}
		return Outcome{Step: "play"}
	}
	return w.clickStep(ctx, "play", windyPlayRef)
}

func (w *Windy) CaptureFrame(ctx context.Context) (image.Image, error) {
	return w.captureFrame(ctx)
}
