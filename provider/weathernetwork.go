package provider

import (
	"context"
	"image"
)

// WeatherNetwork selectors. The page is single-layer: there is no display
// mode to pick, so Options.Mode is ignored.
const (
	wnCookieClose = `[data-testid="cookie-bar-close-button"]`
	wnFullscreen  = `[title="Toggle Full Screen"]`
	wnZoomIn      = `[title="Zoom In"]`
	wnZoomOut     = `[title="Zoom Out"]`
	wnPlayPause   = `[data-testid="play-pause-button"]`
)

var wnDistractions = []string{
	`[data-testid="responsive-header-bar"]`,
	`[data-testid="div-gpt-ad-topbanner-short"]`,
}

// WeatherNetwork drives theweathernetwork.com radar maps.
type WeatherNetwork struct {
	session
}

// NewWeatherNetwork binds the provider to an open page.
func NewWeatherNetwork(page Page, opts Options) *WeatherNetwork {
	return &WeatherNetwork{session: newSession(page, opts)}
}

func (w *WeatherNetwork) Name() string { return WeatherNetworkName }

// Prepare dismisses the cookie bar, hides the header and ad banner, toggles
// fullscreen and applies the zoom policy, in that order.
func (w *WeatherNetwork) Prepare(ctx context.Context) []Outcome {
	out := []Outcome{w.clickStep(ctx, "dismiss cookie bar", wnCookieClose)}
	out = append(out, w.hideSteps(ctx, wnDistractions)...)
	out = append(out, w.clickStep(ctx, "toggle fullscreen", wnFullscreen))
	out = append(out, w.zoom(ctx, wnZoomIn, wnZoomOut))
	return out
}

// Animate presses the map's play/pause control.
func (w *WeatherNetwork) Animate(ctx context.Context) Outcome {
	return w.clickStep(ctx, "play", wnPlayPause)
}

func (w *WeatherNetwork) CaptureFrame(ctx context.Context) (image.Image, error) {
	return w.captureFrame(ctx)
}
