package provider

import (
	"context"
	"image"
)

// RainViewer is a placeholder for rainviewer.com. Its page needs no
// normalisation yet, so Prepare and Animate do nothing and the map is
// captured as loaded.
type RainViewer struct {
	session
}

// NewRainViewer binds the provider to an open page.
func NewRainViewer(page Page, opts Options) *RainViewer {
	return &RainViewer{session: newSession(page, opts)}
}

func (r *RainViewer) Name() string { return RainViewerName }

func (r *RainViewer) Prepare(ctx context.Context) []Outcome { return nil }

func (r *RainViewer) Animate(ctx context.Context) Outcome {
	return Outcome{Step: "play (not supported)"}
}

func (r *RainViewer) CaptureFrame(ctx context.Context) (image.Image, error) {
	return r.captureFrame(ctx)
}
