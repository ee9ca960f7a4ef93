package provider

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
)

// session holds what every variant shares: the page handle and options.
// It carries no lifecycle state; Driver owns that.
type session struct {
	page Page
	opts Options
}

func newSession(page Page, opts Options) session {
	opts.defaults()
	return session{page: page, opts: opts}
}

// wait looks up selector within the configured timeout.
func (s session) wait(ctx context.Context, selector string) (Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.WaitTimeout)
	defer cancel()
	el, err := s.page.WaitElement(waitCtx, selector)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", selector, err)
	}
	return el, nil
}

func (s session) clickStep(ctx context.Context, step, selector string) Outcome {
	el, err := s.wait(ctx, selector)
	if err != nil {
		return Outcome{Step: step, Err: err}
	}
	if err := el.Click(ctx); err != nil {
		return Outcome{Step: step, Err: fmt.Errorf("click %s: %w", selector, err)}
	}
	return Outcome{Step: step}
}

// hideSteps hides each selector independently.
func (s session) hideSteps(ctx context.Context, selectors []string) []Outcome {
	out := make([]Outcome, 0, len(selectors))
	for _, sel := range selectors {
		step := "hide " + sel
		el, err := s.wait(ctx, sel)
		if err != nil {
			out = append(out, Outcome{Step: step, Err: err})
			continue
		}
		if err := el.Hide(ctx); err != nil {
			out = append(out, Outcome{Step: step, Err: fmt.Errorf("hide %s: %w", sel, err)})
			continue
		}
		out = append(out, Outcome{Step: step})
	}
	return out
}

// zoom applies the zoom policy shared by every provider: zoom > 0 clicks
// zoomIn exactly zoom times, zoom < 0 clicks zoomOut exactly -zoom times,
// zoom == 0 touches nothing. The control is looked up once; the first failed
// click ends the step.
func (s session) zoom(ctx context.Context, zoomIn, zoomOut string) Outcome {
	level := s.opts.Zoom
	if level == 0 {
		return Outcome{Step: "zoom 0"}
	}

	selector, clicks := zoomIn, level
	if level < 0 {
		selector, clicks = zoomOut, -level
	}
	step := fmt.Sprintf("zoom %d", level)

	el, err := s.wait(ctx, selector)
	if err != nil {
		return Outcome{Step: step, Err: err}
	}
	for i := 0; i < clicks; i++ {
		if err := el.Click(ctx); err != nil {
			return Outcome{Step: step, Err: fmt.Errorf("click %d/%d %s: %w", i+1, clicks, selector, err)}
		}
		if err := s.opts.Sleep(ctx, s.opts.ClickDelay); err != nil {
			return Outcome{Step: step, Err: err}
		}
	}
	return Outcome{Step: step}
}

// captureFrame snapshots the viewport and decodes it. It is the same for
// every provider.
func (s session) captureFrame(ctx context.Context) (image.Image, error) {
	raw, err := s.page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("provider: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("provider: decode screenshot: %w", err)
	}
	return img, nil
}
