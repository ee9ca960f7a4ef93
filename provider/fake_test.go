package provider

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"
)

// fakePage records every interaction. Selectors in missing never match;
// when block is set a missing selector waits for ctx instead of failing fast.
type fakePage struct {
	mu       sync.Mutex
	missing  map[string]bool
	absent   map[string]bool // FindElement misses, WaitElement still matches
	clickErr map[string]error
	block    bool

	waits  []string
	clicks map[string]int
	order  []string
	hidden []string
	shots  int
	png    []byte
}

func newFakePage() *fakePage {
	return &fakePage{
		missing:  map[string]bool{},
		absent:   map[string]bool{},
		clickErr: map[string]error{},
		clicks:   map[string]int{},
		png:      encodePNG(40, 20),
	}
}

var errNoSuchElement = errors.New("no such element")

func (p *fakePage) WaitElement(ctx context.Context, selector string) (Element, error) {
	p.mu.Lock()
	p.waits = append(p.waits, selector)
	missing, block := p.missing[selector], p.block
	p.mu.Unlock()

	if missing {
		if block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, errNoSuchElement
	}
	return &fakeElement{page: p, selector: selector}, nil
}

func (p *fakePage) FindElement(_ context.Context, selector string) (Element, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing[selector] || p.absent[selector] {
		return nil, false, nil
	}
	return &fakeElement{page: p, selector: selector}, true, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shots++
	return p.png, nil
}

func (p *fakePage) clickCount(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[selector]
}

func (p *fakePage) waited(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.waits {
		if w == selector {
			return true
		}
	}
	return false
}

type fakeElement struct {
	page     *fakePage
	selector string
}

func (e *fakeElement) Click(context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if err := e.page.clickErr[e.selector]; err != nil {
		return err
	}
	e.page.clicks[e.selector]++
	e.page.order = append(e.page.order, "click "+e.selector)
	return nil
}

func (e *fakeElement) Hide(context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.hidden = append(e.page.hidden, e.selector)
	e.page.order = append(e.page.order, "hide "+e.selector)
	return nil
}

// sleepRecorder replaces Options.Sleep.
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func encodePNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 12), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
