package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/radarlapse/geocode"
)

func testOptions(zoom int, mode string, s *sleepRecorder) Options {
	return Options{Zoom: zoom, Mode: mode, WaitTimeout: time.Second, Sleep: s.sleep}
}

func TestZoom_ClickCounts(t *testing.T) {
	type zoomable struct {
		name    string
		build   func(Page, Options) Provider
		in, out string
	}
	providers := []zoomable{
		{WeatherNetworkName, func(p Page, o Options) Provider { return NewWeatherNetwork(p, o) }, wnZoomIn, wnZoomOut},
		{WindyName, func(p Page, o Options) Provider { return NewWindy(p, o) }, windyZoomIn, windyZoomOut},
	}

	for _, pv := range providers {
		for z := -4; z <= 4; z++ {
			t.Run(fmt.Sprintf("%s/zoom%d", pv.name, z), func(t *testing.T) {
				page := newFakePage()
				p := pv.build(page, testOptions(z, "", &sleepRecorder{}))
				p.Prepare(context.Background())

				wantIn, wantOut := 0, 0
				if z > 0 {
					wantIn = z
				} else if z < 0 {
					wantOut = -z
				}
				if got := page.clickCount(pv.in); got != wantIn {
					t.Errorf("zoom-in clicks: got %d, want %d", got, wantIn)
				}
				if got := page.clickCount(pv.out); got != wantOut {
					t.Errorf("zoom-out clicks: got %d, want %d", got, wantOut)
				}
				if z == 0 && (page.waited(pv.in) || page.waited(pv.out)) {
					t.Error("zoom 0: zoom controls should not be looked up")
				}
			})
		}
	}
}

func TestZoom_DelayBetweenClicks(t *testing.T) {
	page := newFakePage()
	s := &sleepRecorder{}
	opts := testOptions(3, "", s)
	opts.ClickDelay = 250 * time.Millisecond
	NewWeatherNetwork(page, opts).Prepare(context.Background())

	if s.count() != 3 {
		t.Fatalf("sleeps: got %d, want 3", s.count())
	}
	for _, d := range s.calls {
		if d != 250*time.Millisecond {
			t.Fatalf("sleep duration: got %v, want 250ms", d)
		}
	}
}

func TestZoom_ClickFailureEndsStep(t *testing.T) {
	page := newFakePage()
	page.clickErr[wnZoomIn] = errors.New("detached")
	out := NewWeatherNetwork(page, testOptions(3, "", &sleepRecorder{})).Prepare(context.Background())

	last := out[len(out)-1]
	if last.OK() || !strings.HasPrefix(last.Step, "zoom") {
		t.Fatalf("last outcome: got %v, want failed zoom", last)
	}
}

func TestWeatherNetwork_PrepareOrder(t *testing.T) {
	page := newFakePage()
	out := NewWeatherNetwork(page, testOptions(1, "", &sleepRecorder{})).Prepare(context.Background())

	for _, o := range out {
		if !o.OK() {
			t.Fatalf("unexpected failed step %v", o)
		}
	}
	want := []string{
		"click " + wnCookieClose,
		`hide [data-testid="responsive-header-bar"]`,
		`hide [data-testid="div-gpt-ad-topbanner-short"]`,
		"click " + wnFullscreen,
		"click " + wnZoomIn,
	}
	if len(page.order) != len(want) {
		t.Fatalf("interactions: got %v, want %v", page.order, want)
	}
	for i := range want {
		if page.order[i] != want[i] {
			t.Errorf("interaction %d: got %q, want %q", i, page.order[i], want[i])
		}
	}
}

func TestWeatherNetwork_ModeIgnored(t *testing.T) {
	page := newFakePage()
	out := NewWeatherNetwork(page, testOptions(0, "satellite", &sleepRecorder{})).Prepare(context.Background())

	for _, o := range out {
		if !o.OK() {
			t.Fatalf("prepare with unsupported mode: failed step %v", o)
		}
		if strings.HasPrefix(o.Step, "mode") {
			t.Fatalf("prepare with unsupported mode: unexpected step %v", o)
		}
	}
	if page.waited(windyLayerFold) || page.clickCount(windyModes["satellite"]) != 0 {
		t.Fatal("mode navigation clicks on a provider without modes")
	}
}

func TestWeatherNetwork_MissingStepsSwallowed(t *testing.T) {
	page := newFakePage()
	page.missing[wnCookieClose] = true
	page.missing[wnFullscreen] = true
	out := NewWeatherNetwork(page, testOptions(2, "", &sleepRecorder{})).Prepare(context.Background())

	failed := 0
	for _, o := range out {
		if !o.OK() {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("failed outcomes: got %d, want 2 (%v)", failed, out)
	}
	if got := page.clickCount(wnZoomIn); got != 2 {
		t.Fatalf("zoom still applied: got %d clicks, want 2", got)
	}
	if len(page.hidden) != 2 {
		t.Fatalf("hidden: got %d, want 2", len(page.hidden))
	}
}

func TestWait_BoundedByTimeout(t *testing.T) {
	page := newFakePage()
	page.block = true
	page.missing[wnPlayPause] = true

	opts := testOptions(0, "", &sleepRecorder{})
	opts.WaitTimeout = 20 * time.Millisecond
	start := time.Now()
	o := NewWeatherNetwork(page, opts).Animate(context.Background())

	if o.OK() {
		t.Fatal("animate: expected failed outcome")
	}
	if !errors.Is(o.Err, context.DeadlineExceeded) {
		t.Fatalf("animate error: got %v, want deadline exceeded", o.Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("wait not bounded by WaitTimeout")
	}
}

func TestWindy_SelectsSatellite(t *testing.T) {
	page := newFakePage()
	s := &sleepRecorder{}
	out := NewWindy(page, testOptions(0, "satellite", s)).Prepare(context.Background())

	if out[0].Step != "mode satellite" || !out[0].OK() {
		t.Fatalf("first outcome: got %v, want ok mode satellite", out[0])
	}
	if got := page.clickCount(windyLayerFold); got != 2 {
		t.Errorf("fold clicks: got %d, want 2 (open and close)", got)
	}
	if got := page.clickCount(windyModes["satellite"]); got != 1 {
		t.Errorf("satellite clicks: got %d, want 1", got)
	}
	if got := page.clickCount(windyModes["radar"]); got != 0 {
		t.Errorf("radar clicks: got %d, want 0", got)
	}
	// One delay inside the disclosure, one settle delay at the end.
	if s.count() != 2 {
		t.Errorf("sleeps: got %d, want 2", s.count())
	}
}

func TestWindy_PrepareOrder(t *testing.T) {
	page := newFakePage()
	NewWindy(page, testOptions(-1, "radar", &sleepRecorder{})).Prepare(context.Background())

	want := []string{
		"click " + windyLayerFold,
		"click " + windyModes["radar"],
		"click " + windyLayerFold,
		"click " + windyZoomOut,
		"hide #search-weather-bg",
		"hide #plugin-rhpane",
		"hide #rh-icons",
		"hide #logo-wrapper",
	}
	if strings.Join(page.order, "|") != strings.Join(want, "|") {
		t.Fatalf("interactions:\n got  %v\n want %v", page.order, want)
	}
}

func TestWindy_UnknownModeIsNoop(t *testing.T) {
	for _, mode := range []string{"", "wind", "Satellite"} {
		page := newFakePage()
		out := NewWindy(page, testOptions(0, mode, &sleepRecorder{})).Prepare(context.Background())
		for _, o := range out {
			if strings.HasPrefix(o.Step, "mode") {
				t.Fatalf("mode %q: unexpected mode step %v", mode, o)
			}
		}
		if page.waited(windyLayerFold) {
			t.Fatalf("mode %q: layer panel opened", mode)
		}
	}
}

func TestWindy_AnimatePrefersPlayPause(t *testing.T) {
	page := newFakePage()
	o := NewWindy(page, testOptions(0, "", &sleepRecorder{})).Animate(context.Background())
	if !o.OK() {
		t.Fatalf("animate: %v", o)
	}
	if page.clickCount(windyPlayPause) != 1 || page.clickCount(windyPlayRef) != 0 {
		t.Fatalf("clicks: playpause=%d play=%d, want 1/0",
			page.clickCount(windyPlayPause), page.clickCount(windyPlayRef))
	}
}

func TestWindy_AnimateFallsBack(t *testing.T) {
	page := newFakePage()
	page.absent[windyPlayPause] = true
	o := NewWindy(page, testOptions(0, "", &sleepRecorder{})).Animate(context.Background())
	if !o.OK() {
		t.Fatalf("animate: %v", o)
	}
	if page.clickCount(windyPlayRef) != 1 {
		t.Fatalf("fallback play clicks: got %d, want 1", page.clickCount(windyPlayRef))
	}
}

func TestRainViewer_NoInteractions(t *testing.T) {
	page := newFakePage()
	p := NewRainViewer(page, testOptions(3, "satellite", &sleepRecorder{}))
	if out := p.Prepare(context.Background()); len(out) != 0 {
		t.Fatalf("prepare outcomes: got %v, want none", out)
	}
	if o := p.Animate(context.Background()); !o.OK() {
		t.Fatalf("animate: %v", o)
	}
	if len(page.order) != 0 {
		t.Fatalf("interactions: got %v, want none", page.order)
	}
}

func TestCaptureFrame_DecodesScreenshot(t *testing.T) {
	page := newFakePage()
	img, err := NewWeatherNetwork(page, testOptions(0, "", &sleepRecorder{})).CaptureFrame(context.Background())
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("frame size: got %dx%d, want 40x20", b.Dx(), b.Dy())
	}
}

func TestCaptureFrame_BadPNG(t *testing.T) {
	page := newFakePage()
	page.png = []byte("not a png")
	if _, err := NewWindy(page, testOptions(0, "", &sleepRecorder{})).CaptureFrame(context.Background()); err == nil {
		t.Fatal("CaptureFrame: expected decode error")
	}
}

func TestNew_SelectsByName(t *testing.T) {
	for _, name := range Names() {
		p, err := New(name, newFakePage(), Options{})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Fatalf("New(%q).Name() = %q", name, p.Name())
		}
	}
	if _, err := New("accuweather", newFakePage(), Options{}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("New(unknown): got %v, want ErrUnknownProvider", err)
	}
}

func TestPageURL(t *testing.T) {
	got, err := PageURL(WeatherNetworkName, &geocode.Coordinates{Lat: 51.0447, Lon: -114.0719})
	if err != nil {
		t.Fatal(err)
	}
	want := "https://www.theweathernetwork.com/en/maps/radar?lat=51.0447&lng=-114.0719"
	if got != want {
		t.Fatalf("PageURL: got %q, want %q", got, want)
	}

	got, err = PageURL(WeatherNetworkName, nil)
	if err != nil {
		t.Fatalf("PageURL without coordinates: %v", err)
	}
	if !strings.HasSuffix(got, "lat=&lng=") {
		t.Fatalf("PageURL without coordinates: got %q", got)
	}

	if _, err := PageURL("nope", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("PageURL(unknown): got %v", err)
	}
}

func TestSource(t *testing.T) {
	cases := []struct{ name, mode, want string }{
		{WeatherNetworkName, "", "weathernetwork"},
		{WeatherNetworkName, "satellite", "weathernetwork"},
		{WindyName, "satellite", "windy+satellite"},
		{WindyName, "wind", "windy"},
		{RainViewerName, "radar", "rainviewer"},
	}
	for _, c := range cases {
		if got := Source(c.name, c.mode); got != c.want {
			t.Errorf("Source(%q, %q) = %q, want %q", c.name, c.mode, got, c.want)
		}
	}
}
