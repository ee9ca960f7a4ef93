// Package browser runs one Chrome process per capture session through Rod and
// exposes the page as the element-level surface provider automation needs.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/radarlapse/provider"
)

// Config configures a capture session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string `yaml:"remote_url"`

	// Debug shows the browser window instead of running headless.
	Debug bool `yaml:"debug"`

	// Stealth creates pages through go-rod/stealth. Default: true.
	Stealth *bool `yaml:"stealth"`

	// Width and Height of the viewport. Default: 1280x720.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// NavigateTimeout bounds Navigate plus WaitLoad. Default: 30s.
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`

	// ResourceBlocking lists resource types to block (fonts, media, ...).
	ResourceBlocking []string `yaml:"resource_blocking"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Stealth == nil {
		on := true
		c.Stealth = &on
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one Chrome process and one page.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// Open launches Chrome (or connects to a remote instance) and creates the
// page. The caller must Close the session.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	log := cfg.Logger
	s := &Session{cfg: cfg}

	var wsURL string
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Debug("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx).Headless(!cfg.Debug)

		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled").
			Set("window-size", strconv.Itoa(cfg.Width)+","+strconv.Itoa(cfg.Height))

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Debug("browser: launched local chrome", "url", wsURL, "headless", !cfg.Debug)
	}

	s.browser = rod.New().ControlURL(wsURL)
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	var err error
	if *cfg.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Width,
		Height:            cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("browser: set viewport failed", "error", err)
	}

	if len(cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(s.page, cfg.ResourceBlocking); err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return s, nil
}

// Navigate loads pageURL and waits for the load event. A load timeout is
// logged, not returned.
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return nil
}

// WaitElement blocks until selector matches or ctx is done.
func (s *Session) WaitElement(ctx context.Context, selector string) (provider.Element, error) {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: wait %s: %w", selector, err)
	}
	return &Element{el: el}, nil
}

// FindElement checks selector once without waiting.
func (s *Session) FindElement(ctx context.Context, selector string) (provider.Element, bool, error) {
	ok, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, false, fmt.Errorf("browser: find %s: %w", selector, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Element{el: el}, true, nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	b, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return b, nil
}

// Close closes the page and shuts down Chrome. Safe to call on a partially
// opened session.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close page: %w", err))
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && s.cfg.RemoteURL == "" {
			errs = append(errs, fmt.Errorf("browser: close: %w", err))
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return errors.Join(errs...)
}

var _ provider.Page = (*Session)(nil)

// Element wraps a Rod element.
type Element struct {
	el *rod.Element
}

// Click performs a left click.
func (e *Element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// Hide sets visibility:hidden on the element.
func (e *Element) Hide(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => { this.style.visibility = 'hidden' }`)
	return err
}
