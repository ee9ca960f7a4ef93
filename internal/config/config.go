// Package config loads radarlapse configuration: a YAML file, an optional
// .env file, RADAR_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/radarlapse/capture"
	"github.com/hazyhaar/radarlapse/dbopen"
	"github.com/hazyhaar/radarlapse/geocode"
	"github.com/hazyhaar/radarlapse/notify"
)

// Config is the top-level radarlapse configuration.
type Config struct {
	Frames     int           `yaml:"frames" validate:"gte=0,lte=600"`
	OutputDir  string        `yaml:"output_dir" validate:"required"`
	Catalog    string        `yaml:"catalog" validate:"required"`
	ArchiveDir string        `yaml:"archive_dir" validate:"required"`
	KeepPerKey int           `yaml:"keep_per_key" validate:"gte=1"`
	Every      time.Duration `yaml:"every"`
	Parallel   int           `yaml:"parallel" validate:"gte=0"`

	Database  DatabaseConfig        `yaml:"database"`
	Capture   CaptureConfig         `yaml:"capture"`
	Browser   capture.BrowserConfig `yaml:"browser"`
	Geocoder  GeocoderConfig        `yaml:"geocoder"`
	Locations []capture.Location    `yaml:"locations" validate:"required,min=1,dive"`
	Sinks     []SinkConfig          `yaml:"sinks" validate:"dive"`
	Viewer    ViewerConfig          `yaml:"viewer"`
}

// DatabaseConfig tunes the catalog connection. Zero values keep the dbopen
// defaults.
type DatabaseConfig struct {
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
	Synchronous string        `yaml:"synchronous" validate:"omitempty,oneof=OFF NORMAL FULL EXTRA off normal full extra"`
}

// Options returns the dbopen options for the catalog, including parent
// directory creation.
func (d DatabaseConfig) Options() []dbopen.Option {
	return []dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithBusyTimeout(d.BusyTimeout),
		dbopen.WithSynchronous(d.Synchronous),
	}
}

// CaptureConfig controls page interaction timing and GIF timing.
type CaptureConfig struct {
	Settle        time.Duration `yaml:"settle"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	ClickDelay    time.Duration `yaml:"click_delay"`
	// FrameDelay is the GIF frame delay in 1/100 s.
	FrameDelay int `yaml:"frame_delay" validate:"gte=0"`
}

// GeocoderConfig selects coordinate backends. Static entries are consulted
// before Nominatim.
type GeocoderConfig struct {
	Disabled     bool                           `yaml:"disabled"`
	NominatimURL string                         `yaml:"nominatim_url" validate:"omitempty,url"`
	UserAgent    string                         `yaml:"user_agent"`
	Static       map[string]geocode.Coordinates `yaml:"static"`
}

// SinkConfig defines a notification backend.
type SinkConfig struct {
	Type    string            `yaml:"type" validate:"oneof=stdout webhook mqtt"`
	URL     string            `yaml:"url" validate:"required_if=Type webhook"`
	Retries int               `yaml:"retries" validate:"gte=0"`
	MQTT    notify.MQTTConfig `yaml:"mqtt"`
}

// ViewerConfig controls the HTTP viewer.
type ViewerConfig struct {
	Addr string `yaml:"addr"`
}

// overrides is the flat set of RADAR_* variables. It is prefilled from the
// file config so unset variables leave values untouched.
type overrides struct {
	Frames        int           `env:"RADAR_FRAMES"`
	Catalog       string        `env:"RADAR_CATALOG"`
	OutputDir     string        `env:"RADAR_OUTPUT_DIR"`
	ArchiveDir    string        `env:"RADAR_ARCHIVE_DIR"`
	Debug         bool          `env:"RADAR_DEBUG"`
	Every         time.Duration `env:"RADAR_EVERY"`
	Parallel      int           `env:"RADAR_PARALLEL"`
	GeocoderURL   string        `env:"RADAR_GEOCODER_URL"`
	BrowserRemote string        `env:"RADAR_BROWSER_REMOTE"`
	ViewerAddr    string        `env:"RADAR_VIEWER_ADDR"`
}

// DefaultFrames is the frame count used when the file does not set one.
const DefaultFrames = 10

var validate = validator.New()

// Default returns the built-in configuration: seven locations, all on
// The Weather Network.
func Default() *Config {
	cfg := &Config{
		Frames: DefaultFrames,
		Locations: []capture.Location{
			{Name: "Calgary", Provider: "weathernetwork", Zoom: 1},
			{Name: "Vancouver", Provider: "weathernetwork", Zoom: 1},
			{Name: "Powell River", Provider: "weathernetwork", Zoom: 2},
			{Name: "Miami, Florida", Provider: "weathernetwork", Zoom: 2},
			{Name: "Revelstoke", Provider: "weathernetwork", Zoom: 2},
			{Name: "Alberta", Provider: "weathernetwork", Zoom: -1},
			{Name: "British Columbia", Provider: "weathernetwork", Zoom: -1},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Parse decodes YAML bytes and applies defaults. It does not validate.
// Frames is preset before decoding so an explicit "frames: 0" is kept.
func Parse(data []byte) (*Config, error) {
	cfg := Config{Frames: DefaultFrames}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFile reads a YAML configuration file. An empty path yields Default.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Load reads the file (or defaults), loads .env files if present, applies
// RADAR_* overrides and validates.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RADAR_* variables. A nil environment means
// the process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	o := overrides{
		Frames:        c.Frames,
		Catalog:       c.Catalog,
		OutputDir:     c.OutputDir,
		ArchiveDir:    c.ArchiveDir,
		Debug:         c.Browser.Debug,
		Every:         c.Every,
		Parallel:      c.Parallel,
		GeocoderURL:   c.Geocoder.NominatimURL,
		BrowserRemote: c.Browser.RemoteURL,
		ViewerAddr:    c.Viewer.Addr,
	}
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	c.Frames = o.Frames
	c.Catalog = o.Catalog
	c.OutputDir = o.OutputDir
	c.ArchiveDir = o.ArchiveDir
	c.Browser.Debug = o.Debug
	c.Every = o.Every
	c.Parallel = o.Parallel
	c.Geocoder.NominatimURL = o.GeocoderURL
	c.Browser.RemoteURL = o.BrowserRemote
	c.Viewer.Addr = o.ViewerAddr
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	for i, s := range c.Sinks {
		if s.Type == "mqtt" && s.MQTT.Broker == "" {
			return fmt.Errorf("config: invalid: sinks[%d]: mqtt broker required", i)
		}
	}
	if c.Every < 0 {
		return fmt.Errorf("config: invalid: every must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "outputs"
	}
	if c.Catalog == "" {
		c.Catalog = "radar_images.db"
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = "archive"
	}
	if c.KeepPerKey <= 0 {
		c.KeepPerKey = 5
	}
	if c.Capture.Settle <= 0 {
		c.Capture.Settle = 5 * time.Second
	}
	if c.Capture.FrameInterval <= 0 {
		c.Capture.FrameInterval = time.Second
	}
	if c.Capture.WaitTimeout <= 0 {
		c.Capture.WaitTimeout = 10 * time.Second
	}
	if c.Capture.ClickDelay == 0 {
		c.Capture.ClickDelay = time.Second
	}
	if c.Capture.FrameDelay <= 0 {
		c.Capture.FrameDelay = 10
	}
	if c.Geocoder.UserAgent == "" {
		c.Geocoder.UserAgent = "radarlapse/1.0"
	}
	if c.Viewer.Addr == "" {
		c.Viewer.Addr = ":8080"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "mqtt" && c.Sinks[i].MQTT.ClientID == "" {
			c.Sinks[i].MQTT.ClientID = "radarlapse"
		}
	}
}
