package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// Nominatim queries the OpenStreetMap search API. Every lookup is a single
// request. After three consecutive failures the breaker opens and lookups fail
// fast for five minutes.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
}

// NominatimOption configures a Nominatim resolver.
type NominatimOption func(*Nominatim)

// WithNominatimURL overrides the search endpoint (tests, self-hosted mirrors).
func WithNominatimURL(u string) NominatimOption {
	return func(n *Nominatim) { n.baseURL = u }
}

// WithUserAgent sets the User-Agent header required by the Nominatim usage policy.
func WithUserAgent(ua string) NominatimOption {
	return func(n *Nominatim) { n.userAgent = ua }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) NominatimOption {
	return func(n *Nominatim) { n.client = c }
}

// NewNominatim creates a Nominatim resolver.
func NewNominatim(opts ...NominatimOption) *Nominatim {
	n := &Nominatim{
		baseURL:   defaultNominatimURL,
		userAgent: "radarlapse/1.0",
		client:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(n)
	}
	n.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
	return n
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve returns the coordinates of the first search result.
func (n *Nominatim) Resolve(ctx context.Context, name string) (Coordinates, error) {
	res, err := n.circuit.Execute(func() (interface{}, error) {
		return n.lookup(ctx, name)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Coordinates{}, fmt.Errorf("geocode: nominatim unavailable: %w", err)
		}
		return Coordinates{}, err
	}
	return res.(Coordinates), nil
}

func (n *Nominatim) lookup(ctx context.Context, name string) (Coordinates, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("addressdetails", "0")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: new request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: nominatim %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geocode: nominatim %q: status %d", name, resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Coordinates{}, fmt.Errorf("geocode: decode nominatim response: %w", err)
	}
	if len(places) == 0 {
		return Coordinates{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode: parse lon %q: %w", places[0].Lon, err)
	}
	return Coordinates{Lat: lat, Lon: lon}, nil
}
