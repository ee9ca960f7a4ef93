// Package geocode resolves a monitored location name to coordinates.
//
// The capture worker consumes a Resolver as a black box: a miss (ErrNotFound)
// or any lookup error is non-fatal and the worker continues with undefined
// coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no backend knows the location.
var ErrNotFound = errors.New("geocode: location not found")

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// Resolver looks up the first match for a location name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Coordinates, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, name string) (Coordinates, error)

func (f ResolverFunc) Resolve(ctx context.Context, name string) (Coordinates, error) {
	return f(ctx, name)
}

// Static resolves names from a fixed table. Lookups are case-insensitive.
type Static map[string]Coordinates

func (s Static) Resolve(_ context.Context, name string) (Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, c := range s {
		if strings.ToLower(k) == key {
			return c, nil
		}
	}
	return Coordinates{}, ErrNotFound
}

// Chain tries each resolver in order and returns the first hit. Errors other
// than ErrNotFound are remembered and returned only when nothing matched.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, name string) (Coordinates, error) {
	var lastErr error
	for _, r := range c {
		coords, err := r.Resolve(ctx, name)
		if err == nil {
			return coords, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return Coordinates{}, lastErr
	}
	return Coordinates{}, ErrNotFound
}
