package provider

import (
	"fmt"
	"strconv"

	"github.com/hazyhaar/radarlapse/geocode"
)

// PageURL builds the radar page address for a provider. A nil coords still
// yields a URL (with empty coordinates): the capture goes ahead and the page
// decides what to show.
func PageURL(name string, coords *geocode.Coordinates) (string, error) {
	lat, lon := "", ""
	if coords != nil {
		lat = strconv.FormatFloat(coords.Lat, 'f', -1, 64)
		lon = strconv.FormatFloat(coords.Lon, 'f', -1, 64)
	}

	switch name {
	case WeatherNetworkName:
		return fmt.Sprintf("https://www.theweathernetwork.com/en/maps/radar?lat=%s&lng=%s", lat, lon), nil
	case WindyName:
		return fmt.Sprintf("https://www.windy.com/?%s,%s,7", lat, lon), nil
	case RainViewerName:
		return fmt.Sprintf("https://www.rainviewer.com/map.html?loc=%s,%s,7", lat, lon), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// Source is the catalog source label for a capture: the provider name, plus
// "+mode" when the provider actually honours the requested mode.
func Source(name, mode string) string {
	if name == WindyName {
		if _, ok := windyModes[mode]; ok {
			return name + "+" + mode
		}
	}
	return name
}
