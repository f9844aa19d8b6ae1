package cache

import (
	"fmt"
	"math"
	"strings"
)

// coordPrecision is the decimal precision coordinates are rounded to before
// entering a cache key. Two decimals is roughly 1.1km at the equator, so
// nearby requests for the same place collide on the same entry.
const coordPrecision = 2

// WeatherKey derives the deterministic cache signature for a weather fetch.
// Two semantically identical requests must produce the same key, so
// coordinates are rounded while units, granularity and time period keep
// differently-shaped responses apart. period is empty for current conditions.
func WeatherKey(typeTag string, lat, lon float64, units, granularity, period string) string {
	if period == "" {
		period = "now"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		typeTag,
		roundCoord(lat), roundCoord(lon),
		strings.ToLower(units), strings.ToLower(granularity), strings.ToLower(period))
}

// LocationKey derives the cache signature for a geocoding lookup.
func LocationKey(name, language string) string {
	return fmt.Sprintf("%s:%s:%s", TypeLocation, strings.ToLower(strings.TrimSpace(name)), strings.ToLower(language))
}

// roundCoord rounds to coordPrecision decimals and normalizes negative zero
// so -0.001 and 0.001 land on the same cell.
func roundCoord(v float64) string {
	factor := math.Pow10(coordPrecision)
	rounded := math.Round(v*factor) / factor
	if rounded == 0 {
		rounded = 0 // normalize -0
	}
	return fmt.Sprintf("%.*f", coordPrecision, rounded)
}
