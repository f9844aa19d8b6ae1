package models

import "time"

// WeatherPayload is the structured weather data returned by a backend API,
// normalized across providers.
type WeatherPayload struct {
	Location      string    `json:"location"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Units         string    `json:"units"`
	Granularity   string    `json:"granularity"`
	Temperature   float64   `json:"temperature"`
	Humidity      int       `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	Precipitation float64   `json:"precipitation"`
	Conditions    string    `json:"conditions"`
	Timestamp     time.Time `json:"timestamp"`
	SourceAPI     string    `json:"sourceApi,omitempty"`
}

// GeoLocation is a resolved place: the canonical name plus coordinates.
type GeoLocation struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
}

// CacheMetrics is a point-in-time snapshot of response cache counters.
// Hits, misses, evictions and errors are monotonic for the process lifetime;
// HitRate is hits/(hits+misses), 0 with no traffic.
type CacheMetrics struct {
	Size               int     `json:"size"`
	MaxSize            int     `json:"maxSize"`
	Hits               uint64  `json:"hits"`
	Misses             uint64  `json:"misses"`
	HitRate            float64 `json:"hitRate"`
	Evictions          uint64  `json:"evictions"`
	Errors             uint64  `json:"errors"`
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
}
