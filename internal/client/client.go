// Package client talks to the upstream weather and geocoding APIs. Each
// backend sits behind a circuit breaker and a request-rate limiter; transient
// failures are retried with exponential backoff and jitter.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/observability"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnknownAPI       = errors.New("unknown API")
)

// FetchRequest carries the resolved parameters for one weather fetch.
type FetchRequest struct {
	Location    models.GeoLocation
	Units       string
	Granularity string
	DayOffset   int
	Language    string
}

// WeatherClient resolves place names to coordinates and fetches weather data
// from a named backend.
type WeatherClient interface {
	Geocode(ctx context.Context, name, language string) (models.GeoLocation, error)
	Fetch(ctx context.Context, apiID string, req FetchRequest) (models.WeatherPayload, error)
}

// UnavailabilityListener is notified when a backend's circuit breaker opens.
// Satisfied by health.Registry.
type UnavailabilityListener interface {
	MarkUnavailable(api string)
}

// endpoint describes one upstream backend.
type endpoint struct {
	baseURL string
	family  string // open-meteo, openweather, weatherapi
	apiKey  string
}

// HTTPWeatherClient implements WeatherClient over HTTP. One circuit breaker
// and one limiter per backend so a failing API cannot starve the others.
type HTTPWeatherClient struct {
	httpClient   *http.Client
	geocodingURL string

	endpoints map[string]endpoint
	breakers  map[string]*gobreaker.CircuitBreaker
	limiters  map[string]*rate.Limiter

	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// Options configures HTTPWeatherClient construction.
type Options struct {
	Timeout           time.Duration
	GeocodingURL      string
	OpenMeteoURL      string
	OpenMeteoArchive  string
	OpenWeatherURL    string
	OpenWeatherAPIKey string
	WeatherAPIURL     string
	WeatherAPIKey     string
	RequestsPerMinute int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	Listener          UnavailabilityListener
}

const (
	defaultGeocodingURL     = "https://geocoding-api.open-meteo.com/v1/search"
	defaultOpenMeteoURL     = "https://api.open-meteo.com/v1/forecast"
	defaultOpenMeteoArchive = "https://archive-api.open-meteo.com/v1/archive"
	defaultOpenWeatherURL   = "https://api.openweathermap.org/data/2.5/weather"
	defaultWeatherAPIURL    = "https://api.weatherapi.com/v1/forecast.json"
)

// NewHTTPWeatherClient builds the client. Backends whose API key is missing
// are left out of the endpoint table; the selector's fallback chain walks
// past them via ErrUnknownAPI.
func NewHTTPWeatherClient(opts Options) *HTTPWeatherClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.GeocodingURL == "" {
		opts.GeocodingURL = defaultGeocodingURL
	}
	if opts.OpenMeteoURL == "" {
		opts.OpenMeteoURL = defaultOpenMeteoURL
	}
	if opts.OpenMeteoArchive == "" {
		opts.OpenMeteoArchive = defaultOpenMeteoArchive
	}
	if opts.OpenWeatherURL == "" {
		opts.OpenWeatherURL = defaultOpenWeatherURL
	}
	if opts.WeatherAPIURL == "" {
		opts.WeatherAPIURL = defaultWeatherAPIURL
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}

	endpoints := map[string]endpoint{
		"open-meteo-forecast": {baseURL: opts.OpenMeteoURL, family: "open-meteo"},
		"open-meteo-archive":  {baseURL: opts.OpenMeteoArchive, family: "open-meteo"},
	}
	if opts.OpenWeatherAPIKey != "" {
		endpoints["openweather-current"] = endpoint{
			baseURL: opts.OpenWeatherURL, family: "openweather", apiKey: opts.OpenWeatherAPIKey,
		}
	}
	if opts.WeatherAPIKey != "" {
		endpoints["weatherapi-forecast"] = endpoint{
			baseURL: opts.WeatherAPIURL, family: "weatherapi", apiKey: opts.WeatherAPIKey,
		}
	}

	c := &HTTPWeatherClient{
		httpClient:     &http.Client{Timeout: opts.Timeout},
		geocodingURL:   opts.GeocodingURL,
		endpoints:      endpoints,
		breakers:       make(map[string]*gobreaker.CircuitBreaker),
		limiters:       make(map[string]*rate.Limiter),
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
	}

	for apiID := range endpoints {
		id := apiID
		c.breakers[id] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    id,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if to == gobreaker.StateOpen && opts.Listener != nil {
					opts.Listener.MarkUnavailable(name)
				}
			},
		})
		c.limiters[id] = rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)),
			opts.RequestsPerMinute,
		)
	}

	return c
}

// APIIDs lists the backends this client can actually reach.
func (c *HTTPWeatherClient) APIIDs() []string {
	ids := make([]string, 0, len(c.endpoints))
	for id := range c.endpoints {
		ids = append(ids, id)
	}
	return ids
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// Geocode resolves a place name to coordinates via the geocoding API.
// language hints the API at localized place names so CJK input resolves.
func (c *HTTPWeatherClient) Geocode(ctx context.Context, name, language string) (models.GeoLocation, error) {
	baseURL, err := url.Parse(c.geocodingURL)
	if err != nil {
		return models.GeoLocation{}, fmt.Errorf("invalid geocoding URL: %w", err)
	}
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", geocodingLanguage(language))
	baseURL.RawQuery = params.Encode()

	body, err := c.doGet(ctx, "geocoding", baseURL.String())
	if err != nil {
		return models.GeoLocation{}, err
	}

	var resp geocodingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.GeoLocation{}, fmt.Errorf("parse geocoding response: %w", err)
	}
	if len(resp.Results) == 0 {
		return models.GeoLocation{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}

	r := resp.Results[0]
	return models.GeoLocation{
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Country:   r.Country,
	}, nil
}

// Fetch calls the named backend with retry, returning a normalized payload.
func (c *HTTPWeatherClient) Fetch(ctx context.Context, apiID string, req FetchRequest) (models.WeatherPayload, error) {
	ep, ok := c.endpoints[apiID]
	if !ok {
		return models.WeatherPayload{}, fmt.Errorf("%w: %q", ErrUnknownAPI, apiID)
	}
	if !c.limiters[apiID].Allow() {
		observability.UpstreamCallsTotal.WithLabelValues(apiID, "rate_limited").Inc()
		return models.WeatherPayload{}, fmt.Errorf("%w: local budget for %s exhausted", ErrRateLimited, apiID)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.Inc()
			delay := c.backoff(attempt)
			select {
			case <-ctx.Done():
				return models.WeatherPayload{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.breakers[apiID].Execute(func() (interface{}, error) {
			return c.callAPI(ctx, apiID, ep, req)
		})
		if err == nil {
			return result.(models.WeatherPayload), nil
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.WeatherPayload{}, fmt.Errorf("%w: circuit open for %s", ErrUpstreamFailure, apiID)
		}
		if !isRetryable(err) {
			return models.WeatherPayload{}, err
		}
	}

	return models.WeatherPayload{}, fmt.Errorf("exhausted retries against %s: %w", apiID, lastErr)
}

func (c *HTTPWeatherClient) callAPI(ctx context.Context, apiID string, ep endpoint, req FetchRequest) (models.WeatherPayload, error) {
	start := time.Now()

	reqURL, err := buildFetchURL(apiID, ep, req)
	if err != nil {
		return models.WeatherPayload{}, err
	}

	body, err := c.doGet(ctx, apiID, reqURL)
	observability.UpstreamCallDuration.WithLabelValues(apiID).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(apiID, string(CategorizeError(err))).Inc()
		return models.WeatherPayload{}, err
	}
	observability.UpstreamCallsTotal.WithLabelValues(apiID, "success").Inc()

	payload, err := decodePayload(ep.family, body, req)
	if err != nil {
		return models.WeatherPayload{}, err
	}
	payload.SourceAPI = apiID
	return payload, nil
}

func (c *HTTPWeatherClient) doGet(ctx context.Context, apiID, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request to %s failed: %w", apiID, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, ErrLocationNotFound) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection")
}

func (c *HTTPWeatherClient) backoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// buildFetchURL assembles the query string for each backend family.
func buildFetchURL(apiID string, ep endpoint, req FetchRequest) (string, error) {
	baseURL, err := url.Parse(ep.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL for %s: %w", apiID, err)
	}
	params := url.Values{}
	lat := strconv.FormatFloat(req.Location.Latitude, 'f', 4, 64)
	lon := strconv.FormatFloat(req.Location.Longitude, 'f', 4, 64)

	switch ep.family {
	case "open-meteo":
		params.Set("latitude", lat)
		params.Set("longitude", lon)
		params.Set("timezone", "auto")
		switch req.Granularity {
		case "hourly":
			params.Set("hourly", "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation")
		case "daily":
			params.Set("daily", "temperature_2m_max,wind_speed_10m_max,precipitation_sum")
		default:
			params.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code")
		}
		if apiID == "open-meteo-archive" {
			day := time.Now().UTC().AddDate(0, 0, req.DayOffset).Format("2006-01-02")
			params.Set("start_date", day)
			params.Set("end_date", day)
		} else if req.DayOffset > 0 {
			params.Set("forecast_days", strconv.Itoa(req.DayOffset+1))
		}
	case "openweather":
		params.Set("lat", lat)
		params.Set("lon", lon)
		params.Set("appid", ep.apiKey)
		params.Set("units", req.Units)
	case "weatherapi":
		params.Set("key", ep.apiKey)
		params.Set("q", lat+","+lon)
		params.Set("days", strconv.Itoa(req.DayOffset+1))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAPI, apiID)
	}

	baseURL.RawQuery = params.Encode()
	return baseURL.String(), nil
}

// geocodingLanguage maps detected BCP 47 tags onto the two-letter codes the
// geocoding API accepts.
func geocodingLanguage(language string) string {
	lower := strings.ToLower(language)
	switch {
	case strings.HasPrefix(lower, "zh"):
		return "zh"
	case strings.HasPrefix(lower, "ja"):
		return "ja"
	default:
		return "en"
	}
}
