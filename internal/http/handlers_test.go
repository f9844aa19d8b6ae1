package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/cache"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/client"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/health"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/lifecycle"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/parser"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/selector"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/service"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/timeres"
)

type stubWeatherClient struct {
	geocodeErr error
	fetchErr   error
}

func (s *stubWeatherClient) Geocode(ctx context.Context, name, language string) (models.GeoLocation, error) {
	if s.geocodeErr != nil {
		return models.GeoLocation{}, s.geocodeErr
	}
	return models.GeoLocation{Name: name, Latitude: 25.03, Longitude: 121.56}, nil
}

func (s *stubWeatherClient) Fetch(ctx context.Context, apiID string, req client.FetchRequest) (models.WeatherPayload, error) {
	if s.fetchErr != nil {
		return models.WeatherPayload{}, s.fetchErr
	}
	return models.WeatherPayload{Location: req.Location.Name, Temperature: 26, SourceAPI: apiID}, nil
}

func newTestHandler(wc client.WeatherClient) (*Handler, *health.Registry) {
	registry := health.NewRegistry(health.DefaultConfig())
	sel := selector.New(selector.DefaultCandidates())
	router := service.New(service.Options{
		Parser:       parser.New(),
		TimeResolver: timeres.New(),
		Selector:     sel,
		Health:       registry,
		Cache:        cache.NewInMemoryCache(nil, 100, 0),
		Client:       wc,
	})
	return NewHandler(router, registry, sel.APIIDs(), zap.NewNop(), "test", nil), registry
}

// TestPostQuery_Success verifies the full pipeline behind POST /query.
func TestPostQuery_Success(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{})

	req := httptest.NewRequest("POST", "/query",
		strings.NewReader(`{"text":"台北今天天氣","timezone":"Asia/Taipei"}`))
	w := httptest.NewRecorder()
	h.PostQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var result models.RoutingResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not a RoutingResult: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false: %+v", result.Error)
	}
	if result.Parsed.Location.Name != "台北" {
		t.Errorf("parsed location = %q, want 台北", result.Parsed.Location.Name)
	}
	if result.Data == nil || result.Data.Temperature != 26 {
		t.Errorf("Data = %+v, want fetched payload", result.Data)
	}
}

// TestPostQuery_BadInput verifies 400 responses for malformed bodies and
// empty queries.
func TestPostQuery_BadInput(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{})

	req := httptest.NewRequest("POST", "/query", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.PostQuery(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest("POST", "/query", strings.NewReader(`{"text":"   "}`))
	w = httptest.NewRecorder()
	h.PostQuery(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", w.Code)
	}

	req = httptest.NewRequest("POST", "/query", strings.NewReader(`{"text":"台北天氣","timezone":"bad zone!"}`))
	w = httptest.NewRecorder()
	h.PostQuery(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad timezone status = %d, want 400", w.Code)
	}
}

// TestPostQuery_UnparsableQuery verifies the 422 envelope for input the
// pipeline cannot interpret.
func TestPostQuery_UnparsableQuery(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{})

	req := httptest.NewRequest("POST", "/query", strings.NewReader(`{"text":"xyzzy"}`))
	w := httptest.NewRecorder()
	h.PostQuery(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", w.Code, w.Body.String())
	}
	var result models.RoutingResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not a RoutingResult: %v", err)
	}
	if result.Success || result.Error == nil {
		t.Fatal("expected a classified error envelope")
	}
	if result.Error.UserMessage == "" {
		t.Error("error envelope missing user message")
	}
}

// TestPostQuery_LocationNotSupported verifies the 404 mapping for
// unresolvable place names.
func TestPostQuery_LocationNotSupported(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{geocodeErr: client.ErrLocationNotFound})

	req := httptest.NewRequest("POST", "/query", strings.NewReader(`{"text":"台北今天天氣"}`))
	w := httptest.NewRecorder()
	h.PostQuery(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body %s", w.Code, w.Body.String())
	}
}

// TestPostFallback verifies decision advancement over HTTP.
func TestPostFallback(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{})

	body := `{"decision":{"selectedApi":"open-meteo-forecast","confidence":0.8,"fallbackChain":[{"apiId":"weatherapi-forecast","supportedIntents":["forecast"]}]}}`
	req := httptest.NewRequest("POST", "/fallback", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.PostFallback(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Decision models.RoutingDecision `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Decision.SelectedAPI != "weatherapi-forecast" {
		t.Errorf("SelectedAPI = %q, want weatherapi-forecast", resp.Decision.SelectedAPI)
	}

	// Exhausted chain maps to 503.
	req = httptest.NewRequest("POST", "/fallback",
		strings.NewReader(`{"decision":{"selectedApi":"weatherapi-forecast","confidence":0.6}}`))
	w = httptest.NewRecorder()
	h.PostFallback(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("exhausted chain status = %d, want 503", w.Code)
	}
}

// TestGetCacheMetrics verifies the metrics snapshot endpoint.
func TestGetCacheMetrics(t *testing.T) {
	h, _ := newTestHandler(&stubWeatherClient{})

	req := httptest.NewRequest("GET", "/cache/metrics", nil)
	w := httptest.NewRecorder()
	h.GetCacheMetrics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var m models.CacheMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if m.MaxSize != 100 {
		t.Errorf("MaxSize = %d, want 100", m.MaxSize)
	}
}

// TestGetHealth verifies the healthy default, the degraded report when a
// backend is marked down, and the shutting-down override.
func TestGetHealth(t *testing.T) {
	h, registry := newTestHandler(&stubWeatherClient{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.GetHealth(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}

	registry.MarkUnavailable("open-meteo-forecast")
	w = httptest.NewRecorder()
	h.GetHealth(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("degraded status code = %d, want 200 (still serving)", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded with one backend down", resp.Status)
	}
	if resp.Checks["open-meteo-forecast"] != "unavailable" {
		t.Errorf("check = %q, want unavailable", resp.Checks["open-meteo-forecast"])
	}

	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)
	w = httptest.NewRecorder()
	h.GetHealth(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("shutting-down status code = %d, want 503", w.Code)
	}
}
