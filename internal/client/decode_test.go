package client

import (
	"errors"
	"testing"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// TestDecodeOpenMeteo_DailyOffset verifies that daily series are indexed by
// the requested day offset and clamped to the series length.
func TestDecodeOpenMeteo_DailyOffset(t *testing.T) {
	body := []byte(`{"daily":{"temperature_2m_max":[30,31,32],"wind_speed_10m_max":[10,11,12],"precipitation_sum":[0,5,2]}}`)
	req := FetchRequest{
		Location:    models.GeoLocation{Name: "Tokyo"},
		Units:       "metric",
		Granularity: "daily",
		DayOffset:   1,
	}

	p, err := decodeOpenMeteo(body, req)
	if err != nil {
		t.Fatalf("decodeOpenMeteo() error = %v", err)
	}
	if p.Temperature != 31 || p.WindSpeed != 11 || p.Precipitation != 5 {
		t.Errorf("day offset 1 payload = %+v, want second series entries", p)
	}

	req.DayOffset = 9
	p, err = decodeOpenMeteo(body, req)
	if err != nil {
		t.Fatalf("decodeOpenMeteo() clamp error = %v", err)
	}
	if p.Temperature != 32 {
		t.Errorf("clamped Temperature = %v, want last entry 32", p.Temperature)
	}
}

// TestDecodeOpenMeteo_EmptySeries verifies the upstream-failure sentinel for
// a well-formed but empty response.
func TestDecodeOpenMeteo_EmptySeries(t *testing.T) {
	req := FetchRequest{Granularity: "daily"}
	_, err := decodeOpenMeteo([]byte(`{"daily":{}}`), req)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("decodeOpenMeteo() error = %v, want ErrUpstreamFailure", err)
	}
}

// TestDecodeWeatherAPI verifies the forecast-day path and the current
// fallback when the offset exceeds the returned days.
func TestDecodeWeatherAPI(t *testing.T) {
	body := []byte(`{
		"current":{"temp_c":22,"wind_kph":8,"precip_mm":0,"humidity":60,"condition":{"text":"Sunny"}},
		"forecast":{"forecastday":[{"day":{"avgtemp_c":25,"maxwind_kph":20,"totalprecip_mm":3,"avghumidity":75,"condition":{"text":"Light rain"}}}]}
	}`)

	p, err := decodeWeatherAPI(body, FetchRequest{Granularity: "daily", DayOffset: 0})
	if err != nil {
		t.Fatalf("decodeWeatherAPI() error = %v", err)
	}
	if p.Temperature != 25 || p.Conditions != "Light rain" {
		t.Errorf("daily payload = %+v, want forecast day values", p)
	}

	p, err = decodeWeatherAPI(body, FetchRequest{Granularity: "daily", DayOffset: 5})
	if err != nil {
		t.Fatalf("decodeWeatherAPI() fallback error = %v", err)
	}
	if p.Temperature != 22 || p.Conditions != "Sunny" {
		t.Errorf("fallback payload = %+v, want current values", p)
	}
}

// TestWeatherCodeText spot-checks the WMO code mapping.
func TestWeatherCodeText(t *testing.T) {
	if got := weatherCodeText(0); got != "clear" {
		t.Errorf("weatherCodeText(0) = %q, want clear", got)
	}
	if got := weatherCodeText(63); got != "rain" {
		t.Errorf("weatherCodeText(63) = %q, want rain", got)
	}
	if got := weatherCodeText(95); got != "thunderstorm" {
		t.Errorf("weatherCodeText(95) = %q, want thunderstorm", got)
	}
}
