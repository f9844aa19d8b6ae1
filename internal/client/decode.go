package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// decodePayload normalizes a backend response body into a WeatherPayload.
func decodePayload(family string, body []byte, req FetchRequest) (models.WeatherPayload, error) {
	switch family {
	case "open-meteo":
		return decodeOpenMeteo(body, req)
	case "openweather":
		return decodeOpenWeather(body, req)
	case "weatherapi":
		return decodeWeatherAPI(body, req)
	default:
		return models.WeatherPayload{}, fmt.Errorf("%w: family %q", ErrUnknownAPI, family)
	}
}

type openMeteoResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      int     `json:"relative_humidity_2m"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Temperature   []float64 `json:"temperature_2m"`
		Humidity      []int     `json:"relative_humidity_2m"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		Precipitation []float64 `json:"precipitation"`
	} `json:"hourly"`
	Daily struct {
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		WindSpeedMax     []float64 `json:"wind_speed_10m_max"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

func decodeOpenMeteo(body []byte, req FetchRequest) (models.WeatherPayload, error) {
	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherPayload{}, fmt.Errorf("parse open-meteo response: %w", err)
	}

	p := basePayload(req)
	switch req.Granularity {
	case "hourly":
		if len(resp.Hourly.Temperature) == 0 {
			return models.WeatherPayload{}, fmt.Errorf("%w: empty hourly series", ErrUpstreamFailure)
		}
		p.Temperature = resp.Hourly.Temperature[0]
		if len(resp.Hourly.Humidity) > 0 {
			p.Humidity = resp.Hourly.Humidity[0]
		}
		if len(resp.Hourly.WindSpeed) > 0 {
			p.WindSpeed = resp.Hourly.WindSpeed[0]
		}
		if len(resp.Hourly.Precipitation) > 0 {
			p.Precipitation = resp.Hourly.Precipitation[0]
		}
	case "daily":
		if len(resp.Daily.TemperatureMax) == 0 {
			return models.WeatherPayload{}, fmt.Errorf("%w: empty daily series", ErrUpstreamFailure)
		}
		idx := req.DayOffset
		if idx < 0 || idx >= len(resp.Daily.TemperatureMax) {
			idx = len(resp.Daily.TemperatureMax) - 1
		}
		p.Temperature = resp.Daily.TemperatureMax[idx]
		if idx < len(resp.Daily.WindSpeedMax) {
			p.WindSpeed = resp.Daily.WindSpeedMax[idx]
		}
		if idx < len(resp.Daily.PrecipitationSum) {
			p.Precipitation = resp.Daily.PrecipitationSum[idx]
		}
	default:
		p.Temperature = resp.Current.Temperature
		p.Humidity = resp.Current.Humidity
		p.WindSpeed = resp.Current.WindSpeed
		p.Precipitation = resp.Current.Precipitation
		p.Conditions = weatherCodeText(resp.Current.WeatherCode)
	}
	return p, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Name string `json:"name"`
}

func decodeOpenWeather(body []byte, req FetchRequest) (models.WeatherPayload, error) {
	var resp openWeatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherPayload{}, fmt.Errorf("parse openweather response: %w", err)
	}

	p := basePayload(req)
	p.Temperature = resp.Main.Temp
	p.Humidity = resp.Main.Humidity
	p.WindSpeed = resp.Wind.Speed
	p.Precipitation = resp.Rain.OneHour
	if len(resp.Weather) > 0 {
		p.Conditions = resp.Weather[0].Main
		if resp.Weather[0].Description != "" {
			p.Conditions = resp.Weather[0].Description
		}
	}
	return p, nil
}

type weatherAPIResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Day struct {
				AvgTempC      float64 `json:"avgtemp_c"`
				MaxWindKPH    float64 `json:"maxwind_kph"`
				TotalPrecipMM float64 `json:"totalprecip_mm"`
				AvgHumidity   float64 `json:"avghumidity"`
				Condition     struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		WindKPH   float64 `json:"wind_kph"`
		PrecipMM  float64 `json:"precip_mm"`
		Humidity  int     `json:"humidity"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

func decodeWeatherAPI(body []byte, req FetchRequest) (models.WeatherPayload, error) {
	var resp weatherAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherPayload{}, fmt.Errorf("parse weatherapi response: %w", err)
	}

	p := basePayload(req)
	days := resp.Forecast.ForecastDay
	if req.Granularity == "daily" && req.DayOffset < len(days) {
		day := days[req.DayOffset].Day
		p.Temperature = day.AvgTempC
		p.WindSpeed = day.MaxWindKPH
		p.Precipitation = day.TotalPrecipMM
		p.Humidity = int(day.AvgHumidity)
		p.Conditions = day.Condition.Text
		return p, nil
	}
	p.Temperature = resp.Current.TempC
	p.WindSpeed = resp.Current.WindKPH
	p.Precipitation = resp.Current.PrecipMM
	p.Humidity = resp.Current.Humidity
	p.Conditions = resp.Current.Condition.Text
	return p, nil
}

func basePayload(req FetchRequest) models.WeatherPayload {
	return models.WeatherPayload{
		Location:    req.Location.Name,
		Latitude:    req.Location.Latitude,
		Longitude:   req.Location.Longitude,
		Units:       req.Units,
		Granularity: req.Granularity,
		Timestamp:   time.Now().UTC(),
	}
}

// weatherCodeText maps WMO weather codes to a short description.
func weatherCodeText(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	case code <= 99:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
