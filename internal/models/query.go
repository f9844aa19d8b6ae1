package models

import "time"

// Intent is the closed set of query intents the router understands.
type Intent string

const (
	IntentCurrentConditions Intent = "current_conditions"
	IntentForecast          Intent = "forecast"
	IntentHistorical        Intent = "historical"
	IntentWeatherAdvice     Intent = "weather_advice"
)

// ParsingSource tags how a ParsedQuery was produced. Exactly one value is set
// per request: rules_only when rule confidence cleared the AI threshold,
// rules_with_ai_fallback when the AI adapter contributed, rules_fallback when
// AI was unavailable or failed and the rule result was used as-is.
type ParsingSource string

const (
	SourceRulesOnly     ParsingSource = "rules_only"
	SourceRulesWithAI   ParsingSource = "rules_with_ai_fallback"
	SourceRulesFallback ParsingSource = "rules_fallback"
)

// Metric is a requested weather data dimension.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricWind          Metric = "wind"
	MetricPrecipitation Metric = "precipitation"
	MetricAirQuality    Metric = "air_quality"
	MetricUV            Metric = "uv"
	MetricMarine        Metric = "marine"
)

// RawQuery is the unmodified caller input.
type RawQuery struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// TimeContext is the result of relative-time resolution for a query.
// ResolvedTime is nil when no relative expression was recognized; the request
// proceeds without explicit date anchoring in that case.
type TimeContext struct {
	CurrentTime             time.Time  `json:"currentTime"`
	Timezone                string     `json:"timezone"`
	RelativeExpressionFound bool       `json:"relativeExpressionFound"`
	ResolvedTime            *time.Time `json:"resolvedTime,omitempty"`
	RelativeDescription     string     `json:"relativeDescription,omitempty"`
}

// LocationGuess is an extracted location candidate with its confidence.
// An empty Name means the location is unresolved.
type LocationGuess struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// IntentGuess is a classified intent with its confidence.
type IntentGuess struct {
	Primary    Intent  `json:"primary"`
	Confidence float64 `json:"confidence"`
}

// Timeframe describes the temporal scope of a query.
// Type is one of "current", "relative" or "range"; Period carries the
// normalized expression (e.g. "today", "tomorrow", "+2d"). Hourly marks an
// explicit request for hour-level resolution.
type Timeframe struct {
	Type   string `json:"type"`
	Period string `json:"period,omitempty"`
	Hourly bool   `json:"hourly,omitempty"`
}

// ParsedQuery is the structured, intent-classified form of a RawQuery.
// All confidence values are heuristic scores in [0,1].
type ParsedQuery struct {
	Location   LocationGuess `json:"location"`
	Intent     IntentGuess   `json:"intent"`
	Timeframe  Timeframe     `json:"timeframe"`
	Metrics    []Metric      `json:"metrics,omitempty"`
	Language   string        `json:"language"`
	Confidence float64       `json:"confidence"`
	Source     ParsingSource `json:"parsingSource"`
}

// HasMetric reports whether the query requested the given data dimension.
func (q ParsedQuery) HasMetric(m Metric) bool {
	for _, have := range q.Metrics {
		if have == m {
			return true
		}
	}
	return false
}

// Granularity derives the requested data granularity from intent and
// timeframe: current conditions map to "current", everything else to "daily"
// unless the timeframe asked for hourly resolution.
func (q ParsedQuery) Granularity() string {
	if q.Intent.Primary == IntentCurrentConditions {
		return "current"
	}
	if q.Timeframe.Hourly {
		return "hourly"
	}
	return "daily"
}
