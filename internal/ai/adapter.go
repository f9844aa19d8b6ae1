// Package ai holds the fallback adapter for AI-assisted query parsing and
// the merger that combines its output with the rule parser's result. The
// adapter is a thin wrapper over an external capability: its failures are
// always absorbed by the caller, never propagated to the user.
package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// Adapter parses a query with an external natural-language capability.
// The enriched context string carries the resolved current time and timezone
// so the capability can anchor relative expressions.
type Adapter interface {
	Parse(ctx context.Context, raw models.RawQuery, enrichedContext string) (models.ParsedQuery, error)
}

const classificationPrompt = `You classify multilingual weather queries. Analyze the query and respond with JSON only, no prose, using this schema:
{
  "location": "place name exactly as written in the query, or empty string",
  "intent": "one of current_conditions | forecast | historical | weather_advice",
  "confidence": 0.0-1.0,
  "language": "BCP 47 tag: en, zh-TW, zh-CN or ja",
  "metrics": ["temperature","humidity","wind","precipitation","air_quality","uv","marine"],
  "timeScope": "today | tomorrow | day_after_tomorrow | yesterday | next_week | none"
}

Context: %CONTEXT%
Query: %QUERY%`

// AnthropicAdapter implements Adapter on the Anthropic Messages API.
type AnthropicAdapter struct {
	model   string
	timeout time.Duration

	// create is the Messages.New call, indirected for tests.
	create func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error)
}

// NewAnthropic returns an adapter backed by the official SDK. The timeout
// bounds each Parse call independently of the caller's budget.
func NewAnthropic(apiKey, model string, timeout time.Duration) *AnthropicAdapter {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAdapter{
		model:   model,
		timeout: timeout,
		create: func(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
			return client.Messages.New(ctx, params)
		},
	}
}

// Parse sends the query to the model and maps its JSON reply onto a
// ParsedQuery. Any transport, timeout or malformed-response condition is
// returned as an error for the caller to absorb.
func (a *AnthropicAdapter) Parse(ctx context.Context, raw models.RawQuery, enrichedContext string) (models.ParsedQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := strings.NewReplacer(
		"%CONTEXT%", enrichedContext,
		"%QUERY%", raw.Text,
	).Replace(classificationPrompt)

	msg, err := a.create(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: 256,
		// Near-deterministic output for classification.
		Temperature: sdk.Float(0.1),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return models.ParsedQuery{}, eris.Wrap(err, "ai: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return models.ParsedQuery{}, eris.New("ai: empty response")
	}

	parsed, err := decodeResponse(text)
	if err != nil {
		return models.ParsedQuery{}, eris.Wrap(err, "ai: decode response")
	}
	return parsed, nil
}

// aiResponse is the JSON shape the classification prompt requests.
type aiResponse struct {
	Location   string   `json:"location"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Language   string   `json:"language"`
	Metrics    []string `json:"metrics"`
	TimeScope  string   `json:"timeScope"`
}

// decodeResponse parses the model's JSON reply, tolerating markdown fences,
// and maps it onto a ParsedQuery. Unknown intents and metrics are dropped
// rather than failing the whole parse.
func decodeResponse(text string) (models.ParsedQuery, error) {
	var resp aiResponse
	if err := json.Unmarshal([]byte(stripFences(text)), &resp); err != nil {
		return models.ParsedQuery{}, err
	}

	conf := resp.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	parsed := models.ParsedQuery{
		Language:   resp.Language,
		Confidence: conf,
	}
	if resp.Location != "" {
		parsed.Location = models.LocationGuess{Name: resp.Location, Confidence: conf}
	}
	switch models.Intent(resp.Intent) {
	case models.IntentCurrentConditions, models.IntentForecast, models.IntentHistorical, models.IntentWeatherAdvice:
		parsed.Intent = models.IntentGuess{Primary: models.Intent(resp.Intent), Confidence: conf}
	}
	for _, m := range resp.Metrics {
		switch metric := models.Metric(m); metric {
		case models.MetricTemperature, models.MetricHumidity, models.MetricWind,
			models.MetricPrecipitation, models.MetricAirQuality, models.MetricUV, models.MetricMarine:
			parsed.Metrics = append(parsed.Metrics, metric)
		}
	}
	switch resp.TimeScope {
	case "", "none", "today":
		parsed.Timeframe = models.Timeframe{Type: "current"}
		if resp.TimeScope == "today" {
			parsed.Timeframe.Period = "today"
		}
	default:
		parsed.Timeframe = models.Timeframe{Type: "relative", Period: resp.TimeScope}
	}
	return parsed, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	var kept []string
	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
