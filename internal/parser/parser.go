// Package parser implements deterministic, network-free extraction of
// location, intent, metrics and language from free-form weather queries.
// Matching is single-pass substring and anchored-pattern work; there is no
// backtracking and no I/O, so parsing cost stays linear in the input length.
package parser

import (
	"strings"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// Confidence weights. An unresolved location dominates the penalty: without
// one the score cannot clear the AI-fallback threshold.
const (
	locationWeight    = 0.4
	intentWeight      = 0.4
	metricBonus       = 0.05
	maxMetricBonuses  = 2
	singleLocScore    = 0.9
	ambiguousLocScore = 0.5
	conflictPenalty   = 0.7
	emptyConfidence   = 0.05
)

// RuleParser is the deterministic first stage of query understanding.
type RuleParser struct{}

// New returns a RuleParser.
func New() *RuleParser {
	return &RuleParser{}
}

// Parse extracts a best-effort ParsedQuery from raw input. It never fails:
// empty or unparseable input yields near-zero confidence with an unresolved
// location, and the caller decides whether the result is good enough.
// The parsing source is left unset; the orchestrator assigns it once the
// AI-fallback decision is made.
func (p *RuleParser) Parse(raw models.RawQuery) models.ParsedQuery {
	text := strings.TrimSpace(raw.Text)
	lang := DetectLanguage(text)

	if text == "" {
		return models.ParsedQuery{
			Intent:     models.IntentGuess{Primary: models.IntentCurrentConditions},
			Timeframe:  models.Timeframe{Type: "current"},
			Language:   lang.String(),
			Confidence: emptyConfidence,
		}
	}

	lowered := strings.ToLower(text)

	candidates := extractLocations(text)
	var loc models.LocationGuess
	switch {
	case len(candidates) == 1:
		loc = models.LocationGuess{Name: candidates[0], Confidence: singleLocScore}
	case len(candidates) > 1:
		loc = models.LocationGuess{Name: candidates[0], Confidence: ambiguousLocScore}
	}

	intent, conflict := classifyIntent(lowered)
	metrics := detectMetrics(lowered)

	return models.ParsedQuery{
		Location:   loc,
		Intent:     intent,
		Timeframe:  buildTimeframe(lowered, intent.Primary),
		Metrics:    metrics,
		Language:   lang.String(),
		Confidence: scoreConfidence(loc.Confidence, intent.Confidence, len(metrics), conflict),
	}
}

// classifyIntent picks an intent from keyword and time-cue evidence.
// Advice cues combined with temporal cues are the one case rules cannot
// settle; the returned conflict flag depresses overall confidence so the AI
// fallback gets a chance to disambiguate.
func classifyIntent(lowered string) (models.IntentGuess, bool) {
	hasForecast := containsAny(lowered, forecastCues)
	hasHistorical := containsAny(lowered, historicalCues)
	hasAdvice := containsAny(lowered, adviceCues)
	hasCurrent := containsAny(lowered, currentCues)

	switch {
	case hasAdvice && hasForecast:
		return models.IntentGuess{Primary: models.IntentForecast, Confidence: 0.35}, true
	case hasAdvice && hasHistorical:
		return models.IntentGuess{Primary: models.IntentHistorical, Confidence: 0.35}, true
	case hasAdvice:
		return models.IntentGuess{Primary: models.IntentWeatherAdvice, Confidence: 0.8}, false
	case hasHistorical:
		return models.IntentGuess{Primary: models.IntentHistorical, Confidence: 0.85}, false
	case hasForecast:
		return models.IntentGuess{Primary: models.IntentForecast, Confidence: 0.9}, false
	case hasCurrent:
		return models.IntentGuess{Primary: models.IntentCurrentConditions, Confidence: 0.8}, false
	default:
		// No temporal cue at all: current conditions by default.
		return models.IntentGuess{Primary: models.IntentCurrentConditions, Confidence: 0.6}, false
	}
}

// detectMetrics returns the distinct data dimensions the query asked for,
// in first-match order.
func detectMetrics(lowered string) []models.Metric {
	var metrics []models.Metric
	seen := make(map[models.Metric]struct{})
	for _, entry := range metricKeywords {
		if !strings.Contains(lowered, entry.keyword) {
			continue
		}
		if _, dup := seen[entry.metric]; dup {
			continue
		}
		seen[entry.metric] = struct{}{}
		metrics = append(metrics, entry.metric)
	}
	return metrics
}

// buildTimeframe derives the temporal scope from the classified intent plus
// any recognizable period phrase.
func buildTimeframe(lowered string, intent models.Intent) models.Timeframe {
	tf := models.Timeframe{Type: "current", Hourly: containsAny(lowered, hourlyCues)}
	if intent != models.IntentForecast && intent != models.IntentHistorical {
		return tf
	}

	tf.Type = "relative"
	periods := []struct {
		cues   []string
		period string
	}{
		{[]string{"day after tomorrow", "後天", "后天", "明後日"}, "day_after_tomorrow"},
		{[]string{"tomorrow", "明天", "明日"}, "tomorrow"},
		{[]string{"yesterday", "昨天", "昨日"}, "yesterday"},
		{[]string{"next week", "下週", "下周", "来週"}, "next_week"},
		{[]string{"last week", "上週", "上周", "先週"}, "last_week"},
	}
	for _, p := range periods {
		if containsAny(lowered, p.cues) {
			tf.Period = p.period
			break
		}
	}
	return tf
}

// scoreConfidence combines the evidence into a [0,1] score: weighted location
// and intent terms, a small bonus per matched metric, and a multiplicative
// penalty when intent cues conflict.
func scoreConfidence(locScore, intentConf float64, metricCount int, conflict bool) float64 {
	bonuses := metricCount
	if bonuses > maxMetricBonuses {
		bonuses = maxMetricBonuses
	}
	score := locationWeight*locScore + intentWeight*intentConf + metricBonus*float64(bonuses)
	if conflict {
		score *= conflictPenalty
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// containsAny reports whether any of the cues occurs in the text.
func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
