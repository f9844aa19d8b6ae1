package ai

import (
	"strings"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// corroborationBonus is added when both sources agree on location and intent.
const corroborationBonus = 0.05

// Merge combines the rule parser's result with the AI adapter's into one
// ParsedQuery. Per field, the AI value wins when its confidence is at least
// the rule's (ties break toward AI, including location disagreements); fields
// the AI left empty fall back to the rule value. The merged confidence is the
// max of both, with a small corroboration bonus when the sources agree on
// both location and intent.
func Merge(rule, aiResult models.ParsedQuery) models.ParsedQuery {
	merged := rule
	merged.Source = models.SourceRulesWithAI

	if aiResult.Location.Name != "" && aiResult.Location.Confidence >= rule.Location.Confidence {
		merged.Location = aiResult.Location
	}
	if aiResult.Intent.Primary != "" && aiResult.Intent.Confidence >= rule.Intent.Confidence {
		merged.Intent = aiResult.Intent
	}
	if aiResult.Language != "" && aiResult.Confidence >= rule.Confidence {
		merged.Language = aiResult.Language
	}
	if len(aiResult.Metrics) > 0 && aiResult.Confidence >= rule.Confidence {
		merged.Metrics = aiResult.Metrics
	}
	if aiResult.Timeframe.Type != "" && aiResult.Confidence >= rule.Confidence {
		hourly := merged.Timeframe.Hourly
		merged.Timeframe = aiResult.Timeframe
		// The AI schema has no hourly flag; keep the rule parser's detection.
		merged.Timeframe.Hourly = hourly
	}

	conf := rule.Confidence
	if aiResult.Confidence > conf {
		conf = aiResult.Confidence
	}
	if sourcesAgree(rule, aiResult) {
		conf += corroborationBonus
	}
	if conf > 1 {
		conf = 1
	}
	merged.Confidence = conf
	return merged
}

// sourcesAgree reports whether rule and AI corroborate each other on both
// location (case-insensitive) and intent.
func sourcesAgree(rule, aiResult models.ParsedQuery) bool {
	if rule.Location.Name == "" || aiResult.Location.Name == "" {
		return false
	}
	if !strings.EqualFold(rule.Location.Name, aiResult.Location.Name) {
		return false
	}
	return rule.Intent.Primary == aiResult.Intent.Primary && rule.Intent.Primary != ""
}
