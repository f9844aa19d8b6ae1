package models

import "time"

// HealthStatus is the selector's view of a backend API's availability.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthUnavailable HealthStatus = "unavailable"
)

// RoutingCandidate describes one backend API the selector may route to.
// The fallback chain is plain ordered data built from these descriptors.
type RoutingCandidate struct {
	APIID            string   `json:"apiId"`
	SupportedIntents []Intent `json:"supportedIntents"`
	RequiredParams   []string `json:"requiredParams,omitempty"`
	Priority         int      `json:"priority"`
	Granularities    []string `json:"granularities,omitempty"`
}

// Supports reports whether the candidate can serve the given intent.
func (c RoutingCandidate) Supports(intent Intent) bool {
	for _, have := range c.SupportedIntents {
		if have == intent {
			return true
		}
	}
	return false
}

// SupportsGranularity reports whether the candidate can serve the requested
// granularity. An empty declaration means the candidate serves everything.
func (c RoutingCandidate) SupportsGranularity(g string) bool {
	if len(c.Granularities) == 0 {
		return true
	}
	for _, have := range c.Granularities {
		if have == g {
			return true
		}
	}
	return false
}

// RoutingContext carries the live health picture the selector ranks against.
type RoutingContext struct {
	Health          map[string]HealthStatus  `json:"apiHealth"`
	AvgResponseTime map[string]time.Duration `json:"responseTimeHistory"`
	CurrentUsage    map[string]int           `json:"currentUsage,omitempty"`
}

// RoutingDecision is the selector's output: a primary API plus an ordered
// fallback chain of remaining viable candidates.
type RoutingDecision struct {
	SelectedAPI           string            `json:"selectedApi"`
	Confidence            float64           `json:"confidence"`
	APIParameters         map[string]string `json:"apiParameters"`
	FallbackChain         []RoutingCandidate `json:"fallbackChain,omitempty"`
	Reasoning             string            `json:"reasoning,omitempty"`
	EstimatedResponseTime time.Duration     `json:"estimatedResponseTime"`
}

// Severity grades a classified error for operators.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorRecord is the stable, user-presentable form of a failure. UserMessage
// and Suggestions never carry stack traces, internal identifiers or
// credentials; diagnostic detail travels in result metadata instead.
type ErrorRecord struct {
	Code        string   `json:"code"`
	Severity    Severity `json:"severity"`
	Retryable   bool     `json:"retryable"`
	Suggestions []string `json:"suggestions"`
	UserMessage string   `json:"userMessage"`
}

// ResultMetadata carries per-request diagnostics alongside a RoutingResult.
type ResultMetadata struct {
	ProcessingTimeMs  int64         `json:"processingTimeMs"`
	ParsingConfidence float64       `json:"parsingConfidence"`
	ParsingSource     ParsingSource `json:"parsingSource"`
	CacheHit          bool          `json:"cacheHit"`
	FallbacksUsed     int           `json:"fallbacksUsed,omitempty"`
}

// RoutingResult is the produced interface's response envelope.
type RoutingResult struct {
	Success  bool             `json:"success"`
	Parsed   *ParsedQuery     `json:"parsedQuery,omitempty"`
	Decision *RoutingDecision `json:"decision,omitempty"`
	Data     *WeatherPayload  `json:"data,omitempty"`
	Error    *ErrorRecord     `json:"error,omitempty"`
	Metadata ResultMetadata   `json:"metadata"`
}
