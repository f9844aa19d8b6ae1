// Package selector maps a parsed query onto a ranked set of backend API
// candidates. Candidates are plain data descriptors ranked by a pure
// function; the fallback chain is ordered data, not a retry hierarchy.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/timeres"
)

// ErrNoSuitableAPI is returned when no healthy candidate supports the
// query's intent. Not retryable without operator action.
var ErrNoSuitableAPI = errors.New("no suitable API for intent")

const (
	// fallbackConfidenceFactor multiplies decision confidence per fallback
	// step taken at call time.
	fallbackConfidenceFactor = 0.8
	// granularityPenalty reduces confidence when the selected API cannot
	// serve the requested granularity exactly.
	granularityPenalty = 0.1
	// defaultResponseTimeEstimate is used for APIs with no latency history.
	defaultResponseTimeEstimate = 500 * time.Millisecond
)

// DefaultCandidates describes the backend APIs the router knows about.
func DefaultCandidates() []models.RoutingCandidate {
	return []models.RoutingCandidate{
		{
			APIID:            "open-meteo-forecast",
			SupportedIntents: []models.Intent{models.IntentCurrentConditions, models.IntentForecast, models.IntentWeatherAdvice},
			RequiredParams:   []string{"location", "units"},
			Priority:         1,
			Granularities:    []string{"current", "hourly", "daily"},
		},
		{
			APIID:            "open-meteo-archive",
			SupportedIntents: []models.Intent{models.IntentHistorical},
			RequiredParams:   []string{"location", "units", "dayOffset"},
			Priority:         1,
			Granularities:    []string{"hourly", "daily"},
		},
		{
			APIID:            "openweather-current",
			SupportedIntents: []models.Intent{models.IntentCurrentConditions, models.IntentWeatherAdvice},
			RequiredParams:   []string{"location", "units", "apiKey"},
			Priority:         2,
			Granularities:    []string{"current"},
		},
		{
			APIID:            "weatherapi-forecast",
			SupportedIntents: []models.Intent{models.IntentCurrentConditions, models.IntentForecast},
			RequiredParams:   []string{"location", "units", "apiKey"},
			Priority:         3,
			Granularities:    []string{"current", "daily"},
		},
	}
}

// Selector ranks routing candidates against the live health picture.
type Selector struct {
	candidates []models.RoutingCandidate
}

// New returns a Selector over the given candidate descriptors.
func New(candidates []models.RoutingCandidate) *Selector {
	return &Selector{candidates: candidates}
}

// APIIDs returns the ids of all known candidates, for health snapshots.
func (s *Selector) APIIDs() []string {
	ids := make([]string, 0, len(s.candidates))
	for _, c := range s.candidates {
		ids = append(ids, c.APIID)
	}
	return ids
}

// Select builds a RoutingDecision for the query: filter candidates by
// intent, drop unavailable ones, rank by health then historical latency then
// declared priority, and emit the top candidate with the remainder as the
// fallback chain. Returns ErrNoSuitableAPI when the filtered set is empty.
func (s *Selector) Select(q models.ParsedQuery, rc models.RoutingContext) (models.RoutingDecision, error) {
	var viable []models.RoutingCandidate
	for _, c := range s.candidates {
		if !c.Supports(q.Intent.Primary) {
			continue
		}
		if rc.Health[c.APIID] == models.HealthUnavailable {
			continue
		}
		viable = append(viable, c)
	}
	if len(viable) == 0 {
		return models.RoutingDecision{}, fmt.Errorf("%w: %s", ErrNoSuitableAPI, q.Intent.Primary)
	}

	sort.SliceStable(viable, func(i, j int) bool {
		hi, hj := healthRank(rc.Health[viable[i].APIID]), healthRank(rc.Health[viable[j].APIID])
		if hi != hj {
			return hi < hj
		}
		ti, tj := rc.AvgResponseTime[viable[i].APIID], rc.AvgResponseTime[viable[j].APIID]
		if ti != tj {
			return ti < tj
		}
		return viable[i].Priority < viable[j].Priority
	})

	top := viable[0]
	granularity := q.Granularity()

	confidence := q.Confidence
	reasoning := fmt.Sprintf("%s is the best %s candidate for %s", top.APIID, rc.Health[top.APIID], q.Intent.Primary)
	if rc.Health[top.APIID] == "" {
		reasoning = fmt.Sprintf("%s is the best candidate for %s", top.APIID, q.Intent.Primary)
	}
	if !top.SupportsGranularity(granularity) {
		confidence -= granularityPenalty
		if confidence < 0 {
			confidence = 0
		}
		reasoning += fmt.Sprintf("; %s granularity served at reduced resolution", granularity)
	}

	estimate := rc.AvgResponseTime[top.APIID]
	if estimate == 0 {
		estimate = defaultResponseTimeEstimate
	}

	return models.RoutingDecision{
		SelectedAPI:           top.APIID,
		Confidence:            confidence,
		APIParameters:         buildParameters(q, granularity),
		FallbackChain:         viable[1:],
		Reasoning:             reasoning,
		EstimatedResponseTime: estimate,
	}, nil
}

// Advance moves a decision one step down its fallback chain after the
// selected API failed at call time, skipping entries that have since become
// unavailable and multiplying confidence per step. Returns ErrNoSuitableAPI
// when the chain is exhausted.
func Advance(d models.RoutingDecision, rc models.RoutingContext) (models.RoutingDecision, error) {
	chain := d.FallbackChain
	for len(chain) > 0 {
		next := chain[0]
		chain = chain[1:]
		if rc.Health[next.APIID] == models.HealthUnavailable {
			continue
		}
		d.SelectedAPI = next.APIID
		d.FallbackChain = chain
		d.Confidence *= fallbackConfidenceFactor
		d.Reasoning = fmt.Sprintf("fell back to %s after upstream failure", next.APIID)
		if est := rc.AvgResponseTime[next.APIID]; est > 0 {
			d.EstimatedResponseTime = est
		}
		return d, nil
	}
	return models.RoutingDecision{}, ErrNoSuitableAPI
}

// buildParameters assembles the parameter map handed to the API client.
func buildParameters(q models.ParsedQuery, granularity string) map[string]string {
	params := map[string]string{
		"location":    q.Location.Name,
		"units":       "metric",
		"granularity": granularity,
		"language":    q.Language,
	}
	if q.Timeframe.Period != "" {
		params["period"] = q.Timeframe.Period
		if offset, ok := timeres.Offset(q.Timeframe.Period); ok {
			params["dayOffset"] = strconv.Itoa(offset)
		}
	}
	return params
}

// healthRank orders statuses for ranking: healthy first, degraded second.
// Unknown statuses rank with healthy since absence of data is not evidence
// of trouble.
func healthRank(h models.HealthStatus) int {
	if h == models.HealthDegraded {
		return 1
	}
	return 0
}
