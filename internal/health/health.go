// Package health tracks per-backend-API outcomes in sliding windows and
// derives the availability picture the API selector ranks against.
package health

import (
	"sync"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// Config holds the thresholds for deriving a status from recorded outcomes.
type Config struct {
	// Window is how far back outcomes count toward status and averages.
	Window time.Duration
	// DegradedErrorPct marks an API degraded at or above this error rate.
	DegradedErrorPct int
	// UnavailableErrorPct marks an API unavailable at or above this rate.
	UnavailableErrorPct int
	// DegradedLatency marks an API degraded when its average response time
	// within the window exceeds this value.
	DegradedLatency time.Duration
	// MinSamples is the minimum outcome count before error rates apply;
	// a single failure on a quiet API should not flip its status.
	MinSamples int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		Window:              60 * time.Second,
		DegradedErrorPct:    20,
		UnavailableErrorPct: 60,
		DegradedLatency:     2 * time.Second,
		MinSamples:          3,
	}
}

// sample is one successful call with its observed latency.
type sample struct {
	at      time.Time
	latency time.Duration
}

// tracker holds the windowed outcomes for one API.
type tracker struct {
	successes []sample
	errors    []time.Time
}

// Registry is the process-wide health store, one tracker per API. Safe for
// concurrent use.
type Registry struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	apis   map[string]*tracker
	forced map[string]bool // circuit-open marks, cleared on next success
}

// NewRegistry returns an empty Registry with the given thresholds.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:    cfg,
		now:    time.Now,
		apis:   make(map[string]*tracker),
		forced: make(map[string]bool),
	}
}

// RecordSuccess records a successful call and its latency, and clears any
// forced-unavailable mark for the API.
func (r *Registry) RecordSuccess(api string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trackerLocked(api)
	now := r.now()
	t.successes = append(t.successes, sample{at: now, latency: latency})
	delete(r.forced, api)
	r.pruneLocked(t, now)
}

// RecordError records a failed call against the API.
func (r *Registry) RecordError(api string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trackerLocked(api)
	now := r.now()
	t.errors = append(t.errors, now)
	r.pruneLocked(t, now)
}

// MarkUnavailable forces the API's status to unavailable until its next
// recorded success. Wired to circuit-breaker open transitions.
func (r *Registry) MarkUnavailable(api string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forced[api] = true
}

// Status derives the API's current status from forced marks, windowed error
// rate and average latency. APIs with no recorded traffic are healthy.
func (r *Registry) Status(api string) models.HealthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked(api)
}

// AvgResponseTime returns the mean latency of successful calls within the
// window, or zero with no samples.
func (r *Registry) AvgResponseTime(api string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.avgLatencyLocked(api)
}

// Snapshot assembles the RoutingContext for the given APIs.
func (r *Registry) Snapshot(apis []string) models.RoutingContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := models.RoutingContext{
		Health:          make(map[string]models.HealthStatus, len(apis)),
		AvgResponseTime: make(map[string]time.Duration, len(apis)),
		CurrentUsage:    make(map[string]int, len(apis)),
	}
	cutoff := r.now().Add(-r.cfg.Window)
	for _, api := range apis {
		ctx.Health[api] = r.statusLocked(api)
		ctx.AvgResponseTime[api] = r.avgLatencyLocked(api)
		if t, ok := r.apis[api]; ok {
			ctx.CurrentUsage[api] = countSamples(t.successes, cutoff) + countTimes(t.errors, cutoff)
		}
	}
	return ctx
}

// Reset clears all recorded outcomes and marks. For tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apis = make(map[string]*tracker)
	r.forced = make(map[string]bool)
}

func (r *Registry) trackerLocked(api string) *tracker {
	t, ok := r.apis[api]
	if !ok {
		t = &tracker{}
		r.apis[api] = t
	}
	return t
}

func (r *Registry) statusLocked(api string) models.HealthStatus {
	if r.forced[api] {
		return models.HealthUnavailable
	}
	t, ok := r.apis[api]
	if !ok {
		return models.HealthHealthy
	}

	cutoff := r.now().Add(-r.cfg.Window)
	errs := countTimes(t.errors, cutoff)
	oks := countSamples(t.successes, cutoff)
	total := errs + oks

	if total >= r.cfg.MinSamples && total > 0 {
		pct := errs * 100 / total
		if pct >= r.cfg.UnavailableErrorPct {
			return models.HealthUnavailable
		}
		if pct >= r.cfg.DegradedErrorPct {
			return models.HealthDegraded
		}
	}
	if r.cfg.DegradedLatency > 0 && oks > 0 && r.avgLatencyLocked(api) > r.cfg.DegradedLatency {
		return models.HealthDegraded
	}
	return models.HealthHealthy
}

func (r *Registry) avgLatencyLocked(api string) time.Duration {
	t, ok := r.apis[api]
	if !ok {
		return 0
	}
	cutoff := r.now().Add(-r.cfg.Window)
	var sum time.Duration
	n := 0
	for _, s := range t.successes {
		if !s.at.Before(cutoff) {
			sum += s.latency
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / time.Duration(n)
}

// pruneLocked drops outcomes older than twice the window so slices stay
// bounded under sustained traffic.
func (r *Registry) pruneLocked(t *tracker, now time.Time) {
	cutoff := now.Add(-2 * r.cfg.Window)

	i := 0
	for ; i < len(t.successes) && t.successes[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.successes = append(t.successes[:0], t.successes[i:]...)
	}

	j := 0
	for ; j < len(t.errors) && t.errors[j].Before(cutoff); j++ {
	}
	if j > 0 {
		t.errors = append(t.errors[:0], t.errors[j:]...)
	}
}

func countSamples(samples []sample, cutoff time.Time) int {
	n := 0
	for _, s := range samples {
		if !s.at.Before(cutoff) {
			n++
		}
	}
	return n
}

func countTimes(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}
