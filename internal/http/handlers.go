package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/errclass"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/health"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/lifecycle"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/service"
	"github.com/lis186/smart-weather-mcp-server-sub001/internal/validation"
)

// maxQueryLength bounds the accepted query text in runes.
const maxQueryLength = 500

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	router  *service.RouterService
	health  *health.Registry
	apiIDs  []string
	logger  *zap.Logger
	version string

	// CachePing, when set, is called to check cache reachability. Used when
	// the backend is memcached.
	cachePing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(router *service.RouterService, registry *health.Registry, apiIDs []string, logger *zap.Logger, version string, cachePing func() error) *Handler {
	return &Handler{
		router:    router,
		health:    registry,
		apiIDs:    apiIDs,
		logger:    logger,
		version:   version,
		cachePing: cachePing,
	}
}

// queryRequest is the POST /query body.
type queryRequest struct {
	Text     string `json:"text"`
	Context  string `json:"context,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// PostQuery handles POST /query: the full parse-route-fetch pipeline.
func (h *Handler) PostQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}

	text, err := validation.ValidateQueryText(body.Text, maxQueryLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	timezone, err := validation.ValidateTimezone(body.Timezone)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_TIMEZONE", err.Error())
		return
	}

	result := h.router.RouteQuery(r.Context(), models.RawQuery{Text: text, Context: body.Context}, timezone)
	writeJSON(w, statusForResult(result), result)
}

// fallbackRequest is the POST /fallback body: a previously returned decision
// whose selected API failed at the caller.
type fallbackRequest struct {
	Decision models.RoutingDecision `json:"decision"`
}

// PostFallback handles POST /fallback: advance a routing decision to its
// next viable candidate.
func (h *Handler) PostFallback(w http.ResponseWriter, r *http.Request) {
	var body fallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	if body.Decision.SelectedAPI == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_DECISION", "decision.selectedApi is required")
		return
	}

	next, err := h.router.HandleFallback(r.Context(), body.Decision)
	if err != nil {
		record := errclass.Classify(err, "")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"error": record})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decision": next})
}

// GetCacheMetrics handles GET /cache/metrics.
func (h *Handler) GetCacheMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.router.GetCacheMetrics())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-query-router",
		"version":   h.version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus derives overall health from the shutdown flag, the
// backend health registry and cache reachability. The service stays
// available while at least one weather backend is usable; it reports
// degraded when any backend is down and unavailable only when all are.
func (h *Handler) computeHealthStatus() (healthResult, map[string]string) {
	checks := make(map[string]string)
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}, checks
	}

	usable := 0
	impaired := 0
	for _, api := range h.apiIDs {
		status := h.health.Status(api)
		checks[api] = string(status)
		switch status {
		case models.HealthUnavailable:
			impaired++
		case models.HealthDegraded:
			impaired++
			usable++
		default:
			usable++
		}
	}

	if h.cachePing != nil {
		if h.cachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	if usable == 0 && len(h.apiIDs) > 0 {
		return healthResult{"unavailable", http.StatusServiceUnavailable, "all_backends_down"}, checks
	}
	if impaired > 0 {
		return healthResult{"degraded", http.StatusOK, "backend_impaired"}, checks
	}
	return healthResult{"healthy", http.StatusOK, ""}, checks
}

// statusForResult maps a routing result onto an HTTP status. Successful
// routes are 200; failures map by error code so clients can branch without
// parsing the envelope.
func statusForResult(result models.RoutingResult) int {
	if result.Success || result.Error == nil {
		return http.StatusOK
	}
	switch result.Error.Code {
	case errclass.CodeParsingFailed, errclass.CodeLocationNotSpecified:
		return http.StatusUnprocessableEntity
	case errclass.CodeLocationNotSupported:
		return http.StatusNotFound
	case errclass.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
