package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TestCorrelationIDMiddleware verifies ID generation, header echo and
// propagation of an incoming ID.
func TestCorrelationIDMiddleware(t *testing.T) {
	var seenID string
	var seenLogger *zap.Logger
	handler := CorrelationIDMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Context().Value("correlation_id"); v != nil {
			seenID = v.(string)
		}
		if l, ok := r.Context().Value("logger").(*zap.Logger); ok {
			seenLogger = l
		}
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seenID == "" {
		t.Error("no correlation ID in request context")
	}
	if seenLogger == nil {
		t.Error("no logger in request context")
	}
	if got := w.Header().Get("X-Correlation-ID"); got != seenID {
		t.Errorf("response header ID = %q, want %q", got, seenID)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Correlation-ID", "client-chosen-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seenID != "client-chosen-id" {
		t.Errorf("correlation ID = %q, want client-chosen-id", seenID)
	}
}

// TestMetricsMiddleware verifies that the wrapped handler runs and in-flight
// tracking returns to zero.
func TestMetricsMiddleware(t *testing.T) {
	var sawInFlight int64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawInFlight = InFlightCount()
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("POST", "/query", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want handler status preserved", w.Code)
	}
	if sawInFlight < 1 {
		t.Errorf("in-flight during request = %d, want >= 1", sawInFlight)
	}
	if got := InFlightCount(); got != 0 {
		t.Errorf("in-flight after request = %d, want 0", got)
	}
}

// TestGetRoute verifies low-cardinality route templates.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/query", "/query"},
		{"/fallback", "/fallback"},
		{"/cache/metrics", "/cache/metrics"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/unknown", "/unknown"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestRateLimitMiddleware verifies 429 on bucket exhaustion and passthrough
// when disabled.
func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.0001), 1)
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/query", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("first request status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}

	disabled := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w = httptest.NewRecorder()
	disabled.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("disabled limiter status = %d, want 200", w.Code)
	}
}

// TestTimeoutMiddleware verifies that downstream handlers observe the
// deadline.
func TestTimeoutMiddleware(t *testing.T) {
	handler := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			w.WriteHeader(http.StatusGatewayTimeout)
		case <-time.After(200 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		}
	}))

	req := httptest.NewRequest("POST", "/query", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504 after deadline", w.Code)
	}
	if err := req.Context().Err(); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("unexpected context error: %v", err)
	}
}
