package service

import (
	"context"
	"sync"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// inFlightFetch tracks a single upstream fetch that multiple callers may wait for.
type inFlightFetch struct {
	mu      sync.Mutex
	result  models.WeatherPayload
	err     error
	done    bool
	waiters []chan struct{}
}

// fetchCoalescer dedupes concurrent upstream fetches for the same cache key.
// Identical queries arriving while a fetch is in flight wait for its result
// instead of hitting the backend again.
type fetchCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightFetch
	timeout  time.Duration
}

func newFetchCoalescer(timeout time.Duration) *fetchCoalescer {
	return &fetchCoalescer{
		inFlight: make(map[string]*inFlightFetch),
		timeout:  timeout,
	}
}

// GetOrDo returns the in-flight result for key if one exists, otherwise runs
// fn and shares its result with any waiters. Respects context cancellation
// and the coalescer timeout.
func (fc *fetchCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.WeatherPayload, error)) (models.WeatherPayload, error) {
	fc.mu.Lock()
	req, exists := fc.inFlight[key]
	if exists {
		notify := make(chan struct{})
		req.mu.Lock()
		if req.done {
			result := req.result
			err := req.err
			req.mu.Unlock()
			fc.mu.Unlock()
			return result, err
		}
		req.waiters = append(req.waiters, notify)
		req.mu.Unlock()
		fc.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
		defer cancel()
		select {
		case <-notify:
			req.mu.Lock()
			result := req.result
			err := req.err
			req.mu.Unlock()
			return result, err
		case <-waitCtx.Done():
			return models.WeatherPayload{}, waitCtx.Err()
		}
	}

	req = &inFlightFetch{waiters: make([]chan struct{}, 0)}
	fc.inFlight[key] = req
	fc.mu.Unlock()

	go func() {
		result, err := fn()

		req.mu.Lock()
		req.result = result
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		fc.cleanup(key)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()
	notify := make(chan struct{})
	req.mu.Lock()
	if req.done {
		result := req.result
		err := req.err
		req.mu.Unlock()
		return result, err
	}
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	select {
	case <-notify:
		req.mu.Lock()
		result := req.result
		err := req.err
		req.mu.Unlock()
		return result, err
	case <-waitCtx.Done():
		return models.WeatherPayload{}, waitCtx.Err()
	}
}

// cleanup removes the in-flight entry for key once its fetch completes.
func (fc *fetchCoalescer) cleanup(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	delete(fc.inFlight, key)
}
