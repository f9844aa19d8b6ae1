package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// fakeClock is an adjustable time source for TTL tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time            { return c.t }
func (c *fakeClock) Advance(d time.Duration)   { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock                 { return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }
func payload(loc string) models.WeatherPayload { return models.WeatherPayload{Location: loc} }

// TestInMemoryCache_RoundTripAndExpiry verifies that a current-weather entry
// survives within its 5-minute TTL and expires after it.
func TestInMemoryCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewInMemoryCache(nil, 10, 0)
	c.SetClock(clock.Now)

	key := WeatherKey(TypeCurrentWeather, 25.03, 121.56, "metric", "current", "")
	if err := c.Set(ctx, key, payload("台北"), TypeCurrentWeather); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(4 * time.Minute)
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() within TTL = (%v, %v, %v), want hit", got, ok, err)
	}
	if got.(models.WeatherPayload).Location != "台北" {
		t.Errorf("Get() value = %+v, want original payload", got)
	}

	clock.Advance(2 * time.Minute)
	_, ok, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after TTL error = %v", err)
	}
	if ok {
		t.Error("Get() after TTL = hit, want miss")
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.Evictions != 1 {
		t.Errorf("Metrics() = hits %d misses %d evictions %d, want 1/1/1", m.Hits, m.Misses, m.Evictions)
	}
}

// TestInMemoryCache_DifferentiatedTTLs verifies that forecast entries outlive
// current-weather entries inserted at the same moment.
func TestInMemoryCache_DifferentiatedTTLs(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewInMemoryCache(nil, 10, 0)
	c.SetClock(clock.Now)

	if err := c.Set(ctx, "cur", payload("a"), TypeCurrentWeather); err != nil {
		t.Fatalf("Set(current) error = %v", err)
	}
	if err := c.Set(ctx, "fc", payload("b"), TypeForecast); err != nil {
		t.Fatalf("Set(forecast) error = %v", err)
	}

	clock.Advance(10 * time.Minute)
	if _, ok, _ := c.Get(ctx, "cur"); ok {
		t.Error("current-weather entry alive after 10 minutes, want expired")
	}
	if _, ok, _ := c.Get(ctx, "fc"); !ok {
		t.Error("forecast entry expired after 10 minutes, want alive")
	}
}

// TestInMemoryCache_UnknownTypeTag verifies that storing under an
// unrecognized tag fails and is counted as a cache error.
func TestInMemoryCache_UnknownTypeTag(t *testing.T) {
	c := NewInMemoryCache(nil, 10, 0)
	if err := c.Set(context.Background(), "k", payload("x"), "tide_tables"); err == nil {
		t.Fatal("Set() with unknown tag succeeded, want error")
	}
	if m := c.Metrics(); m.Errors != 1 {
		t.Errorf("Errors = %d, want 1", m.Errors)
	}
}

// TestInMemoryCache_EvictionBoundary verifies that inserting maxSize+1
// distinct entries triggers eviction down to the cleanup threshold, dropping
// the oldest-inserted entries first.
func TestInMemoryCache_EvictionBoundary(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(nil, 10, 8)

	for i := 0; i <= 10; i++ {
		key := fmt.Sprintf("k%02d", i)
		if err := c.Set(ctx, key, payload(key), TypeForecast); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	m := c.Metrics()
	if m.Size > 10 {
		t.Errorf("Size = %d, want <= maxSize 10", m.Size)
	}
	if m.Size != 8 {
		t.Errorf("Size = %d, want cleanup threshold 8", m.Size)
	}
	if m.Evictions == 0 {
		t.Error("Evictions = 0, want at least one")
	}

	// FIFO: k00..k02 were inserted first and must be gone.
	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("k%02d", i)
		if _, ok, _ := c.Get(ctx, key); ok {
			t.Errorf("Get(%s) = hit, want evicted as oldest", key)
		}
	}
	if _, ok, _ := c.Get(ctx, "k10"); !ok {
		t.Error("Get(k10) = miss, want newest entry retained")
	}
}

// TestInMemoryCache_OverwriteKeepsPosition verifies that re-setting an
// existing key refreshes its value without growing the cache.
func TestInMemoryCache_OverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(nil, 10, 0)

	if err := c.Set(ctx, "k", payload("old"), TypeForecast); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, "k", payload("new"), TypeForecast); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, ok, _ := c.Get(ctx, "k")
	if !ok || got.(models.WeatherPayload).Location != "new" {
		t.Errorf("Get() = (%+v, %v), want refreshed value", got, ok)
	}
	if m := c.Metrics(); m.Size != 1 {
		t.Errorf("Size = %d, want 1 after overwrite", m.Size)
	}
}

// TestInMemoryCache_Sweep verifies that a sweep removes only expired entries
// and reports the count.
func TestInMemoryCache_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewInMemoryCache(nil, 10, 0)
	c.SetClock(clock.Now)

	c.Set(ctx, "short", payload("a"), TypeCurrentWeather)
	c.Set(ctx, "long", payload("b"), TypeHistorical)

	clock.Advance(time.Hour)
	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, ok, _ := c.Get(ctx, "long"); !ok {
		t.Error("historical entry removed by sweep, want retained")
	}
}

// TestInMemoryCache_Metrics verifies hit rate arithmetic and the zero-traffic
// case.
func TestInMemoryCache_Metrics(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(nil, 10, 0)

	if m := c.Metrics(); m.HitRate != 0 {
		t.Errorf("HitRate with no traffic = %v, want 0", m.HitRate)
	}

	c.Set(ctx, "k", payload("x"), TypeForecast)
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "absent")

	m := c.Metrics()
	if m.Hits != 2 || m.Misses != 1 {
		t.Fatalf("hits %d misses %d, want 2/1", m.Hits, m.Misses)
	}
	want := 2.0 / 3.0
	if m.HitRate < want-1e-9 || m.HitRate > want+1e-9 {
		t.Errorf("HitRate = %v, want %v", m.HitRate, want)
	}
}

// TestInMemoryCache_ClearKeepsCounters verifies that Clear drops entries but
// leaves the monotonic counters intact.
func TestInMemoryCache_ClearKeepsCounters(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(nil, 10, 0)

	c.Set(ctx, "k", payload("x"), TypeForecast)
	c.Get(ctx, "k")
	c.Clear()

	m := c.Metrics()
	if m.Size != 0 {
		t.Errorf("Size after Clear = %d, want 0", m.Size)
	}
	if m.Hits != 1 {
		t.Errorf("Hits after Clear = %d, want 1 (counters are monotonic)", m.Hits)
	}
}
