// Package cache implements the differentiated-TTL response cache. TTLs are
// fixed per type tag to match the volatility of the underlying data; eviction
// is lazy on read plus a periodic sweep, with FIFO size-based eviction when
// the store exceeds its capacity.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// Type tags with their fixed TTLs.
const (
	TypeCurrentWeather = "current_weather"
	TypeForecast       = "forecast"
	TypeHistorical     = "historical"
	TypeLocation       = "location"
)

// TTLTable maps a type tag to its time-to-live.
type TTLTable map[string]time.Duration

// DefaultTTLs reflects underlying data volatility: current conditions churn
// in minutes, geocoding results are stable for days.
func DefaultTTLs() TTLTable {
	return TTLTable{
		TypeCurrentWeather: 5 * time.Minute,
		TypeForecast:       30 * time.Minute,
		TypeHistorical:     24 * time.Hour,
		TypeLocation:       7 * 24 * time.Hour,
	}
}

// Store is the response cache contract. Get returns cached data if present
// and not expired; Set stores data under the type tag's TTL.
type Store interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, typeTag string) error
	Metrics() models.CacheMetrics
	Clear()
}

// entry stores one cached value with its insertion and expiry times.
type entry struct {
	value      any
	typeTag    string
	insertedAt time.Time
	expiresAt  time.Time
}

// InMemoryCache implements Store with a mutex-guarded map plus a FIFO
// insertion-order list. Counters are monotonic for the process lifetime;
// Clear drops entries but not counters.
type InMemoryCache struct {
	mu    sync.Mutex
	data  map[string]entry
	order []string // insertion order, oldest first

	ttls             TTLTable
	maxSize          int
	cleanupThreshold int
	now              func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
	errors    uint64
}

// NewInMemoryCache creates a cache bounded at maxSize entries. When the
// bound is exceeded, oldest-inserted entries are evicted down to
// cleanupThreshold so a full cache does not evict on every insert. A
// cleanupThreshold outside (0, maxSize) defaults to 90% of maxSize.
func NewInMemoryCache(ttls TTLTable, maxSize, cleanupThreshold int) *InMemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if cleanupThreshold <= 0 || cleanupThreshold >= maxSize {
		cleanupThreshold = maxSize * 9 / 10
		if cleanupThreshold == 0 {
			cleanupThreshold = maxSize - 1
		}
	}
	if len(ttls) == 0 {
		ttls = DefaultTTLs()
	}
	return &InMemoryCache{
		data:             make(map[string]entry),
		ttls:             ttls,
		maxSize:          maxSize,
		cleanupThreshold: cleanupThreshold,
		now:              time.Now,
	}
}

// SetClock injects a clock for tests.
func (c *InMemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get retrieves the cached value for key. Expired entries are removed on
// access and reported as misses.
func (c *InMemoryCache) Get(ctx context.Context, key string) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(key)
		c.evictions++
		c.misses++
		return nil, false, nil
	}
	c.hits++
	return e.value, true, nil
}

// Set stores value under the TTL for typeTag. Unknown type tags are an
// error; every entry must carry a positive TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value any, typeTag string) error {
	ttl, ok := c.ttls[typeTag]
	if !ok || ttl <= 0 {
		c.mu.Lock()
		c.errors++
		c.mu.Unlock()
		return fmt.Errorf("cache: unknown type tag %q", typeTag)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.data[key]; exists {
		// Overwrite keeps the original FIFO position.
		e := c.data[key]
		e.value = value
		e.typeTag = typeTag
		e.expiresAt = now.Add(ttl)
		c.data[key] = e
		return nil
	}

	c.data[key] = entry{
		value:      value,
		typeTag:    typeTag,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	c.order = append(c.order, key)

	if len(c.data) > c.maxSize {
		c.evictOldestLocked()
	}
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
// Scheduled periodically so idle keys do not linger until next access.
func (c *InMemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.data {
		if now.After(e.expiresAt) {
			c.removeLocked(key)
			c.evictions++
			removed++
		}
	}
	return removed
}

// Metrics returns a snapshot of the cache counters.
func (c *InMemoryCache) Metrics() models.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := models.CacheMetrics{
		Size:      len(c.data),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Errors:    c.errors,
	}
	if total := c.hits + c.misses; total > 0 {
		m.HitRate = float64(c.hits) / float64(total)
	}
	m.MemoryUsagePercent = float64(len(c.data)) / float64(c.maxSize) * 100
	return m
}

// Clear drops all entries. Counters stay monotonic. For tests and operator
// resets.
func (c *InMemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	c.order = nil
}

// evictOldestLocked drops oldest-inserted entries until the size is at the
// cleanup threshold. FIFO by insertion, deliberately not LRU: weather data
// ages out by wall clock, not by popularity.
func (c *InMemoryCache) evictOldestLocked() {
	for len(c.data) > c.cleanupThreshold && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.data[oldest]; ok {
			delete(c.data, oldest)
			c.evictions++
		}
	}
}

// removeLocked deletes key from both the map and the FIFO order list.
func (c *InMemoryCache) removeLocked(key string) {
	delete(c.data, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
