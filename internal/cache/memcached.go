package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

// envelope wraps a cached value with its type tag so Get can decode it back
// into the right concrete type.
type envelope struct {
	TypeTag string          `json:"typeTag"`
	Payload json.RawMessage `json:"payload"`
}

// MemcachedCache implements Store on a memcached cluster. TTL enforcement
// and size eviction are delegated to memcached; hit/miss/error counters are
// tracked locally so Metrics stays meaningful. Size and memory usage are not
// visible through this backend and report zero.
type MemcachedCache struct {
	client *memcache.Client
	ttls   TTLTable

	mu        sync.Mutex
	hits      uint64
	misses    uint64
	errors    uint64
	evictions uint64
}

// NewMemcachedCache connects to the comma-separated addrs.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, ttls TTLTable) (*MemcachedCache, error) {
	servers := strings.Split(addrs, ",")
	for i := range servers {
		servers[i] = strings.TrimSpace(servers[i])
	}
	client := memcache.New(servers...)
	client.Timeout = timeout
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if len(ttls) == 0 {
		ttls = DefaultTTLs()
	}
	return &MemcachedCache{client: client, ttls: ttls}, nil
}

// Get fetches and decodes the value for key. Expiry is handled by memcached;
// a vanished key is a plain miss.
func (c *MemcachedCache) Get(ctx context.Context, key string) (any, bool, error) {
	item, err := c.client.Get(sanitizeKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			c.count(&c.misses)
			return nil, false, nil
		}
		c.count(&c.errors)
		return nil, false, err
	}

	var env envelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		c.count(&c.errors)
		return nil, false, err
	}

	var value any
	switch env.TypeTag {
	case TypeLocation:
		var geo models.GeoLocation
		if err := json.Unmarshal(env.Payload, &geo); err != nil {
			c.count(&c.errors)
			return nil, false, err
		}
		value = geo
	default:
		var payload models.WeatherPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.count(&c.errors)
			return nil, false, err
		}
		value = payload
	}
	c.count(&c.hits)
	return value, true, nil
}

// Set stores value under the type tag's TTL.
func (c *MemcachedCache) Set(ctx context.Context, key string, value any, typeTag string) error {
	ttl, ok := c.ttls[typeTag]
	if !ok || ttl <= 0 {
		c.count(&c.errors)
		return errors.New("cache: unknown type tag " + typeTag)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.count(&c.errors)
		return err
	}
	data, err := json.Marshal(envelope{TypeTag: typeTag, Payload: payload})
	if err != nil {
		c.count(&c.errors)
		return err
	}

	if err := c.client.Set(&memcache.Item{
		Key:        sanitizeKey(key),
		Value:      data,
		Expiration: int32(ttl / time.Second),
	}); err != nil {
		c.count(&c.errors)
		return err
	}
	return nil
}

// Metrics returns the locally tracked counters.
func (c *MemcachedCache) Metrics() models.CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := models.CacheMetrics{
		Hits:      c.hits,
		Misses:    c.misses,
		Errors:    c.errors,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		m.HitRate = float64(c.hits) / float64(total)
	}
	return m
}

// Clear flushes all entries from the cluster. For tests.
func (c *MemcachedCache) Clear() {
	_ = c.client.FlushAll()
}

// Ping checks cluster reachability for health reporting.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close releases idle connections.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}

func (c *MemcachedCache) count(field *uint64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// sanitizeKey makes a key safe for memcached's text protocol. Keys already
// within the protocol's limits pass through unchanged; keys with CJK place
// names (via LocationKey), control characters or excessive length are hashed
// so that distinct keys never fold onto the same memcached key.
func sanitizeKey(key string) string {
	safe := len(key) > 0 && len(key) <= 240
	for i := 0; safe && i < len(key); i++ {
		if key[i] <= ' ' || key[i] >= 127 {
			safe = false
		}
	}
	if safe {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:])
}
