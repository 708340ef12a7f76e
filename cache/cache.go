// Package cache provides a bounded in-memory cache with TTL expiry and a
// pluggable eviction policy. It backs the memory tier of the LLM response
// cache and is safe for concurrent use.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Policy selects the victim entry when the cache is full.
type Policy string

const (
	// LRU evicts the entry with the oldest last access.
	LRU Policy = "lru"
	// LFU evicts the entry with the lowest access count.
	LFU Policy = "lfu"
	// FIFO evicts the entry with the oldest creation time.
	FIFO Policy = "fifo"
)

// Item holds a cached value and its bookkeeping metadata.
type Item struct {
	Value        any
	ExpireAt     time.Time // zero means no expiry
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  uint64
}

func (it *Item) expired(now time.Time) bool {
	return !it.ExpireAt.IsZero() && now.After(it.ExpireAt)
}

// Stats is a snapshot of cache counters. All counters are monotonically
// increasing for the life of the instance.
type Stats struct {
	Name        string  `json:"name"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Policy      Policy  `json:"policy"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Inserts     uint64  `json:"inserts"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
}

// Config configures a Cache.
type Config struct {
	// MaxSize caps the number of entries. <= 0 defaults to 1000.
	MaxSize int
	// TTL is the default lifetime of entries. 0 means no expiry.
	TTL time.Duration
	// Policy picks the eviction victim. Defaults to LRU.
	Policy Policy
	// Name tags log lines and stats.
	Name string
	// Now is used in tests. Defaults to time.Now.
	Now func() time.Time
}

// Cache is a bounded TTL cache. Size never exceeds MaxSize: inserting a new
// key at capacity first evicts exactly one entry chosen by the policy.
// Expiry is checked lazily on Get and eagerly via CleanupExpired.
type Cache struct {
	mu    sync.Mutex
	items map[string]*Item

	maxSize int
	ttl     time.Duration
	policy  Policy
	name    string
	now     func() time.Time
	logger  *zap.Logger

	hits        uint64
	misses      uint64
	inserts     uint64
	evictions   uint64
	expirations uint64
}

// New creates a cache from config.
func New(config Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 1000
	}
	if config.Policy == "" {
		config.Policy = LRU
	}
	if config.Name == "" {
		config.Name = "default"
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		items:   make(map[string]*Item),
		maxSize: config.MaxSize,
		ttl:     config.TTL,
		policy:  config.Policy,
		name:    config.Name,
		now:     now,
		logger:  logger.With(zap.String("component", "cache"), zap.String("cache", config.Name)),
	}
}

// Lookup returns the value for key and whether it was present and live.
// An expired entry found here is deleted and counted as a miss.
func (c *Cache) Lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	it, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if it.expired(now) {
		delete(c.items, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	c.hits++
	it.LastAccessed = now
	it.AccessCount++
	return it.Value, true
}

// Get returns the value for key, or def when absent or expired.
func (c *Cache) Get(key string, def any) any {
	if v, ok := c.Lookup(key); ok {
		return v
	}
	return def
}

// Set stores value under key. An optional ttl overrides the cache default;
// pass no ttl to use the default, an explicit 0 for no expiry.
func (c *Cache) Set(key string, value any, ttl ...time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictLocked()
	}

	effective := c.ttl
	if len(ttl) > 0 {
		effective = ttl[0]
	}
	var expireAt time.Time
	if effective > 0 {
		expireAt = now.Add(effective)
	}

	c.items[key] = &Item{
		Value:        value,
		ExpireAt:     expireAt,
		CreatedAt:    now,
		LastAccessed: now,
	}
	c.inserts++
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		delete(c.items, key)
		return true
	}
	return false
}

// Clear removes all entries. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := len(c.items)
	c.items = make(map[string]*Item)
	c.logger.Debug("cache cleared", zap.Int("cleared", cleared))
}

// CleanupExpired eagerly purges expired entries and returns how many were
// removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
			c.expirations++
			removed++
		}
	}
	return removed
}

// Len returns the current number of entries, including not-yet-collected
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Name:        c.name,
		Size:        len(c.items),
		MaxSize:     c.maxSize,
		Policy:      c.policy,
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     rate,
		Inserts:     c.inserts,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

// evictLocked removes exactly one entry chosen by the configured policy.
func (c *Cache) evictLocked() {
	if len(c.items) == 0 {
		return
	}

	var victim string
	var best *Item
	for k, it := range c.items {
		if best == nil || c.precedes(it, best) {
			victim = k
			best = it
		}
	}

	delete(c.items, victim)
	c.evictions++
	c.logger.Debug("evicted cache entry", zap.String("key", victim), zap.String("policy", string(c.policy)))
}

// precedes reports whether a is a better eviction victim than b.
func (c *Cache) precedes(a, b *Item) bool {
	switch c.policy {
	case LFU:
		return a.AccessCount < b.AccessCount
	case FIFO:
		return a.CreatedAt.Before(b.CreatedAt)
	default: // LRU
		return a.LastAccessed.Before(b.LastAccessed)
	}
}
