package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/mcpflow/cache"
)

// ErrCacheMiss indicates cache miss.
var ErrCacheMiss = errors.New("cache miss")

// ResponseCacheConfig configures the response cache.
type ResponseCacheConfig struct {
	// Dir is the disk-tier directory. Defaults to "cache/models".
	Dir string `json:"dir"`
	// MaxMemoryItems bounds the memory tier. Defaults to 1000.
	MaxMemoryItems int `json:"max_memory_items"`
	// MemoryTTL is the memory-tier lifetime. Defaults to 1h.
	MemoryTTL time.Duration `json:"memory_ttl"`
	// DiskTTL is the disk-tier lifetime. Defaults to 7d.
	DiskTTL time.Duration `json:"disk_ttl"`
	// UseDisk enables the disk tier.
	UseDisk bool `json:"use_disk"`
	// Redis, when set, adds a shared tier between memory and disk.
	Redis *redis.Client `json:"-"`
	// RedisTTL is the redis-tier lifetime. Defaults to DiskTTL.
	RedisTTL time.Duration `json:"redis_ttl"`
	// Now is used in tests. Defaults to time.Now.
	Now func() time.Time `json:"-"`
}

// DefaultResponseCacheConfig returns sensible defaults.
func DefaultResponseCacheConfig() ResponseCacheConfig {
	return ResponseCacheConfig{
		Dir:            filepath.Join("cache", "models"),
		MaxMemoryItems: 1000,
		MemoryTTL:      time.Hour,
		DiskTTL:        7 * 24 * time.Hour,
		UseDisk:        true,
	}
}

// diskRecord is the persisted cache entry layout: one file per entry named
// by its hex digest key. Presence past ExpiresAt is equivalent to absence.
type diskRecord struct {
	Data      *ChatResponse `json:"data"`
	CreatedAt int64         `json:"created_at"`
	ExpiresAt int64         `json:"expires_at"`
}

// ResponseCache deduplicates deterministic model calls. It fronts providers
// with a memory tier (bounded, TTL, LRU), an optional shared redis tier and
// a disk tier of one JSON file per entry. Requests with a sampling
// temperature above zero are never cached, read or written.
type ResponseCache struct {
	mem      *cache.Cache
	dir      string
	useDisk  bool
	diskTTL  time.Duration
	rdb      *redis.Client
	redisTTL time.Duration
	sf       singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

// NewResponseCache creates a response cache. The disk directory is created
// on first use if missing.
func NewResponseCache(cfg ResponseCacheConfig, logger *zap.Logger) (*ResponseCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultResponseCacheConfig()
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.MaxMemoryItems <= 0 {
		cfg.MaxMemoryItems = def.MaxMemoryItems
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = def.MemoryTTL
	}
	if cfg.DiskTTL <= 0 {
		cfg.DiskTTL = def.DiskTTL
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = cfg.DiskTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	if cfg.UseDisk {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
	}

	return &ResponseCache{
		mem: cache.New(cache.Config{
			MaxSize: cfg.MaxMemoryItems,
			TTL:     cfg.MemoryTTL,
			Policy:  cache.LRU,
			Name:    "model_response_memory",
			Now:     cfg.Now,
		}, logger),
		dir:      cfg.Dir,
		useDisk:  cfg.UseDisk,
		diskTTL:  cfg.DiskTTL,
		rdb:      cfg.Redis,
		redisTTL: cfg.RedisTTL,
		now:      now,
		logger:   logger.With(zap.String("component", "response_cache")),
	}, nil
}

// Cacheable reports whether a request may be served from or written to the
// cache. Non-deterministic requests (temperature > 0) are not cacheable.
func (c *ResponseCache) Cacheable(req *ChatRequest) bool {
	return c != nil && req != nil && req.Temperature <= 0
}

// Key derives the canonical fingerprint of a request: a sorted-key JSON
// serialization of the semantically relevant fields, hashed to a fixed
// length hex digest.
func (c *ResponseCache) Key(provider string, req *ChatRequest) string {
	msgs := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	keyData := map[string]any{
		"provider":      provider,
		"model":         req.Model,
		"messages":      msgs,
		"system_prompt": req.SystemPrompt,
	}
	if req.Temperature != 0 {
		keyData["temperature"] = req.Temperature
	}
	if req.TopP != 0 {
		keyData["top_p"] = req.TopP
	}
	if req.TopK != 0 {
		keyData["top_k"] = req.TopK
	}
	if req.MaxTokens != 0 {
		keyData["max_tokens"] = req.MaxTokens
	}

	// json.Marshal emits map keys in sorted order, which makes the
	// serialization canonical.
	data, _ := json.Marshal(keyData)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Get consults memory, then redis, then disk. Hits from a lower tier are
// promoted into the memory tier before being returned.
func (c *ResponseCache) Get(ctx context.Context, provider string, req *ChatRequest) (*ChatResponse, bool) {
	if !c.Cacheable(req) {
		return nil, false
	}
	key := c.Key(provider, req)

	if v, ok := c.mem.Lookup(key); ok {
		if resp, ok := v.(*ChatResponse); ok {
			c.logger.Debug("memory cache hit", zap.String("key", key))
			return resp, true
		}
	}

	if c.rdb != nil {
		if data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes(); err == nil {
			var resp ChatResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.mem.Set(key, &resp)
				c.logger.Debug("redis cache hit", zap.String("key", key))
				return &resp, true
			}
		}
	}

	if c.useDisk {
		if resp := c.loadFromDisk(key); resp != nil {
			c.mem.Set(key, resp)
			c.logger.Debug("disk cache hit", zap.String("key", key))
			return resp, true
		}
	}

	return nil, false
}

// Set writes through to every configured tier, subject to the
// cacheability gate.
func (c *ResponseCache) Set(ctx context.Context, provider string, req *ChatRequest, resp *ChatResponse) {
	if !c.Cacheable(req) || resp == nil {
		return
	}
	key := c.Key(provider, req)

	c.mem.Set(key, resp)

	if c.rdb != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := c.rdb.Set(ctx, c.redisKey(key), data, c.redisTTL).Err(); err != nil {
				c.logger.Warn("redis cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	if c.useDisk {
		c.saveToDisk(key, resp)
	}
}

// Do runs fn through the cache: a hit short-circuits, concurrent misses for
// the same key are collapsed into a single in-flight call, and a successful
// result is written through. Non-cacheable requests call fn directly.
func (c *ResponseCache) Do(ctx context.Context, provider string, req *ChatRequest, fn func(context.Context) (*ChatResponse, error)) (*ChatResponse, error) {
	if c == nil || !c.Cacheable(req) {
		return fn(ctx)
	}
	if resp, ok := c.Get(ctx, provider, req); ok {
		return resp, nil
	}

	key := c.Key(provider, req)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		if resp, ok := c.Get(ctx, provider, req); ok {
			return resp, nil
		}
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, provider, req, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChatResponse), nil
}

// Cleanup purges expired entries from the memory and disk tiers and returns
// the counts removed from each. Corrupt disk entries are deleted outright.
// The redis tier expires server-side and is not scanned.
func (c *ResponseCache) Cleanup() (memoryRemoved, diskRemoved int) {
	memoryRemoved = c.mem.CleanupExpired()

	if c.useDisk {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			c.logger.Warn("disk cache scan failed", zap.Error(err))
			return memoryRemoved, 0
		}
		now := c.now().Unix()
		for _, ent := range entries {
			if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
				continue
			}
			path := filepath.Join(c.dir, ent.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var rec diskRecord
			if err := json.Unmarshal(data, &rec); err != nil || rec.Data == nil {
				// Corrupt entry: delete, never fail.
				os.Remove(path)
				diskRemoved++
				continue
			}
			if now > rec.ExpiresAt {
				os.Remove(path)
				diskRemoved++
			}
		}
	}

	c.logger.Info("cache cleanup finished",
		zap.Int("memory_removed", memoryRemoved),
		zap.Int("disk_removed", diskRemoved),
	)
	return memoryRemoved, diskRemoved
}

// Clear empties every tier.
func (c *ResponseCache) Clear(ctx context.Context) {
	c.mem.Clear()

	if c.rdb != nil {
		iter := c.rdb.Scan(ctx, 0, c.redisKey("*"), 0).Iterator()
		for iter.Next(ctx) {
			c.rdb.Del(ctx, iter.Val())
		}
	}

	if c.useDisk {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return
		}
		for _, ent := range entries {
			if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".json") {
				os.Remove(filepath.Join(c.dir, ent.Name()))
			}
		}
	}
}

// Stats returns the memory-tier counters.
func (c *ResponseCache) Stats() cache.Stats {
	return c.mem.Stats()
}

func (c *ResponseCache) redisKey(key string) string {
	return "mcpflow:llm:" + key
}

func (c *ResponseCache) diskPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *ResponseCache) saveToDisk(key string, resp *ChatResponse) {
	now := c.now().Unix()
	rec := diskRecord{
		Data:      resp,
		CreatedAt: now,
		ExpiresAt: now + int64(c.diskTTL/time.Second),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("disk cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := os.WriteFile(c.diskPath(key), data, 0o644); err != nil {
		c.logger.Error("disk cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// loadFromDisk returns the stored response or nil. Expired entries are
// deleted on touch; unreadable entries are treated as a miss.
func (c *ResponseCache) loadFromDisk(key string) *ChatResponse {
	path := c.diskPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var rec diskRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Data == nil {
		c.logger.Warn("corrupt disk cache entry", zap.String("key", key))
		os.Remove(path)
		return nil
	}
	if c.now().Unix() > rec.ExpiresAt {
		os.Remove(path)
		c.logger.Debug("expired disk cache entry removed", zap.String("key", key))
		return nil
	}
	return rec.Data
}
