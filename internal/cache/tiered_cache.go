package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// TieredCacheConfig holds configuration for the tiered cache backing C3.
type TieredCacheConfig struct {
	// L1 (in-memory) settings
	L1MaxSize         int           // Maximum items in memory
	L1TTL             time.Duration // Memory cache TTL
	L1CleanupInterval time.Duration // Cleanup interval for expired entries

	// L2 (Redis) settings
	L2TTL         time.Duration // Redis cache TTL
	L2Compression bool          // Enable compression for L2 values
	L2KeyPrefix   string        // Prefix for all L2 keys

	// General settings
	EnableL1 bool // Enable L1 cache
	EnableL2 bool // Enable L2 cache
}

// DefaultTieredCacheConfig returns the defaults cmd/server builds on, scoped
// to this engine's own keyspace rather than a shared multi-tenant prefix.
func DefaultTieredCacheConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxSize:         10000,
		L1TTL:             5 * time.Minute,
		L1CleanupInterval: time.Minute,
		L2TTL:             30 * time.Minute,
		L2Compression:     true,
		L2KeyPrefix:       "consensus:",
		EnableL1:          true,
		EnableL2:          true,
	}
}

// TieredCache is C3's L1 (memory) + L2 (Redis) backing store. Values above
// 100 bytes are gzip-compressed before they cross into Redis, since
// ConsensusResult.per_model can carry several KB of provider text.
type TieredCache struct {
	l1      *l1Cache
	l2      *redis.Client
	config  *TieredCacheConfig
	metrics *tieredCacheMetrics
	ctx     context.Context
	cancel  context.CancelFunc
}

// tieredCacheMetrics tracks L1/L2 hit and eviction counts, surfaced to
// callers only through Stats (the percentage the health endpoint reports),
// not as raw counters: nothing downstream consumes anything finer-grained.
type tieredCacheMetrics struct {
	l1Hits      int64
	l1Misses    int64
	l2Hits      int64
	l2Misses    int64
	l1Evictions int64
}

// l1Cache is the in-memory L1 cache
type l1Cache struct {
	entries map[string]*l1Entry
	mu      sync.RWMutex
	maxSize int
}

type l1Entry struct {
	value     []byte
	expiresAt time.Time
	hitCount  int64
}

// NewTieredCache creates a new tiered cache
func NewTieredCache(redisClient *redis.Client, config *TieredCacheConfig) *TieredCache {
	if config == nil {
		config = DefaultTieredCacheConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TieredCache{
		l1: &l1Cache{
			entries: make(map[string]*l1Entry),
			maxSize: config.L1MaxSize,
		},
		l2:      redisClient,
		config:  config,
		metrics: &tieredCacheMetrics{},
		ctx:     ctx,
		cancel:  cancel,
	}

	if config.EnableL1 {
		go tc.l1CleanupLoop()
	}

	return tc
}

// Get retrieves a value from the cache, checking L1 first then L2
func (c *TieredCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.config.EnableL1 {
		if data, ok := c.l1Get(key); ok {
			atomic.AddInt64(&c.metrics.l1Hits, 1)
			return true, json.Unmarshal(data, dest)
		}
		atomic.AddInt64(&c.metrics.l1Misses, 1)
	}

	if c.config.EnableL2 && c.l2 != nil {
		data, err := c.l2Get(ctx, key)
		if err == nil && data != nil {
			atomic.AddInt64(&c.metrics.l2Hits, 1)

			if c.config.EnableL1 {
				c.l1Set(key, data, c.config.L1TTL)
			}

			return true, json.Unmarshal(data, dest)
		}
		if err != nil && err != redis.Nil {
			return false, fmt.Errorf("l2 get: %w", err)
		}
		atomic.AddInt64(&c.metrics.l2Misses, 1)
	}

	return false, nil
}

// Set stores a value in both L1 and L2 caches. The tag parameter names the
// C3 keyspace the entry belongs to (consensus_result or embedding); it is
// metadata for operators reading a Redis keyspace dump, not consumed by any
// invalidation path here — both keyspaces are invalidated by prefix instead.
func (c *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, tag string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	_ = tag

	if c.config.EnableL1 {
		l1TTL := ttl
		if l1TTL > c.config.L1TTL {
			l1TTL = c.config.L1TTL
		}
		c.l1Set(key, data, l1TTL)
	}

	if c.config.EnableL2 && c.l2 != nil {
		if err := c.l2Set(ctx, key, data, ttl); err != nil {
			return fmt.Errorf("l2 set: %w", err)
		}
	}

	return nil
}

// InvalidatePrefix invalidates all entries with keys matching the prefix,
// the only invalidation shape C3's fingerprint/hash keyspace needs (spec.md
// §4.3 admin invalidation). The returned count is the number of distinct
// keys removed: an entry held in both tiers counts once.
func (c *TieredCache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	removed := make(map[string]bool)

	if c.config.EnableL1 {
		c.l1.mu.Lock()
		for key := range c.l1.entries {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				delete(c.l1.entries, key)
				removed[key] = true
			}
		}
		c.l1.mu.Unlock()
	}

	if c.config.EnableL2 && c.l2 != nil {
		pattern := c.config.L2KeyPrefix + prefix + "*"
		var cursor uint64
		for {
			keys, nextCursor, err := c.l2.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return len(removed), fmt.Errorf("l2 scan: %w", err)
			}

			if len(keys) > 0 {
				if err := c.l2.Del(ctx, keys...).Err(); err != nil {
					return len(removed), fmt.Errorf("l2 delete: %w", err)
				}
				for _, k := range keys {
					removed[k[len(c.config.L2KeyPrefix):]] = true
				}
			}

			cursor = nextCursor
			if cursor == 0 {
				break
			}
		}
	}

	return len(removed), nil
}

// Stats reports the cache's overall hit rate (percentage, 0-100) and L1
// resident-entry count, surfaced on /health.
func (c *TieredCache) Stats() CacheStats {
	c.l1.mu.RLock()
	l1Size := int64(len(c.l1.entries))
	c.l1.mu.RUnlock()

	l1Hits := atomic.LoadInt64(&c.metrics.l1Hits)
	l2Hits := atomic.LoadInt64(&c.metrics.l2Hits)
	l1Misses := atomic.LoadInt64(&c.metrics.l1Misses)
	l2Misses := atomic.LoadInt64(&c.metrics.l2Misses)

	total := l1Hits + l2Hits + l1Misses + l2Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(l1Hits+l2Hits) / float64(total) * 100
	}

	return CacheStats{
		HitRate: hitRate,
		L1Size:  l1Size,
	}
}

// Close closes the tiered cache
func (c *TieredCache) Close() error {
	c.cancel()
	return nil
}

// L1 cache operations

func (c *TieredCache) l1Get(key string) ([]byte, bool) {
	c.l1.mu.RLock()
	entry, exists := c.l1.entries[key]
	c.l1.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.l1Delete(key)
		return nil, false
	}

	atomic.AddInt64(&entry.hitCount, 1)
	return entry.value, true
}

func (c *TieredCache) l1Set(key string, value []byte, ttl time.Duration) {
	c.l1.mu.Lock()
	defer c.l1.mu.Unlock()

	if len(c.l1.entries) >= c.l1.maxSize {
		c.l1EvictLRU()
	}

	c.l1.entries[key] = &l1Entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *TieredCache) l1Delete(key string) {
	c.l1.mu.Lock()
	defer c.l1.mu.Unlock()
	delete(c.l1.entries, key)
}

func (c *TieredCache) l1EvictLRU() {
	var lowestKey string
	var lowestHits int64 = -1

	for key, entry := range c.l1.entries {
		if lowestHits < 0 || entry.hitCount < lowestHits {
			lowestKey = key
			lowestHits = entry.hitCount
		}
	}

	if lowestKey != "" {
		delete(c.l1.entries, lowestKey)
		atomic.AddInt64(&c.metrics.l1Evictions, 1)
	}
}

func (c *TieredCache) l1CleanupLoop() {
	interval := c.config.L1CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.l1Cleanup()
		}
	}
}

func (c *TieredCache) l1Cleanup() {
	c.l1.mu.Lock()
	defer c.l1.mu.Unlock()

	now := time.Now()
	for key, entry := range c.l1.entries {
		if now.After(entry.expiresAt) {
			delete(c.l1.entries, key)
		}
	}
}

// L2 cache operations

func (c *TieredCache) l2Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.l2.Get(ctx, c.config.L2KeyPrefix+key).Bytes()
	if err != nil {
		return nil, err
	}

	if c.config.L2Compression && len(data) > 0 && data[0] == 0x1f {
		return c.decompress(data)
	}

	return data, nil
}

func (c *TieredCache) l2Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := value

	if c.config.L2Compression && len(value) > 100 {
		if compressed, err := c.compress(value); err == nil && len(compressed) < len(value) {
			data = compressed
		}
	}

	return c.l2.Set(ctx, c.config.L2KeyPrefix+key, data, ttl).Err()
}

func (c *TieredCache) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *TieredCache) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
