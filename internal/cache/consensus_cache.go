package cache

import (
	"context"
	"time"

	"dev.consensus.engine/internal/models"
)

// ConsensusCache is C3: finished ConsensusResult objects keyed by request
// fingerprint, and embeddings keyed by text hash. All operations must be
// safe under concurrent access from many request handlers; a miss is not
// an error (spec.md §4.3).
type ConsensusCache interface {
	GetResult(ctx context.Context, fingerprint string) (*models.ConsensusResult, bool, error)
	PutResult(ctx context.Context, fingerprint string, result *models.ConsensusResult, ttl time.Duration) error
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, textHash string, vector []float32, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) (int, error)
	Stats() CacheStats
	Close() error
}

// CacheStats is the subset of cache health /health reports to operators.
type CacheStats struct {
	HitRate float64 `json:"hit_rate"`
	L1Size  int64   `json:"l1_size"`
}

const (
	resultKeyPrefix    = "res:"
	embeddingKeyPrefix = "emb:"
)

// Cache implements ConsensusCache on top of the teacher's L1/L2 TieredCache.
type Cache struct {
	tiered *TieredCache
}

// NewCache wraps an already-constructed TieredCache as a ConsensusCache.
func NewCache(tiered *TieredCache) *Cache {
	return &Cache{tiered: tiered}
}

func (c *Cache) GetResult(ctx context.Context, fingerprint string) (*models.ConsensusResult, bool, error) {
	var result models.ConsensusResult
	hit, err := c.tiered.Get(ctx, resultKeyPrefix+fingerprint, &result)
	if err != nil || !hit {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *Cache) PutResult(ctx context.Context, fingerprint string, result *models.ConsensusResult, ttl time.Duration) error {
	return c.tiered.Set(ctx, resultKeyPrefix+fingerprint, result, ttl, "consensus_result")
}

func (c *Cache) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	var vec []float32
	hit, err := c.tiered.Get(ctx, embeddingKeyPrefix+textHash, &vec)
	if err != nil || !hit {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *Cache) PutEmbedding(ctx context.Context, textHash string, vector []float32, ttl time.Duration) error {
	return c.tiered.Set(ctx, embeddingKeyPrefix+textHash, vector, ttl, "embedding")
}

// Invalidate drops every cached entry whose key starts with pattern. It is
// admin-only at the httpapi layer; here it is a plain prefix invalidation.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	return c.tiered.InvalidatePrefix(ctx, pattern)
}

func (c *Cache) Stats() CacheStats {
	return c.tiered.Stats()
}

func (c *Cache) Close() error {
	return c.tiered.Close()
}

// NullCache is the degraded implementation C3 falls back to on backend
// outage: every read misses, every write silently succeeds, so the engine
// keeps serving requests (spec.md §4.3).
type NullCache struct{}

func NewNullCache() *NullCache { return &NullCache{} }

func (NullCache) GetResult(context.Context, string) (*models.ConsensusResult, bool, error) {
	return nil, false, nil
}
func (NullCache) PutResult(context.Context, string, *models.ConsensusResult, time.Duration) error {
	return nil
}
func (NullCache) GetEmbedding(context.Context, string) ([]float32, bool, error) {
	return nil, false, nil
}
func (NullCache) PutEmbedding(context.Context, string, []float32, time.Duration) error { return nil }
func (NullCache) Invalidate(context.Context, string) (int, error)                     { return 0, nil }
func (NullCache) Stats() CacheStats                                                   { return CacheStats{} }
func (NullCache) Close() error                                                        { return nil }
