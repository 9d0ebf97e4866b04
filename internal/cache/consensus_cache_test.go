package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.consensus.engine/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tiered := NewTieredCache(client, DefaultTieredCacheConfig())
	t.Cleanup(func() { _ = tiered.Close() })
	return NewCache(tiered)
}

func TestCache_ResultRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetResult(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, hit)

	result := &models.ConsensusResult{
		ConsensusText:  "4",
		ConsensusScore: 1.0,
		ModelsUsed:     []string{"m1", "m2"},
	}
	require.NoError(t, c.PutResult(ctx, "fp1", result, time.Minute))

	got, hit, err := c.GetResult(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, result.ConsensusText, got.ConsensusText)
	assert.Equal(t, result.ConsensusScore, got.ConsensusScore)
}

func TestCache_EmbeddingRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, c.PutEmbedding(ctx, "hash1", vec, 24*time.Hour))

	got, hit, err := c.GetEmbedding(ctx, "hash1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, vec, got)
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutResult(ctx, "abc", &models.ConsensusResult{}, time.Minute))
	require.NoError(t, c.PutResult(ctx, "abd", &models.ConsensusResult{}, time.Minute))

	n, err := c.Invalidate(ctx, resultKeyPrefix+"ab")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, hit, _ := c.GetResult(ctx, "abc")
	assert.False(t, hit)
}

func TestNullCache_AlwaysMissesAndSucceeds(t *testing.T) {
	n := NewNullCache()
	ctx := context.Background()

	_, hit, err := n.GetResult(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, n.PutResult(ctx, "anything", &models.ConsensusResult{}, time.Minute))

	_, hit, err = n.GetEmbedding(ctx, "x")
	require.NoError(t, err)
	assert.False(t, hit)

	count, err := n.Invalidate(ctx, "res:")
	require.NoError(t, err)
	assert.Zero(t, count)
}
