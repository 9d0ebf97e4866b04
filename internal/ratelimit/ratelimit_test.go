package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dev.consensus.engine/internal/config"
)

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{ConsensusPerMinute: 3, BatchPerMinute: 1, ReadOnlyPerMinute: 10})

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow("tok-a", config.RouteClassConsensus)
		assert.True(t, allowed, "call %d should be within burst", i)
	}

	allowed, retryAfter := limiter.Allow("tok-a", config.RouteClassConsensus)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter.Seconds(), 0.0)
}

func TestLimiter_IndependentPerTokenAndClass(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{ConsensusPerMinute: 1, BatchPerMinute: 1, ReadOnlyPerMinute: 1})

	allowed, _ := limiter.Allow("tok-a", config.RouteClassConsensus)
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("tok-a", config.RouteClassConsensus)
	assert.False(t, allowed, "tok-a consensus bucket should now be exhausted")

	allowed, _ = limiter.Allow("tok-b", config.RouteClassConsensus)
	assert.True(t, allowed, "tok-b has its own bucket")

	allowed, _ = limiter.Allow("tok-a", config.RouteClassBatch)
	assert.True(t, allowed, "tok-a batch bucket is independent of its consensus bucket")
}

func TestLimiter_ZeroConfiguredRateStillAllowsOne(t *testing.T) {
	limiter := NewLimiter(config.RateLimitConfig{})

	allowed, _ := limiter.Allow("tok-a", config.RouteClassReadOnly)
	assert.True(t, allowed)
}
