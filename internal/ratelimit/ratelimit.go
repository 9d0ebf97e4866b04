// Package ratelimit implements C4: the bearer-token auth gate and the
// per-(token, route-class) token-bucket limiter. Grounded on the teacher's
// internal/adapters/auth/integration.go gin middleware shape
// (BearerTokenAuthMiddleware, c.Set/c.Get context values) and on
// internal/concurrency/semaphore.go's fine-grained per-key locking pattern,
// with golang.org/x/time/rate supplying the bucket itself — the token-bucket
// limiter domain this pack's llm-inference-proxy reference code exercises.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dev.consensus.engine/internal/config"
)

// bucketKey identifies one independent token-bucket: a bearer token paired
// with a route class (spec.md §4.4: consensus/batch/read-only each get
// independent rates).
type bucketKey struct {
	token string
	class config.RouteClass
}

// Limiter enforces per-(token, route-class) request budgets with
// golang.org/x/time/rate token buckets, created lazily under one mutex that
// guards the bucket map. Each bucket's state is guarded by its own
// rate.Limiter lock, so requests on different (token, class) pairs share
// only the map lookup (spec.md §5's "fine-grained locking keyed on token").
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*rate.Limiter
	rates   map[config.RouteClass]rate.Limit
	bursts  map[config.RouteClass]int
}

// NewLimiter builds a Limiter from the engine's RateLimitConfig, one
// requests-per-minute rate per route class, with burst equal to the
// per-minute budget (a caller may use its whole minute's budget at once).
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	perMinute := map[config.RouteClass]int{
		config.RouteClassConsensus: cfg.ConsensusPerMinute,
		config.RouteClassBatch:     cfg.BatchPerMinute,
		config.RouteClassReadOnly:  cfg.ReadOnlyPerMinute,
	}
	rates := make(map[config.RouteClass]rate.Limit, len(perMinute))
	bursts := make(map[config.RouteClass]int, len(perMinute))
	for class, n := range perMinute {
		if n <= 0 {
			n = 1
		}
		rates[class] = rate.Limit(float64(n) / 60.0)
		bursts[class] = n
	}
	return &Limiter{
		buckets: make(map[bucketKey]*rate.Limiter),
		rates:   rates,
		bursts:  bursts,
	}
}

// Allow reports whether a request on (token, class) may proceed and, on
// exhaustion, the Retry-After hint spec.md §4.4 requires: the bucket's
// refill interval (one token's worth of wait).
func (l *Limiter) Allow(token string, class config.RouteClass) (allowed bool, retryAfter time.Duration) {
	bucket := l.bucketFor(token, class)
	if bucket.Allow() {
		return true, 0
	}
	interval := time.Second
	if r := bucket.Limit(); r > 0 {
		interval = time.Duration(float64(time.Second) / float64(r))
	}
	return false, interval
}

func (l *Limiter) bucketFor(token string, class config.RouteClass) *rate.Limiter {
	key := bucketKey{token: token, class: class}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	r, ok := l.rates[class]
	if !ok {
		r = rate.Limit(1)
	}
	burst := l.bursts[class]
	if burst <= 0 {
		burst = 1
	}
	b := rate.NewLimiter(r, burst)
	l.buckets[key] = b
	return b
}
