package consensus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
)

// fakeClock advances by a fixed step on every Now() call, giving
// invokeWithRetry's latency and remaining-budget arithmetic a deterministic
// timeline instead of real wall-clock jitter.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// flakyProvider fails with a transient HTTP error failTimes times, then
// succeeds, recording how many attempts it saw.
type flakyProvider struct {
	mu        sync.Mutex
	failTimes int
	calls     int
}

func (p *flakyProvider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failTimes {
		return nil, &llmprovider.HTTPStatusError{ProviderName: "test", StatusCode: 500}
	}
	return &models.LLMResponse{Content: "ok", PromptTokens: 1, CompletionTokens: 1}, nil
}

func (p *flakyProvider) HealthCheck(ctx context.Context) error { return nil }
func (p *flakyProvider) GetCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{}
}
func (p *flakyProvider) ValidateConfig() error { return nil }

// TestInvokeWithRetry_UsesInjectedClockDeterministically proves invokeWithRetry
// threads e.clock through every latency and remaining-budget computation
// rather than calling time.Now() directly: two runs seeded with identical
// fake clocks produce byte-identical latencies, which real wall-clock timing
// essentially never would.
func TestInvokeWithRetry_UsesInjectedClockDeterministically(t *testing.T) {
	retryCfg := llmprovider.RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   1,
		JitterFactor: 0,
	}

	run := func() models.ProviderReply {
		provider := &flakyProvider{failTimes: 1}
		entries := map[string]Entry{
			"m1": {Descriptor: descriptorFor("m1"), Provider: provider},
		}
		eng, _ := newTestEngine(t, entries, DefaultConfig())
		eng.retryConfig = retryCfg
		clock := &fakeClock{now: time.Unix(0, 0), step: 10 * time.Millisecond}
		eng.clock = clock

		deadline := clock.now.Add(time.Hour)
		return eng.invokeWithRetry(context.Background(), "m1", "prompt", 0.7, deadline)
	}

	first := run()
	second := run()

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, first.Latency, second.Latency)
	assert.Greater(t, first.Latency, time.Duration(0))
}

// TestInvokeWithRetry_StopsRetryingWhenBackoffExceedsRemainingBudget confirms
// the remaining-budget check is computed from the injected clock, not real
// time: with a deadline the fake clock reaches after the first failure, no
// retry attempt is made.
func TestInvokeWithRetry_StopsRetryingWhenBackoffExceedsRemainingBudget(t *testing.T) {
	provider := &flakyProvider{failTimes: 5}
	entries := map[string]Entry{
		"m1": {Descriptor: descriptorFor("m1"), Provider: provider},
	}
	eng, _ := newTestEngine(t, entries, DefaultConfig())
	eng.retryConfig = llmprovider.RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   1,
		JitterFactor: 0,
	}
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	eng.clock = clock

	deadline := clock.now.Add(2 * time.Millisecond)
	reply := eng.invokeWithRetry(context.Background(), "m1", "prompt", 0.7, deadline)

	assert.False(t, reply.Success)
	assert.Equal(t, models.ErrorProviderHTTPError, reply.ErrorKind)
	assert.Equal(t, 1, provider.calls)
}
