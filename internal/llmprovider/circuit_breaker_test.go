package llmprovider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.consensus.engine/internal/models"
)

func TestCircuitBreaker_TripsAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		Timeout:             50 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	})

	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenRecoversOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             10 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	})

	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

type stubProvider struct {
	fail bool
}

func (s *stubProvider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	if s.fail {
		return nil, errors.New("boom")
	}
	return &models.LLMResponse{Content: "ok"}, nil
}
func (s *stubProvider) HealthCheck(ctx context.Context) error         { return nil }
func (s *stubProvider) GetCapabilities() models.ProviderCapabilities { return models.ProviderCapabilities{} }
func (s *stubProvider) ValidateConfig() error                        { return nil }

func TestWithCircuitBreaker_ShortCircuitsWhenOpen(t *testing.T) {
	inner := &stubProvider{fail: true}
	guarded := WithCircuitBreaker(inner, CircuitBreakerConfig{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
	})

	_, err := guarded.Complete(context.Background(), &models.LLMRequest{})
	require.Error(t, err)

	_, err = guarded.Complete(context.Background(), &models.LLMRequest{})
	require.ErrorIs(t, err, errCircuitOpen)
}
