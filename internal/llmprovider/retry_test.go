package llmprovider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dev.consensus.engine/internal/models"
)

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(400))
	assert.False(t, IsRetryableStatusCode(404))
}

func TestIsRetryableError_HTTPStatus(t *testing.T) {
	assert.True(t, IsRetryableError(&HTTPStatusError{StatusCode: 502}))
	assert.False(t, IsRetryableError(&HTTPStatusError{StatusCode: 400}))
}

func TestBackoffDelay_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0,
	}
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.BackoffDelay(2))
	assert.Equal(t, 300*time.Millisecond, cfg.BackoffDelay(3))
}

func TestErrorKindFor(t *testing.T) {
	assert.Equal(t, models.ErrorNone, ErrorKindFor(nil))
	assert.Equal(t, models.ErrorProviderHTTPError, ErrorKindFor(&HTTPStatusError{StatusCode: 500}))
}
