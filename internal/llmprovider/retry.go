package llmprovider

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"dev.consensus.engine/internal/models"
)

// RetryConfig controls the backoff schedule C5 uses when re-queuing a
// ProviderCall after a transient failure. The adapter itself never retries
// (spec.md §4.1) — this type and its helpers exist so the retry behaviour
// is defined once, next to the circuit breaker, and only invoked from C5.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultRetryConfig matches spec.md §4.5 step 4: 100ms * 2^attempt, ±25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.25,
	}
}

// BackoffDelay returns the jittered delay before retry attempt n (1-based).
func (c RetryConfig) BackoffDelay(attempt int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
	}
	if maxDelay := float64(c.MaxDelay); delay > maxDelay {
		delay = maxDelay
	}

	if c.JitterFactor > 0 {
		jitter := delay * c.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

// IsRetryableStatusCode reports whether an HTTP status code from a provider
// is worth retrying: 5xx is transient, 429 is transient, everything else
// (4xx) is final.
func IsRetryableStatusCode(code int) bool {
	if code == 429 {
		return true
	}
	return code >= 500 && code < 600
}

// IsRetryableError reports whether an adapter error is worth retrying:
// HTTP 5xx/429 status errors and network timeouts are; context
// cancellation, circuit-open, and malformed-payload errors are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatusCode(statusErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// ErrorKindFor classifies an adapter error into the closed ErrorKind enum
// every ProviderReply carries.
func ErrorKindFor(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorNone
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrorCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorProviderTimeout
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return models.ErrorProviderHTTPError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorProviderTimeout
	}
	return models.ErrorProviderParseError
}
