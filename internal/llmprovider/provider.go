// Package llmprovider defines C1: the closed set of per-vendor adapters
// behind one polymorphic operation, plus the shared HTTP client, circuit
// breaker, and retry-config helpers every adapter composes with. Per
// spec.md §9's "runtime-tagged provider dispatch" redesign flag, dispatch
// is a registry keyed by provider_kind resolved once at startup — never a
// string type-switch inside a shared function.
package llmprovider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"dev.consensus.engine/internal/models"
)

// LLMProvider is the one operation every vendor adapter implements:
// invoke(call) -> ProviderReply, here expressed as Complete over the
// teacher's LLMRequest/LLMResponse chat contract. CompleteStream is not
// part of the interface: spec.md's non-goals exclude token streaming, so
// every adapter returns one atomic reply per call.
type LLMProvider interface {
	Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error)
	HealthCheck(ctx context.Context) error
	GetCapabilities() models.ProviderCapabilities
	ValidateConfig() error
}

// NewSharedHTTPClient builds the one process-wide HTTP client every adapter
// is constructed with, per spec.md §4.1's HTTP discipline: connection
// pooling, keep-alive, at least 64 idle connections per host, 5s dial
// timeout.
func NewSharedHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return &http.Client{Transport: transport}
}

// HTTPStatusError carries a non-2xx vendor response status so retry and
// error-kind classification can inspect it without parsing error strings.
type HTTPStatusError struct {
	ProviderName string
	StatusCode   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.ProviderName, e.StatusCode)
}

// EstimateTokens applies the 4-characters-per-token heuristic spec.md §4.1
// mandates when a provider does not report token counts.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	estimate := len(text) / 4
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
