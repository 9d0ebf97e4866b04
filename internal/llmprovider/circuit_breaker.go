package llmprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dev.consensus.engine/internal/models"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when a provider is tripped out of rotation.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	SuccessThreshold    int
	Timeout             time.Duration
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig matches the teacher's provider defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// CircuitBreaker protects a single provider from repeated calls while it is
// failing, per spec.md §9's guidance to isolate per-provider failure from
// the rest of the fan-out.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	halfOpenInFlight int
	openedAt        time.Time
}

// NewCircuitBreaker constructs a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a new call may proceed, transitioning Open->HalfOpen
// once the timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.Timeout {
			cb.state = StateHalfOpen
			cb.halfOpenInFlight = 0
			cb.successes = 0
		} else {
			return false
		}
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.cfg.HalfOpenMaxRequests {
			return false
		}
		cb.halfOpenInFlight++
		return true
	default:
		return false
	}
}

// RecordSuccess registers a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure registers a failed call outcome.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = time.Now()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// guardedProvider wraps an LLMProvider with a CircuitBreaker, short-circuiting
// calls while the breaker is open instead of hitting the vendor.
type guardedProvider struct {
	inner   LLMProvider
	breaker *CircuitBreaker
}

// WithCircuitBreaker decorates a provider so repeated failures trip it out
// of rotation for cfg.Timeout before a half-open probe is allowed through.
func WithCircuitBreaker(inner LLMProvider, cfg CircuitBreakerConfig) LLMProvider {
	return &guardedProvider{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

func (g *guardedProvider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	if !g.breaker.Allow() {
		return nil, fmt.Errorf("circuit breaker open: %w", errCircuitOpen)
	}
	resp, err := g.inner.Complete(ctx, req)
	if err != nil {
		g.breaker.RecordFailure()
		return nil, err
	}
	g.breaker.RecordSuccess()
	return resp, nil
}

func (g *guardedProvider) HealthCheck(ctx context.Context) error {
	return g.inner.HealthCheck(ctx)
}

func (g *guardedProvider) GetCapabilities() models.ProviderCapabilities {
	return g.inner.GetCapabilities()
}

func (g *guardedProvider) ValidateConfig() error {
	return g.inner.ValidateConfig()
}

var errCircuitOpen = fmt.Errorf("provider temporarily unavailable")
