package llmprovider

import (
	"fmt"
	"net/http"

	"dev.consensus.engine/internal/models"
)

// Factory builds one LLMProvider from a resolved ModelDescriptor, the
// descriptor's credential, and the shared HTTP client.
type Factory func(desc *models.ModelDescriptor, credential string, client *http.Client) LLMProvider

// Registry resolves provider_kind to a Factory once at startup, replacing
// the runtime-tagged string dispatch spec.md §9 flags for redesign.
type Registry struct {
	factories map[models.ProviderKind]Factory
}

// NewRegistry builds an empty registry; callers register each vendor
// adapter's factory via Register before constructing any providers.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.ProviderKind]Factory)}
}

// Register binds a provider_kind to its adapter constructor.
func (r *Registry) Register(kind models.ProviderKind, factory Factory) {
	r.factories[kind] = factory
}

// Build constructs an LLMProvider for a descriptor, wrapped in a circuit
// breaker, using the credential resolved from the descriptor's CredentialRef.
func (r *Registry) Build(desc *models.ModelDescriptor, credential string, client *http.Client, cbConfig CircuitBreakerConfig) (LLMProvider, error) {
	factory, ok := r.factories[desc.ProviderKind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider_kind %q", desc.ProviderKind)
	}
	provider := factory(desc, credential, client)
	if err := provider.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid config for model %q: %w", desc.ID, err)
	}
	return WithCircuitBreaker(provider, cbConfig), nil
}
