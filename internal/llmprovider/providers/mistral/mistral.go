// Package mistral adapts the mistral-chat provider_kind, which spec.md
// §4.1 groups with the OpenAI-compatible dialect (bearer auth, {model,
// messages, temperature, max_tokens} body, choices[0].message.content
// extraction).
package mistral

import (
	"net/http"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/llmprovider/openaicompat"
)

const defaultModel = "mistral-large-latest"

// Provider is the mistral-chat adapter.
type Provider struct {
	*openaicompat.Provider
}

// NewProvider constructs a mistral-chat adapter.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai/v1/chat/completions"
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{openaicompat.New("mistral", "Mistral", apiKey, baseURL, model, client)}
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
