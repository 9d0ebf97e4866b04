// Package moonshot adapts the moonshot-chat provider_kind. Unlike the
// teacher's kimicode package (a CLI wrapper, not an HTTP API), this adapter
// targets Moonshot's Kimi chat-completions endpoint directly, which speaks
// the same OpenAI-compatible dialect spec.md §4.1 groups it under.
package moonshot

import (
	"net/http"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/llmprovider/openaicompat"
)

const defaultModel = "moonshot-v1-8k"

// Provider is the moonshot-chat adapter.
type Provider struct {
	*openaicompat.Provider
}

// NewProvider constructs a moonshot-chat adapter.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = "https://api.moonshot.cn/v1/chat/completions"
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{openaicompat.New("moonshot", "Moonshot", apiKey, baseURL, model, client)}
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
