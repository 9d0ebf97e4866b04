// Package openai adapts the openai-chat provider_kind, grounded on the
// teacher's internal/llm/providers/openai package (retrieved as
// openai_test.go only): bearer auth, {model, messages, temperature,
// max_tokens} POST body, choices[0].message.content extraction.
package openai

import (
	"net/http"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/llmprovider/openaicompat"
)

const defaultModel = "gpt-4o"

// Provider is the openai-chat adapter.
type Provider struct {
	*openaicompat.Provider
}

// NewProvider constructs an openai-chat adapter. baseURL defaults to the
// official chat-completions endpoint when empty.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1/chat/completions"
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{openaicompat.New("openai", "OpenAI", apiKey, baseURL, model, client)}
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
