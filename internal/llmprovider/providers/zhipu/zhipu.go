// Package zhipu adapts the zhipu-chat provider_kind, which spec.md §4.1
// groups with the OpenAI-compatible dialect (bearer auth, {model, messages,
// temperature, max_tokens} body, choices[0].message.content extraction).
package zhipu

import (
	"net/http"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/llmprovider/openaicompat"
)

const defaultModel = "glm-4"

// Provider is the zhipu-chat adapter.
type Provider struct {
	*openaicompat.Provider
}

// NewProvider constructs a zhipu-chat adapter.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{openaicompat.New("zhipu", "Zhipu", apiKey, baseURL, model, client)}
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
