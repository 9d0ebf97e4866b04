// Package openaicompat implements the OpenAI-style chat-completions wire
// contract spec.md §4.1 specifies bit-exact for openai-chat, moonshot-chat,
// zhipu-chat, and mistral-chat: POST {model, messages, temperature,
// max_tokens} with a bearer token, extract choices[0].message.content.
// The four vendor adapter packages are thin wrappers around this shared
// client so the wire-format logic and tests live in one place, the way the
// teacher's provider tests shared request/response struct shapes across
// vendors that speak the same dialect.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
)

// Request is the POST body every OpenAI-compatible chat endpoint accepts.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the shape every OpenAI-compatible endpoint replies with.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice holds one completion candidate.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token counts when the vendor provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the shared OpenAI-compatible adapter. Vendor packages embed
// it and override ProviderName/ProviderID/default model as needed.
type Provider struct {
	ProviderID   string
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	Client       *http.Client
}

// New builds a Provider with the given identity and shared HTTP client.
func New(providerID, providerName, apiKey, baseURL, model string, client *http.Client) *Provider {
	if client == nil {
		client = llmprovider.NewSharedHTTPClient()
	}
	return &Provider{
		ProviderID:   providerID,
		ProviderName: providerName,
		APIKey:       apiKey,
		BaseURL:      baseURL,
		Model:        model,
		Client:       client,
	}
}

// ValidateConfig checks the minimum fields needed to make a call.
func (p *Provider) ValidateConfig() error {
	if p.APIKey == "" {
		return fmt.Errorf("%s: missing API key", p.ProviderName)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("%s: missing base URL", p.ProviderName)
	}
	if p.Model == "" {
		return fmt.Errorf("%s: missing model name", p.ProviderName)
	}
	return nil
}

// GetCapabilities reports the static capability set for this adapter family.
func (p *Provider) GetCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		SupportedModels:   []string{p.Model},
		SupportsStreaming: false,
		SupportsTools:     false,
		Limits: models.ModelLimits{
			MaxConcurrentRequests: 64,
		},
	}
}

// HealthCheck performs a minimal completion call with a tiny budget.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req := &models.LLMRequest{
		ID:          "healthcheck",
		Messages:    []models.Message{{Role: "user", Content: "ping"}},
		ModelParams: models.ModelParameters{MaxTokens: 1},
	}
	_, err := p.Complete(ctx, req)
	return err
}

// Complete sends req to the vendor endpoint and parses its reply. The
// adapter never retries (spec.md §4.1); on any failure it returns a nil
// response and an error the caller classifies into an ErrorKind.
func (p *Provider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	prompt := req.Prompt
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	body := Request{
		Model:       p.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: req.ModelParams.Temperature,
		MaxTokens:   req.ModelParams.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.ProviderName, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.ProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.ProviderName, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", p.ProviderName, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &llmprovider.HTTPStatusError{ProviderName: p.ProviderName, StatusCode: httpResp.StatusCode}
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%s: parse response: %w", p.ProviderName, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response", p.ProviderName)
	}

	content := parsed.Choices[0].Message.Content
	promptTokens := parsed.Usage.PromptTokens
	completionTokens := parsed.Usage.CompletionTokens
	metadata := map[string]interface{}{}
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = llmprovider.EstimateTokens(prompt)
		completionTokens = llmprovider.EstimateTokens(content)
		metadata["token_estimate"] = true
	}

	return &models.LLMResponse{
		ID:                parsed.ID,
		RequestID:         req.ID,
		ProviderID:        p.ProviderID,
		ProviderName:      p.ProviderName,
		Content:           content,
		FinishReason:      parsed.Choices[0].FinishReason,
		TokensUsed:        promptTokens + completionTokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Metadata:         metadata,
	}, nil
}
