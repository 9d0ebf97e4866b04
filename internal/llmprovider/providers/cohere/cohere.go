// Package cohere adapts the cohere-generate provider_kind per spec.md
// §4.1: POST {model, prompt, max_tokens, temperature}, extracting
// generations[0].text.
package cohere

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

const (
	defaultModel       = "command-r-plus"
	defaultAPIEndpoint = "https://api.cohere.ai/v1/generate"
)

type request struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generation struct {
	Text string `json:"text"`
}

type meta struct {
	BilledUnits struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
}

type response struct {
	ID          string       `json:"id"`
	Generations []generation `json:"generations"`
	Meta        meta         `json:"meta"`
}

// Provider is the cohere-generate adapter.
type Provider struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewProvider constructs a cohere-generate adapter.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = defaultAPIEndpoint
	}
	if model == "" {
		model = defaultModel
	}
	if client == nil {
		client = llmprovider.NewSharedHTTPClient()
	}
	return &Provider{APIKey: apiKey, BaseURL: baseURL, Model: model, Client: client}
}

func (p *Provider) ValidateConfig() error {
	if p.APIKey == "" {
		return fmt.Errorf("cohere: missing API key")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("cohere: missing base URL")
	}
	if p.Model == "" {
		return fmt.Errorf("cohere: missing model name")
	}
	return nil
}

func (p *Provider) GetCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		SupportedModels: []string{p.Model},
		Limits:          models.ModelLimits{MaxConcurrentRequests: 64},
	}
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	req := &models.LLMRequest{
		ID:          "healthcheck",
		Messages:    []models.Message{{Role: "user", Content: "ping"}},
		ModelParams: models.ModelParameters{MaxTokens: 1},
	}
	_, err := p.Complete(ctx, req)
	return err
}

func (p *Provider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	prompt := req.Prompt
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	body := request{
		Model:       p.Model,
		Prompt:      prompt,
		MaxTokens:   req.ModelParams.MaxTokens,
		Temperature: req.ModelParams.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cohere: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("cohere: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("cohere: read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &llmprovider.HTTPStatusError{ProviderName: "Cohere", StatusCode: httpResp.StatusCode}
	}

	var parsed response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("cohere: parse response: %w", err)
	}
	if len(parsed.Generations) == 0 {
		return nil, fmt.Errorf("cohere: empty generations in response")
	}

	text := parsed.Generations[0].Text
	promptTokens := parsed.Meta.BilledUnits.InputTokens
	completionTokens := parsed.Meta.BilledUnits.OutputTokens
	metadata := map[string]interface{}{}
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = llmprovider.EstimateTokens(prompt)
		completionTokens = llmprovider.EstimateTokens(text)
		metadata["token_estimate"] = true
	}

	return &models.LLMResponse{
		ID:               parsed.ID,
		RequestID:        req.ID,
		ProviderID:       "cohere",
		ProviderName:     "Cohere",
		Content:          text,
		TokensUsed:       promptTokens + completionTokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Metadata:         metadata,
	}, nil
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
