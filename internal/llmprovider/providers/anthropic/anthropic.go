// Package anthropic adapts the anthropic-messages provider_kind per
// spec.md §4.1: POST {model, max_tokens, messages:[{role,content}]} with
// the x-api-key header and a required anthropic-version header, extracting
// content[0].text from the reply.
package anthropic

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
	defaultModel       = "claude-3-5-sonnet-20241022"
	anthropicVersion   = "2023-06-01"
	defaultMaxTokens   = 1024
	defaultAPIEndpoint = "https://api.anthropic.com/v1/messages"
)

// message is a single chat turn in the messages API wire shape.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the POST body for the Messages API.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// contentBlock is one entry of the response's content array.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// usage reports token counts when Anthropic returns them.
type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// response is the Messages API reply shape.
type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

// Provider is the anthropic-messages adapter.
type Provider struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewProvider constructs an anthropic-messages adapter.
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
		return fmt.Errorf("anthropic: missing API key")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("anthropic: missing base URL")
	}
	if p.Model == "" {
		return fmt.Errorf("anthropic: missing model name")
	}
	return nil
}

func (p *Provider) GetCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		SupportedModels: []string{p.Model},
		Limits: models.ModelLimits{
			MaxTokens:             defaultMaxTokens,
			MaxConcurrentRequests: 64,
		},
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

// Complete sends req to the Messages API and parses its reply. Never
// retries (spec.md §4.1); on any failure returns an error the caller
// classifies into an ErrorKind.
func (p *Provider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	prompt := req.Prompt
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	maxTokens := req.ModelParams.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := request{
		Model:     p.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &llmprovider.HTTPStatusError{ProviderName: "Anthropic", StatusCode: httpResp.StatusCode}
	}

	var parsed response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: parse response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return nil, fmt.Errorf("anthropic: empty content in response")
	}

	content := parsed.Content[0].Text
	promptTokens := parsed.Usage.InputTokens
	completionTokens := parsed.Usage.OutputTokens
	metadata := map[string]interface{}{}
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = llmprovider.EstimateTokens(prompt)
		completionTokens = llmprovider.EstimateTokens(content)
		metadata["token_estimate"] = true
	}

	return &models.LLMResponse{
		ID:               parsed.ID,
		RequestID:        req.ID,
		ProviderID:       "anthropic",
		ProviderName:     "Anthropic",
		Content:          content,
		FinishReason:     parsed.StopReason,
		TokensUsed:       promptTokens + completionTokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Metadata:         metadata,
	}, nil
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
