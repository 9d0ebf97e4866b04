// Package google adapts the google-generate provider_kind per spec.md
// §4.1: POST {contents:[{parts:[{text}]}], generationConfig:{temperature,
// maxOutputTokens}} to endpoint_url?key=credential, extracting
// candidates[0].content.parts[0].text.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
)

const (
	defaultModel    = "gemini-1.5-pro"
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type response struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

// Provider is the google-generate adapter.
type Provider struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewProvider constructs a google-generate adapter. The API key is sent as
// a query-string credential, per spec.md §4.1.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf(defaultEndpoint, model)
	}
	if client == nil {
		client = llmprovider.NewSharedHTTPClient()
	}
	return &Provider{APIKey: apiKey, BaseURL: baseURL, Model: model, Client: client}
}

func (p *Provider) ValidateConfig() error {
	if p.APIKey == "" {
		return fmt.Errorf("google: missing API key")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("google: missing base URL")
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
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     req.ModelParams.Temperature,
			MaxOutputTokens: req.ModelParams.MaxTokens,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("google: marshal request: %w", err)
	}

	endpoint := p.BaseURL
	if q := (url.Values{"key": {p.APIKey}}); !containsQuery(endpoint) {
		endpoint = endpoint + "?" + q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("google: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &llmprovider.HTTPStatusError{ProviderName: "Google", StatusCode: httpResp.StatusCode}
	}

	var parsed response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("google: parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("google: empty candidates in response")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	promptTokens := parsed.UsageMetadata.PromptTokenCount
	completionTokens := parsed.UsageMetadata.CandidatesTokenCount
	metadata := map[string]interface{}{}
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = llmprovider.EstimateTokens(prompt)
		completionTokens = llmprovider.EstimateTokens(text)
		metadata["token_estimate"] = true
	}

	return &models.LLMResponse{
		RequestID:        req.ID,
		ProviderID:       "google",
		ProviderName:     "Google",
		Content:          text,
		FinishReason:     parsed.Candidates[0].FinishReason,
		TokensUsed:       promptTokens + completionTokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Metadata:         metadata,
	}, nil
}

func containsQuery(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.RawQuery != ""
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
