// Package baidu adapts the baidu-ernie provider_kind per spec.md §4.1: a
// two-step call — exchange API key + secret for an access_token at the
// OAuth endpoint (cached 30 minutes), then POST {messages:[...]} with the
// token in the query string, extracting result.
package baidu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
)

const (
	defaultModel     = "ernie-4.0"
	defaultOAuthURL  = "https://aip.baidubce.com/oauth/2.0/token"
	defaultChatURL   = "https://aip.baidubce.com/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/completions_pro"
	tokenTTL         = 30 * time.Minute
)

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID           string `json:"id"`
	Result       string `json:"result"`
	UsageMetrics struct {
		PromptTokens   int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Provider is the baidu-ernie adapter. It caches the OAuth access_token
// across calls, re-exchanging it once the 30-minute TTL lapses.
type Provider struct {
	APIKey    string
	SecretKey string
	BaseURL   string // chat completions endpoint
	OAuthURL  string
	Model     string
	Client    *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewProvider constructs a baidu-ernie adapter. apiKey carries
// "key:secret" — the descriptor's single credential_ref resolves to both
// halves joined by a colon, matching the teacher's single-env-var-per-model
// convention.
func NewProvider(apiKey, baseURL, model string, client *http.Client) *Provider {
	if baseURL == "" {
		baseURL = defaultChatURL
	}
	if model == "" {
		model = defaultModel
	}
	if client == nil {
		client = llmprovider.NewSharedHTTPClient()
	}
	key, secret := splitCredential(apiKey)
	return &Provider{
		APIKey:    key,
		SecretKey: secret,
		BaseURL:   baseURL,
		OAuthURL:  defaultOAuthURL,
		Model:     model,
		Client:    client,
	}
}

func splitCredential(raw string) (key, secret string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return raw[:i], raw[i+1:]
		}
	}
	return raw, ""
}

func (p *Provider) ValidateConfig() error {
	if p.APIKey == "" || p.SecretKey == "" {
		return fmt.Errorf("baidu: missing API key or secret key")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("baidu: missing base URL")
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

// token returns a valid access_token, refreshing it if absent or expired.
func (p *Provider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.expiresAt) {
		return p.accessToken, nil
	}

	q := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.APIKey},
		"client_secret": {p.SecretKey},
	}
	endpoint := p.OAuthURL + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("baidu: build oauth request: %w", err)
	}

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("baidu: oauth exchange: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("baidu: read oauth response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &llmprovider.HTTPStatusError{ProviderName: "Baidu", StatusCode: httpResp.StatusCode}
	}

	var parsed oauthResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("baidu: parse oauth response: %w", err)
	}
	if parsed.Error != "" || parsed.AccessToken == "" {
		return "", fmt.Errorf("baidu: oauth exchange failed: %s", parsed.Error)
	}

	ttl := tokenTTL
	if parsed.ExpiresIn > 0 && time.Duration(parsed.ExpiresIn)*time.Second < ttl {
		ttl = time.Duration(parsed.ExpiresIn) * time.Second
	}
	p.accessToken = parsed.AccessToken
	p.expiresAt = time.Now().Add(ttl)
	return p.accessToken, nil
}

func (p *Provider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	prompt := req.Prompt
	if prompt == "" && len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	accessToken, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	body := chatRequest{
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: req.ModelParams.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("baidu: marshal request: %w", err)
	}

	endpoint := p.BaseURL + "?" + (url.Values{"access_token": {accessToken}}).Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("baidu: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("baidu: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("baidu: read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &llmprovider.HTTPStatusError{ProviderName: "Baidu", StatusCode: httpResp.StatusCode}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("baidu: parse response: %w", err)
	}
	if parsed.ErrorCode != 0 {
		return nil, fmt.Errorf("baidu: api error %d: %s", parsed.ErrorCode, parsed.ErrorMsg)
	}

	promptTokens := parsed.UsageMetrics.PromptTokens
	completionTokens := parsed.UsageMetrics.CompletionTokens
	metadata := map[string]interface{}{}
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = llmprovider.EstimateTokens(prompt)
		completionTokens = llmprovider.EstimateTokens(parsed.Result)
		metadata["token_estimate"] = true
	}

	return &models.LLMResponse{
		ID:               parsed.ID,
		RequestID:        req.ID,
		ProviderID:       "baidu",
		ProviderName:     "Baidu",
		Content:          parsed.Result,
		TokensUsed:       promptTokens + completionTokens,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Metadata:         metadata,
	}, nil
}

var _ llmprovider.LLMProvider = (*Provider)(nil)
