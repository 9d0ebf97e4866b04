package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.consensus.engine/internal/analytics"
	"dev.consensus.engine/internal/cache"
	"dev.consensus.engine/internal/config"
	"dev.consensus.engine/internal/consensus"
	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
	"dev.consensus.engine/internal/ratelimit"
)

type stubProvider struct {
	reply string
}

func (p *stubProvider) Complete(ctx context.Context, req *models.LLMRequest) (*models.LLMResponse, error) {
	return &models.LLMResponse{Content: p.reply, PromptTokens: 3, CompletionTokens: 3}, nil
}
func (p *stubProvider) HealthCheck(ctx context.Context) error { return nil }
func (p *stubProvider) GetCapabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{}
}
func (p *stubProvider) ValidateConfig() error { return nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(text string) []float32 { return []float32{1, 0, 0, 0} }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	entries := map[string]consensus.Entry{
		"m1": {Descriptor: &models.ModelDescriptor{ID: "m1", Enabled: true, ProviderKind: models.ProviderOpenAIChat}, Provider: &stubProvider{reply: "4"}},
		"m2": {Descriptor: &models.ModelDescriptor{ID: "m2", Enabled: true, ProviderKind: models.ProviderOpenAIChat}, Provider: &stubProvider{reply: "4"}},
	}
	dir := consensus.NewDirectory(entries)
	sink := analytics.NewSink(100, newDiscardLogger(), nil)
	eng := consensus.NewEngine(dir, stubEmbedder{}, cache.NewNullCache(), sink, consensus.DefaultConfig(), llmprovider.DefaultRetryConfig())

	cfg := &config.Config{
		Server: config.ServerConfig{
			Mode:           "test",
			BackendAPIKeys: []string{"test-key"},
		},
		RateLimit: config.RateLimitConfig{ConsensusPerMinute: 60, BatchPerMinute: 12, ReadOnlyPerMinute: 300},
		Monitoring: config.MonitoringConfig{
			Prometheus: config.PrometheusConfig{Enabled: false},
		},
	}
	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	return NewServer(eng, dir, sink, cache.NewNullCache(), limiter, cfg, []string{"m1", "m2"}, newDiscardLogger())
}

func postJSON(r http.Handler, path, token string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleConsensus_HappyPath(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/consensus", "test-key", map[string]interface{}{
		"question": "What is 2+2?",
		"models":   []string{"m1", "m2"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var result models.ConsensusResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "4", result.ConsensusText)
}

func TestHandleConsensus_UnknownFieldRejected(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/consensus", "test-key", map[string]interface{}{
		"question":    "What is 2+2?",
		"models":      []string{"m1", "m2"},
		"not_a_field": true,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleConsensus_MissingAuthRejected(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/consensus", "", map[string]interface{}{"question": "hi", "models": []string{"m1", "m2"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleConsensus_InvalidQuestionRejected(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/consensus", "test-key", map[string]interface{}{"question": "", "models": []string{"m1", "m2"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope models.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, string(models.ErrorInvalidRequest), envelope.ErrorCode)
}

func TestHandleConsensusBatch_MixedOutcomes(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/consensus/batch", "test-key", map[string]interface{}{
		"queries": []map[string]interface{}{
			{"question": "What is 2+2?", "models": []string{"m1", "m2"}},
			{"question": ""},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(1), summary["successful"])
	assert.Equal(t, float64(1), summary["failed"])
}

func TestHandleModels_ListsDescriptors(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["models"], 2)
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleFeedback_ValidatesRating(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	w := postJSON(router, "/feedback", "test-key", map[string]interface{}{"consensus_id": "abc", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/feedback", "test-key", map[string]interface{}{"consensus_id": "abc", "rating": 5})
	assert.Equal(t, http.StatusOK, w.Code)
}
