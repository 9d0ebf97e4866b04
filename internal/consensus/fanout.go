package consensus

import (
	"context"
	"sync"
	"time"

	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
	"dev.consensus.engine/internal/observability"
)

// fanOut dispatches one ProviderCall per selected model in parallel, each
// against a shared deadline, with per-call retry/backoff on transient
// failures (spec.md §4.5 steps 3-4). Results are written into a
// pre-allocated slice by index so the caller's per_model order matches
// selected_model_ids regardless of completion order (spec.md §5 ordering
// guarantee), mirroring the kube-zen-zen-claw engine's indexed
// results-slice + sync.WaitGroup fan-out shape.
func (e *Engine) fanOut(ctx context.Context, req *models.ConsensusRequest, deadline time.Time) []models.ProviderReply {
	n := len(req.SelectedModelIDs)
	replies := make([]models.ProviderReply, n)

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var wg sync.WaitGroup
	for i, modelID := range req.SelectedModelIDs {
		wg.Add(1)
		go func(idx int, modelID string) {
			defer wg.Done()
			replies[idx] = e.invokeWithRetry(ctx, modelID, renderPrompt(req, idx), req.Temperature, deadline)
		}(i, modelID)
	}
	wg.Wait()

	return replies
}

// invokeWithRetry calls one model's adapter, re-queuing up to
// llm.MaxRetries times with jittered exponential backoff when the failure
// kind is transient and the shared deadline has not expired (spec.md §4.5
// step 4). The adapter itself never retries.
func (e *Engine) invokeWithRetry(ctx context.Context, modelID, prompt string, temperature float64, deadline time.Time) models.ProviderReply {
	entry, ok := e.directory.Lookup(modelID)
	if !ok {
		return models.ProviderReply{
			ModelID:   modelID,
			Success:   false,
			ErrorKind: models.ErrorInvalidRequest,
		}
	}

	maxTokens := entry.Descriptor.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	llmReq := &models.LLMRequest{
		ID:       modelID,
		Messages: []models.Message{{Role: "user", Content: prompt}},
		Prompt:   prompt,
		ModelParams: models.ModelParameters{
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
	}

	var lastErr error
	var lastResp *models.LLMResponse
	start := e.clock.Now()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return models.ProviderReply{
				ModelID:   modelID,
				Success:   false,
				ErrorKind: models.ErrorCanceled,
				Latency:   e.clock.Now().Sub(start),
			}
		}

		callCtx, callSpan := e.tracer.StartProviderCall(ctx, modelID, attempt)
		callStart := e.clock.Now()
		resp, err := entry.Provider.Complete(callCtx, llmReq)
		latency := e.clock.Now().Sub(callStart)

		if err == nil {
			observability.EndProviderCall(callSpan, true, "", latency)
			return toReply(modelID, resp, e.clock.Now().Sub(start))
		}

		lastErr = err
		lastResp = resp
		observability.EndProviderCall(callSpan, false, string(llmprovider.ErrorKindFor(err)), latency)

		kind := llmprovider.ErrorKindFor(err)
		transient := models.TransientKinds[kind] && llmprovider.IsRetryableError(err)
		if !transient || attempt > e.retryConfig.MaxRetries {
			break
		}

		backoff := e.retryConfig.BackoffDelay(attempt)
		remaining := deadline.Sub(e.clock.Now())
		if backoff >= remaining {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return models.ProviderReply{
				ModelID:   modelID,
				Success:   false,
				ErrorKind: models.ErrorCanceled,
				Latency:   e.clock.Now().Sub(start),
			}
		}
	}

	_ = lastResp
	return models.ProviderReply{
		ModelID:   modelID,
		Success:   false,
		ErrorKind: llmprovider.ErrorKindFor(lastErr),
		Latency:   e.clock.Now().Sub(start),
	}
}

func toReply(modelID string, resp *models.LLMResponse, latency time.Duration) models.ProviderReply {
	confidence := 0.5
	quality := map[string]interface{}{}
	if resp.Metadata != nil {
		if v, ok := resp.Metadata["token_estimate"]; ok {
			quality["token_estimate"] = v
		}
	}
	return models.ProviderReply{
		ModelID:          modelID,
		Text:             resp.Content,
		Success:          true,
		Latency:          latency,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		RawConfidence:    confidence,
		QualityMetrics:   quality,
	}
}
