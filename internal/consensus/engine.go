package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"dev.consensus.engine/internal/cache"
	"dev.consensus.engine/internal/embedding"
	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/models"
	"dev.consensus.engine/internal/observability"
)

// Embedder is the subset of C2 the engine depends on, narrowed to what
// scoring needs so tests can substitute a stub.
type Embedder interface {
	Embed(text string) []float32
}

// AnalyticsSink is the subset of C6 the engine depends on: a non-blocking
// record call (spec.md §4.5 step 9, §4.6).
type AnalyticsSink interface {
	Record(record models.QueryAnalyticsRecord)
}

// Clock abstracts "now" so deadline-dependent tests do not depend on wall
// time passing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config controls the tunables spec.md §4.5/§6 name for the algorithm.
type Config struct {
	RequestTimeout        time.Duration
	MinSuccess            int
	LowConsensusThreshold float64
	CacheTTL              time.Duration
	EmbeddingTTL          time.Duration
}

// DefaultConfig matches spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:        30 * time.Second,
		MinSuccess:            2,
		LowConsensusThreshold: 0.85,
		CacheTTL:              time.Hour,
		EmbeddingTTL:          24 * time.Hour,
	}
}

// Engine is C5: it owns no state across requests beyond its injected
// collaborators, per spec.md §9's "explicit dependency injection" redesign
// of the teacher's ambient-singleton pattern.
type Engine struct {
	directory   *Directory
	embedder    Embedder
	cache       cache.ConsensusCache
	analytics   AnalyticsSink
	clock       Clock
	cfg         Config
	retryConfig llmprovider.RetryConfig
	inflight    singleflight.Group
	tracer      *observability.Tracer
}

// NewEngine constructs the consensus engine from its collaborators.
func NewEngine(directory *Directory, embedder Embedder, resultCache cache.ConsensusCache, analytics AnalyticsSink, cfg Config, retryConfig llmprovider.RetryConfig) *Engine {
	return &Engine{
		directory:   directory,
		embedder:    embedder,
		cache:       resultCache,
		analytics:   analytics,
		clock:       systemClock{},
		cfg:         cfg,
		retryConfig: retryConfig,
		tracer:      observability.NewTracer(nil),
	}
}

// WithTracer attaches an OpenTelemetry tracer built from
// MonitoringConfig.TracingEnabled (spec.md's domain-stack tracing
// expansion); passing nil restores the no-op default NewEngine already
// installs.
func (e *Engine) WithTracer(tracer *observability.Tracer) *Engine {
	if tracer != nil {
		e.tracer = tracer
	}
	return e
}

// Run executes the full algorithm of spec.md §4.5 for one validated request.
func (e *Engine) Run(ctx context.Context, req *models.ConsensusRequest) (*models.ConsensusResult, error) {
	start := e.clock.Now()
	fingerprint := Fingerprint(req)

	if req.EnableCaching {
		if cached, hit, err := e.cache.GetResult(ctx, fingerprint); err == nil && hit {
			result := *cached
			result.CacheHit = true
			result.TotalLatency = e.clock.Now().Sub(start)
			e.recordAnalyticsCache(fingerprint, req, &result, true, true)
			return &result, nil
		}
	}

	// spec.md §5's optional client-side coalescing: concurrent callers
	// sharing the same fingerprint (identical question/models/method/etc.)
	// ride a single fan-out-and-score execution instead of each paying the
	// full per-model request budget. Only one of the coalesced callers'
	// analytics records gets written, since they share one ConsensusResult.
	v, err, _ := e.inflight.Do(fingerprint, func() (interface{}, error) {
		return e.runUncached(ctx, fingerprint, req, start)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ConsensusResult), nil
}

// runUncached performs the fan-out-through-scoring path of spec.md §4.5
// once per distinct fingerprint; Run coalesces concurrent duplicates onto
// one call via singleflight.
func (e *Engine) runUncached(ctx context.Context, fingerprint string, req *models.ConsensusRequest, start time.Time) (*models.ConsensusResult, error) {
	deadline := start.Add(e.cfg.RequestTimeout)

	fanOutCtx, fanOutSpan := e.tracer.StartFanOut(ctx, fingerprint, string(req.Method), len(req.SelectedModelIDs))
	replies := e.fanOut(fanOutCtx, req, deadline)
	fanOutSpan.End()

	successCount := 0
	for _, r := range replies {
		if r.Success {
			successCount++
		}
	}

	if successCount == 0 {
		result := &models.ConsensusResult{
			PerModel:     replies,
			MethodUsed:   req.Method,
			ModelsUsed:   req.SelectedModelIDs,
			TotalLatency: e.clock.Now().Sub(start),
		}
		e.recordAnalytics(fingerprint, req, result, false)
		return nil, e.belowMinSuccessError(deadline)
	}

	// spec.md §4.5 edge case: n=2 and one failure returns the surviving
	// reply with consensus_score=0.0 and partial=true, bypassing the
	// min_success gate (which would otherwise also reject 1-of-2).
	if len(req.SelectedModelIDs) == 2 && successCount == 1 {
		result := e.assemblePartial(req, replies, start)
		e.writeThroughAndRecord(ctx, fingerprint, req, result, start)
		return result, nil
	}

	if successCount < e.cfg.MinSuccess {
		result := &models.ConsensusResult{
			PerModel:     replies,
			MethodUsed:   req.Method,
			ModelsUsed:   req.SelectedModelIDs,
			TotalLatency: e.clock.Now().Sub(start),
		}
		e.recordAnalytics(fingerprint, req, result, false)
		return nil, e.belowMinSuccessError(deadline)
	}

	result := e.score(ctx, fingerprint, req, replies, deadline, start)
	e.writeThroughAndRecord(ctx, fingerprint, req, result, start)
	return result, nil
}

// belowMinSuccessError classifies a fewer-than-min_success fan-out outcome:
// spec.md §8 reserves deadline_exceeded/408 for the case where the shared
// deadline had already elapsed by the time the fan-out returned, versus the
// ordinary consensus_failed/422 for providers that simply errored in time.
func (e *Engine) belowMinSuccessError(deadline time.Time) *models.DomainError {
	if e.clock.Now().After(deadline) {
		return models.NewDomainError(models.ErrorDeadlineExceeded, "shared request deadline elapsed before min_success replies were collected")
	}
	return models.NewDomainError(models.ErrorConsensusFailed, "fewer than min_success replies succeeded")
}

// assemblePartial builds the n=2-one-failure result spec.md §4.5 edge
// cases mandates: the surviving reply as consensus_text, score 0.0,
// partial=true.
func (e *Engine) assemblePartial(req *models.ConsensusRequest, replies []models.ProviderReply, start time.Time) *models.ConsensusResult {
	var survivor *models.ProviderReply
	for i := range replies {
		if replies[i].Success {
			survivor = &replies[i]
			break
		}
	}
	text := ""
	if survivor != nil {
		text = survivor.Text
	}
	return &models.ConsensusResult{
		ConsensusText:  text,
		ConsensusScore: 0.0,
		PerModel:       replies,
		MethodUsed:     req.Method,
		ModelsUsed:     req.SelectedModelIDs,
		TotalLatency:   e.clock.Now().Sub(start),
		Partial:        true,
	}
}

// score runs spec.md §4.5 steps 6-8: embed, weight, pairwise-score, select
// consensus text, and optionally run the chain refinement loop.
func (e *Engine) score(ctx context.Context, fingerprint string, req *models.ConsensusRequest, replies []models.ProviderReply, deadline time.Time, start time.Time) *models.ConsensusResult {
	successCount := 0
	for _, r := range replies {
		if r.Success {
			successCount++
		}
	}
	ctx, scoringSpan := e.tracer.StartScoring(ctx, fingerprint, successCount)

	successIDs := make([]string, 0, len(replies))
	vectors := make(map[string][]float32, len(replies))
	texts := make(map[string]string, len(replies))

	var vecSlice [][]float32
	var weightSlice []float64
	var allSameText = true
	var firstText string
	first := true

	for i, r := range replies {
		if !r.Success {
			continue
		}
		vec := e.embedVia(ctx, r.Text)
		vectors[r.ModelID] = vec
		texts[r.ModelID] = r.Text
		successIDs = append(successIDs, r.ModelID)

		w := 1.0
		if len(req.Weights) == len(req.SelectedModelIDs) {
			w = req.Weights[i]
		}
		vecSlice = append(vecSlice, vec)
		weightSlice = append(weightSlice, w)

		if first {
			firstText = r.Text
			first = false
		} else if r.Text != firstText {
			allSameText = false
		}
	}

	result := scoreAgreement(vecSlice, weightSlice)
	normalizedWeights := normalizeWeights(weightSlice, len(vecSlice))

	for i, modelID := range successIDs {
		for j := range replies {
			if replies[j].ModelID == modelID {
				replies[j].Weight = normalizedWeights[i]
				replies[j].PairwiseScore = result.individual[i]
			}
		}
	}

	best := bestIndex(result.individual)
	consensusText := ""
	if best < len(successIDs) {
		consensusText = texts[successIDs[best]]
	}
	consensusScore := result.overall
	if allSameText && len(successIDs) > 0 {
		consensusScore = 1.0
	}

	adaptiveWeights := make(map[string]float64, len(successIDs))
	for i, modelID := range successIDs {
		adaptiveWeights[modelID] = result.adaptiveWeights[i]
	}

	var chainTrace []models.ChainRound
	shouldChain := !allSameText && (req.Method == models.MethodChain ||
		(req.Method != models.MethodChain && consensusScore < e.cfg.LowConsensusThreshold))
	if shouldChain && req.ChainDepth > 0 {
		weightMapNormalized := make(map[string]float64, len(successIDs))
		for i, id := range successIDs {
			weightMapNormalized[id] = normalizedWeights[i]
		}
		revisedText, revisedScore, trace := e.runChain(
			ctx, req.Question, successIDs, vectors, weightMapNormalized,
			consensusText, consensusScore, req.ChainDepth, deadline, req.Temperature,
		)
		consensusText = revisedText
		consensusScore = revisedScore
		chainTrace = trace
	}

	finalScore := clip01(consensusScore)
	observability.EndScoring(scoringSpan, finalScore, false)

	return &models.ConsensusResult{
		ConsensusText:   consensusText,
		ConsensusScore:  finalScore,
		PerModel:        replies,
		MethodUsed:      req.Method,
		ModelsUsed:      req.SelectedModelIDs,
		TotalLatency:    e.clock.Now().Sub(start),
		ChainTrace:      chainTrace,
		AdaptiveWeights: adaptiveWeights,
	}
}

// embedVia consults C3's embedding cache before calling C2 directly,
// per spec.md §4.2's cache-under emb:<sha256(text)> contract.
func (e *Engine) embedVia(ctx context.Context, text string) []float32 {
	hash := TextHash(text)
	if vec, hit, err := e.cache.GetEmbedding(ctx, hash); err == nil && hit {
		return vec
	}
	vec := e.embedder.Embed(text)
	_ = e.cache.PutEmbedding(ctx, hash, vec, e.cfg.EmbeddingTTL)
	return vec
}

func (e *Engine) writeThroughAndRecord(ctx context.Context, fingerprint string, req *models.ConsensusRequest, result *models.ConsensusResult, start time.Time) {
	if req.EnableCaching {
		_ = e.cache.PutResult(ctx, fingerprint, result, e.cfg.CacheTTL)
	}
	e.recordAnalytics(fingerprint, req, result, true)
}

func (e *Engine) recordAnalytics(fingerprint string, req *models.ConsensusRequest, result *models.ConsensusResult, success bool) {
	e.recordAnalyticsCache(fingerprint, req, result, success, false)
}

func (e *Engine) recordAnalyticsCache(fingerprint string, req *models.ConsensusRequest, result *models.ConsensusResult, success, cacheHit bool) {
	if e.analytics == nil {
		return
	}
	perModelLatency := make(map[string]time.Duration, len(result.PerModel))
	perModelAgreement := make(map[string]float64, len(result.PerModel))
	perModelCost := make(map[string]float64, len(result.PerModel))
	var totalCost float64
	for _, r := range result.PerModel {
		perModelLatency[r.ModelID] = r.Latency
		if !r.Success {
			continue
		}
		perModelAgreement[r.ModelID] = r.PairwiseScore
		cost := e.estimateCost(r.ModelID, r.PromptTokens, r.CompletionTokens)
		perModelCost[r.ModelID] = cost
		totalCost += cost
	}
	e.analytics.Record(models.QueryAnalyticsRecord{
		QueryID:           uuid.NewString(),
		Timestamp:         e.clock.Now(),
		Fingerprint:       fingerprint,
		Method:            req.Method,
		ConsensusScore:    result.ConsensusScore,
		TotalLatency:      result.TotalLatency,
		Success:           success,
		CacheHit:          cacheHit,
		PerModelLatency:   perModelLatency,
		PerModelAgreement: perModelAgreement,
		PerModelCost:      perModelCost,
		CostEstimate:      totalCost,
	})
}

// estimateCost prices a provider call from its descriptor's
// cost_per_1k_tokens against the tokens the call actually reported (spec.md
// §3's cost_estimate, §4.6's "rough cost" per model).
func (e *Engine) estimateCost(modelID string, promptTokens, completionTokens int) float64 {
	entry, ok := e.directory.Lookup(modelID)
	if !ok {
		return 0
	}
	totalTokens := float64(promptTokens + completionTokens)
	return totalTokens / 1000 * entry.Descriptor.CostPer1kTokens
}

func errUnknownModel(modelID string) error {
	return fmt.Errorf("consensus: unknown model id %q", modelID)
}

var _ Embedder = (*embedding.Service)(nil)
