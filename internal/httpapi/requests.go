package httpapi

import (
	"fmt"

	"dev.consensus.engine/internal/models"
)

// consensusRequestBody is the wire shape of POST /consensus and each entry
// of POST /consensus/batch, per spec.md §6. Unknown fields are rejected by
// gin.EnableJsonDecoderDisallowUnknownFields(), enabled process-wide in
// router.go's init().
type consensusRequestBody struct {
	Question             string                 `json:"question" binding:"required"`
	Method               models.Method          `json:"method"`
	Models               []string               `json:"models"`
	MaxModels            int                    `json:"max_models"`
	Temperature          *float64               `json:"temperature"`
	Weights              []float64              `json:"weights"`
	EnableCaching        *bool                  `json:"enable_caching"`
	EnableChainOfThought bool                   `json:"enable_chain_of_thought"`
	ReasoningMethod      models.ReasoningMethod `json:"reasoning_method"`
	ChainDepth           *int                   `json:"chain_depth"`
	Roles                []string               `json:"roles"`
}

const (
	maxQuestionLen  = 5000
	minModelsCount  = 2
	maxModelsCount  = 10
	maxChainDepth   = 5
	maxBatchEntries = 50
)

// toDomain validates body against spec.md §6's field constraints and
// resolves defaults, returning a normalised models.ConsensusRequest or the
// first validation error encountered.
func (b *consensusRequestBody) toDomain(defaultModels []string) (*models.ConsensusRequest, error) {
	if len(b.Question) == 0 || len(b.Question) > maxQuestionLen {
		return nil, fmt.Errorf("question must be 1..%d characters", maxQuestionLen)
	}

	method := b.Method
	if method == "" {
		method = models.MethodExpertRoles
	}
	switch method {
	case models.MethodExpertRoles, models.MethodDirectConsensus, models.MethodDebate, models.MethodChain:
	default:
		return nil, fmt.Errorf("method must be one of expert_roles, direct_consensus, debate, chain")
	}

	selected := b.Models
	if len(selected) == 0 {
		selected = defaultModels
	}

	maxModels := b.MaxModels
	if maxModels == 0 {
		maxModels = 5
	}
	if maxModels < minModelsCount || maxModels > maxModelsCount {
		return nil, fmt.Errorf("max_models must be %d..%d", minModelsCount, maxModelsCount)
	}
	if len(selected) > maxModels {
		selected = selected[:maxModels]
	}
	if len(selected) < minModelsCount {
		return nil, fmt.Errorf("at least %d models are required", minModelsCount)
	}

	temperature := 0.7
	if b.Temperature != nil {
		temperature = *b.Temperature
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("temperature must be 0..2")
	}

	if len(b.Weights) > 0 && len(b.Weights) != len(selected) {
		return nil, fmt.Errorf("weights length must equal the number of models")
	}
	for _, w := range b.Weights {
		if w <= 0 {
			return nil, fmt.Errorf("weights must be > 0")
		}
	}

	enableCaching := true
	if b.EnableCaching != nil {
		enableCaching = *b.EnableCaching
	}

	reasoningMethod := b.ReasoningMethod
	if reasoningMethod == "" {
		reasoningMethod = models.ReasoningChainOfThought
	}
	switch reasoningMethod {
	case models.ReasoningChainOfThought, models.ReasoningSocraticMethod, models.ReasoningMultiPerspective:
	default:
		return nil, fmt.Errorf("reasoning_method must be one of chain_of_thought, socratic_method, multi_perspective")
	}

	chainDepth := 2
	if b.ChainDepth != nil {
		chainDepth = *b.ChainDepth
	}
	if chainDepth < 0 || chainDepth > maxChainDepth {
		return nil, fmt.Errorf("chain_depth must be 0..%d", maxChainDepth)
	}

	return &models.ConsensusRequest{
		Question:             b.Question,
		Roles:                b.Roles,
		SelectedModelIDs:     selected,
		Method:               method,
		Temperature:          temperature,
		Weights:              b.Weights,
		ChainDepth:           chainDepth,
		EnableChainOfThought: b.EnableChainOfThought,
		ReasoningMethod:      reasoningMethod,
		EnableCaching:        enableCaching,
		MaxModels:            maxModels,
	}, nil
}

// batchRequestBody is the wire shape of POST /consensus/batch.
type batchRequestBody struct {
	Queries []consensusRequestBody `json:"queries" binding:"required"`
}

// feedbackRequestBody is the wire shape of POST /feedback.
type feedbackRequestBody struct {
	ConsensusID string `json:"consensus_id" binding:"required"`
	Rating      int    `json:"rating" binding:"required"`
	Comment     string `json:"comment"`
}

func (b *feedbackRequestBody) validate() error {
	if b.Rating < 1 || b.Rating > 5 {
		return fmt.Errorf("rating must be 1..5")
	}
	if b.ConsensusID == "" {
		return fmt.Errorf("consensus_id is required")
	}
	return nil
}
