package models

import "time"

// ProviderKind is the closed set of vendor wire contracts a ModelDescriptor
// can select. New vendors require a new adapter package plus a new constant.
type ProviderKind string

const (
	ProviderOpenAIChat         ProviderKind = "openai-chat"
	ProviderAnthropicMessages  ProviderKind = "anthropic-messages"
	ProviderGoogleGenerate     ProviderKind = "google-generate"
	ProviderCohereGenerate     ProviderKind = "cohere-generate"
	ProviderZhipuChat          ProviderKind = "zhipu-chat"
	ProviderBaiduErnie         ProviderKind = "baidu-ernie"
	ProviderMoonshotChat       ProviderKind = "moonshot-chat"
	ProviderMistralChat        ProviderKind = "mistral-chat"
)

// ModelDescriptor is an immutable configuration entry loaded at startup.
type ModelDescriptor struct {
	ID                 string       `yaml:"-" json:"id"`
	ProviderKind       ProviderKind `yaml:"provider_kind" json:"provider_kind"`
	EndpointURL        string       `yaml:"endpoint" json:"endpoint_url"`
	ModelName          string       `yaml:"model_name" json:"model_name"`
	CredentialRef      string       `yaml:"credential_ref" json:"credential_ref"`
	MaxTokens          int          `yaml:"max_tokens" json:"max_tokens"`
	DefaultTemperature float64      `yaml:"temperature" json:"default_temperature"`
	Enabled            bool         `yaml:"enabled" json:"enabled"`
	CostPer1kTokens    float64      `yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens"`
	DisplayName        string       `yaml:"display_name" json:"display_name"`
	Specialties        []string     `yaml:"specialties,omitempty" json:"specialties,omitempty"`
}

// Method is the consensus strategy requested by the caller.
type Method string

const (
	MethodExpertRoles     Method = "expert_roles"
	MethodDirectConsensus Method = "direct_consensus"
	MethodDebate          Method = "debate"
	MethodChain           Method = "chain"
)

// ReasoningMethod selects the chain-of-thought prompt template.
type ReasoningMethod string

const (
	ReasoningChainOfThought  ReasoningMethod = "chain_of_thought"
	ReasoningSocraticMethod  ReasoningMethod = "socratic_method"
	ReasoningMultiPerspective ReasoningMethod = "multi_perspective"
)

// ConsensusRequest is the normalised input after validation.
type ConsensusRequest struct {
	Question             string          `json:"question"`
	Roles                 []string        `json:"roles,omitempty"`
	SelectedModelIDs      []string        `json:"selected_model_ids"`
	Method                Method          `json:"method"`
	Temperature           float64         `json:"temperature"`
	Weights               []float64       `json:"weights,omitempty"`
	ChainDepth            int             `json:"chain_depth"`
	EnableChainOfThought  bool            `json:"enable_chain_of_thought"`
	ReasoningMethod       ReasoningMethod `json:"reasoning_method,omitempty"`
	EnableCaching         bool            `json:"enable_caching"`
	MaxModels             int             `json:"max_models"`
}

// ProviderCall is a single unit of work dispatched to one C1 adapter.
type ProviderCall struct {
	ModelID  string    `json:"model_id"`
	Prompt   string    `json:"prompt"`
	Deadline time.Time `json:"deadline"`
	Attempt  int       `json:"attempt"`
}

// ErrorKind is the closed enum of failure categories carried on every
// ProviderReply and propagated internally; only C7 translates it to HTTP.
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorInvalidRequest     ErrorKind = "invalid_request"
	ErrorUnauthorized       ErrorKind = "unauthorized"
	ErrorForbidden          ErrorKind = "forbidden"
	ErrorRateLimited        ErrorKind = "rate_limited"
	ErrorProviderTimeout    ErrorKind = "provider_timeout"
	ErrorProviderHTTPError  ErrorKind = "provider_http_error"
	ErrorProviderParseError ErrorKind = "provider_parse_error"
	ErrorCanceled           ErrorKind = "canceled"
	ErrorDeadlineExceeded   ErrorKind = "deadline_exceeded"
	ErrorConsensusFailed    ErrorKind = "consensus_failed"
	ErrorOverloaded         ErrorKind = "overloaded"
	ErrorInternal           ErrorKind = "internal_error"
)

// TransientKinds are error kinds worth retrying within the shared deadline.
var TransientKinds = map[ErrorKind]bool{
	ErrorRateLimited:       true,
	ErrorProviderTimeout:   true,
	ErrorProviderHTTPError: true,
}

// ProviderReply is the canonical vendor response, enriched by the consensus
// engine with weight and pairwise_score before it is returned to the caller.
type ProviderReply struct {
	ModelID          string                 `json:"model_id"`
	Text             string                 `json:"text"`
	Success          bool                   `json:"success"`
	ErrorKind        ErrorKind              `json:"error_kind,omitempty"`
	Latency          time.Duration          `json:"latency"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	RawConfidence    float64                `json:"raw_confidence"`
	Weight           float64                `json:"weight,omitempty"`
	PairwiseScore    float64                `json:"pairwise_score,omitempty"`
	QualityMetrics   map[string]interface{} `json:"quality_metrics,omitempty"`
}

// ChainRound records one critique-and-revise iteration of the refinement loop.
type ChainRound struct {
	Round       int     `json:"round"`
	CriticID    string  `json:"critic_id"`
	Critique    string  `json:"critique"`
	ReviserID   string  `json:"reviser_id"`
	RevisedText string  `json:"revised_text"`
	NewScore    float64 `json:"new_score"`
}

// ConsensusResult is the artifact returned to the caller and written to C3.
type ConsensusResult struct {
	ConsensusText   string                 `json:"consensus_text"`
	ConsensusScore  float64                `json:"consensus_score"`
	PerModel        []ProviderReply        `json:"per_model"`
	MethodUsed      Method                 `json:"method_used"`
	ModelsUsed      []string               `json:"models_used"`
	CacheHit        bool                   `json:"cache_hit"`
	TotalLatency    time.Duration          `json:"total_latency"`
	ChainTrace      []ChainRound           `json:"chain_trace,omitempty"`
	QualityMetrics  map[string]interface{} `json:"quality_metrics,omitempty"`
	Partial         bool                   `json:"partial,omitempty"`
	AdaptiveWeights map[string]float64     `json:"adaptive_weights,omitempty"`
}

// QueryAnalyticsRecord is one row recorded per completed query, fire-and-forget.
type QueryAnalyticsRecord struct {
	QueryID           string                   `json:"query_id"`
	Timestamp         time.Time                `json:"timestamp"`
	Fingerprint       string                   `json:"fingerprint"`
	Method            Method                   `json:"method"`
	ConsensusScore    float64                  `json:"consensus_score"`
	TotalLatency      time.Duration            `json:"total_latency"`
	Success           bool                     `json:"success"`
	CacheHit          bool                     `json:"cache_hit"`
	PerModelLatency   map[string]time.Duration `json:"per_model_latency,omitempty"`
	PerModelAgreement map[string]float64       `json:"per_model_agreement,omitempty"`
	PerModelCost      map[string]float64       `json:"per_model_cost,omitempty"`
	CostEstimate      float64                  `json:"cost_estimate"`
}

// Feedback is a user rating tied to a past consensus result (write-only into
// analytics; spec.md §9 resolves that it has no runtime effect on scoring).
type Feedback struct {
	ConsensusID string    `json:"consensus_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
