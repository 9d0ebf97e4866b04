// Package models holds the data types shared across the consensus engine:
// the provider-facing chat contract (LLMRequest/LLMResponse) and the
// consensus-facing domain types (ConsensusRequest, ConsensusResult, ...).
package models

// Message is a single turn in a chat-style prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolFunction describes a callable function exposed to a model.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// Tool wraps a ToolFunction in the shape providers expect on the wire.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolCall is a function invocation requested by a model reply.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the name and raw argument payload of a ToolCall.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ModelParameters are the sampling knobs forwarded to a provider.
type ModelParameters struct {
	Temperature   float64  `json:"temperature"`
	MaxTokens     int      `json:"max_tokens"`
	TopP          float64  `json:"top_p,omitempty"`
	StopSequences []string `json:"stop,omitempty"`
}

// LLMRequest is the canonical chat request handed to a provider adapter.
type LLMRequest struct {
	ID          string          `json:"id"`
	Prompt      string          `json:"prompt,omitempty"`
	Messages    []Message       `json:"messages"`
	Tools       []Tool          `json:"tools,omitempty"`
	ModelParams ModelParameters `json:"model_params"`
}

// LLMResponse is the canonical chat reply an adapter parses a vendor payload into.
type LLMResponse struct {
	ID               string                 `json:"id"`
	RequestID        string                 `json:"request_id"`
	ProviderID       string                 `json:"provider_id"`
	ProviderName     string                 `json:"provider_name"`
	Content          string                 `json:"content"`
	FinishReason     string                 `json:"finish_reason,omitempty"`
	TokensUsed       int                    `json:"tokens_used"`
	PromptTokens     int                    `json:"prompt_tokens,omitempty"`
	CompletionTokens int                    `json:"completion_tokens,omitempty"`
	Confidence       float64                `json:"confidence,omitempty"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ModelLimits describes the hard limits a provider enforces for a model.
type ModelLimits struct {
	MaxTokens             int `json:"max_tokens"`
	MaxInputLength        int `json:"max_input_length"`
	MaxOutputLength       int `json:"max_output_length"`
	MaxConcurrentRequests int `json:"max_concurrent_requests"`
}

// ProviderCapabilities advertises what a provider adapter supports.
type ProviderCapabilities struct {
	SupportedModels         []string          `json:"supported_models,omitempty"`
	SupportedFeatures       []string          `json:"supported_features,omitempty"`
	SupportedRequestTypes   []string          `json:"supported_request_types,omitempty"`
	SupportsStreaming       bool              `json:"supports_streaming"`
	SupportsFunctionCalling bool              `json:"supports_function_calling"`
	SupportsVision          bool              `json:"supports_vision"`
	SupportsTools           bool              `json:"supports_tools"`
	SupportsSearch          bool              `json:"supports_search"`
	SupportsReasoning       bool              `json:"supports_reasoning"`
	SupportsCodeCompletion  bool              `json:"supports_code_completion"`
	SupportsCodeAnalysis    bool              `json:"supports_code_analysis"`
	SupportsRefactoring     bool              `json:"supports_refactoring"`
	Limits                  ModelLimits       `json:"limits"`
	Metadata                map[string]string `json:"metadata,omitempty"`
}
