package provider

import (
	"time"
)

// Operation classifies the kind of generation task so requests can be
// matched against models that are recommended for it.
type Operation string

const (
	OpPromptImprove    Operation = "prompt-improve"
	OpPromptGenerate   Operation = "prompt-generate"
	OpContentSummarize Operation = "content-summarize"
	OpContentExpand    Operation = "content-expand"
	OpCodeReview       Operation = "code-review"
	OpTranslation      Operation = "translation"
	OpAnalysis         Operation = "analysis"
)

// Operations lists every known operation tag.
var Operations = []Operation{
	OpPromptImprove,
	OpPromptGenerate,
	OpContentSummarize,
	OpContentExpand,
	OpCodeReview,
	OpTranslation,
	OpAnalysis,
}

// Valid reports whether op is one of the known operation tags.
// The empty operation is valid and means "any model will do".
func (op Operation) Valid() bool {
	if op == "" {
		return true
	}
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Complexity is a model capability tag.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

type GenerationRequest struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	UserPrompt   string    `json:"user_prompt"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
	Model        string    `json:"model,omitempty"`
	Operation    Operation `json:"operation,omitempty"`
}

// Validate checks the request invariants before any provider is selected.
func (r *GenerationRequest) Validate() error {
	if r == nil || r.UserPrompt == "" {
		return &Error{Kind: KindInvalidRequest, Message: "user prompt must not be empty"}
	}
	if !r.Operation.Valid() {
		return &Error{Kind: KindInvalidRequest, Message: "unknown operation tag: " + string(r.Operation)}
	}
	return nil
}

// TokenUsage tracks token consumption and cost for a single attempt.
// TotalTokens is always derived from the input and output counts.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostCents    float64 `json:"cost_cents"`
}

// NewTokenUsage builds a TokenUsage with the total enforced.
func NewTokenUsage(input, output int, costCents float64) TokenUsage {
	if costCents < 0 {
		costCents = 0
	}
	return TokenUsage{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
		CostCents:    costCents,
	}
}

type GenerationResponse struct {
	Text           string     `json:"text"`
	Usage          TokenUsage `json:"usage"`
	Provider       string     `json:"provider"`
	Model          string     `json:"model"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	// Warning flags degraded states that are not failures, e.g. cost
	// computed from fallback pricing because the model was unknown.
	Warning string `json:"warning,omitempty"`
}

type ModelConfig struct {
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
	// MaxTokens is the default output token cap when the request does not set one.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Costs are fractional cents per 1K tokens.
	InputCostPer1K  float64      `json:"input_cost_per_1k" yaml:"input_cost_per_1k"`
	OutputCostPer1K float64      `json:"output_cost_per_1k" yaml:"output_cost_per_1k"`
	ContextWindow   int          `json:"context_window" yaml:"context_window"`
	Capabilities    []Complexity `json:"capabilities" yaml:"capabilities"`
	RecommendedFor  []Operation  `json:"recommended_for" yaml:"recommended_for"`
}

// Recommends reports whether the model is recommended for the operation.
// An empty operation matches every model.
func (m ModelConfig) Recommends(op Operation) bool {
	if op == "" {
		return true
	}
	for _, o := range m.RecommendedFor {
		if o == op {
			return true
		}
	}
	return false
}

type ProviderConfig struct {
	Name string `json:"name"`
	// Type selects the adapter (openai, anthropic, gemini, mockai).
	// Empty type is inferred from the name.
	Type string `json:"type,omitempty"`
	// APIKeyEnv names the environment variable holding the credential.
	// The key itself is never part of the configuration.
	APIKeyEnv string `json:"api_key_env,omitempty"`
	// BaseURL overrides the vendor endpoint, used by tests and self-hosted gateways.
	BaseURL    string        `json:"base_url,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	Models     []ModelConfig `json:"models"`
	// Priority orders providers, lower is preferred.
	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`
}

// ResolveModel picks the model for a request: the explicit model name if set,
// otherwise the first model recommended for the request operation, otherwise
// the provider's first configured model.
func (c ProviderConfig) ResolveModel(req *GenerationRequest) (ModelConfig, bool) {
	if len(c.Models) == 0 {
		return ModelConfig{}, false
	}
	if req != nil && req.Model != "" {
		for _, m := range c.Models {
			if m.Name == req.Model {
				return m, true
			}
		}
		// Unknown model name: the caller asked for it explicitly, honor it
		// and let cost computation fall back to the cheapest rates.
		unknown := c.Models[0]
		unknown.Name = req.Model
		return unknown, true
	}
	if req != nil {
		for _, m := range c.Models {
			if m.Recommends(req.Operation) {
				return m, true
			}
		}
	}
	return c.Models[0], true
}

// SupportsOperation reports whether any configured model is recommended
// for the operation.
func (c ProviderConfig) SupportsOperation(op Operation) bool {
	if op == "" {
		return len(c.Models) > 0
	}
	for _, m := range c.Models {
		if m.Recommends(op) {
			return true
		}
	}
	return false
}

// CheapestModel returns the configured model with the lowest combined
// per-1K rates.
func (c ProviderConfig) CheapestModel() (ModelConfig, bool) {
	if len(c.Models) == 0 {
		return ModelConfig{}, false
	}
	best := c.Models[0]
	for _, m := range c.Models[1:] {
		if m.InputCostPer1K+m.OutputCostPer1K < best.InputCostPer1K+best.OutputCostPer1K {
			best = m
		}
	}
	return best, true
}

type HealthStatus struct {
	Provider       string    `json:"provider"`
	Healthy        bool      `json:"healthy"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	LastChecked    time.Time `json:"last_checked"`
	Error          string    `json:"error,omitempty"`
}

type ProviderStats struct {
	Provider           string    `json:"provider"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	AvgResponseTimeMs  float64   `json:"avg_response_time_ms"`
	TotalCostCents     float64   `json:"total_cost_cents"`
	LastUsed           time.Time `json:"last_used,omitempty"`
}
