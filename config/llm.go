package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robert-ris/prompts-generator-sub001/internal/factory"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

// llmFile is the YAML shape of the provider topology. Durations are plain
// strings ("30s") so the file stays hand-editable.
type llmFile struct {
	DefaultProvider  string        `yaml:"default_provider"`
	FallbackProvider string        `yaml:"fallback_provider"`
	Strategy         string        `yaml:"strategy"`
	CostOptimized    bool          `yaml:"cost_optimized"`
	Providers        []llmProvider `yaml:"providers"`
}

type llmProvider struct {
	Name       string                 `yaml:"name"`
	Type       string                 `yaml:"type"`
	APIKeyEnv  string                 `yaml:"api_key_env"`
	BaseURL    string                 `yaml:"base_url"`
	Timeout    string                 `yaml:"timeout"`
	MaxRetries int                    `yaml:"max_retries"`
	Priority   int                    `yaml:"priority"`
	Enabled    bool                   `yaml:"enabled"`
	Models     []provider.ModelConfig `yaml:"models"`
}

// LoadLLM reads the provider topology from path. A missing file is not an
// error; the built-in default fleet is returned instead.
func LoadLLM(path string) (factory.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultLLM(), nil
		}
		return factory.Config{}, fmt.Errorf("failed to read llm config %q: %w", path, err)
	}

	var file llmFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return factory.Config{}, fmt.Errorf("failed to parse llm config %q: %w", path, err)
	}

	cfg := factory.Config{
		DefaultProvider:  file.DefaultProvider,
		FallbackProvider: file.FallbackProvider,
		Strategy:         file.Strategy,
		CostOptimized:    file.CostOptimized,
	}

	for _, p := range file.Providers {
		timeout := 30 * time.Second
		if p.Timeout != "" {
			timeout, err = time.ParseDuration(p.Timeout)
			if err != nil {
				return factory.Config{}, fmt.Errorf("provider %q: invalid timeout %q: %w", p.Name, p.Timeout, err)
			}
		}
		models := p.Models
		for i := range models {
			models[i].Provider = p.Name
		}
		cfg.Providers = append(cfg.Providers, provider.ProviderConfig{
			Name:       p.Name,
			Type:       p.Type,
			APIKeyEnv:  p.APIKeyEnv,
			BaseURL:    p.BaseURL,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
			Priority:   p.Priority,
			Enabled:    p.Enabled,
			Models:     models,
		})
	}

	return cfg, nil
}

// DefaultLLM is the fleet used when no topology file is deployed: both
// hosted vendors plus the offline mock, cost-optimized with the mock as the
// always-available fallback for local development.
func DefaultLLM() factory.Config {
	return factory.Config{
		DefaultProvider:  "openai",
		FallbackProvider: "anthropic",
		Strategy:         "cheapest",
		CostOptimized:    true,
		Providers: []provider.ProviderConfig{
			{
				Name:       "openai",
				APIKeyEnv:  "OPENAI_API_KEY",
				Timeout:    30 * time.Second,
				MaxRetries: 2,
				Priority:   1,
				Enabled:    true,
				Models: []provider.ModelConfig{
					{
						Name:            "gpt-4o-mini",
						Provider:        "openai",
						MaxTokens:       4096,
						InputCostPer1K:  0.015,
						OutputCostPer1K: 0.06,
						ContextWindow:   128000,
						Capabilities:    []provider.Complexity{provider.ComplexityLow, provider.ComplexityMedium},
						RecommendedFor: []provider.Operation{
							provider.OpPromptImprove,
							provider.OpPromptGenerate,
							provider.OpContentSummarize,
							provider.OpTranslation,
						},
					},
					{
						Name:            "gpt-4o",
						Provider:        "openai",
						MaxTokens:       4096,
						InputCostPer1K:  0.25,
						OutputCostPer1K: 1.0,
						ContextWindow:   128000,
						Capabilities:    []provider.Complexity{provider.ComplexityMedium, provider.ComplexityHigh},
						RecommendedFor: []provider.Operation{
							provider.OpCodeReview,
							provider.OpAnalysis,
							provider.OpContentExpand,
						},
					},
				},
			},
			{
				Name:       "anthropic",
				APIKeyEnv:  "ANTHROPIC_API_KEY",
				Timeout:    30 * time.Second,
				MaxRetries: 2,
				Priority:   2,
				Enabled:    true,
				Models: []provider.ModelConfig{
					{
						Name:            "claude-3-5-haiku-20241022",
						Provider:        "anthropic",
						MaxTokens:       4096,
						InputCostPer1K:  0.08,
						OutputCostPer1K: 0.4,
						ContextWindow:   200000,
						Capabilities:    []provider.Complexity{provider.ComplexityLow, provider.ComplexityMedium},
						RecommendedFor: []provider.Operation{
							provider.OpPromptImprove,
							provider.OpPromptGenerate,
							provider.OpContentSummarize,
							provider.OpTranslation,
						},
					},
					{
						Name:            "claude-3-5-sonnet-20241022",
						Provider:        "anthropic",
						MaxTokens:       8192,
						InputCostPer1K:  0.3,
						OutputCostPer1K: 1.5,
						ContextWindow:   200000,
						Capabilities:    []provider.Complexity{provider.ComplexityMedium, provider.ComplexityHigh},
						RecommendedFor: []provider.Operation{
							provider.OpCodeReview,
							provider.OpAnalysis,
							provider.OpContentExpand,
						},
					},
				},
			},
			{
				Name:       "mockai",
				Timeout:    5 * time.Second,
				MaxRetries: 0,
				Priority:   9,
				Enabled:    false,
				Models: []provider.ModelConfig{
					{
						Name:           "mock-small",
						Provider:       "mockai",
						MaxTokens:      2048,
						ContextWindow:  32000,
						Capabilities:   []provider.Complexity{provider.ComplexityLow},
						RecommendedFor: provider.Operations,
					},
				},
			},
		},
	}
}
