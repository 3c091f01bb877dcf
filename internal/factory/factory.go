// Package factory assembles a manager.Manager from static configuration and
// exposes the two high-level prompt operations the dashboard calls.
package factory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/manager"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider/anthropic"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider/gemini"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider/mockai"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider/openai"
)

// Config is the static description of the provider fleet.
type Config struct {
	Providers        []provider.ProviderConfig
	DefaultProvider  string
	FallbackProvider string
	Strategy         string
	// CostOptimized forces the cheapest strategy regardless of Strategy.
	CostOptimized bool
}

// Build constructs a Manager from configuration. Only enabled providers are
// registered. The default and fallback names must refer to enabled
// providers; anything else is a deployment mistake and fails construction.
// An initial health sweep runs in the background so the first real request
// has fresh health data; sweep failures are logged, never fatal.
func Build(cfg Config) (*manager.Manager, error) {
	strategy, err := manager.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.CostOptimized {
		strategy = manager.StrategyCheapest
	}

	m := manager.New(strategy, cfg.DefaultProvider, cfg.FallbackProvider)

	enabled := make(map[string]bool)
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		p, err := newProvider(pc)
		if err != nil {
			return nil, err
		}
		m.AddProvider(p)
		enabled[pc.Name] = true
	}

	if cfg.DefaultProvider != "" && !enabled[cfg.DefaultProvider] {
		return nil, fmt.Errorf("default provider %q is not among enabled providers", cfg.DefaultProvider)
	}
	if cfg.FallbackProvider != "" && !enabled[cfg.FallbackProvider] {
		return nil, fmt.Errorf("fallback provider %q is not among enabled providers", cfg.FallbackProvider)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		statuses := m.CheckAllProviders(ctx)
		for _, h := range statuses {
			if !h.Healthy {
				log.Printf("initial health sweep: provider %s unhealthy: %s", h.Provider, h.Error)
			}
		}
	}()

	return m, nil
}

// newProvider dispatches on the configured adapter type. An empty type is
// inferred from the provider name.
func newProvider(cfg provider.ProviderConfig) (provider.Provider, error) {
	providerType := cfg.Type
	if providerType == "" {
		providerType = cfg.Name
	}

	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	switch providerType {
	case "openai":
		return openai.New(cfg, apiKey), nil
	case "anthropic", "claude":
		return anthropic.New(cfg, apiKey), nil
	case "gemini":
		return gemini.New(cfg, apiKey), nil
	case "mockai", "mock":
		return mockai.New(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q for provider %q", providerType, cfg.Name)
	}
}

var (
	defaultManager *manager.Manager
	initOnce       sync.Once
)

// Init lazily constructs the process-wide Manager on first call and returns
// the same instance thereafter, even under concurrent construction. Tests
// should call Build directly for independent instances.
func Init(cfg Config) (*manager.Manager, error) {
	var initErr error
	initOnce.Do(func() {
		m, err := Build(cfg)
		if err != nil {
			initErr = err
			return
		}
		defaultManager = m
	})
	if initErr != nil {
		return nil, initErr
	}
	if defaultManager == nil {
		return nil, fmt.Errorf("llm manager failed to initialize")
	}
	return defaultManager, nil
}

// Default returns the singleton Manager, or nil before Init succeeds.
func Default() *manager.Manager {
	return defaultManager
}
