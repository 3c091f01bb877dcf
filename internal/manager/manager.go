// Package manager owns the provider registry, selection policy, fallback
// chaining and running usage statistics.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

// Strategy is the load-balancing policy used by SelectProvider.
type Strategy string

const (
	StrategyCheapest Strategy = "cheapest"
	StrategyFastest  Strategy = "fastest"
	StrategyPriority Strategy = "priority"
)

// ParseStrategy validates a configured strategy string.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyCheapest, StrategyFastest, StrategyPriority:
		return Strategy(s), nil
	case "":
		return StrategyPriority, nil
	default:
		return "", fmt.Errorf("unknown load-balancing strategy %q", s)
	}
}

// Manager is the registry of configured providers. It is safe for
// concurrent use: the registry and statistics are guarded by a mutex, and
// no lock is held while a provider call is in flight.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]provider.Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	stats     map[string]*provider.ProviderStats
	health    map[string]provider.HealthStatus

	strategy    Strategy
	defaultName string
	fallback    string
}

func New(strategy Strategy, defaultName, fallbackName string) *Manager {
	return &Manager{
		providers:   make(map[string]provider.Provider),
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		stats:       make(map[string]*provider.ProviderStats),
		health:      make(map[string]provider.HealthStatus),
		strategy:    strategy,
		defaultName: defaultName,
		fallback:    fallbackName,
	}
}

// AddProvider registers a provider. A duplicate name replaces the prior
// entry and resets its breaker; accumulated statistics are kept.
func (m *Manager) AddProvider(p provider.Provider) {
	name := p.Config().Name

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
	m.breakers[name] = gobreaker.NewCircuitBreaker(settings)
	if _, ok := m.stats[name]; !ok {
		m.stats[name] = &provider.ProviderStats{Provider: name}
	}
}

func (m *Manager) RemoveProvider(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providers, name)
	delete(m.breakers, name)
	delete(m.stats, name)
	delete(m.health, name)
}

// ListProviders returns the enabled provider configurations ordered by
// ascending priority, then name.
func (m *Manager) ListProviders() []provider.ProviderConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabledLocked()
}

func (m *Manager) enabledLocked() []provider.ProviderConfig {
	var configs []provider.ProviderConfig
	for _, p := range m.providers {
		cfg := p.Config()
		if cfg.Enabled {
			configs = append(configs, cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].Priority != configs[j].Priority {
			return configs[i].Priority < configs[j].Priority
		}
		return configs[i].Name < configs[j].Name
	})
	return configs
}

// SelectProvider applies the configured strategy to pick one provider for
// the request. Providers are eligible when enabled, not known-unhealthy,
// not behind an open breaker, and offering a model recommended for the
// request's operation. Ties break by priority, then name, so selection is
// deterministic.
func (m *Manager) SelectProvider(req *provider.GenerationRequest) (provider.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enabled := m.enabledLocked()
	if len(enabled) == 0 {
		return nil, provider.ErrNoProviderAvailable
	}

	anySupportsOp := false
	var eligible []provider.ProviderConfig
	for _, cfg := range enabled {
		if !cfg.SupportsOperation(req.Operation) {
			continue
		}
		anySupportsOp = true
		if h, ok := m.health[cfg.Name]; ok && !h.Healthy {
			continue
		}
		if cb, ok := m.breakers[cfg.Name]; ok && cb.State() == gobreaker.StateOpen {
			continue
		}
		eligible = append(eligible, cfg)
	}

	if len(eligible) == 0 {
		if !anySupportsOp {
			return nil, provider.ErrNoSuitableModel
		}
		return nil, provider.ErrNoProviderAvailable
	}

	best := eligible[0]
	for _, cfg := range eligible[1:] {
		if m.betterLocked(cfg, best, req) {
			best = cfg
		}
	}
	return m.providers[best.Name], nil
}

// betterLocked reports whether a should be preferred over b under the
// configured strategy. Caller holds at least a read lock.
func (m *Manager) betterLocked(a, b provider.ProviderConfig, req *provider.GenerationRequest) bool {
	switch m.strategy {
	case StrategyCheapest:
		ca, cb := estimateCostCents(a, req), estimateCostCents(b, req)
		if ca != cb {
			return ca < cb
		}
	case StrategyFastest:
		la, lb := m.avgLatencyLocked(a.Name), m.avgLatencyLocked(b.Name)
		if la != lb {
			return la < lb
		}
	case StrategyPriority:
		// The configured default provider wins outright when eligible.
		if a.Name == m.defaultName && b.Name != m.defaultName {
			return true
		}
		if b.Name == m.defaultName && a.Name != m.defaultName {
			return false
		}
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Name < b.Name
}

func (m *Manager) avgLatencyLocked(name string) float64 {
	if s, ok := m.stats[name]; ok {
		return s.AvgResponseTimeMs
	}
	return 0
}

// estimateCostCents prices the request against the model the provider would
// use for it. Input tokens are approximated at four characters per token;
// expected output is the request cap, the model default, or 1000 tokens.
func estimateCostCents(cfg provider.ProviderConfig, req *provider.GenerationRequest) float64 {
	model, ok := cfg.ResolveModel(req)
	if !ok {
		return 0
	}
	inputTokens := (len(req.SystemPrompt) + len(req.UserPrompt)) / 4
	outputTokens := req.MaxTokens
	if outputTokens == 0 {
		outputTokens = model.MaxTokens
	}
	if outputTokens == 0 {
		outputTokens = 1000
	}
	return float64(inputTokens)/1000*model.InputCostPer1K +
		float64(outputTokens)/1000*model.OutputCostPer1K
}

// Generate selects one provider, invokes it once and records statistics
// regardless of outcome. The provider's response is returned verbatim,
// including failures; this call never retries across providers. Errors are
// reserved for request validation and selection failures.
func (m *Manager) Generate(ctx context.Context, req *provider.GenerationRequest) (*provider.GenerationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := m.SelectProvider(req)
	if err != nil {
		return nil, err
	}
	resp := p.Generate(ctx, req)
	m.record(p.Config().Name, resp)
	return resp, nil
}

// GenerateWithFallback retries exactly once against the configured fallback
// provider when the primary attempt fails. Worst case is two full provider
// attempts; there is no chained fallback beyond the configured pair.
func (m *Manager) GenerateWithFallback(ctx context.Context, req *provider.GenerationRequest) (*provider.GenerationResponse, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Success {
		return resp, nil
	}

	fb := m.fallbackProvider(resp.Provider)
	if fb == nil {
		return resp, nil
	}

	fbResp := fb.Generate(ctx, req)
	m.record(fb.Config().Name, fbResp)
	return fbResp, nil
}

// fallbackProvider returns the configured fallback when it is enabled and
// distinct from the provider that already failed.
func (m *Manager) fallbackProvider(failedName string) provider.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.fallback == "" || m.fallback == failedName {
		return nil
	}
	p, ok := m.providers[m.fallback]
	if !ok || !p.Config().Enabled {
		return nil
	}
	return p
}

// record folds one completed attempt into the provider's statistics and
// feeds the circuit breaker. Internal retries inside a provider attempt do
// not increment counters; only the final outcome does.
func (m *Manager) record(name string, resp *provider.GenerationResponse) {
	m.mu.Lock()
	s, ok := m.stats[name]
	if !ok {
		s = &provider.ProviderStats{Provider: name}
		m.stats[name] = s
	}
	s.TotalRequests++
	if resp.Success {
		s.SuccessfulRequests++
	} else {
		s.FailedRequests++
	}
	s.AvgResponseTimeMs += (float64(resp.ResponseTimeMs) - s.AvgResponseTimeMs) / float64(s.TotalRequests)
	s.TotalCostCents += resp.Usage.CostCents
	s.LastUsed = time.Now()
	cb := m.breakers[name]
	m.mu.Unlock()

	if cb != nil {
		_, _ = cb.Execute(func() (interface{}, error) {
			if resp.Success {
				return nil, nil
			}
			return nil, errors.New(resp.Error)
		})
	}
}

// BestProvider ranks enabled providers by health, then success rate, then
// average latency. It is request-independent and intended for diagnostics.
func (m *Manager) BestProvider() (provider.ProviderConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	enabled := m.enabledLocked()
	if len(enabled) == 0 {
		return provider.ProviderConfig{}, provider.ErrNoProviderAvailable
	}

	best := enabled[0]
	for _, cfg := range enabled[1:] {
		if m.rankLocked(cfg) > m.rankLocked(best) {
			best = cfg
		}
	}
	return best, nil
}

// rankLocked scores a provider: unhealthy providers rank below everything,
// then higher success rate wins, then lower average latency.
func (m *Manager) rankLocked(cfg provider.ProviderConfig) float64 {
	score := 0.0
	if h, ok := m.health[cfg.Name]; !ok || h.Healthy {
		score += 1000
	}
	if s, ok := m.stats[cfg.Name]; ok && s.TotalRequests > 0 {
		score += 100 * float64(s.SuccessfulRequests) / float64(s.TotalRequests)
		score -= s.AvgResponseTimeMs / 1000
	} else {
		score += 100 // no history, assume fine
	}
	return score
}

// CheckAllProviders probes every enabled provider concurrently. Each probe
// is bounded by its provider's own timeout, so total wall time tracks the
// slowest probe rather than the sum. Results are cached for selection.
func (m *Manager) CheckAllProviders(ctx context.Context) []provider.HealthStatus {
	m.mu.RLock()
	configs := m.enabledLocked()
	targets := make([]provider.Provider, len(configs))
	for i, cfg := range configs {
		targets[i] = m.providers[cfg.Name]
	}
	m.mu.RUnlock()

	results := make([]provider.HealthStatus, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			results[i] = p.CheckHealth(ctx)
		}(i, p)
	}
	wg.Wait()

	m.mu.Lock()
	for _, h := range results {
		m.health[h.Provider] = h
	}
	m.mu.Unlock()

	return results
}

// Health returns the last known probe results in provider list order.
func (m *Manager) Health() []provider.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []provider.HealthStatus
	for _, cfg := range m.enabledLocked() {
		if h, ok := m.health[cfg.Name]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Stats returns a snapshot of the running counters. It never blocks
// in-flight generation calls beyond the brief copy under the read lock.
func (m *Manager) Stats() []provider.ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]provider.ProviderStats, 0, len(m.stats))
	for _, cfg := range m.enabledLocked() {
		if s, ok := m.stats[cfg.Name]; ok {
			out = append(out, *s)
		}
	}
	return out
}
