package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

// fakeProvider is an in-memory provider with scriptable outcomes.
type fakeProvider struct {
	cfg         provider.ProviderConfig
	failWith    string
	latency     time.Duration
	probeDelay  time.Duration
	costCents   float64
	genCalls    int32
	healthCalls int32
}

func (f *fakeProvider) Generate(ctx context.Context, req *provider.GenerationRequest) *provider.GenerationResponse {
	atomic.AddInt32(&f.genCalls, 1)
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	if f.failWith != "" {
		return &provider.GenerationResponse{
			Provider:       f.cfg.Name,
			Model:          "fake-model",
			Usage:          provider.NewTokenUsage(0, 0, 0),
			ResponseTimeMs: f.latency.Milliseconds(),
			Success:        false,
			Error:          f.failWith,
		}
	}
	return &provider.GenerationResponse{
		Text:           "ok from " + f.cfg.Name,
		Provider:       f.cfg.Name,
		Model:          "fake-model",
		Usage:          provider.NewTokenUsage(10, 20, f.costCents),
		ResponseTimeMs: f.latency.Milliseconds(),
		Success:        true,
	}
}

func (f *fakeProvider) CheckHealth(ctx context.Context) provider.HealthStatus {
	atomic.AddInt32(&f.healthCalls, 1)
	if f.probeDelay > 0 {
		select {
		case <-time.After(f.probeDelay):
		case <-ctx.Done():
		}
	}
	return provider.HealthStatus{
		Provider:    f.cfg.Name,
		Healthy:     f.failWith == "",
		LastChecked: time.Now(),
	}
}

func (f *fakeProvider) Config() provider.ProviderConfig { return f.cfg }

func fakeConfig(name string, priority int, inCost, outCost float64, ops ...provider.Operation) provider.ProviderConfig {
	if len(ops) == 0 {
		ops = provider.Operations
	}
	return provider.ProviderConfig{
		Name:     name,
		Priority: priority,
		Enabled:  true,
		Models: []provider.ModelConfig{
			{
				Name:            name + "-model",
				MaxTokens:       1000,
				InputCostPer1K:  inCost,
				OutputCostPer1K: outCost,
				RecommendedFor:  ops,
			},
		},
	}
}

func request() *provider.GenerationRequest {
	return &provider.GenerationRequest{UserPrompt: "hello", Operation: provider.OpPromptImprove}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyPriority {
		t.Errorf("Expected empty string to default to priority, got %s, %v", s, err)
	}
	if _, err := ParseStrategy("round-robin"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestSelectProvider_Cheapest(t *testing.T) {
	m := New(StrategyCheapest, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("expensive", 0, 0.25, 1.0)})
	m.AddProvider(&fakeProvider{cfg: fakeConfig("cheap", 5, 0.015, 0.06)})

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "cheap" {
		t.Errorf("Expected cheap provider despite worse priority, got %s", p.Config().Name)
	}
}

func TestSelectProvider_CheapestNeverWorseWhenBothEligible(t *testing.T) {
	m := New(StrategyCheapest, "", "")
	a := &fakeProvider{cfg: fakeConfig("a", 0, 0.10, 0.50)}
	b := &fakeProvider{cfg: fakeConfig("b", 0, 0.20, 0.90)}
	m.AddProvider(a)
	m.AddProvider(b)

	req := request()
	p, err := m.SelectProvider(req)
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}

	chosen := p.Config()
	other := b.Config()
	if chosen.Name == "b" {
		other = a.Config()
	}
	if estimateCostCents(chosen, req) > estimateCostCents(other, req) {
		t.Errorf("Cheapest strategy selected %s with higher estimated cost", chosen.Name)
	}
}

func TestSelectProvider_Priority(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("second", 2, 1, 1)})
	m.AddProvider(&fakeProvider{cfg: fakeConfig("first", 1, 1, 1)})

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "first" {
		t.Errorf("Expected lowest priority value to win, got %s", p.Config().Name)
	}
}

func TestSelectProvider_PriorityDefaultWins(t *testing.T) {
	m := New(StrategyPriority, "preferred", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("first", 1, 1, 1)})
	m.AddProvider(&fakeProvider{cfg: fakeConfig("preferred", 9, 1, 1)})

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "preferred" {
		t.Errorf("Expected the configured default to win, got %s", p.Config().Name)
	}
}

func TestSelectProvider_Fastest(t *testing.T) {
	m := New(StrategyFastest, "", "")
	slow := &fakeProvider{cfg: fakeConfig("slow", 0, 1, 1)}
	fast := &fakeProvider{cfg: fakeConfig("fast", 5, 1, 1)}
	m.AddProvider(slow)
	m.AddProvider(fast)

	// Seed latency history.
	m.record("slow", &provider.GenerationResponse{Success: true, ResponseTimeMs: 900})
	m.record("fast", &provider.GenerationResponse{Success: true, ResponseTimeMs: 50})

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "fast" {
		t.Errorf("Expected fastest provider, got %s", p.Config().Name)
	}
}

func TestSelectProvider_NoneEnabled(t *testing.T) {
	m := New(StrategyPriority, "", "")
	cfg := fakeConfig("off", 0, 1, 1)
	cfg.Enabled = false
	m.AddProvider(&fakeProvider{cfg: cfg})

	_, err := m.SelectProvider(request())
	if !errors.Is(err, provider.ErrNoProviderAvailable) {
		t.Errorf("Expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestSelectProvider_NoSuitableModel(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("translator", 0, 1, 1, provider.OpTranslation)})

	_, err := m.SelectProvider(request())
	if !errors.Is(err, provider.ErrNoSuitableModel) {
		t.Errorf("Expected ErrNoSuitableModel, got %v", err)
	}
}

func TestSelectProvider_SkipsKnownUnhealthy(t *testing.T) {
	m := New(StrategyPriority, "", "")
	sick := &fakeProvider{cfg: fakeConfig("sick", 0, 1, 1), failWith: "down"}
	well := &fakeProvider{cfg: fakeConfig("well", 5, 1, 1)}
	m.AddProvider(sick)
	m.AddProvider(well)

	m.CheckAllProviders(context.Background())

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "well" {
		t.Errorf("Expected unhealthy provider skipped, got %s", p.Config().Name)
	}
}

func TestSelectProvider_SkipsOpenBreaker(t *testing.T) {
	m := New(StrategyPriority, "", "")
	bad := &fakeProvider{cfg: fakeConfig("bad", 0, 1, 1), failWith: "boom"}
	good := &fakeProvider{cfg: fakeConfig("good", 5, 1, 1)}
	m.AddProvider(bad)
	m.AddProvider(good)

	// Trip the breaker with consecutive failures.
	for i := 0; i < 3; i++ {
		if _, err := m.Generate(context.Background(), request()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}

	p, err := m.SelectProvider(request())
	if err != nil {
		t.Fatalf("SelectProvider failed: %v", err)
	}
	if p.Config().Name != "good" {
		t.Errorf("Expected tripped provider excluded, got %s", p.Config().Name)
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("p", 0, 1, 1)})

	_, err := m.Generate(context.Background(), &provider.GenerationRequest{UserPrompt: ""})
	if !provider.IsInvalidRequest(err) {
		t.Errorf("Expected invalid request error, got %v", err)
	}
}

func TestGenerate_FailureReturnedVerbatim(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("p", 0, 1, 1), failWith: "vendor down"})

	resp, err := m.Generate(context.Background(), request())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Success {
		t.Error("Expected failed response to be returned, not masked")
	}
	if resp.Error != "vendor down" {
		t.Errorf("Expected vendor error preserved, got %q", resp.Error)
	}
}

func TestGenerate_StatsRecorded(t *testing.T) {
	m := New(StrategyPriority, "", "")
	ok := &fakeProvider{cfg: fakeConfig("p", 0, 1, 1), costCents: 0.5}
	m.AddProvider(ok)

	for i := 0; i < 3; i++ {
		if _, err := m.Generate(context.Background(), request()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}

	stats := m.Stats()
	if len(stats) != 1 {
		t.Fatalf("Expected 1 stats entry, got %d", len(stats))
	}
	s := stats[0]
	if s.TotalRequests != 3 {
		t.Errorf("Expected 3 total requests, got %d", s.TotalRequests)
	}
	if s.SuccessfulRequests != 3 {
		t.Errorf("Expected 3 successful requests, got %d", s.SuccessfulRequests)
	}
	if s.TotalCostCents != 1.5 {
		t.Errorf("Expected accumulated cost 1.5, got %f", s.TotalCostCents)
	}
	if s.LastUsed.IsZero() {
		t.Error("Expected LastUsed to be set")
	}
}

func TestGenerate_CountersMonotonic(t *testing.T) {
	m := New(StrategyPriority, "", "")
	flaky := &fakeProvider{cfg: fakeConfig("p", 0, 1, 1)}
	m.AddProvider(flaky)

	const successes, failures = 4, 2
	for i := 0; i < successes; i++ {
		if _, err := m.Generate(context.Background(), request()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}
	flaky.failWith = "boom"
	for i := 0; i < failures; i++ {
		if _, err := m.Generate(context.Background(), request()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}

	s := m.Stats()[0]
	if s.TotalRequests != successes+failures {
		t.Errorf("Expected %d total requests, got %d", successes+failures, s.TotalRequests)
	}
	if s.SuccessfulRequests != successes {
		t.Errorf("Expected %d successes, got %d", successes, s.SuccessfulRequests)
	}
	if s.FailedRequests != failures {
		t.Errorf("Expected %d failures, got %d", failures, s.FailedRequests)
	}
}

func TestGenerateWithFallback_PrimarySucceeds(t *testing.T) {
	m := New(StrategyPriority, "", "backup")
	primary := &fakeProvider{cfg: fakeConfig("primary", 0, 1, 1)}
	backup := &fakeProvider{cfg: fakeConfig("backup", 5, 1, 1)}
	m.AddProvider(primary)
	m.AddProvider(backup)

	resp, err := m.GenerateWithFallback(context.Background(), request())
	if err != nil {
		t.Fatalf("GenerateWithFallback failed: %v", err)
	}
	if resp.Provider != "primary" {
		t.Errorf("Expected primary to serve, got %s", resp.Provider)
	}
	if atomic.LoadInt32(&backup.genCalls) != 0 {
		t.Error("Expected fallback untouched on primary success")
	}
}

func TestGenerateWithFallback_SwitchesOnFailure(t *testing.T) {
	m := New(StrategyPriority, "", "backup")
	primary := &fakeProvider{cfg: fakeConfig("primary", 0, 1, 1), failWith: "primary down"}
	backup := &fakeProvider{cfg: fakeConfig("backup", 5, 1, 1)}
	m.AddProvider(primary)
	m.AddProvider(backup)

	resp, err := m.GenerateWithFallback(context.Background(), request())
	if err != nil {
		t.Fatalf("GenerateWithFallback failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("Expected fallback to succeed, got %q", resp.Error)
	}
	if resp.Provider != "backup" {
		t.Errorf("Expected backup to serve, got %s", resp.Provider)
	}

	// Both attempts recorded against their own provider.
	stats := m.Stats()
	byName := map[string]provider.ProviderStats{}
	for _, s := range stats {
		byName[s.Provider] = s
	}
	if byName["primary"].FailedRequests != 1 {
		t.Errorf("Expected 1 failure recorded for primary, got %d", byName["primary"].FailedRequests)
	}
	if byName["backup"].SuccessfulRequests != 1 {
		t.Errorf("Expected 1 success recorded for backup, got %d", byName["backup"].SuccessfulRequests)
	}
}

func TestGenerateWithFallback_AtMostTwoAttempts(t *testing.T) {
	m := New(StrategyPriority, "", "backup")
	primary := &fakeProvider{cfg: fakeConfig("primary", 0, 1, 1), failWith: "down"}
	backup := &fakeProvider{cfg: fakeConfig("backup", 5, 1, 1), failWith: "also down"}
	m.AddProvider(primary)
	m.AddProvider(backup)

	resp, err := m.GenerateWithFallback(context.Background(), request())
	if err != nil {
		t.Fatalf("GenerateWithFallback failed: %v", err)
	}
	if resp.Success {
		t.Error("Expected failure when both providers are down")
	}

	total := atomic.LoadInt32(&primary.genCalls) + atomic.LoadInt32(&backup.genCalls)
	if total != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", total)
	}
}

func TestGenerateWithFallback_NoFallbackConfigured(t *testing.T) {
	m := New(StrategyPriority, "", "")
	primary := &fakeProvider{cfg: fakeConfig("primary", 0, 1, 1), failWith: "down"}
	m.AddProvider(primary)

	resp, err := m.GenerateWithFallback(context.Background(), request())
	if err != nil {
		t.Fatalf("GenerateWithFallback failed: %v", err)
	}
	if resp.Success {
		t.Error("Expected primary failure to surface without fallback")
	}
	if atomic.LoadInt32(&primary.genCalls) != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", primary.genCalls)
	}
}

func TestGenerateWithFallback_SameProviderNotRetried(t *testing.T) {
	m := New(StrategyPriority, "", "primary")
	primary := &fakeProvider{cfg: fakeConfig("primary", 0, 1, 1), failWith: "down"}
	m.AddProvider(primary)

	resp, err := m.GenerateWithFallback(context.Background(), request())
	if err != nil {
		t.Fatalf("GenerateWithFallback failed: %v", err)
	}
	if resp.Success {
		t.Error("Expected failure")
	}
	if atomic.LoadInt32(&primary.genCalls) != 1 {
		t.Errorf("Expected fallback equal to failed provider to be skipped, got %d attempts", primary.genCalls)
	}
}

func TestAddProvider_ReplaceKeepsStats(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("p", 0, 1, 1)})
	if _, err := m.Generate(context.Background(), request()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	m.AddProvider(&fakeProvider{cfg: fakeConfig("p", 0, 1, 1)})

	s := m.Stats()[0]
	if s.TotalRequests != 1 {
		t.Errorf("Expected replacement to keep stats, got %d total requests", s.TotalRequests)
	}
	if len(m.ListProviders()) != 1 {
		t.Errorf("Expected 1 provider after replacement, got %d", len(m.ListProviders()))
	}
}

func TestCheckAllProviders_Concurrent(t *testing.T) {
	m := New(StrategyPriority, "", "")
	fast := &fakeProvider{cfg: fakeConfig("fast", 0, 1, 1), probeDelay: 50 * time.Millisecond}
	slow := &fakeProvider{cfg: fakeConfig("slow", 1, 1, 1), probeDelay: 500 * time.Millisecond}
	m.AddProvider(fast)
	m.AddProvider(slow)

	start := time.Now()
	statuses := m.CheckAllProviders(context.Background())
	elapsed := time.Since(start)

	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	// Concurrent probes finish near the slowest one, not the sum.
	if elapsed > 900*time.Millisecond {
		t.Errorf("Expected sweep bounded by the slowest probe, took %s", elapsed)
	}

	// Results cached for later inspection.
	if len(m.Health()) != 2 {
		t.Errorf("Expected cached health for both providers, got %d", len(m.Health()))
	}
}

func TestBestProvider_PrefersHealthyTrackRecord(t *testing.T) {
	m := New(StrategyPriority, "", "")
	good := &fakeProvider{cfg: fakeConfig("good", 0, 1, 1)}
	bad := &fakeProvider{cfg: fakeConfig("bad", 1, 1, 1)}
	m.AddProvider(good)
	m.AddProvider(bad)

	m.record("good", &provider.GenerationResponse{Success: true, ResponseTimeMs: 100})
	m.record("bad", &provider.GenerationResponse{Success: false, ResponseTimeMs: 100})

	best, err := m.BestProvider()
	if err != nil {
		t.Fatalf("BestProvider failed: %v", err)
	}
	if best.Name != "good" {
		t.Errorf("Expected provider with better success rate, got %s", best.Name)
	}
}

func TestListProviders_Ordered(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("bravo", 1, 1, 1)})
	m.AddProvider(&fakeProvider{cfg: fakeConfig("alpha", 1, 1, 1)})
	m.AddProvider(&fakeProvider{cfg: fakeConfig("zulu", 0, 1, 1)})

	list := m.ListProviders()
	if len(list) != 3 {
		t.Fatalf("Expected 3 providers, got %d", len(list))
	}
	if list[0].Name != "zulu" || list[1].Name != "alpha" || list[2].Name != "bravo" {
		t.Errorf("Expected priority then name ordering, got %s, %s, %s",
			list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestRemoveProvider(t *testing.T) {
	m := New(StrategyPriority, "", "")
	m.AddProvider(&fakeProvider{cfg: fakeConfig("p", 0, 1, 1)})
	m.RemoveProvider("p")

	_, err := m.SelectProvider(request())
	if !errors.Is(err, provider.ErrNoProviderAvailable) {
		t.Errorf("Expected ErrNoProviderAvailable after removal, got %v", err)
	}
}
