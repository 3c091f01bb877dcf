// Package mockai is a deterministic offline provider. It lets the rest of
// the system run end to end without network access or credentials.
package mockai

import (
	"context"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

type MockProvider struct {
	provider.Base
}

func New(cfg provider.ProviderConfig) provider.Provider {
	return &MockProvider{Base: provider.NewBase(cfg)}
}

func (p *MockProvider) Generate(ctx context.Context, req *provider.GenerationRequest) *provider.GenerationResponse {
	start := time.Now()

	model, ok := p.Config().ResolveModel(req)
	if !ok {
		model = provider.ModelConfig{Name: "mock-default"}
	}

	if err := ctx.Err(); err != nil {
		return p.Fail(model.Name, start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindTimeout,
			Message:  err.Error(),
		})
	}

	text := generateText(req.Operation, req.UserPrompt)
	inputTokens := syntheticTokens(req.SystemPrompt + req.UserPrompt)
	outputTokens := syntheticTokens(text)

	// Zero real cost; the configured rates for the mock are zero, so the
	// base cost computation yields zero cents.
	resp := p.Succeed(text, model.Name, inputTokens, outputTokens, start)
	resp.Usage.CostCents = 0
	return resp
}

func (p *MockProvider) CheckHealth(ctx context.Context) provider.HealthStatus {
	return p.Probe(ctx, func(ctx context.Context) error {
		return ctx.Err()
	})
}
