package provider

import (
	"context"
)

// Provider is one external generation backend. Implementations normalize
// vendor failures into a GenerationResponse with Success=false rather than
// returning errors; the manager must always get a well-formed response with
// a usable TokenUsage (zeros when the vendor reported nothing) so cost
// accounting never breaks.
type Provider interface {
	Generate(ctx context.Context, req *GenerationRequest) *GenerationResponse

	// CheckHealth issues a minimal probe and reports latency. The probe is
	// bounded by the provider's configured timeout; exceeding it means
	// unhealthy.
	CheckHealth(ctx context.Context) HealthStatus

	Config() ProviderConfig
}
