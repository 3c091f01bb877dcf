package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type GeminiProvider struct {
	provider.Base
	apiKey  string
	baseURL string
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
}

type candidate struct {
	Content content `json:"content"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

func New(cfg provider.ProviderConfig, apiKey string) provider.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GeminiProvider{
		Base:    provider.NewBase(cfg),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, req *provider.GenerationRequest) *provider.GenerationResponse {
	start := time.Now()

	model, ok := p.Config().ResolveModel(req)
	if !ok {
		return p.Fail("", start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindInvalidRequest,
			Message:  "no models configured",
		})
	}

	genReq := p.mapRequest(req)

	var genResp generateResponse
	if err := p.DoJSON(ctx, p.endpoint(model.Name), nil, genReq, &genResp); err != nil {
		return p.Fail(model.Name, start, err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return p.Fail(model.Name, start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindUnavailable,
			Message:  "vendor returned no candidates",
		})
	}

	return p.Succeed(
		genResp.Candidates[0].Content.Parts[0].Text,
		model.Name,
		genResp.UsageMetadata.PromptTokenCount,
		genResp.UsageMetadata.CandidatesTokenCount,
		start,
	)
}

func (p *GeminiProvider) mapRequest(req *provider.GenerationRequest) generateRequest {
	genReq := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.UserPrompt}}},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		genReq.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	return genReq
}

func (p *GeminiProvider) CheckHealth(ctx context.Context) provider.HealthStatus {
	return p.Probe(ctx, func(ctx context.Context) error {
		model, ok := p.Config().ResolveModel(nil)
		if !ok {
			return fmt.Errorf("no models configured")
		}
		probe := generateRequest{
			Contents:         []content{{Role: "user", Parts: []part{{Text: "ping"}}}},
			GenerationConfig: generationConfig{MaxOutputTokens: 1},
		}
		var resp generateResponse
		return p.DoJSON(ctx, p.endpoint(model.Name), nil, probe, &resp)
	})
}

func (p *GeminiProvider) endpoint(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
}
