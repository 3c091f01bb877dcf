package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

type AnthropicProvider struct {
	provider.Base
	apiKey  string
	baseURL string
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func New(cfg provider.ProviderConfig, apiKey string) provider.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &AnthropicProvider{
		Base:    provider.NewBase(cfg),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, req *provider.GenerationRequest) *provider.GenerationResponse {
	start := time.Now()

	model, ok := p.Config().ResolveModel(req)
	if !ok {
		return p.Fail("", start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindInvalidRequest,
			Message:  "no models configured",
		})
	}

	msgReq := p.mapRequest(req, model)

	var msgResp messagesResponse
	url := fmt.Sprintf("%s/messages", p.baseURL)
	if err := p.DoJSON(ctx, url, p.headers(), msgReq, &msgResp); err != nil {
		return p.Fail(model.Name, start, err)
	}

	if len(msgResp.Content) == 0 {
		return p.Fail(model.Name, start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindUnavailable,
			Message:  "vendor returned no content",
		})
	}

	usedModel := msgResp.Model
	if usedModel == "" {
		usedModel = model.Name
	}
	return p.Succeed(
		msgResp.Content[0].Text,
		usedModel,
		msgResp.Usage.InputTokens,
		msgResp.Usage.OutputTokens,
		start,
	)
}

func (p *AnthropicProvider) mapRequest(req *provider.GenerationRequest, model provider.ModelConfig) messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = model.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return messagesRequest{
		Model:     model.Name,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  []message{{Role: "user", Content: req.UserPrompt}},
	}
}

func (p *AnthropicProvider) CheckHealth(ctx context.Context) provider.HealthStatus {
	return p.Probe(ctx, func(ctx context.Context) error {
		model, ok := p.Config().ResolveModel(nil)
		if !ok {
			return fmt.Errorf("no models configured")
		}
		probe := messagesRequest{
			Model:     model.Name,
			MaxTokens: 1,
			Messages:  []message{{Role: "user", Content: "ping"}},
		}
		var resp messagesResponse
		url := fmt.Sprintf("%s/messages", p.baseURL)
		return p.DoJSON(ctx, url, p.headers(), probe, &resp)
	})
}

func (p *AnthropicProvider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}
}
