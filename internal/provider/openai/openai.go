package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	provider.Base
	apiKey  string
	baseURL string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func New(cfg provider.ProviderConfig, apiKey string) provider.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIProvider{
		Base:    provider.NewBase(cfg),
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req *provider.GenerationRequest) *provider.GenerationResponse {
	start := time.Now()

	model, ok := p.Config().ResolveModel(req)
	if !ok {
		return p.Fail("", start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindInvalidRequest,
			Message:  "no models configured",
		})
	}

	chatReq := p.mapRequest(req, model)

	var chatResp chatResponse
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	if err := p.DoJSON(ctx, url, p.headers(), chatReq, &chatResp); err != nil {
		return p.Fail(model.Name, start, err)
	}

	if len(chatResp.Choices) == 0 {
		return p.Fail(model.Name, start, &provider.Error{
			Provider: p.Config().Name,
			Kind:     provider.KindUnavailable,
			Message:  "vendor returned no choices",
		})
	}

	usedModel := chatResp.Model
	if usedModel == "" {
		usedModel = model.Name
	}
	return p.Succeed(
		chatResp.Choices[0].Message.Content,
		usedModel,
		chatResp.Usage.PromptTokens,
		chatResp.Usage.CompletionTokens,
		start,
	)
}

func (p *OpenAIProvider) mapRequest(req *provider.GenerationRequest, model provider.ModelConfig) chatRequest {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserPrompt})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = model.MaxTokens
	}

	return chatRequest{
		Model:       model.Name,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

func (p *OpenAIProvider) CheckHealth(ctx context.Context) provider.HealthStatus {
	return p.Probe(ctx, func(ctx context.Context) error {
		model, ok := p.Config().ResolveModel(nil)
		if !ok {
			return fmt.Errorf("no models configured")
		}
		probe := chatRequest{
			Model:     model.Name,
			Messages:  []chatMessage{{Role: "user", Content: "ping"}},
			MaxTokens: 1,
		}
		var resp chatResponse
		url := fmt.Sprintf("%s/chat/completions", p.baseURL)
		return p.DoJSON(ctx, url, p.headers(), probe, &resp)
	})
}

func (p *OpenAIProvider) headers() map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", p.apiKey),
	}
}
