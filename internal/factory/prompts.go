package factory

import (
	"context"
	"fmt"

	"github.com/robert-ris/prompts-generator-sub001/internal/manager"
	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

// ImproveMode selects how ImprovePrompt rewrites the input.
type ImproveMode string

const (
	ModeTighten   ImproveMode = "tighten"
	ModeExpand    ImproveMode = "expand"
	ModeClarify   ImproveMode = "clarify"
	ModeFormalize ImproveMode = "formalize"
	ModeSimplify  ImproveMode = "simplify"
)

// ParseImproveMode validates a mode string from the API surface.
func ParseImproveMode(s string) (ImproveMode, error) {
	switch ImproveMode(s) {
	case ModeTighten, ModeExpand, ModeClarify, ModeFormalize, ModeSimplify:
		return ImproveMode(s), nil
	default:
		return "", fmt.Errorf("unknown improve mode %q", s)
	}
}

var modeInstructions = map[ImproveMode]string{
	ModeTighten:   "Make the prompt shorter and more direct without losing intent.",
	ModeExpand:    "Add missing context, constraints and examples the prompt needs.",
	ModeClarify:   "Remove ambiguity and spell out the expected output format.",
	ModeFormalize: "Rewrite the prompt in a precise, professional register.",
	ModeSimplify:  "Rewrite the prompt in plain language a non-expert can follow.",
}

// GenerateOptions tune the convenience operations.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// UseFallback routes through GenerateWithFallback instead of Generate.
	UseFallback bool
}

// ImprovePrompt rewrites an existing prompt in the given mode. The manager's
// response is returned unchanged; selection and validation errors propagate.
func ImprovePrompt(ctx context.Context, m *manager.Manager, text string, mode ImproveMode, opts GenerateOptions) (*provider.GenerationResponse, error) {
	instruction, ok := modeInstructions[mode]
	if !ok {
		return nil, fmt.Errorf("unknown improve mode %q", mode)
	}

	req := &provider.GenerationRequest{
		SystemPrompt: "You are a prompt engineer. Improve the prompt the user provides. " +
			instruction + " Reply with the improved prompt only.",
		UserPrompt:  text,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Model:       opts.Model,
		Operation:   provider.OpPromptImprove,
	}

	return dispatch(ctx, m, req, opts)
}

// GeneratePrompt writes a fresh prompt from a plain description of the task.
func GeneratePrompt(ctx context.Context, m *manager.Manager, description string, opts GenerateOptions) (*provider.GenerationResponse, error) {
	req := &provider.GenerationRequest{
		SystemPrompt: "You are an expert prompt writer. Given a description of what " +
			"the user wants a language model to do, write a complete, well-structured " +
			"prompt for it. Reply with the prompt only.",
		UserPrompt:  description,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Model:       opts.Model,
		Operation:   provider.OpPromptGenerate,
	}

	return dispatch(ctx, m, req, opts)
}

func dispatch(ctx context.Context, m *manager.Manager, req *provider.GenerationRequest, opts GenerateOptions) (*provider.GenerationResponse, error) {
	if opts.UseFallback {
		return m.GenerateWithFallback(ctx, req)
	}
	return m.Generate(ctx, req)
}
