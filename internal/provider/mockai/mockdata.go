package mockai

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/robert-ris/prompts-generator-sub001/internal/provider"
)

// generateText is a pure function of (operation, input). The same pair
// always yields the same text so integration paths stay reproducible.
func generateText(op provider.Operation, input string) string {
	subject := excerpt(input, 60)

	switch op {
	case provider.OpPromptImprove:
		return fmt.Sprintf("Refined prompt: %s Be specific about the desired output format, audience and constraints.", subject)
	case provider.OpPromptGenerate:
		return fmt.Sprintf("You are an expert assistant. Given the goal %q, produce a structured, unambiguous answer with numbered steps and a short summary.", subject)
	case provider.OpContentSummarize:
		return fmt.Sprintf("Summary: %s (condensed to the %s key points).", subject, pick(input, "three", "four", "five"))
	case provider.OpContentExpand:
		return fmt.Sprintf("Expanded: %s Additional context, supporting examples and an explicit conclusion follow the original argument.", subject)
	case provider.OpCodeReview:
		return fmt.Sprintf("Review of %s: naming is consistent, error paths need coverage, and the %s case deserves a test.", subject, pick(input, "empty-input", "timeout", "concurrent"))
	case provider.OpTranslation:
		return fmt.Sprintf("Translation of %s rendered in the target language, preserving register and idiom.", subject)
	case provider.OpAnalysis:
		return fmt.Sprintf("Analysis of %s: the dominant pattern is %s; confidence is moderate.", subject, pick(input, "seasonal", "linear", "clustered"))
	default:
		return fmt.Sprintf("Generated response for: %s", subject)
	}
}

// excerpt trims input to at most n runes for embedding into templates.
func excerpt(input string, n int) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return "(empty input)"
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// pick deterministically selects one of the options based on the input,
// giving the mock some variety without randomness.
func pick(input string, options ...string) string {
	h := fnv.New32a()
	h.Write([]byte(input))
	return options[int(h.Sum32())%len(options)]
}

// syntheticTokens approximates token counts from text length, roughly four
// characters per token.
func syntheticTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
