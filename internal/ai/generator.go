// Package ai provides the optional LLM-backed fix candidate generator.
// It is consulted only when the built-in heuristics produce no
// candidate; its output goes through the same staged validation.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mendhq/mend/internal/types"
)

// ModelDefault is the cost-efficient model used for fix generation.
// Fix candidates are small single-file transformations; a high-end
// reasoning model would be wasted here.
const ModelDefault = "claude-3-5-haiku-20241022"

// GetModel returns the generation model, checking MEND_MODEL first.
func GetModel() string {
	if model := os.Getenv("MEND_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// Config configures the generator.
type Config struct {
	// APIKey for the Anthropic API. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model override. Empty means GetModel().
	Model string

	// Retry overrides. Zero MaxRetries means DefaultRetryConfig().
	Retry RetryConfig
}

// Generator produces whole-file fix candidates via the Anthropic API.
type Generator struct {
	client *anthropic.Client
	model  string
	retry  RetryConfig
}

// NewGenerator creates a generator, or an error when no API key is
// available. Callers treat the error as "LLM assistance disabled",
// never as a run failure.
func NewGenerator(cfg Config) (*Generator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Generator{client: &client, model: model, retry: retry}, nil
}

// GenerateFix asks the model for a corrected version of the whole file.
// An empty candidate means the model declined; the caller records a
// non-fix and continues.
func (g *Generator) GenerateFix(ctx context.Context, original string, failure types.FailureRecord, category types.BugCategory) (string, error) {
	prompt := buildFixPrompt(original, failure, category)

	var response *anthropic.Message
	err := retryWithBackoff(ctx, g.retry, "fix generation", func(attemptCtx context.Context) error {
		resp, apiErr := g.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(g.model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	candidate := stripCodeFences(text)
	if strings.TrimSpace(candidate) == "" {
		return "", nil
	}
	return candidate, nil
}

func buildFixPrompt(original string, failure types.FailureRecord, category types.BugCategory) string {
	var b strings.Builder
	b.WriteString("You are repairing a failing Python test suite. ")
	b.WriteString("Fix exactly one error and change nothing else.\n\n")
	fmt.Fprintf(&b, "Error category: %s\n", category)
	fmt.Fprintf(&b, "Error type: %s\n", failure.ErrorType)
	fmt.Fprintf(&b, "Error message: %s\n", failure.Message)
	fmt.Fprintf(&b, "File: %s, line %d\n\n", failure.File, failure.Line)
	b.WriteString("Current file content:\n```python\n")
	b.WriteString(original)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with the complete corrected file content and nothing else. ")
	b.WriteString("No explanation, no markdown fences.")
	return b.String()
}

// stripCodeFences removes a surrounding markdown code block if the
// model added one despite instructions.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	// Drop the opening fence line (``` or ```python).
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
