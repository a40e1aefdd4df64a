package agent

import (
	"context"

	"github.com/BaSui01/agenthive/types"
)

// Prompt is the input to the external reasoning capability.
type Prompt struct {
	System  string         `json:"system,omitempty"`
	Input   string         `json:"input"`
	Context map[string]any `json:"context,omitempty"`
}

// Result is the output of the external reasoning capability. Structured is
// populated when the capability returned parseable key/value output.
type Result struct {
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`
}

// Reasoner is the external, opaque generation capability consumed by agents.
// A failed call is recoverable: callers fall back to a degraded direct
// response instead of propagating.
type Reasoner interface {
	Generate(ctx context.Context, p Prompt) (Result, error)
}

// GenerationError wraps a reasoning failure as a retryable typed error.
func GenerationError(cause error) *types.Error {
	return types.NewError(types.ErrGenerationFailed, "reasoning capability failed").
		WithCause(cause).
		WithRetryable(true)
}

// ReasonerFunc adapts a function to the Reasoner interface.
type ReasonerFunc func(ctx context.Context, p Prompt) (Result, error)

// Generate implements Reasoner.
func (f ReasonerFunc) Generate(ctx context.Context, p Prompt) (Result, error) {
	return f(ctx, p)
}
