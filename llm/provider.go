// Package llm defines the boundary to the external generation capability.
// The engine only decides which model to call and in what order; the actual
// network client is supplied by the embedding application.
package llm

import "context"

// Completion is the result of one generation call.
type Completion struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns combined token usage.
func (c Completion) TotalTokens() int {
	return c.InputTokens + c.OutputTokens
}

// Provider invokes a generation backend with a prompt. Implementations must
// be safe for concurrent use; every call is a suspension point for the
// engine.
type Provider interface {
	Generate(ctx context.Context, model string, prompt string) (Completion, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, model, prompt string) (Completion, error)

func (f ProviderFunc) Generate(ctx context.Context, model, prompt string) (Completion, error) {
	return f(ctx, model, prompt)
}
