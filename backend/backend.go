// Package backend defines the completion capability the chain dispatches
// to, and adapters that implement it against concrete services (OpenAI,
// Anthropic, Cohere, Gemini, Ollama). An adapter takes a finalized prompt string
// and returns the model's textual completion, classifying every failure
// as either transient (*UnavailableError) or unusable (*ResponseError).
package backend

import "context"

// Request carries a finalized prompt to a backend. Model is optional;
// adapters fall back to their configured default.
type Request struct {
	Prompt string
	Model  string
}

// TokenUsage reports token counts when the service provides them.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a backend's completion output.
type Response struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// Backend is the single capability the chain depends on: one prompt in,
// one completion out. Implementations must be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Func adapts a plain function to the Backend interface.
type Func func(ctx context.Context, req Request) (*Response, error)

// Complete implements Backend.
func (f Func) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
