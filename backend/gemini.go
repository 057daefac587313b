package backend

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-pro"

// Gemini is a Backend over the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGemini creates a Gemini-backed completion backend. Close releases the
// underlying API client when the backend is no longer needed.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error { return g.client.Close() }

// Complete implements Backend.
func (g *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	name := req.Model
	if name == "" {
		name = g.model
	}
	model := g.client.GenerativeModel(name)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, &UnavailableError{Backend: "gemini", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ResponseError{Backend: "gemini", Detail: "no candidates returned"}
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return nil, &ResponseError{Backend: "gemini", Detail: "empty completion"}
	}
	out := &Response{Content: text, Model: name}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

var _ Backend = (*Gemini)(nil)
