package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = goopenai.GPT4

// OpenAI is a Backend over the OpenAI chat completions API. A BaseURL
// override points it at any OpenAI-compatible service.
type OpenAI struct {
	client *goopenai.Client
	model  string
}

// OpenAIConfig configures the OpenAI backend. The API key is held by the
// constructed client and nowhere else.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewOpenAI creates an OpenAI-backed completion backend.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client: goopenai.NewClientWithConfig(apiCfg),
		model:  model,
	}, nil
}

// Complete implements Backend.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	resp, err := o.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, &UnavailableError{Backend: "openai", Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &ResponseError{Backend: "openai", Detail: "empty completion"}
	}
	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

var _ Backend = (*OpenAI)(nil)
