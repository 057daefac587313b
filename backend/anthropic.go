package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultAnthropicBase  = "https://api.anthropic.com/v1"
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
)

// Anthropic is a Backend over the Anthropic Messages API.
type Anthropic struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewAnthropic creates an Anthropic-backed completion backend.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultAnthropicBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		baseURL:    strings.TrimSuffix(base, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: client,
	}, nil
}

type anthropicReq struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []anthropicMsg `json:"messages"`
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete implements Backend.
func (c *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := anthropicReq{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages:  []anthropicMsg{{Role: "user", Content: req.Prompt}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("anthropic encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("content-type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UnavailableError{Backend: "anthropic", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bs, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Backend: "anthropic",
			Err:     fmt.Errorf("api error %d: %s", resp.StatusCode, string(bs)),
		}
	}
	var out anthropicResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ResponseError{Backend: "anthropic", Detail: fmt.Sprintf("decode: %v", err)}
	}
	var text string
	for _, block := range out.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, &ResponseError{Backend: "anthropic", Detail: "empty completion"}
	}
	usage := TokenUsage{}
	if out.Usage != nil {
		usage.PromptTokens = out.Usage.InputTokens
		usage.CompletionTokens = out.Usage.OutputTokens
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &Response{Content: text, Model: out.Model, Usage: usage}, nil
}

var _ Backend = (*Anthropic)(nil)
