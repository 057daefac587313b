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
	defaultOllamaBase  = "http://localhost:11434"
	defaultOllamaModel = "llama2"
)

// Ollama is a Backend over a local Ollama daemon. No credential is needed.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaConfig configures the Ollama backend.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewOllama creates an Ollama-backed completion backend.
func NewOllama(cfg OllamaConfig) *Ollama {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{
		baseURL:    strings.TrimSuffix(base, "/"),
		model:      model,
		httpClient: client,
	}
}

type ollamaReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResp struct {
	Message struct {
		Content string `json:"content"`
		Role    string `json:"role"`
	} `json:"message"`
	Done            bool `json:"done"`
	EvalCount       int  `json:"eval_count,omitempty"`
	PromptEvalCount int  `json:"prompt_eval_count,omitempty"`
}

// Complete implements Backend.
func (c *Ollama) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := ollamaReq{
		Model:    model,
		Messages: []ollamaMsg{{Role: "user", Content: req.Prompt}},
		Stream:   false,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("ollama encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UnavailableError{Backend: "ollama", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bs, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Backend: "ollama",
			Err:     fmt.Errorf("api error %d: %s", resp.StatusCode, string(bs)),
		}
	}
	var out ollamaResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ResponseError{Backend: "ollama", Detail: fmt.Sprintf("decode: %v", err)}
	}
	if out.Message.Content == "" {
		return nil, &ResponseError{Backend: "ollama", Detail: "empty completion"}
	}
	usage := TokenUsage{}
	if out.PromptEvalCount > 0 || out.EvalCount > 0 {
		usage.PromptTokens = out.PromptEvalCount
		usage.CompletionTokens = out.EvalCount
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &Response{Content: out.Message.Content, Model: model, Usage: usage}, nil
}

var _ Backend = (*Ollama)(nil)
