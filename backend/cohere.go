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
	defaultCohereBase  = "https://api.cohere.com/v2"
	defaultCohereModel = "command-r-plus"
)

// Cohere is a Backend over the Cohere Chat API.
type Cohere struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// CohereConfig configures the Cohere backend.
type CohereConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewCohere creates a Cohere-backed completion backend.
func NewCohere(cfg CohereConfig) (*Cohere, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultCohereBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultCohereModel
	}
	return &Cohere{
		baseURL:    strings.TrimSuffix(base, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: client,
	}, nil
}

type cohereReq struct {
	Model    string      `json:"model"`
	Messages []cohereMsg `json:"messages"`
	Stream   bool        `json:"stream,omitempty"`
}

type cohereMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cohereResp struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Meta *struct {
		BilledUnits *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Complete implements Backend.
func (c *Cohere) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := cohereReq{
		Model:    model,
		Messages: []cohereMsg{{Role: "user", Content: req.Prompt}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("cohere encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UnavailableError{Backend: "cohere", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bs, _ := io.ReadAll(resp.Body)
		return nil, &UnavailableError{
			Backend: "cohere",
			Err:     fmt.Errorf("api error %d: %s", resp.StatusCode, string(bs)),
		}
	}
	var out cohereResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ResponseError{Backend: "cohere", Detail: fmt.Sprintf("decode: %v", err)}
	}
	if out.Message == nil || out.Message.Content == "" {
		return nil, &ResponseError{Backend: "cohere", Detail: "empty completion"}
	}
	usage := TokenUsage{}
	if out.Meta != nil && out.Meta.BilledUnits != nil {
		usage.PromptTokens = out.Meta.BilledUnits.InputTokens
		usage.CompletionTokens = out.Meta.BilledUnits.OutputTokens
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &Response{Content: out.Message.Content, Model: model, Usage: usage}, nil
}

var _ Backend = (*Cohere)(nil)
