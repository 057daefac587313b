package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		var req anthropicReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":[{"type":"text","text":"four legs"}],"model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":12,"output_tokens":3}}`)
	}))
	defer srv.Close()

	b, err := NewAnthropic(AnthropicConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := b.Complete(context.Background(), Request{Prompt: "How many legs does a cat have?"})
	require.NoError(t, err)
	assert.Equal(t, "four legs", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestAnthropic_Complete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, err := NewAnthropic(AnthropicConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = b.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnthropic_Complete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[],"model":"claude-3-5-sonnet-20241022"}`)
	}))
	defer srv.Close()

	b, err := NewAnthropic(AnthropicConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = b.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic(AnthropicConfig{})
	assert.Error(t, err)
}
