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

func TestCohere_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req cohereReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "command-r-plus", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"four legs"},"meta":{"billed_units":{"input_tokens":9,"output_tokens":2}}}`)
	}))
	defer srv.Close()

	b, err := NewCohere(CohereConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := b.Complete(context.Background(), Request{Prompt: "How many legs does a cat have?"})
	require.NoError(t, err)
	assert.Equal(t, "four legs", resp.Content)
	assert.Equal(t, "command-r-plus", resp.Model)
	assert.Equal(t, 11, resp.Usage.TotalTokens)
}

func TestCohere_Complete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b, err := NewCohere(CohereConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = b.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCohere_Complete_EmptyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"meta":{"billed_units":{"input_tokens":9,"output_tokens":0}}}`)
	}))
	defer srv.Close()

	b, err := NewCohere(CohereConfig{APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = b.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestNewCohere_RequiresKey(t *testing.T) {
	_, err := NewCohere(CohereConfig{})
	assert.Error(t, err)
}
