package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"pong"},"done":true,"prompt_eval_count":4,"eval_count":1}`)
	}))
	defer srv.Close()

	b := NewOllama(OllamaConfig{BaseURL: srv.URL})
	resp, err := b.Complete(context.Background(), Request{Prompt: "ping", Model: "llama2"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, "llama2", resp.Model)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestOllama_Complete_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	b := NewOllama(OllamaConfig{BaseURL: srv.URL})
	_, err := b.Complete(context.Background(), Request{Prompt: "ping"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllama_Complete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	b := NewOllama(OllamaConfig{BaseURL: srv.URL})
	_, err := b.Complete(context.Background(), Request{Prompt: "ping"})
	assert.ErrorIs(t, err, ErrBadResponse)
}
