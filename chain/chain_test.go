package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klejdi94/weft/backend"
	"github.com/klejdi94/weft/core"
)

// countingBackend counts Complete calls and delegates to reply.
type countingBackend struct {
	calls int
	reply func(req backend.Request) (*backend.Response, error)
}

func (c *countingBackend) Complete(_ context.Context, req backend.Request) (*backend.Response, error) {
	c.calls++
	return c.reply(req)
}

func echoBackend() backend.Backend {
	return backend.Func(func(_ context.Context, req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: "ECHO:" + req.Prompt}, nil
	})
}

func TestNew_NilTemplate(t *testing.T) {
	_, err := New(nil, echoBackend())
	assert.ErrorIs(t, err, ErrInvalidChain)
}

func TestNew_NilBackend(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	_, err := New(tpl, nil)
	assert.ErrorIs(t, err, ErrInvalidChain)
}

func TestChain_Invoke_Echo(t *testing.T) {
	tpl := core.MustNew("summarize", []string{"text", "num_sentences"},
		"Summarize the following text in {num_sentences} sentences:\n\n{text}")
	c, err := New(tpl, echoBackend())
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), core.Bindings{"text": "hi", "num_sentences": 2})
	require.NoError(t, err)
	assert.Equal(t, "ECHO:Summarize the following text in 2 sentences:\n\nhi", out)
}

func TestChain_Invoke_ExactlyOneBackendCall(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	cb := &countingBackend{reply: func(req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: req.Prompt}, nil
	}}
	c, err := New(tpl, cb)
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), core.Bindings{"text": "once"})
	require.NoError(t, err)
	assert.Equal(t, 1, cb.calls)
}

func TestChain_Invoke_RenderFailureSkipsBackend(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	cb := &countingBackend{reply: func(req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: "never"}, nil
	}}
	c, err := New(tpl, cb)
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), core.Bindings{})
	assert.ErrorIs(t, err, core.ErrMissingVariable)
	assert.Empty(t, out)
	assert.Zero(t, cb.calls)
}

func TestChain_Invoke_BackendErrorPropagatesUnchanged(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	failure := &backend.UnavailableError{Backend: "stub", Err: context.DeadlineExceeded}
	c, err := New(tpl, backend.Func(func(_ context.Context, _ backend.Request) (*backend.Response, error) {
		return nil, failure
	}))
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), core.Bindings{"text": "hi"})
	assert.Empty(t, out)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Same(t, failure, err)
}

func TestChain_Invoke_ResponseVerbatim(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	c, err := New(tpl, backend.Func(func(_ context.Context, _ backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: "  spaced \n"}, nil
	}))
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), core.Bindings{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "  spaced \n", out)
}

func TestChain_Invoke_ForwardsModel(t *testing.T) {
	tpl := core.MustNew("echo", []string{"text"}, "{text}")
	var seen string
	c, err := New(tpl, backend.Func(func(_ context.Context, req backend.Request) (*backend.Response, error) {
		seen = req.Model
		return &backend.Response{Content: "ok"}, nil
	}), WithModel("gpt-4"))
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), core.Bindings{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", seen)
	assert.Equal(t, "gpt-4", c.Model())
}

func TestChain_SharedBackendAcrossChains(t *testing.T) {
	cb := &countingBackend{reply: func(req backend.Request) (*backend.Response, error) {
		return &backend.Response{Content: req.Prompt}, nil
	}}
	first, err := New(core.MustNew("a", []string{"x"}, "A:{x}"), cb)
	require.NoError(t, err)
	second, err := New(core.MustNew("b", []string{"x"}, "B:{x}"), cb)
	require.NoError(t, err)

	outA, err := first.Invoke(context.Background(), core.Bindings{"x": "1"})
	require.NoError(t, err)
	outB, err := second.Invoke(context.Background(), core.Bindings{"x": "2"})
	require.NoError(t, err)
	assert.Equal(t, "A:1", outA)
	assert.Equal(t, "B:2", outB)
	assert.Equal(t, 2, cb.calls)
}
