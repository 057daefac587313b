// Package chain couples one template with one completion backend: Invoke
// renders the template from the caller's bindings and dispatches the
// finalized prompt in a single backend call.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/klejdi94/weft/backend"
	"github.com/klejdi94/weft/core"
)

// ErrInvalidChain marks construction with a nil template or backend.
var ErrInvalidChain = errors.New("invalid chain")

// Chain binds an immutable template to a completion backend. The chain
// owns its template; the backend is shared and may serve many chains.
// A Chain holds no mutable state, so concurrent Invoke calls are safe
// whenever the backend is.
type Chain struct {
	template *core.Template
	backend  backend.Backend
	model    string
}

// Option configures a Chain.
type Option func(*Chain)

// WithModel sets the model identifier forwarded on every completion
// request. Empty means the backend's default.
func WithModel(model string) Option {
	return func(c *Chain) { c.model = model }
}

// New builds a chain over a template and a backend. Both are required.
func New(t *core.Template, b backend.Backend, opts ...Option) (*Chain, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: template is nil", ErrInvalidChain)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: backend is nil", ErrInvalidChain)
	}
	c := &Chain{template: t, backend: b}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Template returns the chain's template.
func (c *Chain) Template() *core.Template { return c.template }

// Model returns the model identifier forwarded on completion requests.
func (c *Chain) Model() string { return c.model }

// Invoke renders the template with b and dispatches the finalized prompt
// to the backend exactly once, returning the completion content verbatim.
// A render failure returns before any backend call is made. Render and
// backend errors propagate unchanged; the chain never retries, caches,
// or inspects the output.
func (c *Chain) Invoke(ctx context.Context, b core.Bindings) (string, error) {
	prompt, err := c.template.Render(b)
	if err != nil {
		return "", err
	}
	resp, err := c.backend.Complete(ctx, backend.Request{Prompt: prompt, Model: c.model})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
