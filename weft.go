// Package weft provides immutable prompt templates with declared,
// required variables, and chains that couple one template to a single
// LLM completion backend.
//
// Quick start:
//
//	tpl, err := weft.New("greet", []string{"name"}, "Hello, {name}!")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	be := backend.NewOllama(backend.OllamaConfig{Model: "llama3"})
//	ch, err := weft.NewChain(tpl, be)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	out, err := ch.Invoke(context.Background(), weft.Bindings{"name": "Ada"})
package weft

import (
	"github.com/klejdi94/weft/backend"
	"github.com/klejdi94/weft/chain"
	"github.com/klejdi94/weft/core"
)

// Re-export core types for convenience.
type (
	// Template is an immutable prompt template compiled from a name, a
	// variable list, and a format string.
	Template = core.Template
	// Definition is the serializable form of a template, as stored in
	// registries.
	Definition = core.Definition
	// Bindings maps variable names to the values substituted on Render.
	Bindings = core.Bindings
	// Chain couples one template with one completion backend.
	Chain = chain.Chain
	// Option configures a Chain.
	Option = chain.Option
	// Backend is a completion provider.
	Backend = backend.Backend
	// Func adapts a plain function into a Backend.
	Func = backend.Func
	// Request is a single completion request.
	Request = backend.Request
	// Response is a completion result.
	Response = backend.Response
)

// Constructors and helpers (re-export from core and chain).
var (
	New       = core.New
	MustNew   = core.MustNew
	Stringify = core.Stringify
	NewChain  = chain.New
	WithModel = chain.WithModel
)

// Sentinel errors (re-export for errors.Is without extra imports).
var (
	ErrTemplateDefinition = core.ErrTemplateDefinition
	ErrMissingVariable    = core.ErrMissingVariable
	ErrTemplateNotFound   = core.ErrTemplateNotFound
	ErrInvalidChain       = chain.ErrInvalidChain
	ErrUnavailable        = backend.ErrUnavailable
	ErrBadResponse        = backend.ErrBadResponse
)
