// Package core provides the template and binding primitives for the weft
// library: immutable prompt templates, render-time bindings, and the errors
// template construction and rendering produce.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for template operations.
var (
	// ErrTemplateDefinition marks construction failures: the format string
	// and the declared variables disagree, or either is malformed.
	ErrTemplateDefinition = errors.New("invalid template definition")

	// ErrMissingVariable marks a Render call whose bindings lack a required
	// variable.
	ErrMissingVariable = errors.New("missing required variable")

	// ErrTemplateNotFound is returned by stores when no template matches.
	ErrTemplateNotFound = errors.New("template not found")
)

// DefinitionError reports why a template definition was rejected.
type DefinitionError struct {
	Template string
	Detail   string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("template %q: %s", e.Template, e.Detail)
}

// Unwrap makes the error match ErrTemplateDefinition under errors.Is.
func (e *DefinitionError) Unwrap() error { return ErrTemplateDefinition }

// MissingVariableError identifies the first required variable, in
// declaration order, absent from a Render call's bindings.
type MissingVariableError struct {
	Template string
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q: missing required variable %q", e.Template, e.Variable)
}

// Unwrap makes the error match ErrMissingVariable under errors.Is.
func (e *MissingVariableError) Unwrap() error { return ErrMissingVariable }
