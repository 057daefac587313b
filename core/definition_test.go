package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_Compile(t *testing.T) {
	def := &Definition{
		Name:      "summarize",
		Variables: []string{"text"},
		Format:    "Summarize: {text}",
	}
	tpl, err := def.Compile()
	require.NoError(t, err)
	out, err := tpl.Render(Bindings{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize: hi", out)
}

func TestDefinition_Compile_Invalid(t *testing.T) {
	def := &Definition{Name: "bad", Variables: []string{"text"}, Format: "no placeholder"}
	_, err := def.Compile()
	assert.ErrorIs(t, err, ErrTemplateDefinition)
}

func TestTemplate_Definition_RoundTrip(t *testing.T) {
	tpl := MustNew("greet", []string{"name"}, "Hello, {name}!")
	def := tpl.Definition()
	assert.Equal(t, "greet", def.Name)
	assert.Equal(t, []string{"name"}, def.Variables)
	back, err := def.Compile()
	require.NoError(t, err)
	assert.Equal(t, tpl.Format(), back.Format())
}

func TestDefinition_Copy(t *testing.T) {
	def := &Definition{Name: "x", Variables: []string{"a"}, Format: "{a}"}
	cp := def.Copy()
	cp.Variables[0] = "b"
	assert.Equal(t, []string{"a"}, def.Variables)
}
