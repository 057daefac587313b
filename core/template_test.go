package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Valid(t *testing.T) {
	tpl, err := New("summarize", []string{"text", "num_sentences"},
		"Summarize the following text in {num_sentences} sentences:\n\n{text}")
	require.NoError(t, err)
	assert.Equal(t, "summarize", tpl.Name())
	assert.Equal(t, []string{"text", "num_sentences"}, tpl.Variables())
}

func TestNew_UndeclaredPlaceholder(t *testing.T) {
	_, err := New("bad", []string{"text"}, "{text} in {num_sentences} sentences")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateDefinition)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, defErr.Detail, "num_sentences")
}

func TestNew_UnusedVariable(t *testing.T) {
	_, err := New("bad", []string{"text", "tone"}, "Rewrite: {text}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateDefinition)
	var defErr *DefinitionError
	require.ErrorAs(t, err, &defErr)
	assert.Contains(t, defErr.Detail, "tone")
}

func TestNew_MalformedFormats(t *testing.T) {
	formats := []string{
		"unterminated {text",
		"stray } brace",
		"empty {} placeholder",
		"digit-led {9lives}",
	}
	for _, format := range formats {
		_, err := New("bad", []string{"text"}, format)
		assert.ErrorIs(t, err, ErrTemplateDefinition, "format %q", format)
	}
}

func TestNew_BadVariableList(t *testing.T) {
	_, err := New("bad", []string{"text", "text"}, "{text}")
	assert.ErrorIs(t, err, ErrTemplateDefinition)

	_, err = New("bad", []string{"my var"}, "{text}")
	assert.ErrorIs(t, err, ErrTemplateDefinition)
}

func TestNew_EmptyName(t *testing.T) {
	_, err := New("", []string{"x"}, "{x}")
	assert.ErrorIs(t, err, ErrTemplateDefinition)
}

func TestMustNew_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustNew("bad", nil, "{x}") })
}

func TestTemplate_Render(t *testing.T) {
	tpl := MustNew("summarize", []string{"text", "num_sentences"},
		"Summarize the following text in {num_sentences} sentences:\n\n{text}")
	out, err := tpl.Render(Bindings{"text": "Cats are mammals.", "num_sentences": 1})
	require.NoError(t, err)
	assert.Equal(t, "Summarize the following text in 1 sentences:\n\nCats are mammals.", out)
}

func TestTemplate_Render_MissingVariable(t *testing.T) {
	tpl := MustNew("summarize", []string{"text", "num_sentences"},
		"Summarize the following text in {num_sentences} sentences:\n\n{text}")
	out, err := tpl.Render(Bindings{"text": "Cats are mammals."})
	require.Error(t, err)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, ErrMissingVariable)
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "num_sentences", missing.Variable)
	assert.Equal(t, "summarize", missing.Template)
}

func TestTemplate_Render_FirstMissingInDeclarationOrder(t *testing.T) {
	tpl := MustNew("greet", []string{"greeting", "name", "sign_off"},
		"{greeting}, {name}!\n{sign_off}")
	_, err := tpl.Render(Bindings{"name": "Ada"})
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "greeting", missing.Variable)
}

func TestTemplate_Render_ExtraBindingsIgnored(t *testing.T) {
	tpl := MustNew("echo", []string{"text"}, "{text}")
	out, err := tpl.Render(Bindings{"text": "hi", "unused": 42})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestTemplate_Render_RepeatedPlaceholder(t *testing.T) {
	tpl := MustNew("twice", []string{"word"}, "{word} and {word}")
	out, err := tpl.Render(Bindings{"word": "again"})
	require.NoError(t, err)
	assert.Equal(t, "again and again", out)
}

func TestTemplate_Render_EscapedBraces(t *testing.T) {
	tpl := MustNew("json", []string{"key"}, "{{\"{key}\": true}}")
	out, err := tpl.Render(Bindings{"key": "enabled"})
	require.NoError(t, err)
	assert.Equal(t, "{\"enabled\": true}", out)
}

func TestTemplate_Render_Idempotent(t *testing.T) {
	tpl := MustNew("echo", []string{"text"}, "say {text}")
	b := Bindings{"text": "hello"}
	first, err := tpl.Render(b)
	require.NoError(t, err)
	second, err := tpl.Render(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTemplate_Variables_Copies(t *testing.T) {
	tpl := MustNew("echo", []string{"text"}, "{text}")
	vars := tpl.Variables()
	vars[0] = "mutated"
	assert.Equal(t, []string{"text"}, tpl.Variables())
}
