package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klejdi94/weft/core"
)

func TestDir_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDir(t.TempDir())
	require.NoError(t, err)

	put, err := store.Put(ctx, greetDef())
	require.NoError(t, err)
	assert.Equal(t, 1, put.Version)

	tpl, err := store.Get(ctx, "greet", 0)
	require.NoError(t, err)
	out, err := tpl.Render(core.Bindings{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
}

func TestDir_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDir(root)
	require.NoError(t, err)
	_, err = store.Put(ctx, greetDef())
	require.NoError(t, err)
	require.NoError(t, store.Pin(ctx, "greet", 1))

	reopened, err := NewDir(root)
	require.NoError(t, err)
	tpl, err := reopened.Resolve(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "greet", tpl.Name())

	infos, err := reopened.Versions(ctx, "greet")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Pinned)
}

func TestDir_VersionSequenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewDir(root)
	require.NoError(t, err)
	_, err = store.Put(ctx, greetDef())
	require.NoError(t, err)

	reopened, err := NewDir(root)
	require.NoError(t, err)
	second, err := reopened.Put(ctx, greetDef())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
}

func TestDir_SanitizedNameKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	store, err := NewDir(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("app/greet", "Hello, {name}!"))
	require.NoError(t, err)

	def, err := store.Definition(ctx, "app/greet", 0)
	require.NoError(t, err)
	assert.Equal(t, "app/greet", def.Name)

	infos, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "app/greet", infos[0].Name)
}

func TestDir_ResolveUnpinned(t *testing.T) {
	ctx := context.Background()
	store, err := NewDir(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(ctx, greetDef())
	require.NoError(t, err)
	_, err = store.Resolve(ctx, "greet")
	assert.ErrorIs(t, err, ErrNotPinned)
	_, err = store.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestDir_DeleteVersion(t *testing.T) {
	ctx := context.Background()
	store, err := NewDir(t.TempDir())
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("greet", "Hello, {name}!"))
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("greet", "Hi, {name}!"))
	require.NoError(t, err)
	require.NoError(t, store.Pin(ctx, "greet", 2))

	require.NoError(t, store.Delete(ctx, "greet", 2))
	_, err = store.Resolve(ctx, "greet")
	assert.ErrorIs(t, err, ErrNotPinned)

	require.NoError(t, store.Delete(ctx, "greet", 1))
	_, err = store.Definition(ctx, "greet", 0)
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}
