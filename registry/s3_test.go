package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klejdi94/weft/core"
)

var errNoSuchKey = errors.New("no such key")

// fakeBlobStore is an in-memory BlobStore standing in for S3.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errNoSuchKey
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), body...)
	return nil
}

func (f *fakeBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func TestBlob_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewBlob(newFakeBlobStore(), "")

	put, err := store.Put(ctx, greetDef())
	require.NoError(t, err)
	assert.Equal(t, 1, put.Version)

	tpl, err := store.Get(ctx, "greet", 0)
	require.NoError(t, err)
	out, err := tpl.Render(core.Bindings{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)

	_, err = store.Get(ctx, "missing", 0)
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)
}

func TestBlob_PinResolve(t *testing.T) {
	ctx := context.Background()
	store := NewBlob(newFakeBlobStore(), "")
	_, err := store.Put(ctx, defWithFormat("greet", "Hello, {name}!"))
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("greet", "Hi, {name}!"))
	require.NoError(t, err)

	_, err = store.Resolve(ctx, "greet")
	assert.ErrorIs(t, err, ErrNotPinned)

	require.NoError(t, store.Pin(ctx, "greet", 1))
	tpl, err := store.Resolve(ctx, "greet")
	require.NoError(t, err)
	out, err := tpl.Render(core.Bindings{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
}

func TestBlob_ListAcrossNames(t *testing.T) {
	ctx := context.Background()
	store := NewBlob(newFakeBlobStore(), "")
	_, err := store.Put(ctx, defWithFormat("greet", "Hello, {name}!"))
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("greet", "Hi, {name}!"))
	require.NoError(t, err)
	_, err = store.Put(ctx, defWithFormat("summarize", "Summarize {name}"))
	require.NoError(t, err)

	infos, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "greet", infos[0].Name)
	assert.Equal(t, 2, infos[0].Version)
	assert.Equal(t, "summarize", infos[1].Name)
	assert.Equal(t, 1, infos[1].Version)
}

func TestBlob_PrefixScopesKeys(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	store := NewBlob(blobs, "team-a")
	_, err := store.Put(ctx, greetDef())
	require.NoError(t, err)

	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	for _, key := range keys {
		assert.True(t, strings.HasPrefix(key, "team-a/"), key)
	}
}

func TestBlob_DeleteAllRemovesPin(t *testing.T) {
	ctx := context.Background()
	blobs := newFakeBlobStore()
	store := NewBlob(blobs, "")
	_, err := store.Put(ctx, greetDef())
	require.NoError(t, err)
	require.NoError(t, store.Pin(ctx, "greet", 1))

	require.NoError(t, store.Delete(ctx, "greet", 0))
	_, err = store.Definition(ctx, "greet", 0)
	assert.ErrorIs(t, err, core.ErrTemplateNotFound)

	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
