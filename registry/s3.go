// Package registry S3-compatible storage via the BlobStore interface.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klejdi94/weft/core"
)

// BlobStore is a minimal key-value store over S3-compatible backends
// (AWS S3, MinIO). See registry/s3blob for the AWS implementation.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Blob stores definitions in a BlobStore. Keys:
// <prefix>definition/<name>/v<version>.json and <prefix>pin/<name>.
type Blob struct {
	store  BlobStore
	prefix string
}

// NewBlob creates a blob-backed store under the given key prefix.
func NewBlob(store BlobStore, prefix string) *Blob {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Blob{store: store, prefix: prefix}
}

func (b *Blob) definitionKey(name string, version int) string {
	return fmt.Sprintf("%sdefinition/%s/v%d.json", b.prefix, name, version)
}

func (b *Blob) pinKey(name string) string {
	return b.prefix + "pin/" + name
}

// parseVersionBase extracts the version from a "v<N>.json" file name.
func parseVersionBase(base string) (int, bool) {
	if !strings.HasPrefix(base, "v") || !strings.HasSuffix(base, ".json") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "v"), ".json"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (b *Blob) versionNumbers(ctx context.Context, name string) ([]int, error) {
	keys, err := b.store.List(ctx, b.prefix+"definition/"+name+"/")
	if err != nil {
		return nil, fmt.Errorf("registry blob: %w", err)
	}
	var nums []int
	for _, key := range keys {
		base := key[strings.LastIndex(key, "/")+1:]
		if n, ok := parseVersionBase(base); ok {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

func (b *Blob) definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	data, err := b.store.Get(ctx, b.definitionKey(name, version))
	if err != nil {
		return nil, fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
	}
	var def core.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("registry blob: decode %s v%d: %w", name, version, err)
	}
	return &def, nil
}

// Put implements Store.
func (b *Blob) Put(ctx context.Context, def *core.Definition) (*core.Definition, error) {
	stored, err := normalize(def, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	nums, err := b.versionNumbers(ctx, stored.Name)
	if err != nil {
		return nil, err
	}
	if stored.Version == 0 {
		stored.Version = 1
		if len(nums) > 0 {
			stored.Version = nums[len(nums)-1] + 1
		}
	}
	if prev, err := b.definition(ctx, stored.Name, stored.Version); err == nil {
		stored.CreatedAt = prev.CreatedAt
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := b.store.Put(ctx, b.definitionKey(stored.Name, stored.Version), data); err != nil {
		return nil, fmt.Errorf("registry blob: %w", err)
	}
	return stored.Copy(), nil
}

// Definition implements Store. Version 0 means latest.
func (b *Blob) Definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	if version == 0 {
		nums, err := b.versionNumbers(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	}
	return b.definition(ctx, name, version)
}

// Get implements Store.
func (b *Blob) Get(ctx context.Context, name string, version int) (*core.Template, error) {
	def, err := b.Definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Resolve implements Store.
func (b *Blob) Resolve(ctx context.Context, name string) (*core.Template, error) {
	raw, err := b.store.Get(ctx, b.pinKey(name))
	if err != nil {
		nums, err := b.versionNumbers(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotPinned, name)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || version < 1 {
		return nil, fmt.Errorf("registry blob: bad pin for %s: %q", name, raw)
	}
	def, err := b.definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Pin implements Store. Version 0 pins the latest.
func (b *Blob) Pin(ctx context.Context, name string, version int) error {
	if version == 0 {
		nums, err := b.versionNumbers(ctx, name)
		if err != nil {
			return err
		}
		if len(nums) == 0 {
			return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	} else if _, err := b.definition(ctx, name, version); err != nil {
		return err
	}
	if err := b.store.Put(ctx, b.pinKey(name), []byte(strconv.Itoa(version))); err != nil {
		return fmt.Errorf("registry blob: %w", err)
	}
	return nil
}

// List implements Store. Names are recovered from the object keys.
func (b *Blob) List(ctx context.Context, filter Filter) ([]Info, error) {
	keys, err := b.store.List(ctx, b.prefix+"definition/")
	if err != nil {
		return nil, fmt.Errorf("registry blob: %w", err)
	}
	latest := make(map[string]int)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, b.prefix+"definition/")
		i := strings.LastIndex(rest, "/")
		if i < 0 {
			continue
		}
		version, ok := parseVersionBase(rest[i+1:])
		if !ok {
			continue
		}
		if name := rest[:i]; version > latest[name] {
			latest[name] = version
		}
	}
	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []Info
	for _, name := range names {
		def, err := b.definition(ctx, name, latest[name])
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				continue
			}
			return nil, err
		}
		_, pinErr := b.store.Get(ctx, b.pinKey(name))
		info := infoOf(def, pinErr == nil)
		if filter.matches(info) {
			out = append(out, info)
		}
	}
	return filter.page(out), nil
}

// Versions implements Store. Unknown names yield an empty result.
func (b *Blob) Versions(ctx context.Context, name string) ([]Info, error) {
	nums, err := b.versionNumbers(ctx, name)
	if err != nil {
		return nil, err
	}
	pin := 0
	if raw, err := b.store.Get(ctx, b.pinKey(name)); err == nil {
		pin, _ = strconv.Atoi(strings.TrimSpace(string(raw)))
	}
	out := make([]Info, 0, len(nums))
	for _, v := range nums {
		def, err := b.definition(ctx, name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, infoOf(def, v == pin))
	}
	return out, nil
}

// Delete implements Store. Version 0 removes every version and the pin.
func (b *Blob) Delete(ctx context.Context, name string, version int) error {
	nums, err := b.versionNumbers(ctx, name)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	if version == 0 {
		for _, v := range nums {
			if err := b.store.Delete(ctx, b.definitionKey(name, v)); err != nil {
				return fmt.Errorf("registry blob: %w", err)
			}
		}
		_ = b.store.Delete(ctx, b.pinKey(name))
		return nil
	}
	found := false
	for _, v := range nums {
		if v == version {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
	}
	if err := b.store.Delete(ctx, b.definitionKey(name, version)); err != nil {
		return fmt.Errorf("registry blob: %w", err)
	}
	if raw, err := b.store.Get(ctx, b.pinKey(name)); err == nil {
		if pin, _ := strconv.Atoi(strings.TrimSpace(string(raw))); pin == version {
			_ = b.store.Delete(ctx, b.pinKey(name))
		}
	}
	return nil
}

var _ Store = (*Blob)(nil)
