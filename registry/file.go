// Package registry directory-backed storage.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klejdi94/weft/core"
)

// Dir stores definitions as YAML files under a root directory.
//
// Layout: <root>/<name>/v<version>.yaml per stored version, plus a
// <root>/<name>/meta.yaml holding the name and pin. Directory names are
// sanitized for the filesystem; the name inside the files is
// authoritative.
type Dir struct {
	root string
	mu   sync.Mutex
}

type dirMeta struct {
	Name string `yaml:"name"`
	Pin  int    `yaml:"pin,omitempty"`
}

// NewDir opens a directory-backed store rooted at root, creating the
// directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) nameDir(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	return filepath.Join(d.root, safe)
}

func (d *Dir) versionPath(name string, version int) string {
	return filepath.Join(d.nameDir(name), fmt.Sprintf("v%d.yaml", version))
}

func (d *Dir) metaPath(name string) string {
	return filepath.Join(d.nameDir(name), "meta.yaml")
}

// versionNumbers lists the stored versions for a name, ascending. A
// missing directory yields an empty result.
func (d *Dir) versionNumbers(name string) ([]int, error) {
	entries, err := os.ReadDir(d.nameDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	var nums []int
	for _, e := range entries {
		base := e.Name()
		if e.IsDir() || !strings.HasPrefix(base, "v") || !strings.HasSuffix(base, ".yaml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "v"), ".yaml"))
		if err != nil || n < 1 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func (d *Dir) readMeta(name string) (dirMeta, error) {
	data, err := os.ReadFile(d.metaPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return dirMeta{Name: name}, nil
		}
		return dirMeta{}, fmt.Errorf("registry dir: %w", err)
	}
	var meta dirMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return dirMeta{}, fmt.Errorf("registry dir: decode meta for %s: %w", name, err)
	}
	if meta.Name == "" {
		meta.Name = name
	}
	return meta, nil
}

func (d *Dir) writeMeta(name string, meta dirMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(d.metaPath(name), data, 0644)
}

func (d *Dir) readDefinition(name string, version int) (*core.Definition, error) {
	data, err := os.ReadFile(d.versionPath(name, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
		}
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	var def core.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("registry dir: decode %s v%d: %w", name, version, err)
	}
	return &def, nil
}

// Put implements Store.
func (d *Dir) Put(ctx context.Context, def *core.Definition) (*core.Definition, error) {
	stored, err := normalize(def, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nums, err := d.versionNumbers(stored.Name)
	if err != nil {
		return nil, err
	}
	if stored.Version == 0 {
		stored.Version = 1
		if len(nums) > 0 {
			stored.Version = nums[len(nums)-1] + 1
		}
	}
	if err := os.MkdirAll(d.nameDir(stored.Name), 0755); err != nil {
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	if prev, err := d.readDefinition(stored.Name, stored.Version); err == nil {
		stored.CreatedAt = prev.CreatedAt
	}
	data, err := yaml.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(d.versionPath(stored.Name, stored.Version), data, 0644); err != nil {
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	meta, err := d.readMeta(stored.Name)
	if err != nil {
		return nil, err
	}
	meta.Name = stored.Name
	if err := d.writeMeta(stored.Name, meta); err != nil {
		return nil, err
	}
	return stored.Copy(), nil
}

// Definition implements Store. Version 0 means latest.
func (d *Dir) Definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.definitionLocked(name, version)
}

func (d *Dir) definitionLocked(name string, version int) (*core.Definition, error) {
	if version == 0 {
		nums, err := d.versionNumbers(name)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	}
	return d.readDefinition(name, version)
}

// Get implements Store.
func (d *Dir) Get(ctx context.Context, name string, version int) (*core.Template, error) {
	def, err := d.Definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Resolve implements Store.
func (d *Dir) Resolve(ctx context.Context, name string) (*core.Template, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nums, err := d.versionNumbers(name)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	meta, err := d.readMeta(name)
	if err != nil {
		return nil, err
	}
	if meta.Pin == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotPinned, name)
	}
	def, err := d.readDefinition(name, meta.Pin)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Pin implements Store. Version 0 pins the latest.
func (d *Dir) Pin(ctx context.Context, name string, version int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if version == 0 {
		nums, err := d.versionNumbers(name)
		if err != nil {
			return err
		}
		if len(nums) == 0 {
			return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	} else if _, err := d.readDefinition(name, version); err != nil {
		return err
	}
	meta, err := d.readMeta(name)
	if err != nil {
		return err
	}
	meta.Pin = version
	return d.writeMeta(name, meta)
}

// List implements Store. Entries that cannot be read are skipped.
func (d *Dir) List(ctx context.Context, filter Filter) ([]Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("registry dir: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		nums, err := d.versionNumbers(e.Name())
		if err != nil || len(nums) == 0 {
			continue
		}
		def, err := d.readDefinition(e.Name(), nums[len(nums)-1])
		if err != nil {
			continue
		}
		meta, err := d.readMeta(e.Name())
		if err != nil {
			continue
		}
		info := infoOf(def, meta.Pin != 0)
		if filter.matches(info) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return filter.page(out), nil
}

// Versions implements Store. Unknown names yield an empty result.
func (d *Dir) Versions(ctx context.Context, name string) ([]Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	nums, err := d.versionNumbers(name)
	if err != nil {
		return nil, err
	}
	meta, err := d.readMeta(name)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(nums))
	for _, v := range nums {
		def, err := d.readDefinition(name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, infoOf(def, v == meta.Pin))
	}
	return out, nil
}

// Delete implements Store. Version 0 removes the name entirely.
func (d *Dir) Delete(ctx context.Context, name string, version int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	nums, err := d.versionNumbers(name)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	if version == 0 {
		return os.RemoveAll(d.nameDir(name))
	}
	path := d.versionPath(name, version)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
		}
		return fmt.Errorf("registry dir: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("registry dir: %w", err)
	}
	if len(nums) == 1 && nums[0] == version {
		return os.RemoveAll(d.nameDir(name))
	}
	meta, err := d.readMeta(name)
	if err != nil {
		return err
	}
	if meta.Pin == version {
		meta.Pin = 0
		return d.writeMeta(name, meta)
	}
	return nil
}

var _ Store = (*Dir)(nil)
