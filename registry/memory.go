package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/klejdi94/weft/core"
)

// Memory is an in-memory Store for tests and single-process use.
type Memory struct {
	mu     sync.RWMutex
	defs   map[string]map[int]*core.Definition // name -> version -> definition
	latest map[string]int                      // name -> highest stored version
	pins   map[string]int                      // name -> pinned version
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		defs:   make(map[string]map[int]*core.Definition),
		latest: make(map[string]int),
		pins:   make(map[string]int),
	}
}

// Put implements Store. Storing an existing name+version overwrites it
// and keeps the original creation time.
func (m *Memory) Put(ctx context.Context, def *core.Definition) (*core.Definition, error) {
	stored, err := normalize(def, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored.Version == 0 {
		stored.Version = m.latest[stored.Name] + 1
	}
	if m.defs[stored.Name] == nil {
		m.defs[stored.Name] = make(map[int]*core.Definition)
	}
	if prev, ok := m.defs[stored.Name][stored.Version]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	m.defs[stored.Name][stored.Version] = stored
	if stored.Version > m.latest[stored.Name] {
		m.latest[stored.Name] = stored.Version
	}
	return stored.Copy(), nil
}

// Definition implements Store. Version 0 means latest.
func (m *Memory) Definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.definitionLocked(name, version)
}

func (m *Memory) definitionLocked(name string, version int) (*core.Definition, error) {
	versions, ok := m.defs[name]
	if !ok {
		return nil, core.ErrTemplateNotFound
	}
	if version == 0 {
		version = m.latest[name]
	}
	def, ok := versions[version]
	if !ok {
		return nil, core.ErrTemplateNotFound
	}
	return def.Copy(), nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, name string, version int) (*core.Template, error) {
	def, err := m.Definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Resolve implements Store.
func (m *Memory) Resolve(ctx context.Context, name string) (*core.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.defs[name]; !ok {
		return nil, core.ErrTemplateNotFound
	}
	version, ok := m.pins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotPinned, name)
	}
	def, err := m.definitionLocked(name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Pin implements Store. Version 0 pins the latest.
func (m *Memory) Pin(ctx context.Context, name string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.definitionLocked(name, version); err != nil {
		return err
	}
	if version == 0 {
		version = m.latest[name]
	}
	m.pins[name] = version
	return nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, filter Filter) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []Info
	for _, name := range names {
		def := m.defs[name][m.latest[name]]
		_, pinned := m.pins[name]
		info := infoOf(def, pinned)
		if filter.matches(info) {
			out = append(out, info)
		}
	}
	return filter.page(out), nil
}

// Versions implements Store. Unknown names yield an empty result.
func (m *Memory) Versions(ctx context.Context, name string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.defs[name]
	nums := make([]int, 0, len(versions))
	for v := range versions {
		nums = append(nums, v)
	}
	sort.Ints(nums)
	pin := m.pins[name]
	out := make([]Info, 0, len(nums))
	for _, v := range nums {
		out = append(out, infoOf(versions[v], v == pin))
	}
	return out, nil
}

// Delete implements Store. Version 0 removes every version and the pin.
func (m *Memory) Delete(ctx context.Context, name string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions, ok := m.defs[name]
	if !ok {
		return core.ErrTemplateNotFound
	}
	if version == 0 {
		m.forget(name)
		return nil
	}
	if _, ok := versions[version]; !ok {
		return core.ErrTemplateNotFound
	}
	delete(versions, version)
	if len(versions) == 0 {
		m.forget(name)
		return nil
	}
	if m.pins[name] == version {
		delete(m.pins, name)
	}
	if m.latest[name] == version {
		highest := 0
		for v := range versions {
			if v > highest {
				highest = v
			}
		}
		m.latest[name] = highest
	}
	return nil
}

func (m *Memory) forget(name string) {
	delete(m.defs, name)
	delete(m.latest, name)
	delete(m.pins, name)
}

var _ Store = (*Memory)(nil)
