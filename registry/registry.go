// Package registry provides versioned storage for template definitions.
//
// A Store keeps every version of a named definition plus an optional pin
// marking the version Resolve returns. Versions are small integers
// assigned by Put starting at 1; a version of 0 passed to a lookup means
// the latest stored version. Backends cover an in-memory map, a
// directory of YAML files, Redis, PostgreSQL, and S3-compatible blob
// storage.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klejdi94/weft/core"
)

// ErrNotPinned is returned by Resolve when the template exists but no
// version has been pinned.
var ErrNotPinned = errors.New("no pinned version")

// Info summarizes one stored definition without its format body.
type Info struct {
	Name        string    `json:"name" yaml:"name"`
	Version     int       `json:"version" yaml:"version"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	// Pinned marks the pinned version in Versions results; in List
	// results, which carry one entry per name, it marks names that have
	// a pin at all.
	Pinned    bool      `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Filter limits which templates List returns.
type Filter struct {
	// Names restricts results to the given template names.
	Names []string
	// Pinned keeps only templates that have a pinned version.
	Pinned bool
	// Limit caps the result count (0 = no cap); Offset skips that many
	// results first.
	Limit  int
	Offset int
}

// Store stores and retrieves versioned template definitions. Lookups
// that miss return core.ErrTemplateNotFound.
type Store interface {
	// Put stores a definition. The definition must compile. A zero
	// Version gets the next free number for the name; a nonzero Version
	// overwrites that version. The stored copy, with version and
	// timestamps set, is returned.
	Put(ctx context.Context, def *core.Definition) (*core.Definition, error)

	// Definition returns one stored version (0 = latest).
	Definition(ctx context.Context, name string, version int) (*core.Definition, error)

	// Get compiles and returns one stored version (0 = latest).
	Get(ctx context.Context, name string, version int) (*core.Template, error)

	// Resolve compiles and returns the pinned version. It returns
	// ErrNotPinned when the name exists but nothing is pinned.
	Resolve(ctx context.Context, name string) (*core.Template, error)

	// Pin marks one stored version as the one Resolve returns.
	// Version 0 pins the latest.
	Pin(ctx context.Context, name string, version int) error

	// List returns the latest Info per name matching the filter,
	// sorted by name.
	List(ctx context.Context, filter Filter) ([]Info, error)

	// Versions returns every stored version of a name, oldest first.
	// An unknown name yields an empty result, not an error.
	Versions(ctx context.Context, name string) ([]Info, error)

	// Delete removes one version (0 = every version and the pin).
	// Deleting the pinned version clears the pin.
	Delete(ctx context.Context, name string, version int) error
}

// normalize validates a definition and returns a stamped copy ready to
// store. Version assignment is left to the backend.
func normalize(def *core.Definition, now time.Time) (*core.Definition, error) {
	if def == nil {
		return nil, fmt.Errorf("registry: definition required")
	}
	if _, err := def.Compile(); err != nil {
		return nil, err
	}
	stored := def.Copy()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	return stored, nil
}

func infoOf(def *core.Definition, pinned bool) Info {
	return Info{
		Name:        def.Name,
		Version:     def.Version,
		Description: def.Description,
		Pinned:      pinned,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}
}

func (f Filter) matches(info Info) bool {
	if len(f.Names) > 0 && !containsName(f.Names, info.Name) {
		return false
	}
	if f.Pinned && !info.Pinned {
		return false
	}
	return true
}

// page applies Offset and Limit to an already sorted result.
func (f Filter) page(infos []Info) []Info {
	if f.Offset > 0 {
		if f.Offset >= len(infos) {
			return nil
		}
		infos = infos[f.Offset:]
	}
	if f.Limit > 0 && len(infos) > f.Limit {
		infos = infos[:f.Limit]
	}
	return infos
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
