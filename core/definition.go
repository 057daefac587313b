package core

import "time"

// Definition is the serializable form of a template, as stored by the
// registry and declared in Template custom resources. Compile turns it back
// into an immutable Template, re-running full construction validation.
type Definition struct {
	Name        string    `json:"name" yaml:"name"`
	Version     int       `json:"version,omitempty" yaml:"version,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   []string  `json:"variables" yaml:"variables"`
	Format      string    `json:"format" yaml:"format"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Compile validates the definition and returns the executable template.
func (d *Definition) Compile() (*Template, error) {
	return New(d.Name, d.Variables, d.Format)
}

// Copy returns a deep copy of the definition.
func (d *Definition) Copy() *Definition {
	c := *d
	c.Variables = append([]string(nil), d.Variables...)
	return &c
}

// Definition returns the serializable form of the template. Version,
// description, and timestamps are left for the store to fill in.
func (t *Template) Definition() *Definition {
	return &Definition{
		Name:      t.name,
		Variables: t.Variables(),
		Format:    t.format,
	}
}
