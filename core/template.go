package core

import (
	"fmt"
	"strings"
)

// segment is one compiled piece of a format string: literal text, or a
// variable reference resolved at render time (name non-empty).
type segment struct {
	literal string
	name    string
}

// Template is an immutable prompt template. It couples a format string
// containing {name} placeholders with the ordered set of variables the
// format requires. Construction validates the pairing once; Render only
// substitutes.
//
// Literal braces are written doubled: "{{" renders as "{" and "}}" as "}".
type Template struct {
	name      string
	variables []string
	format    string
	segments  []segment
}

// New builds a Template from a name, the required variable names in
// declaration order, and a format string. It fails with a *DefinitionError
// when the format references an undeclared placeholder, a declared variable
// never appears in the format, a placeholder is malformed, or a variable
// name is empty, invalid, or declared twice.
func New(name string, variables []string, format string) (*Template, error) {
	if name == "" {
		return nil, &DefinitionError{Template: name, Detail: "template name is empty"}
	}
	declared := make(map[string]bool, len(variables))
	for _, v := range variables {
		if !validName(v) {
			return nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("invalid variable name %q", v)}
		}
		if declared[v] {
			return nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("variable %q declared twice", v)}
		}
		declared[v] = true
	}
	segs, refs, err := parseFormat(name, format)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if !declared[ref] {
			return nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("format references undeclared variable %q", ref)}
		}
		referenced[ref] = true
	}
	for _, v := range variables {
		if !referenced[v] {
			return nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("declared variable %q never appears in format", v)}
		}
	}
	return &Template{
		name:      name,
		variables: append([]string(nil), variables...),
		format:    format,
		segments:  segs,
	}, nil
}

// MustNew is like New but panics on error. Intended for templates defined
// as package-level values.
func MustNew(name string, variables []string, format string) *Template {
	t, err := New(name, variables, format)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes bound values into the format string. Every required
// variable must be present in b; keys beyond the required set are ignored.
// A missing variable fails with a *MissingVariableError naming the first
// missing variable in declaration order, and no partial output is produced.
//
// Render is pure: it never mutates the template or the bindings, and
// identical inputs yield identical output.
func (t *Template) Render(b Bindings) (string, error) {
	for _, v := range t.variables {
		if _, ok := b[v]; !ok {
			return "", &MissingVariableError{Template: t.name, Variable: v}
		}
	}
	var sb strings.Builder
	sb.Grow(len(t.format))
	for _, s := range t.segments {
		if s.name == "" {
			sb.WriteString(s.literal)
		} else {
			sb.WriteString(Stringify(b[s.name]))
		}
	}
	return sb.String(), nil
}

// Name returns the template's identifying name.
func (t *Template) Name() string { return t.name }

// Variables returns the required variable names in declaration order.
// The returned slice is a copy.
func (t *Template) Variables() []string {
	return append([]string(nil), t.variables...)
}

// Format returns the original format string.
func (t *Template) Format() string { return t.format }

// parseFormat compiles format into segments and returns the placeholder
// names in order of first appearance.
func parseFormat(name, format string) ([]segment, []string, error) {
	var (
		segs []segment
		refs []string
		seen = make(map[string]bool)
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(format); {
		switch format[i] {
		case '{':
			if i+1 < len(format) && format[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(format[i+1:], '}')
			if end < 0 {
				return nil, nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("unterminated placeholder at byte %d", i)}
			}
			ref := format[i+1 : i+1+end]
			if !validName(ref) {
				return nil, nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("malformed placeholder {%s}", ref)}
			}
			flush()
			segs = append(segs, segment{name: ref})
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
			i += end + 2
		case '}':
			if i+1 < len(format) && format[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, nil, &DefinitionError{Template: name, Detail: fmt.Sprintf("unmatched '}' at byte %d", i)}
		default:
			lit.WriteByte(format[i])
			i++
		}
	}
	flush()
	return segs, refs, nil
}

// validName reports whether s is a legal variable name: a letter or
// underscore followed by letters, digits, or underscores.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
