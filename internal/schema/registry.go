// Package schema holds the declarative table of capturable listing fields.
// Every field path referenced anywhere in the capture or confirmation flow
// must exist here; the registry is the single source of path semantics.
package schema

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldSelect  FieldType = "select"
	FieldBoolean FieldType = "boolean"
)

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type FieldDefinition struct {
	Path    string    `yaml:"path" json:"path"`
	Label   string    `yaml:"label" json:"label"`
	Type    FieldType `yaml:"type" json:"type"`
	Options []Option  `yaml:"options,omitempty" json:"options,omitempty"`
}

// HasOption reports whether v is a declared option value of a select field.
func (f FieldDefinition) HasOption(v string) bool {
	for _, o := range f.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

//go:embed fields.yaml
var fieldsYAML []byte

type Registry struct {
	ordered []FieldDefinition
	byPath  map[string]FieldDefinition
}

// Load parses and validates the embedded field table.
func Load() (*Registry, error) {
	var doc struct {
		Fields []FieldDefinition `yaml:"fields"`
	}
	if err := yaml.Unmarshal(fieldsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse fields.yaml: %w", err)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("fields.yaml declares no fields")
	}
	r := &Registry{byPath: make(map[string]FieldDefinition, len(doc.Fields))}
	for _, f := range doc.Fields {
		if f.Path == "" {
			return nil, fmt.Errorf("field with empty path")
		}
		if _, dup := r.byPath[f.Path]; dup {
			return nil, fmt.Errorf("duplicate field path %q", f.Path)
		}
		switch f.Type {
		case FieldText, FieldNumber, FieldBoolean:
			if len(f.Options) > 0 {
				return nil, fmt.Errorf("field %q: options only allowed on select fields", f.Path)
			}
		case FieldSelect:
			if len(f.Options) == 0 {
				return nil, fmt.Errorf("select field %q has no options", f.Path)
			}
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", f.Path, f.Type)
		}
		r.byPath[f.Path] = f
		r.ordered = append(r.ordered, f)
	}
	return r, nil
}

// MustLoad is for init-time wiring; a malformed registry is a programmer error.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(path string) (FieldDefinition, bool) {
	f, ok := r.byPath[path]
	return f, ok
}

// Fields returns definitions in declaration order.
func (r *Registry) Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Paths returns all declared paths in declaration order.
func (r *Registry) Paths() []string {
	out := make([]string, 0, len(r.ordered))
	for _, f := range r.ordered {
		out = append(out, f.Path)
	}
	return out
}
