// Package draft implements path-keyed access to the semi-structured listing
// draft. All reads and writes of draft values go through the Accessor so the
// field table and the stored shape cannot drift apart.
package draft

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"rentora/internal/schema"
)

// Draft is a JSON-encoded draft object. The zero value is an empty draft.
type Draft []byte

func Empty() Draft { return Draft(`{}`) }

type Accessor struct {
	reg *schema.Registry
}

func NewAccessor(reg *schema.Registry) *Accessor {
	return &Accessor{reg: reg}
}

func (a *Accessor) Registry() *schema.Registry { return a.reg }

// Get returns the typed value at path. ok is false for unknown paths, absent
// values, nulls, and values whose JSON type does not match the field type.
func (a *Accessor) Get(d Draft, path string) (any, bool) {
	def, known := a.reg.Lookup(path)
	if !known || len(d) == 0 {
		return nil, false
	}
	res := gjson.GetBytes(d, path)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, false
	}
	switch def.Type {
	case schema.FieldNumber:
		if res.Type != gjson.Number {
			return nil, false
		}
		return res.Num, true
	case schema.FieldBoolean:
		if !res.IsBool() {
			return nil, false
		}
		return res.Bool(), true
	default: // text, select
		if res.Type != gjson.String {
			return nil, false
		}
		return res.Str, true
	}
}

// Set writes value at path and returns a new draft; the input is never
// mutated. Values that fail the field's type rule are stored as absent, and
// unknown paths are no-ops.
func (a *Accessor) Set(d Draft, path string, value any) Draft {
	def, known := a.reg.Lookup(path)
	if !known {
		return d
	}
	if len(d) == 0 {
		d = Empty()
	}
	coerced, ok := coerce(def, value)
	if !ok {
		out, err := sjson.DeleteBytes(append(Draft(nil), d...), path)
		if err != nil {
			return d
		}
		return out
	}
	out, err := sjson.SetBytes(append(Draft(nil), d...), path, coerced)
	if err != nil {
		return d
	}
	return out
}

// Has reports whether path holds a usable value: non-null, type-correct, and
// for string fields non-empty after trimming.
func (a *Accessor) Has(d Draft, path string) bool {
	v, ok := a.Get(d, path)
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func coerce(def schema.FieldDefinition, value any) (any, bool) {
	switch def.Type {
	case schema.FieldNumber:
		f, ok := asFinite(value)
		return f, ok
	case schema.FieldBoolean:
		b, ok := value.(bool)
		return b, ok
	case schema.FieldSelect:
		s, ok := value.(string)
		if !ok || !def.HasOption(s) {
			return nil, false
		}
		return s, true
	default: // text
		s, ok := value.(string)
		return s, ok
	}
}

func asFinite(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
