package draft

import (
	"strconv"

	"rentora/internal/schema"
)

// Form is the wizard's editable value set, keyed by registry path. Numbers
// are kept in their string display form so every form input edits text.
type Form map[string]any

// Reconcile merges a confirmed capture draft into the form, overwriting only
// the paths the draft actually holds. The merge is left-biased toward the
// draft: present draft values win, absent ones leave the form untouched.
func Reconcile(a *Accessor, form Form, d Draft) Form {
	out := make(Form, len(form))
	for k, v := range form {
		out[k] = v
	}
	for _, def := range a.Registry().Fields() {
		if !a.Has(d, def.Path) {
			continue
		}
		v, _ := a.Get(d, def.Path)
		if def.Type == schema.FieldNumber {
			out[def.Path] = FormatNumber(v.(float64))
			continue
		}
		out[def.Path] = v
	}
	return out
}

// FormatNumber renders a numeric field value the way form inputs display it.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
