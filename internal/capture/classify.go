package capture

import (
	"rentora/internal/draft"
	"rentora/internal/extract"
)

// Classification partitions the registry's paths for the confirmation view.
// The three lists are disjoint; paths appear in registry declaration order.
type Classification struct {
	AutoFilled        []string `json:"auto_filled"`
	NeedsConfirmation []string `json:"needs_confirmation"`
	MissingRequired   []string `json:"missing_required"`
}

// Classify partitions fields against the current capture draft. The backend
// confirm list is authoritative: a valued field outside it never demands
// confirmation, whatever its confidence tier.
func Classify(a *draft.Accessor, res *extract.Result, d draft.Draft) Classification {
	confirm := toSet(res.ConfirmFields)
	missing := toSet(res.MissingRequiredFields)

	var out Classification
	for _, path := range a.Registry().Paths() {
		has := a.Has(d, path)
		switch {
		case confirm[path] && has:
			out.NeedsConfirmation = append(out.NeedsConfirmation, path)
		case missing[path] && !has:
			out.MissingRequired = append(out.MissingRequired, path)
		case has && !confirm[path] && res.FieldConfidenceTier[path] == extract.TierHigh:
			out.AutoFilled = append(out.AutoFilled, path)
		}
	}
	return out
}

func toSet(paths []string) map[string]bool {
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		m[p] = true
	}
	return m
}
