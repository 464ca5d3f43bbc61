// Package confirm tracks per-field confirmation state for one extraction and
// decides when the capture draft may be released to the wizard.
package confirm

import (
	"errors"
	"fmt"

	"rentora/internal/capture"
	"rentora/internal/draft"
	"rentora/internal/extract"
)

var (
	ErrUnknownField = errors.New("confirm: field not registered")
	ErrNoValue      = errors.New("confirm: field has no value to confirm")
)

// Telemetry receives fire-and-forget confirmation signals. Implementations
// must never block.
type Telemetry interface {
	FieldConfirmed(path string, edited bool)
}

// Workflow owns the capture draft between extraction and release. Confirmed
// flags reset with every new extraction; callers synchronize access.
type Workflow struct {
	acc       *draft.Accessor
	res       *extract.Result
	d         draft.Draft
	confirmed map[string]bool
	tel       Telemetry
}

func NewWorkflow(acc *draft.Accessor, res *extract.Result, tel Telemetry) *Workflow {
	return &Workflow{
		acc:       acc,
		res:       res,
		d:         append(draft.Draft(nil), res.DraftSuggestion...),
		confirmed: make(map[string]bool),
		tel:       tel,
	}
}

// Draft returns the capture draft with all edits applied.
func (w *Workflow) Draft() draft.Draft { return w.d }

// Result returns the extraction result this workflow was built from.
func (w *Workflow) Result() *extract.Result { return w.res }

// Classification recomputes the field partition over the current draft, so
// an edit that fills a missing-required field immediately unblocks it.
func (w *Workflow) Classification() capture.Classification {
	return capture.Classify(w.acc, w.res, w.d)
}

// SaveField writes an edited value and marks the field confirmed; an edit is
// an implicit confirmation.
func (w *Workflow) SaveField(path string, value any) error {
	if _, ok := w.acc.Registry().Lookup(path); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	w.d = w.acc.Set(w.d, path, value)
	w.confirmed[path] = true
	if w.tel != nil {
		w.tel.FieldConfirmed(path, true)
	}
	return nil
}

// ConfirmField marks a field confirmed without changing its value.
func (w *Workflow) ConfirmField(path string) error {
	if _, ok := w.acc.Registry().Lookup(path); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	if !w.acc.Has(w.d, path) {
		return fmt.Errorf("%w: %s", ErrNoValue, path)
	}
	w.confirmed[path] = true
	if w.tel != nil {
		w.tel.FieldConfirmed(path, false)
	}
	return nil
}

// Confirmed reports whether the field was explicitly confirmed or edited.
func (w *Workflow) Confirmed(path string) bool { return w.confirmed[path] }

// Unresolved returns the two blocking sets: confirm-listed fields not yet
// confirmed, and missing-required fields still without a value.
func (w *Workflow) Unresolved() (confirmations, required []string) {
	c := w.Classification()
	for _, p := range c.NeedsConfirmation {
		if !w.confirmed[p] {
			confirmations = append(confirmations, p)
		}
	}
	required = append(required, c.MissingRequired...)
	return confirmations, required
}

// Releasable reports whether the draft may move on to the wizard.
func (w *Workflow) Releasable() bool {
	confirmations, required := w.Unresolved()
	return len(confirmations) == 0 && len(required) == 0
}
