package capture

import (
	"testing"

	"rentora/internal/draft"
	"rentora/internal/extract"
	"rentora/internal/schema"
)

func fixtureAccessor(t *testing.T) *draft.Accessor {
	t.Helper()
	return draft.NewAccessor(schema.MustLoad())
}

func TestClassifyPartitions(t *testing.T) {
	a := fixtureAccessor(t)
	d := a.Set(draft.Empty(), "title", "2BHK in Noida")
	d = a.Set(d, "monthly_rent", 15000)
	d = a.Set(d, "location.city", "noida")

	res := &extract.Result{
		FieldConfidenceTier: map[string]extract.Tier{
			"title":         extract.TierHigh,
			"monthly_rent":  extract.TierMedium,
			"location.city": extract.TierHigh,
		},
		ConfirmFields:         []string{"location.city"},
		MissingRequiredFields: []string{"security_deposit"},
	}
	c := Classify(a, res, d)

	if len(c.AutoFilled) != 1 || c.AutoFilled[0] != "title" {
		t.Fatalf("auto-filled = %v", c.AutoFilled)
	}
	if len(c.NeedsConfirmation) != 1 || c.NeedsConfirmation[0] != "location.city" {
		t.Fatalf("needs-confirmation = %v", c.NeedsConfirmation)
	}
	if len(c.MissingRequired) != 1 || c.MissingRequired[0] != "security_deposit" {
		t.Fatalf("missing-required = %v", c.MissingRequired)
	}
}

func TestClassifyMediumConfidenceIsAdvisoryOnly(t *testing.T) {
	a := fixtureAccessor(t)
	d := a.Set(draft.Empty(), "monthly_rent", 9000)
	res := &extract.Result{
		FieldConfidenceTier: map[string]extract.Tier{"monthly_rent": extract.TierMedium},
	}
	c := Classify(a, res, d)
	if len(c.AutoFilled)+len(c.NeedsConfirmation)+len(c.MissingRequired) != 0 {
		t.Fatalf("medium-confidence field should not land anywhere: %+v", c)
	}
}

func TestClassifyHighConfidenceNeverNeedsConfirmation(t *testing.T) {
	a := fixtureAccessor(t)
	d := a.Set(draft.Empty(), "title", "t")
	res := &extract.Result{
		FieldConfidenceTier: map[string]extract.Tier{"title": extract.TierHigh},
	}
	c := Classify(a, res, d)
	if len(c.AutoFilled) != 1 || c.AutoFilled[0] != "title" {
		t.Fatalf("auto-filled = %v", c.AutoFilled)
	}
	if len(c.NeedsConfirmation) != 0 {
		t.Fatalf("needs-confirmation = %v", c.NeedsConfirmation)
	}
}

func TestClassifyEditedValueClearsMissing(t *testing.T) {
	a := fixtureAccessor(t)
	res := &extract.Result{MissingRequiredFields: []string{"monthly_rent"}}

	c := Classify(a, res, draft.Empty())
	if len(c.MissingRequired) != 1 {
		t.Fatalf("missing-required = %v", c.MissingRequired)
	}

	d := a.Set(draft.Empty(), "monthly_rent", 12000)
	c = Classify(a, res, d)
	if len(c.MissingRequired) != 0 {
		t.Fatalf("valued field still missing: %v", c.MissingRequired)
	}
}

func TestClassifyConfirmFieldWithoutValueIsNotConfirmable(t *testing.T) {
	a := fixtureAccessor(t)
	res := &extract.Result{ConfirmFields: []string{"title"}}
	c := Classify(a, res, draft.Empty())
	if len(c.NeedsConfirmation) != 0 {
		t.Fatalf("valueless confirm field listed: %v", c.NeedsConfirmation)
	}
}
