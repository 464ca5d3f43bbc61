package draft

import (
	"testing"

	"rentora/internal/schema"
)

func TestReconcileLeftBiased(t *testing.T) {
	a := NewAccessor(schema.MustLoad())
	d := a.Set(Empty(), "title", "2BHK in Noida")
	d = a.Set(d, "location.city", "noida")
	d = a.Set(d, "monthly_rent", 15000)

	form := Form{
		"title":       "old title",
		"description": "kept as-is",
	}
	out := Reconcile(a, form, d)

	if out["title"] != "2BHK in Noida" {
		t.Fatalf("title = %v", out["title"])
	}
	if out["location.city"] != "noida" {
		t.Fatalf("city = %v", out["location.city"])
	}
	if out["monthly_rent"] != "15000" {
		t.Fatalf("rent = %v (want display string)", out["monthly_rent"])
	}
	if out["description"] != "kept as-is" {
		t.Fatalf("absent draft field overwrote form: %v", out["description"])
	}
	if form["title"] != "old title" {
		t.Fatal("input form mutated")
	}
}

func TestReconcileEmptyDraftIsIdentity(t *testing.T) {
	a := NewAccessor(schema.MustLoad())
	form := Form{"title": "t", "monthly_rent": "9000"}
	out := Reconcile(a, form, Empty())
	if len(out) != len(form) {
		t.Fatalf("len = %d", len(out))
	}
	for k, v := range form {
		if out[k] != v {
			t.Fatalf("%s changed: %v", k, out[k])
		}
	}
}

func TestFormatNumberDropsTrailingZeros(t *testing.T) {
	if got := FormatNumber(15000); got != "15000" {
		t.Fatalf("got %q", got)
	}
	if got := FormatNumber(2.5); got != "2.5" {
		t.Fatalf("got %q", got)
	}
}
