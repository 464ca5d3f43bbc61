package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	raw := json.RawMessage(`{
		"transcript": "2BHK in Noida for 15000 rent",
		"draft_suggestion": {"title":"2BHK in Noida","monthly_rent":15000,"location":{"city":"noida"}},
		"field_confidence_tier": {"title":"high","monthly_rent":"high","location.city":"high"},
		"confirm_fields": [],
		"missing_required_fields": [],
		"critical_warnings": []
	}`)
	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Transcript == "" || res.FieldConfidenceTier["title"] != TierHigh {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseRejectsBadTier(t *testing.T) {
	raw := json.RawMessage(`{"transcript":"x","draft_suggestion":{},"field_confidence_tier":{"title":"certain"}}`)
	if _, err := Parse(raw); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("want ErrInvalidJSON, got %v", err)
	}
}

func TestParseRejectsNonObjectDraft(t *testing.T) {
	raw := json.RawMessage(`{"transcript":"x","draft_suggestion":[]}`)
	if _, err := Parse(raw); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("want ErrInvalidJSON, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse(json.RawMessage("not json")); !errors.Is(err, ErrInvalidJSON) {
		t.Fatalf("want ErrInvalidJSON, got %v", err)
	}
}

func TestParseDefaultsEmptyCollections(t *testing.T) {
	res, err := Parse(json.RawMessage(`{"transcript":"x","draft_suggestion":{}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.FieldConfidenceTier == nil {
		t.Fatal("nil tier map")
	}
	if string(res.DraftSuggestion) != "{}" {
		t.Fatalf("draft = %s", res.DraftSuggestion)
	}
}

func TestStripFence(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := stripFence(in); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
	if got := stripFence(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestPromptListsEveryRegisteredPath(t *testing.T) {
	reg := mustRegistry(t)
	p := buildPrompt(reg, "hi-IN", "pg")
	for _, path := range reg.Paths() {
		if !strings.Contains(p, path) {
			t.Fatalf("prompt missing path %q", path)
		}
	}
	if !strings.Contains(p, "hi-IN") || !strings.Contains(p, `"pg"`) {
		t.Fatal("prompt missing locale or listing type hint")
	}
}
