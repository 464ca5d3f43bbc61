package extract

import (
	"fmt"
	"strings"

	"rentora/internal/schema"
)

// buildPrompt renders the extraction instruction for one capture session.
// The field table is inlined so the model can only target registered paths.
func buildPrompt(reg *schema.Registry, locale, listingTypeHint string) string {
	var b strings.Builder
	b.WriteString("You are a listing intake assistant for a property-rental marketplace.\n")
	b.WriteString("Transcribe the attached owner recording, then extract listing fields from it.\n\n")
	b.WriteString("Known fields (path, type, allowed values):\n")
	for _, f := range reg.Fields() {
		if f.Type == schema.FieldSelect {
			vals := make([]string, 0, len(f.Options))
			for _, o := range f.Options {
				vals = append(vals, o.Value)
			}
			fmt.Fprintf(&b, "- %s (%s: %s) — %s\n", f.Path, f.Type, strings.Join(vals, "|"), f.Label)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s) — %s\n", f.Path, f.Type, f.Label)
	}
	b.WriteString("\nRespond with a single JSON object:\n")
	b.WriteString(`{"transcript": string, "draft_suggestion": object (nested per the paths above, only fields actually spoken), "field_confidence_tier": {path: "high"|"medium"|"low"}, "confirm_fields": [path], "missing_required_fields": [path], "critical_warnings": [string]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Never invent values; omit fields the owner did not state.\n")
	b.WriteString("- List a path in confirm_fields when the value is plausible but you want the owner to double-check it.\n")
	b.WriteString("- List title, monthly_rent and location.city in missing_required_fields when absent.\n")
	b.WriteString("- Lowercase city and locality names.\n")
	if locale != "" {
		fmt.Fprintf(&b, "- The recording language is %s; the transcript stays in that language, extracted values in English.\n", locale)
	}
	if listingTypeHint != "" {
		fmt.Fprintf(&b, "- The owner declared the listing type %q; prefer it unless the recording contradicts it.\n", listingTypeHint)
	}
	return b.String()
}
