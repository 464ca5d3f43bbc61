// Package extract turns recorded audio into a structured listing draft
// suggestion. Backends wrap hosted model APIs; Parse validates the model
// output against a JSON schema before anything downstream sees it.
package extract

import (
	"context"
	"encoding/json"
	"errors"

	"rentora/internal/draft"
)

var ErrInvalidJSON = errors.New("extract: invalid JSON from model")

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Audio is one encoded recording handed over by the capture controller.
type Audio struct {
	Data     []byte
	MIMEType string
}

// Result is the extraction response for one capture session. Immutable once
// returned; discarded after reconciliation.
type Result struct {
	Transcript            string          `json:"transcript"`
	DraftSuggestion       draft.Draft     `json:"draft_suggestion"`
	FieldConfidenceTier   map[string]Tier `json:"field_confidence_tier"`
	ConfirmFields         []string        `json:"confirm_fields"`
	MissingRequiredFields []string        `json:"missing_required_fields"`
	CriticalWarnings      []string        `json:"critical_warnings"`
}

type Extractor interface {
	Extract(ctx context.Context, audio Audio, locale, listingTypeHint string) (*Result, error)
}

// Parse validates and decodes a raw model response.
func Parse(raw json.RawMessage) (*Result, error) {
	if err := validateResponse(raw); err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Join(ErrInvalidJSON, err)
	}
	if res.FieldConfidenceTier == nil {
		res.FieldConfidenceTier = map[string]Tier{}
	}
	if len(res.DraftSuggestion) == 0 {
		res.DraftSuggestion = draft.Empty()
	}
	return &res, nil
}
