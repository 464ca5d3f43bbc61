package extract

import (
	"context"
	"encoding/json"
	"log"
	"time"

	genai "google.golang.org/genai"

	"rentora/internal/schema"
)

// GeminiExtractor is a thin wrapper around the official genai client. The
// audio blob rides along as an inline part; the response is requested as
// application/json and validated before use.
type GeminiExtractor struct {
	cli   *genai.Client
	model string
	reg   *schema.Registry
}

func NewGeminiExtractor(ctx context.Context, model string, reg *schema.Registry) (*GeminiExtractor, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiExtractor{cli: cli, model: model, reg: reg}, nil
}

func (g *GeminiExtractor) Name() string { return "Gemini:" + g.model }

func (g *GeminiExtractor) Extract(ctx context.Context, audio Audio, locale, listingTypeHint string) (*Result, error) {
	prompt := buildPrompt(g.reg, locale, listingTypeHint)
	log.Printf("extraction request (%s): %d audio bytes", g.model, len(audio.Data))

	contents := []*genai.Content{{Parts: []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: audio.MIMEType, Data: audio.Data}},
	}}}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents,
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrInvalidJSON
		} else {
			raw := json.RawMessage(resp.Candidates[0].Content.Parts[0].Text)
			res, perr := Parse(raw)
			if perr == nil {
				return res, nil
			}
			lastErr = perr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}
