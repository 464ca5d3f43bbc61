package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient implements every backend contract over the marketplace's JSON
// API. One client serves a single authenticated session.
type HTTPClient struct {
	base  string
	token string
	http  *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		base:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalizeError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

// normalizeError turns auth failures into ErrUnauthorized. The backend is
// inconsistent about status codes, so the message text is inspected too.
func normalizeError(status int, payload []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(payload))
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || looksLikeAuthFailure(msg) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return fmt.Errorf("marketplace: http %d: %s", status, msg)
}

func looksLikeAuthFailure(msg string) bool {
	m := strings.ToLower(msg)
	for _, probe := range []string{"token expired", "invalid token", "unauthorized", "session expired", "not authenticated"} {
		if strings.Contains(m, probe) {
			return true
		}
	}
	return false
}

func (c *HTTPClient) CreateDraft(ctx context.Context, fields map[string]any) (string, error) {
	var out struct {
		ListingID string `json:"listingId"`
	}
	if err := c.post(ctx, "/v1/listings/drafts", map[string]any{"fields": fields}, &out); err != nil {
		return "", err
	}
	return out.ListingID, nil
}

func (c *HTTPClient) UpdateDraft(ctx context.Context, listingID string, fields map[string]any) (string, error) {
	var out struct {
		ListingID string `json:"listingId"`
	}
	err := c.post(ctx, "/v1/listings/drafts/"+listingID, map[string]any{"fields": fields}, &out)
	if err != nil {
		return "", err
	}
	return out.ListingID, nil
}

func (c *HTTPClient) SubmitDraft(ctx context.Context, listingID string) (SubmitReceipt, error) {
	var out SubmitReceipt
	err := c.post(ctx, "/v1/listings/drafts/"+listingID+"/submit", map[string]any{}, &out)
	return out, err
}

// FetchDraft loads the authoritative remote state for edit-by-id.
func (c *HTTPClient) FetchDraft(ctx context.Context, listingID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/listings/drafts/"+listingID, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, normalizeError(resp.StatusCode, payload)
	}
	var out struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (c *HTTPClient) PresignPhotos(ctx context.Context, listingID string, reqs []PresignRequest, idempotencyKey string) ([]PresignTarget, error) {
	var out struct {
		Targets []PresignTarget `json:"targets"`
	}
	in := map[string]any{"files": reqs, "idempotencyKey": idempotencyKey}
	if err := c.post(ctx, "/v1/listings/drafts/"+listingID+"/photos/presign", in, &out); err != nil {
		return nil, err
	}
	return out.Targets, nil
}

func (c *HTTPClient) CompletePhotos(ctx context.Context, listingID string, items []CompleteItem, idempotencyKey string) (CompleteReceipt, error) {
	var out CompleteReceipt
	in := map[string]any{"photos": items, "idempotencyKey": idempotencyKey}
	err := c.post(ctx, "/v1/listings/drafts/"+listingID+"/photos/complete", in, &out)
	return out, err
}

func (c *HTTPClient) SegmentPG(ctx context.Context, bedCount int) (SegmentPath, error) {
	var out struct {
		Path SegmentPath `json:"path"`
	}
	if err := c.post(ctx, "/v1/pg/segment", map[string]any{"bedCount": bedCount}, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

func (c *HTTPClient) CreateSalesLead(ctx context.Context, req LeadRequest) (string, error) {
	var out struct {
		LeadID string `json:"leadId"`
	}
	if err := c.post(ctx, "/v1/sales/leads", req, &out); err != nil {
		return "", err
	}
	return out.LeadID, nil
}
