// Package marketplace defines the contracts of the remote rental backend the
// engine depends on: listing drafts, photo storage, PG segmentation and the
// sales CRM. The engine only ever talks to these interfaces; http.go is the
// production implementation and local adapters exist for development.
package marketplace

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized marks an expired or invalid session token. Callers react
// by invalidating the local session, not by surfacing a generic error.
var ErrUnauthorized = errors.New("marketplace: unauthorized")

type SubmitReceipt struct {
	ListingID string `json:"listingId"`
	Status    string `json:"status"`
}

// DraftAPI is the remote listing draft record.
type DraftAPI interface {
	CreateDraft(ctx context.Context, fields map[string]any) (listingID string, err error)
	UpdateDraft(ctx context.Context, listingID string, fields map[string]any) (string, error)
	SubmitDraft(ctx context.Context, listingID string) (SubmitReceipt, error)
}

// DraftFetcher loads the authoritative remote state for edit-by-id.
type DraftFetcher interface {
	FetchDraft(ctx context.Context, listingID string) (map[string]any, error)
}

type PresignRequest struct {
	ClientUploadID string `json:"clientUploadId"`
	ContentType    string `json:"contentType"`
	SizeBytes      int64  `json:"sizeBytes"`
}

type PresignTarget struct {
	ClientUploadID string    `json:"clientUploadId"`
	UploadURL      string    `json:"uploadUrl"`
	BlobPath       string    `json:"blobPath"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type CompleteItem struct {
	ClientUploadID string `json:"clientUploadId"`
	BlobPath       string `json:"blobPath"`
	IsCover        bool   `json:"isCover"`
	SortOrder      int    `json:"sortOrder"`
}

type CompleteReceipt struct {
	PhotoIDs      []string `json:"photoIds"`
	AcceptedCount int      `json:"acceptedCount"`
	// PreviewURLs maps clientUploadId to a read URL for the stored photo.
	PreviewURLs map[string]string `json:"previewUrls,omitempty"`
}

// PhotoAPI is the two-phase photo protocol. Both phases are deduplicated
// server-side by the idempotency key.
type PhotoAPI interface {
	PresignPhotos(ctx context.Context, listingID string, reqs []PresignRequest, idempotencyKey string) ([]PresignTarget, error)
	CompletePhotos(ctx context.Context, listingID string, items []CompleteItem, idempotencyKey string) (CompleteReceipt, error)
}

type SegmentPath string

const (
	PathSelfServe   SegmentPath = "self_serve"
	PathSalesAssist SegmentPath = "sales_assist"
)

type SegmentAPI interface {
	SegmentPG(ctx context.Context, bedCount int) (SegmentPath, error)
}

type LeadRequest struct {
	Source         string            `json:"source"`
	ListingID      string            `json:"listingId,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotencyKey"`
}

type LeadAPI interface {
	CreateSalesLead(ctx context.Context, req LeadRequest) (leadID string, err error)
}
