package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentora/internal/marketplace"
	"rentora/internal/segment"
)

// localBackend is the in-process marketplace used when no remote base URL is
// configured. Drafts and leads live in memory; segmentation applies the
// bed-count threshold.
type localBackend struct {
	mu     sync.Mutex
	drafts map[string]map[string]any
	leads  map[string]string
}

func newLocalBackend() *localBackend {
	return &localBackend{
		drafts: make(map[string]map[string]any),
		leads:  make(map[string]string),
	}
}

func (b *localBackend) CreateDraft(_ context.Context, fields map[string]any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := "listing-" + uuid.NewString()
	b.drafts[id] = cloneFields(fields)
	return id, nil
}

func (b *localBackend) UpdateDraft(_ context.Context, listingID string, fields map[string]any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.drafts[listingID]; !ok {
		return "", fmt.Errorf("draft %s not found", listingID)
	}
	b.drafts[listingID] = cloneFields(fields)
	return listingID, nil
}

func (b *localBackend) SubmitDraft(_ context.Context, listingID string) (marketplace.SubmitReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.drafts[listingID]; !ok {
		return marketplace.SubmitReceipt{}, fmt.Errorf("draft %s not found", listingID)
	}
	return marketplace.SubmitReceipt{ListingID: listingID, Status: "under_review"}, nil
}

func (b *localBackend) FetchDraft(_ context.Context, listingID string) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fields, ok := b.drafts[listingID]
	if !ok {
		return nil, fmt.Errorf("draft %s not found", listingID)
	}
	return cloneFields(fields), nil
}

func (b *localBackend) SegmentPG(_ context.Context, bedCount int) (marketplace.SegmentPath, error) {
	return segment.Threshold(bedCount), nil
}

// CreateSalesLead dedupes on the idempotency key like the real service.
func (b *localBackend) CreateSalesLead(_ context.Context, req marketplace.LeadRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.leads[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return id, nil
	}
	id := "lead-" + uuid.NewString()
	if req.IdempotencyKey != "" {
		b.leads[req.IdempotencyKey] = id
	}
	return id, nil
}

// localPhotoBackend keeps blobs in memory and stands in for both the photo
// service and the presigned PUT when no object store is reachable. Presign
// hands out mem:// targets that the matching putter understands.
type localPhotoBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seen  map[string][]marketplace.PresignTarget
	done  map[string]marketplace.CompleteReceipt
}

func newLocalPhotoBackend() *localPhotoBackend {
	return &localPhotoBackend{
		blobs: make(map[string][]byte),
		seen:  make(map[string][]marketplace.PresignTarget),
		done:  make(map[string]marketplace.CompleteReceipt),
	}
}

func (b *localPhotoBackend) PresignPhotos(_ context.Context, listingID string, reqs []marketplace.PresignRequest, idempotencyKey string) ([]marketplace.PresignTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if targets, ok := b.seen[idempotencyKey]; ok {
		return targets, nil
	}
	targets := make([]marketplace.PresignTarget, 0, len(reqs))
	for _, req := range reqs {
		blobPath := fmt.Sprintf("listings/%s/photos/%s", listingID, uuid.NewString())
		targets = append(targets, marketplace.PresignTarget{
			ClientUploadID: req.ClientUploadID,
			UploadURL:      "mem://" + blobPath,
			BlobPath:       blobPath,
			ExpiresAt:      time.Now().Add(15 * time.Minute),
		})
	}
	b.seen[idempotencyKey] = targets
	return targets, nil
}

func (b *localPhotoBackend) CompletePhotos(_ context.Context, _ string, items []marketplace.CompleteItem, idempotencyKey string) (marketplace.CompleteReceipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if receipt, ok := b.done[idempotencyKey]; ok {
		return receipt, nil
	}
	receipt := marketplace.CompleteReceipt{PreviewURLs: make(map[string]string, len(items))}
	for _, item := range items {
		if _, stored := b.blobs[item.BlobPath]; !stored {
			continue
		}
		receipt.PhotoIDs = append(receipt.PhotoIDs, uuid.NewString())
		receipt.AcceptedCount++
		receipt.PreviewURLs[item.ClientUploadID] = "mem://" + item.BlobPath
	}
	b.done[idempotencyKey] = receipt
	return receipt, nil
}

func (b *localPhotoBackend) Put(_ context.Context, uploadURL, _ string, data []byte) error {
	blobPath, ok := strings.CutPrefix(uploadURL, "mem://")
	if !ok {
		return fmt.Errorf("unexpected upload url %q", uploadURL)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[blobPath] = append([]byte(nil), data...)
	return nil
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
