// Package upload drives the presign-then-commit photo protocol. Every file
// is its own state machine keyed by clientUploadId in a map, so a late or
// reordered completion can never corrupt a sibling entry.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentora/internal/marketplace"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// Progress jumps are discrete: queued, presigned-and-stored, committed.
const (
	progressQueued    = 0
	progressPresigned = 50
	progressCommitted = 100
)

var ErrDuplicateUpload = errors.New("upload: file already uploaded")

// File is one queued photo.
type File struct {
	ClientUploadID string `json:"clientUploadId"`
	Name           string `json:"name"`
	SizeBytes      int64  `json:"sizeBytes"`
	ContentType    string `json:"contentType"`
	Status         Status `json:"status"`
	Progress       int    `json:"progress"`
	PreviewURL     string `json:"previewUrl,omitempty"`
	BlobPath       string `json:"blobPath,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	SortOrder      int    `json:"sortOrder"`

	data []byte
}

// ClientUploadID derives the duplicate-suppression key from name and size.
func ClientUploadID(name string, size int64) string {
	return fmt.Sprintf("%s#%d", name, size)
}

// BlobPutter stores one blob at a presigned write target.
type BlobPutter interface {
	Put(ctx context.Context, uploadURL, contentType string, data []byte) error
}

// HTTPBlobPutter PUTs directly to the presigned URL.
type HTTPBlobPutter struct {
	Client *http.Client
}

func (p HTTPBlobPutter) Put(ctx context.Context, uploadURL, contentType string, data []byte) error {
	cli := p.Client
	if cli == nil {
		cli = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))
	resp, err := cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload: blob put http %d", resp.StatusCode)
	}
	return nil
}

// Queue is one owner's upload queue. Files are flushed one at a time; a
// failure on one file never blocks or rolls back the others.
type Queue struct {
	photos marketplace.PhotoAPI
	putter BlobPutter
	newKey func() string

	mu    sync.Mutex
	files map[string]*File
	next  int
}

func NewQueue(photos marketplace.PhotoAPI, putter BlobPutter) *Queue {
	if putter == nil {
		putter = HTTPBlobPutter{}
	}
	return &Queue{
		photos: photos,
		putter: putter,
		newKey: uuid.NewString,
		files:  make(map[string]*File),
	}
}

// Add queues a selected file. A file whose name+size key is already present
// is marked error immediately and will never be presigned.
func (q *Queue) Add(name string, size int64, contentType string, data []byte) (File, error) {
	id := ClientUploadID(name, size)
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.files[id]; dup {
		rejectedID := dupKey(id, q.next)
		f := File{
			ClientUploadID: rejectedID,
			Name:           name,
			SizeBytes:      size,
			ContentType:    contentType,
			Status:         StatusError,
			ErrorMessage:   "already uploaded",
			SortOrder:      q.next,
		}
		q.next++
		q.files[rejectedID] = &f
		return f, ErrDuplicateUpload
	}
	f := &File{
		ClientUploadID: id,
		Name:           name,
		SizeBytes:      size,
		ContentType:    contentType,
		Status:         StatusPending,
		Progress:       progressQueued,
		SortOrder:      q.next,
		data:           data,
	}
	q.next++
	q.files[id] = f
	return *f, nil
}

// Duplicate rejections get their own id so the queue view shows them and
// removing one can never touch the original entry.
func dupKey(id string, n int) string { return fmt.Sprintf("%s!dup%d", id, n) }

// Remove drops a file from the queue.
func (q *Queue) Remove(clientUploadID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.files[clientUploadID]; !ok {
		return false
	}
	delete(q.files, clientUploadID)
	return true
}

// Files returns a sort-ordered snapshot of the queue.
func (q *Queue) Files() []File {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]File, 0, len(q.files))
	for _, f := range q.files {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// Clear empties the queue; called after successful listing submission.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = make(map[string]*File)
	q.next = 0
}

// Flush runs the two-phase protocol for every pending file: one presign
// batch, sequential blob puts, one commit batch for whatever was stored.
// Each phase carries a fresh idempotency key.
func (q *Queue) Flush(ctx context.Context, listingID string) error {
	pending := q.take(StatusPending, StatusUploading)
	if len(pending) == 0 {
		return nil
	}

	reqs := make([]marketplace.PresignRequest, 0, len(pending))
	for _, f := range pending {
		reqs = append(reqs, marketplace.PresignRequest{
			ClientUploadID: f.ClientUploadID,
			ContentType:    f.ContentType,
			SizeBytes:      f.SizeBytes,
		})
	}
	targets, err := q.photos.PresignPhotos(ctx, listingID, reqs, q.newKey())
	if err != nil {
		for _, f := range pending {
			q.fail(f.ClientUploadID, fmt.Sprintf("presign failed: %v", err))
		}
		return fmt.Errorf("presign photos: %w", err)
	}
	byID := make(map[string]marketplace.PresignTarget, len(targets))
	for _, tgt := range targets {
		byID[tgt.ClientUploadID] = tgt
	}

	var stored []marketplace.CompleteItem
	for _, f := range pending {
		tgt, ok := byID[f.ClientUploadID]
		if !ok {
			q.fail(f.ClientUploadID, "no presign target returned")
			continue
		}
		if err := q.putter.Put(ctx, tgt.UploadURL, f.ContentType, f.data); err != nil {
			q.fail(f.ClientUploadID, fmt.Sprintf("blob upload failed: %v", err))
			continue
		}
		q.advance(f.ClientUploadID, tgt.BlobPath)
		stored = append(stored, marketplace.CompleteItem{
			ClientUploadID: f.ClientUploadID,
			BlobPath:       tgt.BlobPath,
			IsCover:        f.SortOrder == 0,
			SortOrder:      f.SortOrder,
		})
	}
	if len(stored) == 0 {
		return nil
	}

	receipt, err := q.photos.CompletePhotos(ctx, listingID, stored, q.newKey())
	if err != nil {
		for _, item := range stored {
			q.fail(item.ClientUploadID, fmt.Sprintf("commit failed: %v", err))
		}
		return fmt.Errorf("complete photos: %w", err)
	}
	log.Printf("photo batch committed: listing=%s accepted=%d", listingID, receipt.AcceptedCount)
	for _, item := range stored {
		q.complete(item.ClientUploadID, receipt.PreviewURLs[item.ClientUploadID])
	}
	return nil
}

func (q *Queue) take(from, to Status) []File {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []File
	for _, f := range q.files {
		if f.Status == from {
			f.Status = to
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

func (q *Queue) fail(id, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f, ok := q.files[id]; ok {
		f.Status = StatusError
		f.ErrorMessage = msg
	}
}

func (q *Queue) advance(id, blobPath string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f, ok := q.files[id]; ok {
		f.Progress = progressPresigned
		f.BlobPath = blobPath
	}
}

func (q *Queue) complete(id, previewURL string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if f, ok := q.files[id]; ok {
		f.Status = StatusComplete
		f.Progress = progressCommitted
		f.PreviewURL = previewURL
		f.data = nil
	}
}
