package handler

import (
	"errors"
	"io"
	"net/http"

	"rentora/internal/engine/middleware"
	"rentora/internal/engine/service/listing"
	"rentora/internal/telemetry"
	"rentora/internal/upload"
)

const maxUploadMemory = 32 << 20

// UploadHandler serves the photo queue endpoints.
type UploadHandler struct {
	listings *listing.Service
	tel      *telemetry.Recorder
}

func NewUploadHandler(listings *listing.Service, tel *telemetry.Recorder) *UploadHandler {
	return &UploadHandler{listings: listings, tel: tel}
}

// HandleAdd accepts multipart file parts under the "photos" field and
// registers each in the queue. A duplicate selection is reported per file and
// never enqueued again.
func (h *UploadHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	parts := r.MultipartForm.File["photos"]
	if len(parts) == 0 {
		http.Error(w, "photos field is required", http.StatusBadRequest)
		return
	}
	q := h.listings.Uploads(r.Context(), middleware.SessionFrom(r.Context()).Key)
	results := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, addErr := q.Add(part.Filename, part.Size, part.Header.Get("Content-Type"), data)
		res := map[string]any{
			"clientUploadId": file.ClientUploadID,
			"status":         file.Status,
		}
		if addErr != nil {
			if !errors.Is(addErr, upload.ErrDuplicateUpload) {
				writeError(w, addErr)
				return
			}
			res["error"] = addErr.Error()
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": results})
}

func (h *UploadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := h.listings.Uploads(r.Context(), middleware.SessionFrom(r.Context()).Key)
	writeJSON(w, http.StatusOK, map[string]any{"files": q.Files()})
}

func (h *UploadHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	q := h.listings.Uploads(r.Context(), middleware.SessionFrom(r.Context()).Key)
	if !q.Remove(r.PathValue("clientUploadId")) {
		http.Error(w, "upload not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HandleFlush ensures a draft listing exists, then runs the presign and
// commit batches for everything still pending.
func (h *UploadHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	key := middleware.SessionFrom(r.Context()).Key
	m := h.listings.Machine(r.Context(), key)
	q := h.listings.Uploads(r.Context(), key)

	listingID, err := m.EnsureListing(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	before := make(map[string]upload.Status)
	for _, f := range q.Files() {
		before[f.ClientUploadID] = f.Status
	}
	flushErr := q.Flush(r.Context(), listingID)
	// Count only files this flush settled; earlier outcomes stay counted once.
	for _, f := range q.Files() {
		if before[f.ClientUploadID] == f.Status {
			continue
		}
		switch f.Status {
		case upload.StatusComplete:
			h.tel.UploadFinished("ok")
		case upload.StatusError:
			h.tel.UploadFinished("error")
		}
	}
	if flushErr != nil {
		writeError(w, flushErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listingId": listingID,
		"files":     q.Files(),
	})
}
