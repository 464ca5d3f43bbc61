package handler

import (
	"net/http"
	"strconv"

	"rentora/internal/engine/middleware"
	"rentora/internal/marketplace"
	"rentora/internal/segment"
)

// SegmentHandler exposes the PG routing decision for pre-submit display.
type SegmentHandler struct {
	decider *segment.Decider
}

func NewSegmentHandler(decider *segment.Decider) *SegmentHandler {
	return &SegmentHandler{decider: decider}
}

func (h *SegmentHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	beds, err := strconv.Atoi(r.URL.Query().Get("beds"))
	if err != nil || beds < 0 {
		http.Error(w, "beds must be a non-negative integer", http.StatusBadRequest)
		return
	}
	sess := middleware.SessionFrom(r.Context())
	path := h.decider.Decide(r.Context(), sess.Authenticated, sess.Role, beds)
	writeJSON(w, http.StatusOK, map[string]any{
		"beds":          beds,
		"path":          path,
		"threshold":     segment.Threshold(beds),
		"selfServeMax":  segment.SelfServeMaxBeds,
		"salesAssisted": path == marketplace.PathSalesAssist,
	})
}
