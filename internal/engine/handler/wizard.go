package handler

import (
	"encoding/json"
	"net/http"

	"rentora/internal/engine/middleware"
	"rentora/internal/engine/service/listing"
	"rentora/internal/telemetry"
)

// WizardHandler serves the five-step listing form.
type WizardHandler struct {
	listings *listing.Service
	tel      *telemetry.Recorder
}

func NewWizardHandler(listings *listing.Service, tel *telemetry.Recorder) *WizardHandler {
	return &WizardHandler{listings: listings, tel: tel}
}

func (h *WizardHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	m := h.listings.Machine(r.Context(), middleware.SessionFrom(r.Context()).Key)
	writeJSON(w, http.StatusOK, m.State())
}

func (h *WizardHandler) HandleSetFields(w http.ResponseWriter, r *http.Request) {
	var in map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	m := h.listings.Machine(r.Context(), middleware.SessionFrom(r.Context()).Key)
	for path, raw := range in {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			http.Error(w, "invalid value for "+path, http.StatusBadRequest)
			return
		}
		if err := m.SetField(r.Context(), path, value); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, m.State())
}

func (h *WizardHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	m := h.listings.Machine(r.Context(), middleware.SessionFrom(r.Context()).Key)
	state, err := m.Next(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *WizardHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	m := h.listings.Machine(r.Context(), middleware.SessionFrom(r.Context()).Key)
	state, err := m.Back(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *WizardHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	m := h.listings.Machine(r.Context(), middleware.SessionFrom(r.Context()).Key)
	if err := m.EditByID(r.Context(), r.PathValue("listingId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.State())
}

func (h *WizardHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	m := h.listings.Machine(r.Context(), sess.Key)
	outcome, err := m.Submit(r.Context(), sess.Authenticated, sess.Role)
	if err != nil {
		h.tel.SubmissionFinished("error", "")
		writeError(w, err)
		return
	}
	h.tel.SubmissionFinished("ok", string(outcome.SegmentPath))
	writeJSON(w, http.StatusOK, outcome)
}
