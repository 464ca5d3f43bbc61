// Package handler exposes the engine over plain HTTP JSON endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"rentora/internal/capture"
	"rentora/internal/confirm"
	"rentora/internal/engine/service/intake"
	"rentora/internal/marketplace"
	"rentora/internal/upload"
	"rentora/internal/wizard"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, intake.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrStepIncomplete),
		errors.Is(err, wizard.ErrNotAtReview),
		errors.Is(err, intake.ErrNotReleasable),
		errors.Is(err, intake.ErrRecorderBusy),
		errors.Is(err, intake.ErrNotReady),
		errors.Is(err, upload.ErrDuplicateUpload),
		errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrUnsupported),
		errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusConflict
	case errors.Is(err, confirm.ErrUnknownField),
		errors.Is(err, confirm.ErrNoValue),
		errors.Is(err, capture.ErrBufferFull):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
