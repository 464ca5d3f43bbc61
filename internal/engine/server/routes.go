package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentora/internal/engine/handler"
	"rentora/internal/engine/middleware"
)

func NewMux(
	captureHandler *handler.CaptureHandler,
	wizardHandler *handler.WizardHandler,
	uploadHandler *handler.UploadHandler,
	segmentHandler *handler.SegmentHandler,
	registry *prometheus.Registry,
) http.Handler {
	api := http.NewServeMux()

	// Capture sessions
	api.HandleFunc("POST /capture/sessions", captureHandler.HandleOpen)
	api.HandleFunc("GET /capture/sessions/{id}", captureHandler.HandleState)
	api.HandleFunc("GET /capture/sessions/{id}/audio", captureHandler.HandleAudioWS)
	api.HandleFunc("POST /capture/sessions/{id}/stop", captureHandler.HandleStop)
	api.HandleFunc("POST /capture/sessions/{id}/retry", captureHandler.HandleRetry)
	api.HandleFunc("POST /capture/sessions/{id}/fields/{path}/confirm", captureHandler.HandleConfirmField)
	api.HandleFunc("PUT /capture/sessions/{id}/fields/{path}", captureHandler.HandleSaveField)
	api.HandleFunc("POST /capture/sessions/{id}/release", captureHandler.HandleRelease)
	api.HandleFunc("DELETE /capture/sessions/{id}", captureHandler.HandleClose)

	// Wizard
	api.HandleFunc("GET /wizard", wizardHandler.HandleState)
	api.HandleFunc("PUT /wizard", wizardHandler.HandleSetFields)
	api.HandleFunc("POST /wizard/steps/next", wizardHandler.HandleNext)
	api.HandleFunc("POST /wizard/steps/back", wizardHandler.HandleBack)
	api.HandleFunc("POST /wizard/edit/{listingId}", wizardHandler.HandleEdit)
	api.HandleFunc("POST /wizard/submit", wizardHandler.HandleSubmit)

	// Photo uploads
	api.HandleFunc("POST /uploads", uploadHandler.HandleAdd)
	api.HandleFunc("GET /uploads", uploadHandler.HandleList)
	api.HandleFunc("POST /uploads/flush", uploadHandler.HandleFlush)
	api.HandleFunc("DELETE /uploads/{clientUploadId}", uploadHandler.HandleRemove)

	// Segmentation
	api.HandleFunc("GET /segmentation", segmentHandler.HandleDecide)

	mux := http.NewServeMux()
	mux.Handle("/", middleware.Session(api))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return middleware.CORS(mux)
}
