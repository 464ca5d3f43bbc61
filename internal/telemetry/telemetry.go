// Package telemetry provides Prometheus-based recording for the capture and
// upload flows. Every signal is fire-and-forget; nothing here ever blocks a
// workflow.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the telemetry hooks of the capture flow.
type Recorder struct {
	confirmationsTotal *prometheus.CounterVec
	captureFallbacks   *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
}

// NewRecorder registers the engine's metrics with reg. Pass nil to use the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		confirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_confirmations_total",
				Help: "Field confirmations during capture review, split by edited vs unedited",
			},
			[]string{"field", "edited"},
		),
		captureFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_fallbacks_total",
				Help: "Capture sessions that fell back to manual entry, by reason",
			},
			[]string{"reason"},
		),
		extractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capture_extractions_total",
				Help: "Extraction calls by outcome",
			},
			[]string{"status"},
		),
		uploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "photo_uploads_total",
				Help: "Photo upload outcomes",
			},
			[]string{"status"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listing_submissions_total",
				Help: "Listing submissions by outcome and segmentation path",
			},
			[]string{"status", "segment_path"},
		),
	}
}

// FieldConfirmed satisfies confirm.Telemetry.
func (r *Recorder) FieldConfirmed(path string, edited bool) {
	if r == nil {
		return
	}
	label := "false"
	if edited {
		label = "true"
	}
	r.confirmationsTotal.WithLabelValues(path, label).Inc()
}

func (r *Recorder) CaptureFallback(reason string) {
	if r == nil {
		return
	}
	r.captureFallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) ExtractionFinished(status string) {
	if r == nil {
		return
	}
	r.extractionsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) UploadFinished(status string) {
	if r == nil {
		return
	}
	r.uploadsTotal.WithLabelValues(status).Inc()
}

func (r *Recorder) SubmissionFinished(status, segmentPath string) {
	if r == nil {
		return
	}
	if segmentPath == "" {
		segmentPath = "none"
	}
	r.submissionsTotal.WithLabelValues(status, segmentPath).Inc()
}
