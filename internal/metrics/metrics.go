package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfgen_requests_total",
			Help: "Total number of pipeline requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfgen_render_duration_seconds",
			Help:    "Duration of template rendering in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfgen_conversion_duration_seconds",
			Help:    "Duration of HTML to PDF conversion and write in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	PDFBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfgen_pdf_bytes",
			Help:    "Size of generated PDF documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

// Outcome labels for RequestsTotal.
const (
	OutcomeOK          = "ok"
	OutcomeBadInput    = "bad_input"
	OutcomeNotFound    = "not_found"
	OutcomeServerError = "error"
)
