package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbselect_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Session Metrics
	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbselect_sessions_opened_total",
			Help: "Total number of selection sessions opened",
		},
	)

	SessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_sessions_closed_total",
			Help: "Total number of selection sessions closed",
		},
		[]string{"committed"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbselect_sessions_active",
			Help: "Number of selection sessions currently open",
		},
	)

	SessionsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbselect_sessions_reaped_total",
			Help: "Total number of idle selection sessions force-closed",
		},
	)

	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by final outcome",
		},
		[]string{"outcome"},
	)

	SeeksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbselect_seeks_total",
			Help: "Total number of seek operations",
		},
	)

	// Pipeline Metrics
	SaveBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_save_batches_total",
			Help: "Total number of thumbnail batch operations",
		},
		[]string{"source", "outcome"},
	)

	AssetPipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_asset_pipeline_failures_total",
			Help: "Per-asset pipeline failures by stage",
		},
		[]string{"stage"},
	)

	FrameCaptureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbselect_frame_capture_duration_seconds",
			Help:    "Time spent probing and capturing one asset's frame",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		},
	)

	ThumbnailUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbselect_thumbnail_upload_size_bytes",
			Help:    "Size of uploaded thumbnail blobs in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 4MB
		},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbselect_events_published_total",
			Help: "Total number of thumbnail events published",
		},
		[]string{"event"},
	)
)

// BatchOutcome label values for SaveBatchesTotal
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)
