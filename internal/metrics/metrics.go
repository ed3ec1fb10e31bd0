package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type", "lane"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arv_jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type"},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arv_worker_pool_active_jobs",
			Help: "Number of jobs currently being processed by workers",
		},
	)

	MarkerCompilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_marker_compilations_total",
			Help: "Total marker compiler runs",
		},
		[]string{"status"},
	)

	MarkerFeaturePoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arv_marker_feature_points",
			Help:    "Feature points detected per compiled marker",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
	)

	ThumbnailsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_thumbnails_rendered_total",
			Help: "Total thumbnail sets rendered",
		},
		[]string{"kind", "status"},
	)

	NotificationDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_notification_deliveries_total",
			Help: "Total notification deliveries by channel",
		},
		[]string{"channel", "status"},
	)

	SweepItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_sweep_items_total",
			Help: "Items handled per sweep run",
		},
		[]string{"sweep", "status"},
	)

	SweepLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arv_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep run",
		},
		[]string{"sweep"},
	)

	VideoRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_video_rotations_total",
			Help: "Total active-video rotations",
		},
		[]string{"rule"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arv_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"provider", "operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arv_storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arv_app_up",
			Help: "Application is up and running",
		},
	)
)
