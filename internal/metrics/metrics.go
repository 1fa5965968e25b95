package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSchemaVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_db_schema_version",
			Help: "Latest applied schema migration version",
		},
	)
)

// Image store metrics
var (
	ItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_items_total",
			Help: "Total number of item records",
		},
	)

	ItemImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_item_images_total",
			Help: "Total number of registered item images",
		},
	)

	ItemsWithImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_items_with_images_total",
			Help: "Number of items with at least one registered image",
		},
	)

	ImageMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_image_mutations_total",
			Help: "Image store mutations by operation and status",
		},
		[]string{"operation", "status"},
	)

	PrimaryFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_primary_fallback_total",
			Help: "Primary image lookups that found no flagged primary and fell back to the first image",
		},
	)

	InvariantViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_invariant_violations_total",
			Help: "Image store mutations aborted by the primary image check",
		},
		[]string{"operation"},
	)

	LegacyMigrationRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_legacy_migration_rows_total",
			Help: "Item images created by the legacy single-image migration",
		},
	)
)

// Derivation metrics
var (
	DerivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_derivations_total",
			Help: "Image derivations by backend and status",
		},
		[]string{"backend", "status"},
	)

	DerivationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_derivation_duration_seconds",
			Help:    "Time spent per derivation phase",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"phase"}, // "probe", "decode", "thumb", "medium", "write"
	)

	DeriveWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_derive_workers_busy",
			Help: "Derivation worker slots currently in use",
		},
	)

	DeriveWorkersCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_derive_workers_capacity",
			Help: "Configured derivation worker slots",
		},
	)
)

// Ingestion metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_uploads_total",
			Help: "Uploads by category and result",
		},
		[]string{"category", "result"},
	)

	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_upload_size_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 11), // 16KiB .. 16MiB
		},
	)

	AssetCleanupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_asset_cleanup_errors_total",
			Help: "Asset files that could not be removed during best-effort cleanup",
		},
	)

	RegeneratedAssetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_regenerated_assets_total",
			Help: "Originals processed by derivative regeneration by status",
		},
		[]string{"status"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collector_memory_derivation_paused",
			Help: "1 while derivations wait for memory to recover",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_memory_pauses_total",
			Help: "Times derivations were paused for memory pressure",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by operation",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_filesystem_retry_attempts_total",
			Help: "Retries after stale file handle errors",
		},
		[]string{"operation"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collector_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
