// Package metrics provides Prometheus instrumentation for the collector service.
//
// All metrics are prefixed with "collector_" and registered through promauto
// at package init. InitializeMetrics pre-populates label combinations so
// dashboards see zero values before the first event.
//
// # Metric Categories
//
//   - HTTP: request count, duration and in-flight requests
//   - Database: query count and duration per operation, transaction duration,
//     open connections and schema version
//   - Image store: item and image gauges (refreshed by Collector), mutation
//     counts, primary-image fallbacks and aborted invariant checks
//   - Derivation: derivations per backend and status, phase durations and
//     worker pool occupancy
//   - Ingestion: upload results per category, accepted upload sizes, asset
//     cleanup failures and regeneration results
//   - Filesystem: operation durations, errors and stale-handle retries,
//     recorded through the filesystem.Observer implementation
//
// # Collector
//
// Collector polls a StatsProvider (the database) on an interval and sets the
// store gauges. It is started by the server and stopped during shutdown.
package metrics
