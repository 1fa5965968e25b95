// Package filesystem provides the file operations used by the media
// pipeline: atomic asset writes, best-effort removal of asset sets and
// stat/open/read helpers that retry NFS stale file handle (ESTALE) errors
// with exponential backoff.
//
// Metrics are recorded through an Observer installed with SetObserver, which
// keeps this package free of a dependency on the metrics package.
package filesystem
