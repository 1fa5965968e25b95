// Package middleware provides HTTP middleware for the collector API.
//
// It includes:
//   - Request ids (X-Request-ID) attached to the logging context
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - gzip compression for JSON responses; image assets pass through untouched
package middleware
