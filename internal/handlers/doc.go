// Package handlers provides the HTTP API of the collector.
//
// It includes handlers for:
//   - Image uploads and derivation (/api/upload)
//   - Item records and their images, including primary selection and reordering
//   - Serving category assets at a requested size
//   - Health, readiness and version endpoints
//
// Errors are classified with the apperr taxonomy and written as
// {"error": "..."} with the matching status code.
package handlers
