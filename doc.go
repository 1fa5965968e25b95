// Package main provides the entry point for The Collector server.
//
// The Collector tracks trading cards and comics. This binary serves the item
// media API: photographs are uploaded once, stored under a category folder
// with a thumbnail and a medium derivative, and attached to items as an
// ordered list with exactly one primary image.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads .env and environment variables, creates
//     the database and category directories and checks they are writable
//  2. Database Initialization: opens SQLite and applies goose migrations
//  3. Legacy Migration: copies single-image columns on items into the
//     image list, once (MIGRATE_LEGACY_IMAGES)
//  4. Derivation Engine: selects the imaging or libvips backend, sizes
//     the derivation worker pool and gates it on memory pressure
//  5. HTTP Server Setup: registers routes and middleware, starts the
//     metrics collector and the optional metrics server
//  6. Graceful Shutdown: handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - Upload endpoint (/api/upload)
//     - Item and item image API (/api/items/...)
//     - Asset serving with size selection (/Cards/..., /Comics/...)
//     - Health, readiness and version endpoints
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Liveness endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout)
//  2. Stop the metrics collector
//  3. Shut down the metrics server
//  4. Stop the memory monitor
//  5. Release libvips, when it was initialized
//  6. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite. The vips backend additionally needs libvips;
// the default imaging backend is pure Go.
//
// The companion maintenance tool lives in cmd/collectorctl.
package main
