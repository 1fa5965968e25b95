// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read with envconfig after an optional .env file is loaded
// with godotenv. [Parse] only reads and validates; [LoadConfig] also prints
// the banner and prepares directories. Supported variables:
//
//   - CONTENT_DIR: Root holding the Cards/ and Comics/ folders (default: .)
//   - DATABASE_DIR: Directory for collection.db (default: ./data)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - METRICS_INTERVAL: Store gauge refresh interval (default: 1m)
//   - MAX_UPLOAD_BYTES: Upload size limit (default: 10485760)
//   - DERIVE_WORKERS: Concurrent derivations, 0 for one per CPU capped at 8
//   - DERIVE_BACKEND: imaging or vips (default: imaging)
//   - MIGRATE_LEGACY_IMAGES: Run the legacy image migration at startup (default: true)
//   - REQUEST_TIMEOUT: Upper bound for a single request (default: 60s)
//   - MEMORY_LIMIT: Container memory limit in bytes, used to set GOMEMLIMIT (default: 0, unset)
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.85)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log asset requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// [Config.Prepare] resolves, creates and write-tests the database directory
// and each category folder under the content directory.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogDerivationInit]: Derivation backend and worker count
//   - [LogLegacyMigration]: Outcome of the startup legacy migration
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
