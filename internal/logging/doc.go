// Package logging provides the leveled logging interface used across the
// collector service and its CLI.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// Messages are written through zerolog. The level is configured with
// LOG_LEVEL (or DEBUG=true) and the output format with LOG_FORMAT, which
// accepts "console" (default) or "json". Request handlers attach a request id
// with WithRequestID and log through the *Ctx variants so that every line
// for a request carries the same request_id field.
package logging
