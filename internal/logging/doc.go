// Package logging provides a simple leveled logging interface for the
// smartlists service, backed by zap.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The printf-style helpers (Info, Warn, ...) cover most call sites. Code on the
// refresh path that benefits from structured fields uses L() directly:
//
//	logging.L().Info("refresh complete", zap.String("list", id), zap.Int("items", n))
//
// The log level is configured via the LOG_LEVEL environment variable, or DEBUG=true.
package logging
