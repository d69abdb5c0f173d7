// Package logger provides structured logging for tlsdir.
//
// This package wraps log/slog:
//
//   - logger.go: Logger interface, level handling, default logger
//   - context.go: Context-aware logging with request IDs
//   - redact.go: Sensitive data redaction
//   - std.go: Bridge to *log.Logger for net/http error logs
//
// Structured records go to stderr by default so that stdout only carries
// the human-readable startup line.
package logger
