// Package logger provides structured logging for kms-cli.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, configuration, global default
//   - context.go: per-invocation request IDs carried in context.Context
//   - redact.go: masking of bearer tokens and payloads
//
// Diagnostics meant for the operator are printed by the commands
// themselves; this logger only carries the debug trail enabled with
// --verbose and lands on stderr.
package logger
