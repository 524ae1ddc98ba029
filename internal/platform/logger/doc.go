// Package logger configures the application's structured JSON logger on
// log/slog and carries request-scoped loggers through context.
package logger
