// Package logging is the structured-logging surface the vault services
// log through. Services take the Logger interface so tests can hand
// them a discarding logger; the server wires the slog implementation.
// Key material and config secrets must never be passed as log values.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// key-value pairs:
//
//	log.Info(ctx, "file stored", "user_id", userID, "size", size)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)

	// Warn is for unusual but non-fatal conditions, like a quota
	// adjustment that will be corrected by reconciliation.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always carries the given
	// key-value pairs, typically a "module" tag per service.
	With(args ...any) Logger
}
