// Package logging configures structured logging for Callisto on top of
// log/slog, and carries request-scoped logging context (request IDs)
// through context.Context.
package logging
