// Package logging centralizes slog construction and the structured field
// vocabulary shared across the daemon, CLI, and stage handlers.
package logging
