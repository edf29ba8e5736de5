package errors

import (
	"errors"
)

// Common error types
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransportDenied is returned when the chat platform refuses an action,
	// usually because the bot lacks rights. Never retried.
	ErrTransportDenied = errors.New("transport denied")
	// ErrStaleState marks a resolution against state that no longer exists.
	ErrStaleState = errors.New("stale state")
	// ErrConfigurationMissing is returned when a chat has no settings loaded.
	ErrConfigurationMissing = errors.New("configuration missing")
)
