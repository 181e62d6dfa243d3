// Package apperr defines the error taxonomy shared by every component.
//
// Components return errors wrapping exactly one of the sentinel kinds below;
// transports classify them with errors.Is to pick a status code.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrAuth marks an unauthenticated, unverified or non-owner caller.
	ErrAuth = errors.New("access denied")
	// ErrNotFound marks a referenced id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStore marks a failure of the underlying store call.
	ErrStore = errors.New("store error")
)

// Validation returns an ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Auth returns an ErrAuth with a formatted message.
func Auth(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuth, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing resource.
func NotFound(resource, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, id)
}

// Store wraps a driver error as ErrStore. The original message is kept.
func Store(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
