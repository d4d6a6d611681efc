// Package errors provides common domain error types for the meetchat engine.
//
// This package defines sentinel errors for common domain conditions like "not found"
// or "invalid state" that can be used across all packages. Using typed errors enables
// consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("meeting %s: %w", id, mcerrors.ErrNotFound)
//
//	// Check for domain errors
//	if mcerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUpstream indicates an external service failed.
	ErrUpstream = errors.New("upstream failure")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUpstream reports whether any error in err's chain is ErrUpstream.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
