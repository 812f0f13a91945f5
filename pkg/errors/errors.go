// Package errors provides common domain error types for the mailroom pipeline.
//
// This package defines sentinel errors for common domain conditions like "not found"
// or "invalid transition" that can be used across all packages. Using typed errors
// enables consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import mrerrors "github.com/otherjamesbrown/mailroom/pkg/errors"
//
//	// Return a domain error
//	return nil, mrerrors.ErrNotFound
//
//	// Check for domain errors
//	if mrerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested snapshot, file or directory was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition indicates a snapshot status change that is not forward-only.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNothingToDo indicates a run found no work (empty inbox, no snapshot).
	ErrNothingToDo = errors.New("nothing to do")
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

// IsInvalidTransition reports whether any error in err's chain is ErrInvalidTransition.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsNothingToDo reports whether any error in err's chain is ErrNothingToDo.
func IsNothingToDo(err error) bool {
	return errors.Is(err, ErrNothingToDo)
}
