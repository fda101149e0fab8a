// Package errors provides domain-specific error types and sentinel errors
// for the conversation engine and its collaborators.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrCollaborator indicates the retrieval/generation collaborator failed.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrMalformedGeneration indicates generated text did not meet the expected shape.
	ErrMalformedGeneration = errors.New("malformed generation")

	// ErrInitialization indicates the engine could not be constructed.
	ErrInitialization = errors.New("initialization failure")

	// ErrNoPendingQuiz indicates an answer was submitted with no quiz outstanding.
	ErrNoPendingQuiz = errors.New("no pending quiz")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRateLimitExceeded reports whether err wraps ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool { return errors.Is(err, ErrRateLimitExceeded) }

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsCollaborator reports whether err wraps ErrCollaborator.
func IsCollaborator(err error) bool { return errors.Is(err, ErrCollaborator) }

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap makes validation errors match ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// CollaboratorError records which collaborator operation failed.
// It always matches ErrCollaborator via errors.Is.
type CollaboratorError struct {
	Operation string
	Err       error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator error (op=%s): %v", e.Operation, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaborator, e.Err}
}

// NewCollaboratorError creates a new collaborator error.
func NewCollaboratorError(operation string, err error) *CollaboratorError {
	return &CollaboratorError{
		Operation: operation,
		Err:       err,
	}
}
