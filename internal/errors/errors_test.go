package errors

import (
	"context"
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Wrapped ErrNotFound is recognized",
			err:      errors.Join(ErrNotFound, errors.New("additional context")),
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Different error is not ErrNotFound",
			err:      ErrRateLimitExceeded,
			checkFn:  IsNotFound,
			expected: false,
		},
		{
			name:     "ErrRateLimitExceeded is recognized",
			err:      ErrRateLimitExceeded,
			checkFn:  IsRateLimitExceeded,
			expected: true,
		},
		{
			name:     "ErrInvalidInput is recognized",
			err:      ErrInvalidInput,
			checkFn:  IsInvalidInput,
			expected: true,
		},
		{
			name:     "CollaboratorError is a collaborator failure",
			err:      NewCollaboratorError("retrieve", errors.New("503")),
			checkFn:  IsCollaborator,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := tt.checkFn(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	err := NewValidationError("text", "must not be empty")

	if err.Field != "text" {
		t.Errorf("expected field 'text', got '%s'", err.Field)
	}

	expected := "validation failed on text: must not be empty"
	if err.Error() != expected {
		t.Errorf("expected error '%s', got '%s'", expected, err.Error())
	}
	if !IsInvalidInput(err) {
		t.Error("validation errors should match ErrInvalidInput")
	}
}

func TestCollaboratorError(t *testing.T) {
	t.Parallel()
	err := NewCollaboratorError("generate_quiz", context.DeadlineExceeded)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("should unwrap to the underlying cause")
	}
	if !errors.Is(err, ErrCollaborator) {
		t.Error("should match ErrCollaborator")
	}

	expected := "collaborator error (op=generate_quiz): context deadline exceeded"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
}
