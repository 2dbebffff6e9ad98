package common

import (
	"errors"
	"fmt"
)

// Business logic errors
var (
	// General errors
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")

	// Storage errors
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrTypeMismatch      = errors.New("entity type mismatch")

	// Rollback errors
	ErrRollbackFailed = errors.New("rollback failed")

	// Concurrency errors
	ErrLockTimeout = errors.New("campaign is busy")

	// Import errors
	ErrExtractorDisabled = errors.New("document extractor is disabled")
)

// ValidationError reports a missing or malformed field on create/update.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError reports an update/delete that targets an id which does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
