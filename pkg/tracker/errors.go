// Package tracker provides the in-process operation tracking and recovery
// core: a registry of long-running asynchronous operations with lifecycle
// status, progress, structured logs, restore points for rollback, and retry
// derivation for failed runs.
package tracker

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a tracker error for caller handling.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a referenced operation does not exist.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassValidation indicates invalid caller input.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassConflict indicates a lifecycle transition rejected because
	// the operation is in an incompatible state.
	ErrorClassConflict ErrorClass = "conflict"
)

// Common error codes.
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeTerminalState = "TERMINAL_STATE"
)

// Error represents a classified tracker error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// OperationID is the operation the error refers to, if applicable.
	OperationID string `json:"operation_id,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.OperationID != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.OperationID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.OperationID != "" && t.OperationID != e.OperationID {
		return false
	}
	return e.Class == t.Class
}

// NewNotFoundError creates an error for an unknown operation id.
func NewNotFoundError(id string) *Error {
	return &Error{
		Class:       ErrorClassNotFound,
		Message:     "operation not found",
		Code:        ErrCodeNotFound,
		OperationID: id,
	}
}

// NewValidationError creates an error for invalid caller input.
func NewValidationError(message string) *Error {
	return &Error{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
	}
}

// NewConflictError creates an error for a rejected lifecycle transition.
func NewConflictError(id, message string) *Error {
	return &Error{
		Class:       ErrorClassConflict,
		Message:     message,
		Code:        ErrCodeTerminalState,
		OperationID: id,
	}
}

// IsNotFound returns true if the error indicates an unknown operation id.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsValidation returns true if the error indicates invalid caller input.
func IsValidation(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsConflict returns true if the error indicates a rejected transition.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}
