// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeValidation indicates malformed input to the engine or calculator
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeNotFound indicates a referenced product, quote or item is absent
	TypeNotFound Type = "NOT_FOUND"

	// TypeInconsistency indicates an aggregate invariant would be violated
	TypeInconsistency Type = "INCONSISTENCY_ERROR"

	// TypeConfig indicates a configuration error such as a malformed tier table
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// Field returns the offending field recorded on a validation error
func (e *Error) Field() string {
	if v, ok := e.Context["field"].(string); ok {
		return v
	}
	return ""
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := As(err); ok {
		return e.Type == t
	}
	return false
}

// TypeOf returns the error type, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

// Validation creates a validation error naming the offending field
func Validation(field, format string, args ...interface{}) *Error {
	return Newf(TypeValidation, field+": "+format, args...).WithContext("field", field)
}

// NotFound creates a not found error
func NotFound(kind, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", kind, identifier).
		WithContext("kind", kind).
		WithContext("id", identifier)
}

// Inconsistency creates an inconsistency error
func Inconsistency(format string, args ...interface{}) *Error {
	return Newf(TypeInconsistency, format, args...)
}

// Configuration creates a configuration error
func Configuration(format string, args ...interface{}) *Error {
	return Newf(TypeConfig, format, args...)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

// UserMessage maps an error to a short actionable message
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return "unexpected error: " + err.Error()
	}
	switch e.Type {
	case TypeValidation:
		return "invalid input, please correct it and retry: " + e.Message
	case TypeNotFound:
		return "nothing matches the requested identifier: " + e.Message
	case TypeInconsistency:
		return "the quote was changed concurrently, reload it and retry: " + e.Message
	case TypeConfig:
		return "pricing configuration is broken, contact the catalog owner: " + e.Message
	default:
		return "internal error: " + e.Error()
	}
}
