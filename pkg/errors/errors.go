// Package errors provides structured error handling for the source metadata layer
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors, fatal at construction time
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeSchema represents a value written against a schema it does not conform to
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeData represents undecodable descriptor or event data
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConflict represents incompatible schema versions
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeNotFound represents unknown subjects, versions, slots or connector types
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConnection represents a source server that could not be reached
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeQuery represents failed queries against a source server
	ErrorTypeQuery ErrorType = "query"
)

// Error is a categorized error with optional cause and details
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key-value detail and returns e
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Newf creates an error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap categorizes err; it returns nil for a nil err
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// IsType reports whether the outermost *Error in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
