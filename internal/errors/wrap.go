// Package errors provides error wrapping utilities for consistent error handling.
package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper provides context-aware error wrapping.
type ErrorWrapper struct {
	operation string
	module    string
}

// NewWrapper creates a new error wrapper with operation and module context.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{
		module:    module,
		operation: operation,
	}
}

// Wrap wraps an error with operation context.
// Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Operation: w.operation,
		Module:    w.module,
		Cause:     err,
		Message:   message,
	}
}

// Wrapf wraps an error with formatted message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Operation: w.operation,
		Module:    w.module,
		Cause:     err,
		Message:   fmt.Sprintf(format, args...),
	}
}

// WrappedError carries the component and operation that failed.
type WrappedError struct {
	Operation string // Operation being performed (e.g., "send", "user_profile")
	Module    string // Component name (e.g., "messenger", "profile")
	Cause     error
	Message   string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.Message, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// GetMessage returns the summary message of a WrappedError anywhere in the chain.
// Returns the error string if there is none.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.Message
	}
	return err.Error()
}
