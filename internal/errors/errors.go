// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates a caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingEntry indicates a webhook notification without the "entry" batch key.
	ErrMissingEntry = errors.New("webhook notification has no entry data")

	// ErrUnknownEvent indicates a messaging item the classifier does not recognize.
	ErrUnknownEvent = errors.New("unknown messaging event")

	// ErrInvalidSignature indicates the webhook body does not match its signature header.
	ErrInvalidSignature = errors.New("invalid request signature")

	// ErrSessionEnded indicates an operation on a conversation that already ended.
	ErrSessionEnded = errors.New("session has ended")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimitExceeded reports whether err is or wraps ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

// IsInvalidInput reports whether err is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// ValidationError represents bad arguments handed to the application surface
// (hear, conversation, ask). Operations that return it are no-ops.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ClassificationError reports a webhook batch that could not be turned into events.
// Entry and Item are zero-based positions inside the notification, -1 when unknown.
type ClassificationError struct {
	Entry int
	Item  int
	Err   error
}

func (e *ClassificationError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("classification failed: %v", e.Err)
	}
	return fmt.Sprintf("classification failed (entry=%d, item=%d): %v", e.Entry, e.Item, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// NewClassificationError creates a new classification error.
func NewClassificationError(entry, item int, err error) *ClassificationError {
	return &ClassificationError{
		Entry: entry,
		Item:  item,
		Err:   err,
	}
}

// GraphError represents a failed Send or Profile API call.
type GraphError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Message    string
}

func (e *GraphError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph api error (endpoint=%s, status=%d, code=%d): %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api error (endpoint=%s, status=%d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *GraphError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// NewGraphError creates a new Graph API error.
func NewGraphError(endpoint string, statusCode, code int, message string) *GraphError {
	return &GraphError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}
