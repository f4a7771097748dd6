// Package errors defines custom error types for better error handling and debugging.
// StreamError provides context-aware error reporting with type classification.
package errors

import (
	"errors"
	"fmt"
)

// StreamError represents errors that occur during stream resolution
type StreamError struct {
	Type    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error type constants
const (
	ErrorTypeNotFound         = "NOT_FOUND"
	ErrorTypeTimeout          = "TIMEOUT"
	ErrorTypeProviderFailure  = "PROVIDER_FAILURE"
	ErrorTypeSwarmUnavailable = "SWARM_UNAVAILABLE"
	ErrorTypeInvalidID        = "INVALID_ID"
)

// NewStreamError creates a new StreamError
func NewStreamError(errorType, message string, cause error) *StreamError {
	return &StreamError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError signals that a title, episode, or stream could not be
// resolved after exhausting every fallback strategy. Terminal for the caller.
func NewNotFoundError(message string) *StreamError {
	return NewStreamError(ErrorTypeNotFound, message, nil)
}

// NewTimeoutError creates a timeout error for the named operation
func NewTimeoutError(operation string) *StreamError {
	return NewStreamError(ErrorTypeTimeout, fmt.Sprintf("operation timeout: %s", operation), nil)
}

// NewProviderError creates a provider fetch/search error
func NewProviderError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeProviderFailure, message, cause)
}

// NewSwarmUnavailableError signals that torrent metadata never arrived
// within the retry budget. Surfaced to the user as "source unavailable".
func NewSwarmUnavailableError(infoHash string, cause error) *StreamError {
	return NewStreamError(ErrorTypeSwarmUnavailable, fmt.Sprintf("no metadata for %s", infoHash), cause)
}

// NewInvalidIDError creates an invalid ID error
func NewInvalidIDError(id string) *StreamError {
	return NewStreamError(ErrorTypeInvalidID, fmt.Sprintf("invalid ID format: %s", id), nil)
}

// IsNotFound reports whether err is a terminal NotFound resolution error.
func IsNotFound(err error) bool {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeNotFound
	}
	return false
}
