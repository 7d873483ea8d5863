package helix

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ClassTransport covers network failures, timeouts, and non-2xx statuses.
	ClassTransport ErrorClass = "transport"

	// ClassDecode covers malformed or unexpectedly shaped JSON bodies.
	ClassDecode ErrorClass = "decode"
)

// APIError represents a Helix request failure with additional context.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("helix %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("helix %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport-class Helix failure.
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ClassTransport
}

// IsDecode reports whether err is a decode-class Helix failure.
func IsDecode(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ClassDecode
}

// shouldRetry determines if an error is worth retrying.
func shouldRetry(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Class {
	case ClassDecode:
		// A malformed body will not improve on retry.
		return false
	case ClassTransport:
		// 4xx responses waste the caller's time; everything else
		// (network failures, 5xx) is transient.
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return false
		}
		return true
	default:
		return false
	}
}
