package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransientError represents a synthesis failure worth retrying on the same
// provider (timeouts, 5xx-class responses, connection resets). After the
// retry budget is exhausted it triggers the fallback chain walk.
type TransientError struct {
	Message string
	Err     error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as retryable.
func NewTransientError(message string, err error) *TransientError {
	return &TransientError{Message: message, Err: err}
}

// FatalError represents a synthesis failure that retrying cannot fix
// (bad request, invalid voice, auth failure). It skips the same-provider
// retries and goes straight to the next fallback chain entry.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// NewFatalError creates a FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatal reports whether err should skip same-provider retries.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// IsTransient reports whether err is retryable on the same provider.
// Context deadline errors from a per-attempt timeout count as transient.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// FromStatusCode classifies an HTTP response status into the error taxonomy:
// 5xx, 408 and 429 are transient; any other non-2xx status is fatal.
func FromStatusCode(code int, message string) error {
	if code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return NewTransientError(fmt.Sprintf("%s (status %d)", message, code), nil)
	}
	return NewFatalError(code, message)
}

// Attempt records one failed provider try during a fallback walk.
type Attempt struct {
	Provider string
	Voice    string
	Err      error
}

// ExhaustedError aggregates every failed attempt of a request's fallback
// walk so operators can see which providers are unhealthy, not just the
// last failure.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (voice %q): %v", a.Provider, a.Voice, a.Err))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}
