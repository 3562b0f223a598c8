package errorwrapper

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimeout marks an operation that ran out of time.
	ErrTimeout = errors.New("operation timed out")
	// ErrBlocked matches HTTP errors whose status means the site refused the
	// static client (401, 403, 429).
	ErrBlocked = errors.New("request blocked by site")
	// ErrToolUnavailable indicates an external binary (OCR, rasterizer) is missing
	ErrToolUnavailable = errors.New("external tool unavailable")
)

// WrapError wraps an error with additional context information
func WrapError(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NewError creates a new error with a formatted message
func NewError(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// ValidationError reports a rejected configuration or input value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, fmt.Sprint(e.Value), e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IsValidationError reports whether err carries a *ValidationError anywhere in its chain.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NetworkError is a transport failure before any HTTP status was received.
type NetworkError struct {
	URL     string
	Reason  string
	Wrapped error
}

func (e *NetworkError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (%s): %v", e.Reason, e.URL, e.Wrapped)
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.URL)
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}

// NewNetworkError creates a new network error
func NewNetworkError(url, reason string, wrapped error) *NetworkError {
	return &NetworkError{URL: url, Reason: reason, Wrapped: wrapped}
}

// HTTPError is a response with a non-success status.
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("status %d", e.StatusCode)
	if e.URL != "" {
		msg += " from " + e.URL
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Blocked reports whether the status is a refusal rather than a failure of
// the resource itself.
func (e *HTTPError) Blocked() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// Is makes errors.Is(err, ErrBlocked) true for refusals.
func (e *HTTPError) Is(target error) bool {
	return target == ErrBlocked && e.Blocked()
}

// NewHTTPErrorWithURL creates a new HTTP error with URL context
func NewHTTPErrorWithURL(statusCode int, message, url string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, URL: url}
}
