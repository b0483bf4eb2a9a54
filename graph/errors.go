package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrEncoding wraps request serialization and response deserialization
// failures.
var ErrEncoding = errors.New("graph: encoding")

// Error is a service failure: HTTP status >= 400 with the Graph error
// envelope.
type Error struct {
	// StatusCode is the HTTP status of the failing response.
	StatusCode int

	// Code is the top-level service error code ("itemNotFound",
	// "accessDenied", ...).
	Code string

	// Message is the human-readable service message.
	Message string

	// RequestID identifies the failing request on the service side.
	RequestID string

	// Date is the service-reported timestamp of the failure.
	Date string

	// DetailedCode is the innerError code, when present.
	DetailedCode string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// UnparsedError is a service failure whose body was not the Graph error
// envelope.
type UnparsedError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *UnparsedError) Error() string {
	return fmt.Sprintf("graph: status %d: unparsed error body (%d bytes)", e.StatusCode, len(e.Body))
}

// TransportError wraps DNS, TCP, TLS, and body read failures.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return "graph: transport: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorEnvelope is the service error wire shape.
type errorEnvelope struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError struct {
			Code      string `json:"code"`
			RequestID string `json:"request-id"`
			Date      string `json:"date"`
		} `json:"innerError"`
	} `json:"error"`
}

// mapError converts an error response into the matching taxonomy entry.
func mapError(statusCode int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == "" && env.Error.Message == "" {
		return &UnparsedError{StatusCode: statusCode, Body: body}
	}
	return &Error{
		StatusCode:   statusCode,
		Code:         env.Error.Code,
		Message:      env.Error.Message,
		RequestID:    env.Error.InnerError.RequestID,
		Date:         env.Error.InnerError.Date,
		DetailedCode: env.Error.InnerError.Code,
	}
}

// StatusOf extracts the HTTP status carried by a service error, or 0.
func StatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.StatusCode
	}
	var ue *UnparsedError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// IsThrottled reports whether the status indicates throttling handled by
// the throttle-aware retry policy.
func IsThrottled(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

// isBackoffStatus reports whether the status is retried with exponential
// backoff rather than Retry-After.
func isBackoffStatus(statusCode int) bool {
	return statusCode == http.StatusBadGateway || statusCode == http.StatusGatewayTimeout
}
