package apiflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeClient       = "ClientError"
	ErrorTypeUnauthorized = "Unauthorized"
	ErrorTypeRateLimit    = "RateLimited"
	ErrorTypeServer       = "ServerError"
	ErrorTypeNetwork      = "NetworkError"
	ErrorTypeTimeout      = "Timeout"
	ErrorTypeValidation   = "ValidationError"
)

// Sentinel errors matched by errors.Is against a *ClientError of the
// corresponding type.
var (
	// ErrTimeout is returned when a request outlives its deadline.
	ErrTimeout = errors.New("apiflow: request timed out")

	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("apiflow: unauthorized")

	// ErrRateLimited is returned when a 429 persists after the single replay.
	ErrRateLimited = errors.New("apiflow: rate limited")
)

// ClientError describes a failed request.
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
	// Response holds the server's reply for status failures, so callers can
	// render validation messages from the body.
	Response *Response
}

// Error implements error.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *ClientError by Type, or the sentinel for e's Type.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	switch e.Type {
	case ErrorTypeTimeout:
		return target == ErrTimeout
	case ErrorTypeUnauthorized:
		return target == ErrUnauthorized
	case ErrorTypeRateLimit:
		return target == ErrRateLimited
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsClientStatus reports whether code is in [400, 500).
func IsClientStatus(code int) bool {
	return code >= 400 && code < 500
}

// IsRetryable reports whether err may succeed on a later attempt. Responses
// in [400, 500) are terminal, as are caller cancellations and configuration
// errors; server errors, transport failures and timeouts are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		if IsClientStatus(clientErr.StatusCode) {
			return false
		}
		switch clientErr.Type {
		case ErrorTypeServer, ErrorTypeNetwork, ErrorTypeTimeout:
			return true
		default:
			return false
		}
	}
	return true
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

// errorTypeForStatus maps a failing status to its error type.
func errorTypeForStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case IsClientStatus(code):
		return ErrorTypeClient
	default:
		return ErrorTypeServer
	}
}
