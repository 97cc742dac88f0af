package apiflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestClientError(t *testing.T) {
	err := &ClientError{
		Type:    ErrorTypeNetwork,
		Message: "connection refused",
	}

	expectedMsg := "NetworkError: connection refused"
	if err.Error() != expectedMsg {
		t.Errorf("Expected '%s', got '%s'", expectedMsg, err.Error())
	}

	cause := errors.New("underlying error")
	errWithCause := &ClientError{
		Type:        ErrorTypeServer,
		Message:     "500 Internal Server Error",
		Cause:       cause,
		RequestID:   "req-1",
		Attempt:     2,
		MaxAttempts: 3,
	}

	expectedMsgWithCause := "[req-1] ServerError: 500 Internal Server Error (underlying error) (attempt 2/3)"
	if errWithCause.Error() != expectedMsgWithCause {
		t.Errorf("Expected '%s', got '%s'", expectedMsgWithCause, errWithCause.Error())
	}
	if errWithCause.Unwrap() != cause {
		t.Errorf("Expected unwrapped error to be %v", cause)
	}
}

func TestClientErrorIsSentinels(t *testing.T) {
	tests := []struct {
		errorType string
		sentinel  error
	}{
		{ErrorTypeTimeout, ErrTimeout},
		{ErrorTypeUnauthorized, ErrUnauthorized},
		{ErrorTypeRateLimit, ErrRateLimited},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &ClientError{Type: tt.errorType})
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("Expected %s error to match %v", tt.errorType, tt.sentinel)
		}
		if errors.Is(&ClientError{Type: ErrorTypeServer}, tt.sentinel) {
			t.Errorf("Expected ServerError not to match %v", tt.sentinel)
		}
	}

	if !errors.Is(&ClientError{Type: ErrorTypeClient, Message: "a"}, &ClientError{Type: ErrorTypeClient}) {
		t.Error("Expected ClientErrors of the same type to match")
	}
}

func TestClientErrorNilReceiver(t *testing.T) {
	var err *ClientError
	if err.Error() != "<nil>" || err.Unwrap() != nil || err.Is(ErrTimeout) {
		t.Error("Expected nil receiver to be safe")
	}
	if err.DebugInfo() != "Error: <nil>" {
		t.Errorf("Unexpected DebugInfo %q", err.DebugInfo())
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:        ErrorTypeTimeout,
		Message:     "no response within 30s",
		RequestID:   "abc",
		Method:      http.MethodGet,
		URL:         "https://api.example.com/x",
		Attempt:     1,
		MaxAttempts: 3,
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:    30 * time.Second,
	}
	info := err.DebugInfo()
	for _, want := range []string{"Error Type: Timeout", "Request ID: abc", "Method: GET", "URL: https://api.example.com/x", "Attempt: 1/3", "Timestamp: 2024-05-01T12:00:00Z", "Duration: 30s"} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo missing %q:\n%s", want, info)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &ClientError{Type: ErrorTypeServer, StatusCode: 502}, true},
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"bad request", &ClientError{Type: ErrorTypeClient, StatusCode: 400}, false},
		{"rate limited", &ClientError{Type: ErrorTypeRateLimit, StatusCode: 429}, false},
		{"validation", &ClientError{Type: ErrorTypeValidation}, false},
		{"cancelled", context.Canceled, false},
		{"plain error", errors.New("eof"), true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStatusCodeAndClassification(t *testing.T) {
	if StatusCode(fmt.Errorf("x: %w", &ClientError{StatusCode: 404})) != 404 {
		t.Error("Expected StatusCode to unwrap")
	}
	if StatusCode(errors.New("x")) != 0 {
		t.Error("Expected 0 for non-ClientError")
	}

	cases := map[int]string{
		401: ErrorTypeUnauthorized,
		429: ErrorTypeRateLimit,
		404: ErrorTypeClient,
		500: ErrorTypeServer,
		503: ErrorTypeServer,
	}
	for code, want := range cases {
		if got := errorTypeForStatus(code); got != want {
			t.Errorf("errorTypeForStatus(%d) = %s, want %s", code, got, want)
		}
	}
}
