package apiflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	logger.Debug("debug message")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Info("Scheduling retry", "attempt", 2, "fingerprint", "GET:/x:")

	entries := logs.FilterMessage("Scheduling retry").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["attempt"] != int64(2) || fields["fingerprint"] != "GET:/x:" {
		t.Errorf("Unexpected fields %v", fields)
	}
}

func TestNewZapLoggerNil(t *testing.T) {
	logger := NewZapLogger(nil)
	logger.Warn("ignored")
}

func TestClientLogsSessionInvalidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	client := newTestClient(t, server.URL,
		WithLogger(NewZapLogger(zap.New(core))),
		WithCredentialStore(NewMemoryCredentialStore("t")),
		WithCurrentRoute(func() string { return "/hr/leave" }),
	)

	_, _ = client.Get(context.Background(), "/hr/leave-requests")

	entries := logs.FilterMessage("Session invalidated").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 session invalidation log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["redirect"]; got != "/hr/login" {
		t.Errorf("Expected redirect field /hr/login, got %v", got)
	}
}

func TestBuildZapLogger(t *testing.T) {
	logger, err := BuildZapLogger(LoggingConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("BuildZapLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("Expected info to be disabled at warn level")
	}

	if _, err := BuildZapLogger(LoggingConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}

	dev, err := BuildZapLogger(LoggingConfig{Development: true})
	if err != nil {
		t.Fatalf("BuildZapLogger development: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected development preset to enable debug")
	}
}
