package apiflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfigMatchesClientDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TimeoutMS != 30000 || cfg.DedupWindowMS != 2000 || cfg.MaxRetries != 3 || cfg.RateLimitWaitMS != 2000 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	t.Setenv("APIFLOW_TEST_HOST", "api.clinic.test")
	path := writeConfigFile(t, "apiflow.yaml", `
base_url: "https://${APIFLOW_TEST_HOST}/api"
timeout_ms: 5000
max_retries: 5
backoff_strategy: decorrelated
throttle:
  requests_per_second: 20
  burst: 5
session:
  default_login_path: /signin
  login_routes:
    - prefix: /lab
      path: /lab/login
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://api.clinic.test/api" {
		t.Errorf("Expected expanded base_url, got %q", cfg.BaseURL)
	}
	if cfg.TimeoutMS != 5000 || cfg.MaxRetries != 5 {
		t.Errorf("Unexpected timeout/retries: %d/%d", cfg.TimeoutMS, cfg.MaxRetries)
	}
	if cfg.DedupWindowMS != 2000 {
		t.Errorf("Expected missing key to keep default, got %d", cfg.DedupWindowMS)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug logging, got %q", cfg.Logging.Level)
	}

	policy := cfg.SessionPolicy()
	if got := policy.LoginPathFor("/lab/results"); got != "/lab/login" {
		t.Errorf("Expected /lab/login, got %q", got)
	}
	if got := policy.LoginPathFor("/elsewhere"); got != "/signin" {
		t.Errorf("Expected /signin, got %q", got)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfigFile(t, "apiflow.toml", `
base_url = "http://localhost:8080"
dedup_window_ms = 500
jitter = 0.2

[session]
default_login_path = "/login"
auth_endpoints = ["/auth/login", "/auth/otp"]
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DedupWindowMS != 500 || cfg.Jitter != 0.2 {
		t.Errorf("Unexpected values: %+v", cfg)
	}
	if !cfg.SessionPolicy().IsAuthEndpoint("/auth/otp") {
		t.Error("Expected /auth/otp to be an auth endpoint")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("APIFLOW_BASE_URL", "https://override.test")
	t.Setenv("APIFLOW_TIMEOUT_MS", "1500")
	t.Setenv("APIFLOW_MAX_RETRIES", "2")

	path := writeConfigFile(t, "apiflow.yml", "base_url: https://file.test\ntimeout_ms: 9000\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BaseURL != "https://override.test" || cfg.TimeoutMS != 1500 || cfg.MaxRetries != 2 {
		t.Errorf("Expected env overrides, got %+v", cfg)
	}
}

func TestApplyEnvRejectsNonInteger(t *testing.T) {
	cfg := DefaultConfig()
	lookup := func(key string) (string, bool) {
		if key == "APIFLOW_DEDUP_WINDOW_MS" {
			return "two seconds", true
		}
		return "", false
	}
	err := cfg.ApplyEnv(lookup)
	if err == nil || !strings.Contains(err.Error(), "APIFLOW_DEDUP_WINDOW_MS") {
		t.Errorf("Expected error naming the variable, got %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown extension", "apiflow.json", "{}"},
		{"bad yaml", "bad.yaml", "timeout_ms: [1"},
		{"invalid scheme", "scheme.yaml", "base_url: ftp://files.test"},
		{"zero retries", "retries.toml", "max_retries = 0"},
		{"unknown strategy", "strategy.yaml", "backoff_strategy: linear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfigFile(t, tt.file, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWithConfigAppliesToClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.test"
	cfg.TimeoutMS = 1000
	cfg.BackoffStrategy = "decorrelated"
	cfg.Throttle = ThrottleConfig{RequestsPerSecond: 10}
	cfg.JanitorIntervalMS = 0

	client := New(WithConfig(cfg), WithMaxRetries(4))
	defer client.Close()

	if client.baseURL != "https://api.test" || client.timeout != time.Second {
		t.Errorf("Expected config to apply, got %s %v", client.baseURL, client.timeout)
	}
	if client.maxRetries != 4 {
		t.Errorf("Expected later option to win, got %d", client.maxRetries)
	}
	if client.backoffStrategy != DecorrelatedJitter {
		t.Errorf("Expected decorrelated strategy, got %v", client.backoffStrategy)
	}
	if client.limiter == nil || client.limiter.Burst() != 1 {
		t.Error("Expected throttle with burst 1")
	}
	if !client.IsValid() {
		t.Errorf("Expected valid client, got %v", client.ValidationError())
	}
}
