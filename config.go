package apiflow

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the file and environment form of the client settings. Durations
// are in milliseconds.
type Config struct {
	BaseURL           string         `yaml:"base_url" toml:"base_url"`
	TimeoutMS         int            `yaml:"timeout_ms" toml:"timeout_ms"`
	DedupWindowMS     int            `yaml:"dedup_window_ms" toml:"dedup_window_ms"`
	MaxRetries        int            `yaml:"max_retries" toml:"max_retries"`
	RateLimitWaitMS   int            `yaml:"rate_limit_wait_ms" toml:"rate_limit_wait_ms"`
	RetryBaseDelayMS  int            `yaml:"retry_base_delay_ms" toml:"retry_base_delay_ms"`
	MaxBackoffMS      int            `yaml:"max_backoff_ms" toml:"max_backoff_ms"`
	BackoffStrategy   string         `yaml:"backoff_strategy" toml:"backoff_strategy"`
	Jitter            float64        `yaml:"jitter" toml:"jitter"`
	RetryStateTTLMS   int            `yaml:"retry_state_ttl_ms" toml:"retry_state_ttl_ms"`
	JanitorIntervalMS int            `yaml:"janitor_interval_ms" toml:"janitor_interval_ms"`
	Throttle          ThrottleConfig `yaml:"throttle" toml:"throttle"`
	Session           SessionConfig  `yaml:"session" toml:"session"`
	Logging           LoggingConfig  `yaml:"logging" toml:"logging"`
}

// ThrottleConfig enables the client-side limiter when RequestsPerSecond > 0.
type ThrottleConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// SessionConfig holds the 401 routing table.
type SessionConfig struct {
	LoginRoutes      []LoginRoute `yaml:"login_routes" toml:"login_routes"`
	DefaultLoginPath string       `yaml:"default_login_path" toml:"default_login_path"`
	AuthEndpoints    []string     `yaml:"auth_endpoints" toml:"auth_endpoints"`
}

// DefaultConfig returns the settings New uses without options.
func DefaultConfig() *Config {
	policy := DefaultSessionPolicy()
	return &Config{
		TimeoutMS:         int(DefaultTimeout / time.Millisecond),
		DedupWindowMS:     int(DefaultDedupWindow / time.Millisecond),
		MaxRetries:        DefaultMaxRetries,
		RateLimitWaitMS:   int(DefaultRateLimitWait / time.Millisecond),
		RetryBaseDelayMS:  int(DefaultRetryBaseDelay / time.Millisecond),
		MaxBackoffMS:      int(DefaultMaxBackoff / time.Millisecond),
		BackoffStrategy:   ExponentialBackoff.String(),
		RetryStateTTLMS:   int(DefaultRetryStateTTL / time.Millisecond),
		JanitorIntervalMS: int(DefaultJanitorInterval / time.Millisecond),
		Session: SessionConfig{
			LoginRoutes:      policy.LoginRoutes,
			DefaultLoginPath: policy.DefaultLoginPath,
			AuthEndpoints:    policy.AuthEndpoints,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML or TOML file chosen by extension, expands ${VAR}
// references, applies APIFLOW_* environment overrides and validates the
// result. Keys missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// ApplyEnv overrides fields from APIFLOW_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("APIFLOW_BASE_URL"); ok {
		c.BaseURL = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"APIFLOW_TIMEOUT_MS", &c.TimeoutMS},
		{"APIFLOW_DEDUP_WINDOW_MS", &c.DedupWindowMS},
		{"APIFLOW_MAX_RETRIES", &c.MaxRetries},
		{"APIFLOW_RATE_LIMIT_WAIT_MS", &c.RateLimitWaitMS},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer", e.name, v)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks ranges and that the base URL parses.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base_url must use http or https, got %q", c.BaseURL)
		}
	}
	if c.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}
	if c.DedupWindowMS < 0 {
		return fmt.Errorf("dedup_window_ms must be non-negative")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.RateLimitWaitMS < 0 {
		return fmt.Errorf("rate_limit_wait_ms must be non-negative")
	}
	if c.RetryBaseDelayMS < 0 || c.MaxBackoffMS < 0 {
		return fmt.Errorf("retry delays must be non-negative")
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1")
	}
	if _, err := ParseBackoffStrategy(c.BackoffStrategy); err != nil {
		return err
	}
	if c.Throttle.RequestsPerSecond < 0 {
		return fmt.Errorf("throttle.requests_per_second must be non-negative")
	}
	if c.Session.DefaultLoginPath == "" {
		return fmt.Errorf("session.default_login_path is required")
	}
	for i, lr := range c.Session.LoginRoutes {
		if lr.Prefix == "" || lr.Path == "" {
			return fmt.Errorf("session.login_routes[%d] needs prefix and path", i)
		}
	}
	return nil
}

// SessionPolicy converts the session section.
func (c *Config) SessionPolicy() SessionPolicy {
	return SessionPolicy{
		LoginRoutes:      append([]LoginRoute(nil), c.Session.LoginRoutes...),
		DefaultLoginPath: c.Session.DefaultLoginPath,
		AuthEndpoints:    append([]string(nil), c.Session.AuthEndpoints...),
	}
}

func (c *Config) apply(client *Client) {
	client.baseURL = c.BaseURL
	client.timeout = ms(c.TimeoutMS)
	client.dedupWindow = ms(c.DedupWindowMS)
	client.maxRetries = c.MaxRetries
	client.rateLimitWait = ms(c.RateLimitWaitMS)
	client.retryBaseDelay = ms(c.RetryBaseDelayMS)
	client.maxBackoff = ms(c.MaxBackoffMS)
	client.jitter = c.Jitter
	client.retryStateTTL = ms(c.RetryStateTTLMS)
	client.janitorInterval = ms(c.JanitorIntervalMS)
	if s, err := ParseBackoffStrategy(c.BackoffStrategy); err == nil {
		client.backoffStrategy = s
	}
	if c.Throttle.RequestsPerSecond > 0 {
		burst := c.Throttle.Burst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(c.Throttle.RequestsPerSecond), burst)
	}
	client.session = c.SessionPolicy()
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
