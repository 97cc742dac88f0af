package apiflow

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// WithBaseURL sets the origin every relative target is resolved against
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the transport used for each dispatch
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sets the HTTP client used for each dispatch
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			c.transport = nil
			return
		}
		c.transport = client
	}
}

// WithTimeout bounds each call, retries and waits included. Zero disables
// the guard.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the attempt budget for deduplicated reads
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the delay before the first retry
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = d
	}
}

// WithMaxBackoff caps a single retry delay. Zero leaves delays uncapped.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffStrategy selects how retry delays grow
func WithBackoffStrategy(s BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffStrategy = s
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0)
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithRetryCondition sets a custom retry condition function
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithRetryStateTTL sets how long an idle retry counter survives the janitor
func WithRetryStateTTL(d time.Duration) Option {
	return func(c *Client) {
		c.retryStateTTL = d
	}
}

// WithRateLimitWait sets the wait used when a 429 carries no Retry-After
func WithRateLimitWait(d time.Duration) Option {
	return func(c *Client) {
		c.rateLimitWait = d
	}
}

// WithDeduplicationWindow sets how long a dispatch stays joinable
func WithDeduplicationWindow(d time.Duration) Option {
	return func(c *Client) {
		c.dedupWindow = d
	}
}

// WithDeduplicationKeyFunc sets a custom deduplication key function
func WithDeduplicationKeyFunc(fn DeduplicationKeyFunc) Option {
	return func(c *Client) {
		c.dedupKeyFunc = fn
	}
}

// WithDeduplicationCondition sets a custom deduplication condition function
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithCredentialStore sets where the bearer token is read from
func WithCredentialStore(store CredentialStore) Option {
	return func(c *Client) {
		c.credentials = store
	}
}

// WithNavigator sets the navigator used after a session is invalidated
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithCurrentRoute sets the function reporting the user's current route
func WithCurrentRoute(fn RouteFunc) Option {
	return func(c *Client) {
		c.currentRoute = fn
	}
}

// WithSessionPolicy replaces the login routing table and auth endpoints
func WithSessionPolicy(p SessionPolicy) Option {
	return func(c *Client) {
		c.session = p
	}
}

// WithClientRateLimit throttles outgoing dispatches to r per second
func WithClientRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithMetrics enables metrics collection with the default Prometheus registry
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger for diagnostic events
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator sets a custom request ID generator
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// WithUserAgent overrides the User-Agent header. Empty sends none.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithJanitorInterval sets the sweep interval. Zero disables the janitor.
func WithJanitorInterval(d time.Duration) Option {
	return func(c *Client) {
		c.janitorInterval = d
	}
}

// WithConfig applies a loaded Config. Options after it override its values.
func WithConfig(cfg *Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		cfg.apply(c)
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateDeduplicationConfig()...)
	errors = append(errors, c.validateSessionConfig()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.maxRetries < 1 {
		errors = append(errors, "maxRetries must be at least 1")
	}
	if c.retryBaseDelay < 0 {
		errors = append(errors, "retryBaseDelay must be non-negative")
	}
	if c.maxBackoff > 0 && c.maxBackoff < c.retryBaseDelay {
		errors = append(errors, "maxBackoff must be greater than or equal to retryBaseDelay")
	}
	if c.jitter < 0 || c.jitter > 1 {
		errors = append(errors, "jitter must be between 0 and 1")
	}
	if c.timeout < 0 {
		errors = append(errors, "timeout must be non-negative")
	}
	if c.rateLimitWait < 0 {
		errors = append(errors, "rateLimitWait must be non-negative")
	}
	if c.retryCondition == nil {
		errors = append(errors, "retry condition must be set")
	}
	if c.retryStateTTL <= 0 {
		errors = append(errors, "retryStateTTL must be positive")
	}

	return errors
}

func (c *Client) validateDeduplicationConfig() []string {
	var errors []string

	if c.dedupWindow < 0 {
		errors = append(errors, "deduplication window must be non-negative")
	}
	if c.dedupKeyFunc == nil {
		errors = append(errors, "deduplication key function must be set")
	}

	return errors
}

func (c *Client) validateSessionConfig() []string {
	var errors []string

	if c.session.DefaultLoginPath == "" {
		errors = append(errors, "session default login path must be set")
	}
	for i, lr := range c.session.LoginRoutes {
		if lr.Prefix == "" || lr.Path == "" {
			errors = append(errors, fmt.Sprintf("session loginRoutes[%d] needs both prefix and path", i))
		}
	}

	return errors
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport == nil {
		errors = append(errors, "transport cannot be nil")
	}
	if c.requestIDGen == nil {
		errors = append(errors, "request ID generator cannot be nil")
	}
	if c.logger == nil {
		errors = append(errors, "logger cannot be nil")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.maxRetries > 100 {
		errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.retryBaseDelay > 10*time.Minute {
		errors = append(errors, "retryBaseDelay > 10m may cause very long delays")
	}
	if c.maxBackoff > 1*time.Hour {
		errors = append(errors, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}
