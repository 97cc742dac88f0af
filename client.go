package apiflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Mohammad-abdo/DR-LOW-sub002/internal/backoff"
	"github.com/Mohammad-abdo/DR-LOW-sub002/internal/janitor"
)

// Client is the single entry point feature code uses to reach the API. It
// injects the bearer token, coalesces identical reads, retries transient
// failures, waits out 429s once and invalidates the session on 401. It is
// safe for concurrent use; call Close to stop its background janitor.
type Client struct {
	transport     Transport
	baseURL       string
	timeout       time.Duration
	maxRetries    int
	rateLimitWait time.Duration

	dedupWindow    time.Duration
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition
	dedup          *Deduplicator

	retryBaseDelay  time.Duration
	maxBackoff      time.Duration
	backoffStrategy BackoffStrategy
	jitter          float64
	retryCondition  RetryCondition
	retryStateTTL   time.Duration
	retrier         *RetryExecutor

	credentials  CredentialStore
	navigator    Navigator
	currentRoute RouteFunc
	session      SessionPolicy

	limiter      *rate.Limiter
	logger       Logger
	metrics      *MetricsCollector
	requestIDGen func() string
	userAgent    string

	janitorInterval time.Duration
	janitor         *janitor.Janitor

	sleep func(context.Context, time.Duration) error

	validationError error
	closeOnce       sync.Once
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		transport:       &http.Client{},
		timeout:         DefaultTimeout,
		maxRetries:      DefaultMaxRetries,
		rateLimitWait:   DefaultRateLimitWait,
		dedupWindow:     DefaultDedupWindow,
		dedupKeyFunc:    Fingerprint,
		dedupCondition:  DefaultDeduplicationCondition,
		retryBaseDelay:  DefaultRetryBaseDelay,
		maxBackoff:      DefaultMaxBackoff,
		backoffStrategy: ExponentialBackoff,
		retryCondition:  IsRetryable,
		retryStateTTL:   DefaultRetryStateTTL,
		session:         DefaultSessionPolicy(),
		logger:          NewNopLogger(),
		requestIDGen:    uuid.NewString,
		userAgent:       "apiflow/" + Version,
		janitorInterval: DefaultJanitorInterval,
		sleep:           sleepContext,
	}

	for _, option := range options {
		if option != nil {
			option(client)
		}
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}
	client.fillDefaults()

	client.dedup = NewDeduplicator(client.dedupWindow)
	client.dedup.keyFunc = client.dedupKeyFunc
	client.dedup.logger = client.logger
	client.dedup.metrics = client.metrics

	client.retrier = NewRetryExecutor(client.retryBaseDelay)
	client.retrier.calculator = backoff.NewCalculator(
		newBackoffStrategy(client.backoffStrategy),
		client.retryBaseDelay, client.maxBackoff, 2, client.jitter,
	)
	client.retrier.keyFunc = client.dedupKeyFunc
	client.retrier.condition = client.retryCondition
	client.retrier.ttl = client.retryStateTTL
	client.retrier.sleep = client.sleep
	client.retrier.logger = client.logger
	client.retrier.metrics = client.metrics

	client.janitor = janitor.New(client.janitorInterval, client.dedup, client.retrier)
	client.janitor.OnSweep(func(evicted int) {
		if evicted > 0 {
			client.logger.Debug("Janitor sweep", "evicted", evicted)
		}
	})
	client.janitor.Start()

	return client
}

// fillDefaults keeps an invalid client usable; the problem is still reported
// through ValidationError.
func (c *Client) fillDefaults() {
	if c.transport == nil {
		c.transport = &http.Client{}
	}
	if c.logger == nil {
		c.logger = NewNopLogger()
	}
	if c.requestIDGen == nil {
		c.requestIDGen = uuid.NewString
	}
	if c.dedupKeyFunc == nil {
		c.dedupKeyFunc = Fingerprint
	}
	if c.retryCondition == nil {
		c.retryCondition = IsRetryable
	}
	if c.retryStateTTL <= 0 {
		c.retryStateTTL = DefaultRetryStateTTL
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
}

// Close stops the background janitor. The client stays usable afterwards
// but bookkeeping is then only bounded by the per-entry cleanups.
func (c *Client) Close() error {
	c.closeOnce.Do(c.janitor.Stop)
	return nil
}

// Sweep runs one janitor pass immediately and returns the evicted count.
func (c *Client) Sweep() int {
	return c.janitor.SweepNow()
}

// Deduplicator exposes the client's deduplication registry.
func (c *Client) Deduplicator() *Deduplicator {
	return c.dedup
}

// RetryExecutor exposes the client's retry registry.
func (c *Client) RetryExecutor() *RetryExecutor {
	return c.retrier
}

// Get issues a GET. Reads are deduplicated and retried by default.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

// Post issues a POST.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

// Put issues a PUT.
func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, opts...)
}

// Patch issues a PATCH.
func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// Do runs a request through the full pipeline: deduplication (when
// eligible), the timeout guard around retry, and the per-dispatch response
// policy.
func (c *Client) Do(ctx context.Context, method, target string, opts ...RequestOption) (*Response, error) {
	settings := newRequestSettings(method, target, opts)
	desc := &settings.desc
	requestID := c.requestIDGen()
	start := time.Now()

	if err := desc.normalizeBody(); err != nil {
		return nil, c.newError(ErrorTypeValidation, "invalid request body", err, desc, requestID)
	}

	c.metrics.RecordRequestStart(desc.Method, desc.Target)
	defer c.metrics.RecordRequestEnd(desc.Method, desc.Target)

	c.logger.Debug("Starting request", "requestID", requestID, "method", desc.Method, "target", desc.URL())

	dedup := c.shouldDeduplicate(settings)
	attempts := settings.maxAttempts
	if attempts <= 0 {
		attempts = 1
		if dedup {
			attempts = c.maxRetries
		}
	}

	// The 429 replay allowance spans every attempt of this call.
	replayed := false
	run := func(ctx context.Context) (*Response, error) {
		return c.withTimeout(ctx, desc, requestID, func(ctx context.Context) (*Response, error) {
			return c.retrier.Retry(ctx, desc, func(ctx context.Context) (*Response, error) {
				return c.dispatch(ctx, desc, requestID, &replayed)
			}, attempts)
		})
	}

	var resp *Response
	var err error
	if dedup {
		resp, err = c.dedup.AcquireOrJoin(ctx, desc, run)
	} else {
		resp, err = run(ctx)
	}

	duration := time.Since(start)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	} else if err != nil {
		statusCode = StatusCode(err)
	}
	c.metrics.RecordRequest(desc.Method, desc.Target, statusCode, duration)

	if err != nil {
		c.metrics.RecordError(errorTypeOf(err), desc.Method, desc.Target)
		c.logger.Debug("Request failed", "requestID", requestID, "method", desc.Method, "target", desc.Target, "error", err.Error(), "duration", duration)
		return nil, err
	}
	return resp, nil
}

func (c *Client) shouldDeduplicate(s *requestSettings) bool {
	if s.dedup != nil {
		return *s.dedup
	}
	return c.dedupCondition != nil && c.dedupCondition(&s.desc)
}

// withTimeout bounds the whole call, retries and waits included.
func (c *Client) withTimeout(ctx context.Context, desc *Descriptor, requestID string, fn DispatchFunc) (*Response, error) {
	resp, err := RunWithTimeout(ctx, c.timeout, fn)

	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.Type == ErrorTypeTimeout && clientErr.URL == "" {
		clientErr.RequestID = requestID
		clientErr.Method = desc.Method
		clientErr.URL = c.resolveURL(desc)
		c.metrics.RecordTimeout(desc.Method, desc.Target)
		c.logger.Warn("Request timed out", "requestID", requestID, "method", desc.Method, "target", desc.Target, "timeout", c.timeout)
	}
	return resp, err
}

// dispatch sends desc once. The first 429 seen while *replayed is false is
// waited out and replayed; any later 429 is returned as a failure.
func (c *Client) dispatch(ctx context.Context, desc *Descriptor, requestID string, replayed *bool) (*Response, error) {
	start := time.Now()

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.newError(ErrorTypeNetwork, "client-side rate limit wait aborted", err, desc, requestID)
			}
		}

		req, err := c.buildRequest(ctx, desc)
		if err != nil {
			return nil, c.newError(ErrorTypeValidation, "building request failed", err, desc, requestID)
		}

		httpResp, err := c.transport.Do(req)
		if err != nil {
			return nil, c.newError(ErrorTypeNetwork, "network request failed", err, desc, requestID)
		}
		resp, err := readResponse(httpResp)
		if err != nil {
			return nil, c.newError(ErrorTypeNetwork, "network request failed", err, desc, requestID)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && !*replayed:
			*replayed = true
			wait, ok := parseRetryAfter(resp.Header.Get("Retry-After"))
			if !ok {
				wait = c.rateLimitWait
			}
			c.metrics.RecordRateLimited(desc.Method, desc.Target)
			c.logger.Warn("Rate limited, replaying once", "requestID", requestID, "target", desc.Target, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, c.newError(ErrorTypeRateLimit, "rate limit wait aborted", err, desc, requestID)
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			c.invalidateSession(desc, requestID)
			return nil, c.statusError(desc, resp, requestID, time.Since(start))

		case resp.StatusCode >= 400:
			return nil, c.statusError(desc, resp, requestID, time.Since(start))
		}

		resp.Request = desc
		return resp, nil
	}
}

func (c *Client) buildRequest(ctx context.Context, desc *Descriptor) (*http.Request, error) {
	body, contentType, multipart, err := desc.encodeBody()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, desc.Method, c.resolveURL(desc), reader)
	if err != nil {
		return nil, err
	}

	req.Header = desc.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	switch {
	case multipart:
		req.Header.Del("Content-Type")
		req.Header.Set("Content-Type", contentType)
	case contentType != "" && req.Header.Get("Content-Type") == "":
		req.Header.Set("Content-Type", contentType)
	}

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) token() string {
	if c.credentials == nil {
		return ""
	}
	token, err := c.credentials.Token()
	if err != nil {
		c.logger.Warn("Reading credential failed", "error", err.Error())
		return ""
	}
	return strings.TrimSpace(token)
}

// invalidateSession clears credentials and sends the user to the login page
// for their section, unless they are already signing in.
func (c *Client) invalidateSession(desc *Descriptor, requestID string) {
	route := ""
	if c.currentRoute != nil {
		route = c.currentRoute()
	}

	if c.session.IsLoginRoute(route) || c.session.IsAuthEndpoint(desc.Target) {
		c.logger.Debug("Unauthorized on sign-in flow, leaving session intact", "requestID", requestID, "route", route, "target", desc.Target)
		return
	}

	if c.credentials != nil {
		if err := c.credentials.ClearToken(); err != nil {
			c.logger.Error("Clearing token failed", "requestID", requestID, "error", err.Error())
		}
		if err := c.credentials.ClearUser(); err != nil {
			c.logger.Error("Clearing user failed", "requestID", requestID, "error", err.Error())
		}
	}

	loginPath := c.session.LoginPathFor(route)
	c.metrics.RecordSessionInvalidation(loginPath)
	c.logger.Info("Session invalidated", "requestID", requestID, "route", route, "redirect", loginPath)

	if c.navigator != nil && loginPath != "" {
		c.navigator.RedirectTo(loginPath)
	}
}

func (c *Client) resolveURL(desc *Descriptor) string {
	target := desc.URL()
	if c.baseURL == "" || strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

func (c *Client) statusError(desc *Descriptor, resp *Response, requestID string, duration time.Duration) *ClientError {
	err := c.newError(errorTypeForStatus(resp.StatusCode), statusMessage(resp), nil, desc, requestID)
	err.StatusCode = resp.StatusCode
	err.Response = resp
	err.Duration = duration
	return err
}

func (c *Client) newError(errorType, message string, cause error, desc *Descriptor, requestID string) *ClientError {
	return &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		RequestID: requestID,
		Method:    desc.Method,
		URL:       c.resolveURL(desc),
		Timestamp: time.Now(),
	}
}

func statusMessage(resp *Response) string {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = "unexpected status"
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, text)
}

func errorTypeOf(err error) string {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	return "Unknown"
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
