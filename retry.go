package apiflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Mohammad-abdo/DR-LOW-sub002/internal/backoff"
)

// RetryState counts failed attempts for one fingerprint.
type RetryState struct {
	Fingerprint string
	Attempts    int
	CreatedAt   time.Time
}

// RetryExecutor re-issues failed requests with growing delays. Attempt
// counts are tracked per fingerprint, so concurrent identical calls that
// bypass deduplication share one budget.
type RetryExecutor struct {
	mu     sync.Mutex
	states map[string]*RetryState

	keyFunc    DeduplicationKeyFunc
	calculator *backoff.Calculator
	condition  RetryCondition
	ttl        time.Duration
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	logger     Logger
	metrics    *MetricsCollector
}

// NewRetryExecutor returns an executor waiting baseDelay * 2^(attempt-1)
// between attempts.
func NewRetryExecutor(baseDelay time.Duration) *RetryExecutor {
	return &RetryExecutor{
		states:     make(map[string]*RetryState),
		keyFunc:    Fingerprint,
		calculator: backoff.NewCalculator(backoff.ExponentialStrategy{}, baseDelay, DefaultMaxBackoff, 2, 0),
		condition:  IsRetryable,
		ttl:        DefaultRetryStateTTL,
		sleep:      sleepContext,
		now:        time.Now,
		logger:     NewNopLogger(),
	}
}

// Retry runs dispatch until it succeeds, fails terminally, or maxAttempts
// dispatches have failed. Attempts are strictly sequential.
func (r *RetryExecutor) Retry(ctx context.Context, desc *Descriptor, dispatch DispatchFunc, maxAttempts int) (*Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	key := r.keyFunc(desc)

	for made := 1; ; made++ {
		resp, err := dispatch(ctx)
		if err == nil {
			r.clear(key)
			if resp != nil {
				resp.Attempts = made
			}
			return resp, nil
		}

		if !r.condition(err) {
			r.clear(key)
			return nil, annotateAttempt(err, made, maxAttempts)
		}

		attempt := r.increment(key)
		if attempt >= maxAttempts {
			r.clear(key)
			r.logger.Warn("Retries exhausted", "fingerprint", key, "attempts", attempt, "error", err.Error())
			return nil, annotateAttempt(err, made, maxAttempts)
		}

		delay := r.calculator.Delay(attempt - 1)
		r.logger.Info("Scheduling retry", "fingerprint", key, "attempt", attempt+1, "maxAttempts", maxAttempts, "backoff", delay)
		r.metrics.RecordRetry(desc.Method, desc.Target, attempt)

		if serr := r.sleep(ctx, delay); serr != nil {
			r.clear(key)
			return nil, fmt.Errorf("retry of %s %s abandoned: %w", desc.Method, desc.Target, serr)
		}
	}
}

// Attempts returns the failure count tracked for fingerprint.
func (r *RetryExecutor) Attempts(fingerprint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.states[fingerprint]; ok {
		return s.Attempts
	}
	return 0
}

// Tracked returns the number of fingerprints with retry state.
func (r *RetryExecutor) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Sweep evicts states older than the configured TTL.
func (r *RetryExecutor) Sweep(now time.Time) int {
	r.mu.Lock()
	evicted := 0
	for key, s := range r.states {
		if now.Sub(s.CreatedAt) >= r.ttl {
			delete(r.states, key)
			evicted++
		}
	}
	remaining := len(r.states)
	r.mu.Unlock()

	r.metrics.RecordEvictions("retry", evicted, remaining)
	return evicted
}

func (r *RetryExecutor) increment(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[key]
	if !ok {
		s = &RetryState{Fingerprint: key, CreatedAt: r.now()}
		r.states[key] = s
	}
	s.Attempts++
	return s.Attempts
}

// clear removes the state for key; clearing an absent key is a no-op.
func (r *RetryExecutor) clear(key string) {
	r.mu.Lock()
	delete(r.states, key)
	r.mu.Unlock()
}

func annotateAttempt(err error, attempt, maxAttempts int) error {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		clientErr.Attempt = attempt
		clientErr.MaxAttempts = maxAttempts
	}
	return err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter reads a Retry-After value in delay-seconds or HTTP-date
// form, capped at one hour. ok is false when the value is missing or
// unusable; an explicit zero or a date already past means retry now.
func parseRetryAfter(value string) (delay time.Duration, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		delay = time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay, true
	}

	if t, err := http.ParseTime(value); err == nil {
		delay = time.Until(t)
		if delay < 0 {
			delay = 0
		}
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay, true
	}

	return 0, false
}

func newBackoffStrategy(s BackoffStrategy) backoff.Strategy {
	switch s {
	case DecorrelatedJitter:
		return backoff.DecorrelatedJitterStrategy{}
	default:
		return backoff.ExponentialStrategy{}
	}
}

// ParseBackoffStrategy maps a configuration name to a BackoffStrategy.
func ParseBackoffStrategy(name string) (BackoffStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "exponential":
		return ExponentialBackoff, nil
	case "decorrelated", "decorrelated_jitter":
		return DecorrelatedJitter, nil
	default:
		return ExponentialBackoff, fmt.Errorf("unknown backoff strategy %q", name)
	}
}
