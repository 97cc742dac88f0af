package apiflow

import (
	"context"
	"net/http"
	"time"
)

// Transport performs a single HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(*http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(*http.Request) (*http.Response, error)

// Do implements Transport.
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// DispatchFunc performs one attempt of a logical request.
type DispatchFunc func(ctx context.Context) (*Response, error)

// RetryCondition reports whether a failed attempt may be retried.
type RetryCondition func(err error) bool

// DeduplicationKeyFunc derives the identity used to share in-flight results.
type DeduplicationKeyFunc func(*Descriptor) string

// DeduplicationCondition decides whether a request joins the deduplicator.
type DeduplicationCondition func(*Descriptor) bool

// DefaultDeduplicationCondition routes only reads through deduplication.
func DefaultDeduplicationCondition(d *Descriptor) bool {
	return d.Method == http.MethodGet
}

// Option configures a Client.
type Option func(*Client)

// BackoffStrategy selects how retry delays grow.
type BackoffStrategy int

const (
	// ExponentialBackoff waits base * 2^(attempt-1): 1s, 2s, 4s with the default base.
	ExponentialBackoff BackoffStrategy = iota
	// DecorrelatedJitter draws randomised delays that still grow with the attempt.
	DecorrelatedJitter
)

// String returns the configuration name of the strategy.
func (s BackoffStrategy) String() string {
	switch s {
	case DecorrelatedJitter:
		return "decorrelated"
	default:
		return "exponential"
	}
}

// Defaults shared by New and DefaultConfig.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultDedupWindow     = 2 * time.Second
	DefaultMaxRetries      = 3
	DefaultRateLimitWait   = 2 * time.Second
	DefaultRetryBaseDelay  = time.Second
	DefaultMaxBackoff      = 30 * time.Second
	DefaultRetryStateTTL   = 60 * time.Second
	DefaultJanitorInterval = 60 * time.Second
)
