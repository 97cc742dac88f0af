package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the wait before a retry.
//
// attempt is zero based: attempt 0 is the wait after the first failure.
// A non-positive maxBackoff means the delay is not capped.
type Strategy interface {
	Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialStrategy waits initialBackoff * multiplier^attempt, optionally
// stretched by a uniform jitter fraction. With multiplier 2 and no jitter the
// sequence is 1x, 2x, 4x the initial delay.
type ExponentialStrategy struct{}

// Calculate implements Strategy.
func (ExponentialStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initialBackoff) * Pow(multiplier, attempt))
	if delay < 0 {
		delay = maxBackoff
	}
	delay = capDelay(delay, maxBackoff)

	jitter = clampJitter(jitter)
	if jitter > 0 {
		delay = capDelay(delay+time.Duration(float64(delay)*jitter*rand.Float64()), maxBackoff)
	}
	return delay
}

// DecorrelatedJitterStrategy draws the wait uniformly from
// [initialBackoff, initialBackoff * 3^attempt], capped at maxBackoff.
type DecorrelatedJitterStrategy struct{}

// Calculate implements Strategy. multiplier and jitter are ignored.
func (DecorrelatedJitterStrategy) Calculate(attempt int, initialBackoff, maxBackoff time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return capDelay(initialBackoff, maxBackoff)
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initialBackoff)
	upper := base * Pow(3.0, attempt)
	if maxBackoff > 0 && upper > float64(maxBackoff) {
		upper = float64(maxBackoff)
	}
	if upper < base {
		upper = base
	}

	return capDelay(time.Duration(base+rand.Float64()*(upper-base)), maxBackoff)
}

func capDelay(d, maxBackoff time.Duration) time.Duration {
	if maxBackoff > 0 && d > maxBackoff {
		return maxBackoff
	}
	return d
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow returns base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
