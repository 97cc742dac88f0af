package backoff

import (
	"sync"
	"time"
)

// Calculator binds a Strategy to fixed parameters so callers only supply
// the attempt number.
type Calculator struct {
	mu         sync.RWMutex
	strategy   Strategy
	initial    time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     float64
}

// NewCalculator returns a Calculator. A nil strategy falls back to
// ExponentialStrategy and a non-positive multiplier to 2.
func NewCalculator(strategy Strategy, initial, maxDelay time.Duration, multiplier, jitter float64) *Calculator {
	if strategy == nil {
		strategy = ExponentialStrategy{}
	}
	if multiplier <= 0 {
		multiplier = 2
	}
	return &Calculator{
		strategy:   strategy,
		initial:    initial,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		jitter:     jitter,
	}
}

// Delay returns the wait before retry number attempt (zero based).
func (c *Calculator) Delay(attempt int) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy.Calculate(attempt, c.initial, c.maxDelay, c.multiplier, c.jitter)
}

// SetStrategy swaps the strategy at runtime.
func (c *Calculator) SetStrategy(strategy Strategy) {
	if strategy == nil {
		return
	}
	c.mu.Lock()
	c.strategy = strategy
	c.mu.Unlock()
}

// Strategy returns the active strategy.
func (c *Calculator) Strategy() Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy
}
