// Package janitor runs periodic eviction sweeps over in-memory registries.
package janitor

import (
	"sync"
	"time"
)

// Sweeper evicts entries that are stale at now and reports how many it
// removed. Implementations must tolerate entries that disappear between
// sweeps on their own.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(now time.Time) int

// Sweep implements Sweeper.
func (f SweeperFunc) Sweep(now time.Time) int {
	return f(now)
}

// Janitor calls every registered Sweeper once per interval until stopped.
type Janitor struct {
	interval time.Duration
	sweepers []Sweeper
	onSweep  func(evicted int)
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a stopped Janitor. A non-positive interval yields a Janitor
// whose Start is a no-op; SweepNow still works.
func New(interval time.Duration, sweepers ...Sweeper) *Janitor {
	return &Janitor{
		interval: interval,
		sweepers: sweepers,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnSweep registers a callback invoked after every sweep with the total
// number of evicted entries. Call before Start.
func (j *Janitor) OnSweep(fn func(evicted int)) {
	j.onSweep = fn
}

// Start launches the sweep loop. Calling Start more than once, or after
// Stop, has no effect.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.started || j.stopped || j.interval <= 0 {
		return
	}
	j.started = true
	go j.loop()
}

// Stop ends the sweep loop and waits for it to exit. It is safe to call
// multiple times and without a prior Start.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.stopped = true
	started := j.started
	close(j.stop)
	j.mu.Unlock()

	if started {
		<-j.done
	}
}

// SweepNow runs one sweep synchronously and returns the evicted total.
func (j *Janitor) SweepNow() int {
	now := j.now()
	evicted := 0
	for _, s := range j.sweepers {
		evicted += s.Sweep(now)
	}
	if j.onSweep != nil {
		j.onSweep(evicted)
	}
	return evicted
}

func (j *Janitor) loop() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.SweepNow()
		case <-j.stop:
			return
		}
	}
}
