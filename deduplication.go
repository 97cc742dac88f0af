package apiflow

import (
	"context"
	"time"

	"github.com/Mohammad-abdo/DR-LOW-sub002/internal/singleflight"
)

// Deduplicator shares one in-flight result between identical requests
// issued within its window.
type Deduplicator struct {
	group   *singleflight.Group[*Response]
	keyFunc DeduplicationKeyFunc
	logger  Logger
	metrics *MetricsCollector
}

// NewDeduplicator returns a Deduplicator keyed by Fingerprint.
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		group:   singleflight.New[*Response](window),
		keyFunc: Fingerprint,
		logger:  NewNopLogger(),
	}
}

// Window returns the deduplication window.
func (d *Deduplicator) Window() time.Duration {
	return d.group.Window()
}

// AcquireOrJoin returns the shared outcome for desc. The first caller in a
// window runs dispatch; later callers wait for that result without invoking
// dispatch. dispatch runs detached from ctx's cancellation, so one caller
// giving up never fails the others; ctx only bounds this caller's wait.
func (d *Deduplicator) AcquireOrJoin(ctx context.Context, desc *Descriptor, dispatch DispatchFunc) (*Response, error) {
	key := d.keyFunc(desc)
	shared := context.WithoutCancel(ctx)

	resp, err, joined := d.group.Do(ctx, key, func() (*Response, error) {
		return dispatch(shared)
	})

	if joined {
		d.logger.Debug("Duplicate request suppressed", "fingerprint", key, "method", desc.Method, "target", desc.Target)
		d.metrics.RecordDeduplicationHit(desc.Method, desc.Target)
	}

	return resp, err
}

// Pending returns the number of tracked entries.
func (d *Deduplicator) Pending() int {
	return d.group.Len()
}

// Forget drops the entry for desc, if any.
func (d *Deduplicator) Forget(desc *Descriptor) {
	d.group.ForgetKey(d.keyFunc(desc))
}

// Sweep evicts entries older than the window.
func (d *Deduplicator) Sweep(now time.Time) int {
	evicted := d.group.Sweep(now)
	d.metrics.RecordEvictions("dedup", evicted, d.group.Len())
	return evicted
}
