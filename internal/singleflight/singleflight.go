// Package singleflight coalesces calls that share a key.
//
// Unlike golang.org/x/sync/singleflight, a call stays joinable for a fixed
// window measured from its start, including a short period after it
// settles, so near-simultaneous duplicates arriving just after completion
// still receive the finished result instead of triggering a new call.
package singleflight

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// Group manages windowed calls keyed by string. The zero value is not usable;
// construct with New.
type Group[V any] struct {
	mu     sync.Mutex
	m      map[string]*call[V]
	window time.Duration
	now    func() time.Time
	after  func(time.Duration, func())
}

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	created time.Time
	dups    int
}

// New returns a Group whose calls can be joined for window after they start.
func New[V any](window time.Duration) *Group[V] {
	return &Group[V]{
		m:      make(map[string]*call[V]),
		window: window,
		now:    time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Window returns the join window.
func (g *Group[V]) Window() time.Duration {
	return g.window
}

// Do returns the result of fn for key. If a call for key started less than
// window ago, fn is not invoked and the caller waits for that call instead;
// shared reports this case. fn runs on its own goroutine so ctx only bounds
// this caller's wait, never the shared call.
func (g *Group[V]) Do(ctx context.Context, key string, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok && g.now().Sub(c.created) < g.window {
		c.dups++
		g.mu.Unlock()
		v, err = c.wait(ctx)
		return v, err, true
	}

	c := &call[V]{
		done:    make(chan struct{}),
		created: g.now(),
	}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(key, c, fn)

	v, err = c.wait(ctx)
	return v, err, false
}

// run settles c with fn's result. A panic in fn becomes a *PanicError for
// every waiter instead of crashing the process.
func (g *Group[V]) run(key string, c *call[V], fn func() (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			var zero V
			c.val, c.err = zero, &PanicError{Value: r, Stack: debug.Stack()}
		}
		close(c.done)

		if c.err != nil {
			g.forget(key, c)
		}
		g.after(g.window, func() {
			g.forget(key, c)
		})
	}()

	c.val, c.err = fn()
}

func (c *call[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// forget removes c only while it is still the registered call for key, so a
// late cleanup never evicts a newer call.
func (g *Group[V]) forget(key string, c *call[V]) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.m[key] != c {
		return false
	}
	delete(g.m, key)
	return true
}

// ForgetKey drops key so the next Do starts a fresh call. Removing an absent
// key is a no-op.
func (g *Group[V]) ForgetKey(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// Sweep evicts calls started at least window before now, settled or not,
// and returns how many it removed. Waiters already attached to an evicted
// call still receive its result.
func (g *Group[V]) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for key, c := range g.m {
		if now.Sub(c.created) >= g.window {
			delete(g.m, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of registered calls.
func (g *Group[V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// Duplicates returns how many callers joined the call registered for key.
func (g *Group[V]) Duplicates(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.m[key]; ok {
		return c.dups
	}
	return 0
}
