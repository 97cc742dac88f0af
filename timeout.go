package apiflow

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout races fn against a timer. When the timer wins the result is
// a Timeout *ClientError even if fn later succeeds; fn's late result is
// discarded and the context handed to fn is cancelled, which aborts the
// transport call where it honours contexts. A timed-out mutation may still
// have been applied by the server. A non-positive timeout disables the guard.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn DispatchFunc) (*Response, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := fn(attemptCtx)
		done <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		return nil, &ClientError{
			Type:      ErrorTypeTimeout,
			Message:   fmt.Sprintf("no response within %v", timeout),
			Timestamp: time.Now(),
			Duration:  timeout,
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
