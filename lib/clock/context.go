// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"time"
)

// WithTimeout is context.WithTimeout driven by c. When the timeout
// fires, context.Cause reports context.DeadlineExceeded and ctx.Err
// reports context.Canceled; callers distinguish a timeout from a
// caller cancellation with [TimedOut].
func WithTimeout(parent context.Context, c Clock, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	timer := c.AfterFunc(timeout, func() { cancel(context.DeadlineExceeded) })
	return ctx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

// TimedOut reports whether ctx ended because a WithTimeout (or a
// standard deadline) expired.
func TimedOut(ctx context.Context) bool {
	return ctx.Err() != nil && context.Cause(ctx) == context.DeadlineExceeded
}
