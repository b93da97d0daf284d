// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package onboard depends on.
type Clock interface {
	Now() time.Time

	// After delivers the current time once d has elapsed. A
	// non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed, unless the returned Timer
	// is stopped first.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks every d. Ticks are dropped when the
	// receiver falls behind. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker is a periodic timer. C has capacity 1.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop ends the tick stream. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the call. It reports false if the call already ran or
// was already stopped.
func (t *Timer) Stop() bool { return t.stop() }
