// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for everything in onboard that
// waits: per-call bridge deadlines, reconciliation backoff and the
// convergence poll loop.
//
// Production code uses [Real]. Tests use [Fake], where time moves only
// on [FakeClock.Advance] and [FakeClock.WaitForTimers] closes the race
// between a goroutine arming a timer and the test advancing past it.
package clock
