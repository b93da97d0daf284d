// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile drives a bridge session until the governances it
// recognizes cover the governances its primary configuration declares.
//
// A pass fetches the controller identity and the desired set (both
// cached for the life of the session), fetches the actual set fresh,
// and then corrects each missing governance in sorted order by
// authorizing it, requesting an update and re-reading the actual set.
// Only one pass runs at a time: [Reconciler.Run] joins an in-flight
// pass, [Reconciler.TryRun] refuses instead.
//
// Calls that fail with a retryable bridge error are retried with
// exponential backoff. Any other failure aborts the pass with a
// [StepError] and leaves the reconciler idle until it is triggered
// again.
package reconcile
