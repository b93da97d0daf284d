// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault decides which way the onboarding wizard starts.
//
// [Probe.Check] inspects the SecureStore and answers with one of three
// states. Present means both canonical documents are in place and
// readable, so the user only needs to unlock. Absent means there is no
// store directory at all, so the user must go through onboarding.
// Unknown covers everything else (a half-written store, a permission
// error, a document replaced by a directory). Unknown is never treated
// as Absent without the user confirming, because onboarding starts by
// wiping the store.
package vault
