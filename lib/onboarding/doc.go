// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package onboarding collects a password and two configuration
// documents, persists the documents to the secure store and starts a
// bridge session with them.
//
// [EvaluatePassword] gives per-predicate feedback while the user
// types. [Selection] tracks the two chosen documents and keeps the
// previous choice when a pick fails. [Onboarder.Generate] runs the
// submission (validate, snapshot, wipe, save, initialize) in that
// order and stops at the first failure. [Onboarder.Unlock] starts a
// session against an existing store.
//
// Every failure is one of [ValidationError], [FileSelectionError],
// [securestore.StorageError] or [InitializationError]; [Describe]
// turns any of them into a sentence for the user.
package onboarding
