// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wizardui is the interactive terminal wizard: it probes for a
// vault, collects the onboarding form (or an unlock password), submits
// it, and shows governance reconciliation until the node is ready.
//
// The Model is a bubbletea model. Probing, submission and
// reconciliation run as tea.Cmd goroutines; their outcomes and the
// reconciler's progress reach the model as messages, so Update never
// blocks.
package wizardui
