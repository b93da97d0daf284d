// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance models the two governance sets the reconciler
// compares: the desired set declared by the primary configuration and
// the actual set the bridge currently recognizes.
//
// [Compare] computes which desired ids are missing from the actual set
// and which are present. The result depends only on set membership:
// argument order and duplicates do not change it, and both result
// slices are sorted so corrections and displays are deterministic.
package governance
