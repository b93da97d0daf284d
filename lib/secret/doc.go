// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds passwords and other sensitive bytes in memory
// the garbage collector never sees.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). Close zeroes the region
// before unmapping it, so a vault password typed into the wizard does
// not outlive the onboarding submission that used it.
//
// [NewFromBytes] moves existing bytes into a Buffer and zeroes the
// source. [Buffer.Equal] and [Buffer.EqualBytes] compare in constant
// time; the onboarding password policy uses them for the confirmation
// check. [ReadFromPath] loads a password from a file or stdin for
// non-interactive use.
package secret
