// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used by onboard.
//
// Three things are encoded with it: bridge socket requests and
// responses, SecureStore snapshot envelopes, and the reference
// bridge's sealed keystore file. Encoding is Core Deterministic
// (RFC 8949 §4.2) so a snapshot of the same files always produces the
// same bytes before compression.
//
// Types that only ever travel as CBOR carry `cbor` struct tags. Types
// that are also printed with --json carry `json` tags, which the CBOR
// library honours as a fallback. A field never carries both.
package codec
