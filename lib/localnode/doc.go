// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package localnode is an in-process bridge node. It implements
// [bridge.Connector] with the same observable behavior as a real node
// (one initialization per process, password-sealed key material,
// authorization before governance updates) without any network
// consensus: an update of an authorized governance lands immediately
// unless the governance is held.
//
// It backs the mock bridge daemon and the end-to-end tests.
package localnode
