// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the boundary between the onboarding wizard and the
// vault's companion node.
//
// A [Connector] initializes the node with the vault password and the
// persisted configuration paths and returns a [Session]. The session is
// an owned handle: whoever holds it may query the controller identity,
// list the governances the node recognizes or is configured with, and
// authorize and update governances. Stop releases it.
//
// Failures are *[Error] values carrying a machine-readable [Code], so
// callers branch on codes instead of matching message text. Messages
// from nodes that predate codes are classified once, at the edge, by
// [ClassifyMessage].
//
// Two transports are provided. [Client] speaks to a node daemon over a
// Unix socket, one CBOR request per connection. [Server] exposes any
// Connector on such a socket; cmd/onboard-bridge-mock uses it to serve
// the reference node from lib/localnode.
package bridge
