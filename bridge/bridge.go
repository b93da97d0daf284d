// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"

	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/secret"
)

// InitRequest carries everything initialize needs. Password is
// borrowed: the Connector must not close or retain it.
type InitRequest struct {
	Password *secret.Buffer

	// PrimaryConfigPath and NodeConfigPath are the persisted copies
	// inside the SecureStore.
	PrimaryConfigPath string
	NodeConfigPath    string

	// SecureStorePath is the SecureStore directory.
	SecureStorePath string
}

// Connector starts bridge sessions.
type Connector interface {
	// Initialize starts the node. A node initializes at most once per
	// process; later calls fail with CodeAlreadyInitialized.
	Initialize(ctx context.Context, request InitRequest) (Session, error)
}

// Session is a live, initialized bridge.
type Session interface {
	// ID identifies the session on the wire.
	ID() string

	// ControllerID returns the local node's controller identifier.
	ControllerID(ctx context.Context) (string, error)

	// AuthorizedSubjects lists subjects authorized for a governance.
	AuthorizedSubjects(ctx context.Context, id governance.ID) ([]string, error)

	// PutAuthorization authorizes id locally. Idempotent.
	PutAuthorization(ctx context.Context, id governance.ID) error

	// GovernanceIDs is the actual set: governances the node
	// recognizes right now.
	GovernanceIDs(ctx context.Context) ([]governance.ID, error)

	// ConfiguredGovernanceIDs is the desired set declared by the
	// primary configuration.
	ConfiguredGovernanceIDs(ctx context.Context) ([]governance.ID, error)

	// UpdateGovernance asks the node to fetch the latest state of id.
	// Success means the request was accepted, not that id is now
	// recognized.
	UpdateGovernance(ctx context.Context, id governance.ID) error

	// Stop shuts the session down. Further calls fail with
	// CodeNotInitialized.
	Stop(ctx context.Context) error
}
