// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/bureau-foundation/onboard/lib/codec"
	"github.com/bureau-foundation/onboard/lib/governance"
)

// Socket actions.
const (
	ActionInitialize              = "initialize"
	ActionControllerID            = "controller_id"
	ActionAuthorizedSubjects      = "authorized_subjects"
	ActionPutAuth                 = "put_auth"
	ActionGovernanceIDs           = "governance_ids"
	ActionConfiguredGovernanceIDs = "configured_governance_ids"
	ActionUpdateGovernance        = "update_governance"
	ActionStop                    = "stop"
)

// maxMessageSize bounds a request or response on the socket.
const maxMessageSize = 1024 * 1024

// requestHeader is decoded from every request before dispatch.
type requestHeader struct {
	Action    string `cbor:"action"`
	Session   string `cbor:"session,omitempty"`
	RequestID string `cbor:"request_id,omitempty"`
}

type initializeRequest struct {
	Password          []byte `cbor:"password"`
	PrimaryConfigPath string `cbor:"primary_config_path"`
	NodeConfigPath    string `cbor:"node_config_path"`
	SecureStorePath   string `cbor:"secure_store_path"`
}

type governanceRequest struct {
	GovernanceID governance.ID `cbor:"governance_id"`
}

type initializeResponse struct {
	Session string `cbor:"session"`
}

type controllerResponse struct {
	ControllerID string `cbor:"controller_id"`
}

type subjectsResponse struct {
	Subjects []string `cbor:"subjects"`
}

type governanceListResponse struct {
	GovernanceIDs []governance.ID `cbor:"governance_ids"`
}

// response is the envelope of every reply. Code is empty on success
// and on replies from nodes that do not send codes.
type response struct {
	OK    bool             `cbor:"ok"`
	Code  Code             `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}
