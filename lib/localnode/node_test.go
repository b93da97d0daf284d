// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localnode

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/testutil"
)

// storeFixture lays out a secure store the way securestore.Save does.
func storeFixture(t *testing.T, primary string) bridge.InitRequest {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "config")
	return bridge.InitRequest{
		PrimaryConfigPath: testutil.WriteFile(t, storePath, "config.json", primary),
		NodeConfigPath:    testutil.WriteFile(t, storePath, "config-node.json", `{"listen": "127.0.0.1"}`),
		SecureStorePath:   storePath,
	}
}

func withPassword(t *testing.T, request bridge.InitRequest, password string) bridge.InitRequest {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(password))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	request.Password = buffer
	return request
}

func TestNode_InitializeOnce(t *testing.T) {
	request := storeFixture(t, `{"governances": ["gov-a"]}`)
	node := New(Options{})
	ctx := context.Background()

	session, err := node.Initialize(ctx, withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if session.ID() == "" {
		t.Error("session id is empty")
	}

	_, err = node.Initialize(ctx, withPassword(t, request, "Abc12"))
	if bridge.CodeOf(err) != bridge.CodeAlreadyInitialized {
		t.Fatalf("second Initialize: code %q, want already_initialized", bridge.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "could not initialize globally") {
		t.Errorf("error = %v", err)
	}
}

func TestNode_KeyPersistsAcrossNodes(t *testing.T) {
	request := storeFixture(t, `{"governances": []}`)
	ctx := context.Background()

	first, err := New(Options{}).Initialize(ctx, withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	firstID, err := first.ControllerID(ctx)
	if err != nil {
		t.Fatalf("ControllerID: %v", err)
	}
	if !strings.HasPrefix(firstID, "E") {
		t.Errorf("controller id %q lacks the E prefix", firstID)
	}

	info, err := os.Stat(KeyPath(request.SecureStorePath))
	if err != nil {
		t.Fatalf("key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	second, err := New(Options{}).Initialize(ctx, withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("second node Initialize: %v", err)
	}
	secondID, _ := second.ControllerID(ctx)
	if secondID != firstID {
		t.Errorf("controller id changed: %q then %q", firstID, secondID)
	}
}

func TestNode_WrongPassword(t *testing.T) {
	request := storeFixture(t, `{"governances": []}`)
	ctx := context.Background()

	if _, err := New(Options{}).Initialize(ctx, withPassword(t, request, "Abc12")); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	node := New(Options{})
	_, err := node.Initialize(ctx, withPassword(t, request, "Xyz98"))
	if bridge.CodeOf(err) != bridge.CodeIncorrectPassword {
		t.Fatalf("code = %q (%v), want incorrect_password", bridge.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "PKCS#5 encryption failed") {
		t.Errorf("error = %v", err)
	}

	// A failed attempt does not consume the node's single initialization.
	if _, err := node.Initialize(ctx, withPassword(t, request, "Abc12")); err != nil {
		t.Fatalf("Initialize after wrong password: %v", err)
	}
}

func TestNode_MissingDocument(t *testing.T) {
	request := storeFixture(t, `{}`)
	request.NodeConfigPath = filepath.Join(t.TempDir(), "absent.json")

	_, err := New(Options{}).Initialize(context.Background(), withPassword(t, request, "Abc12"))
	if bridge.CodeOf(err) != bridge.CodeInvalidRequest {
		t.Fatalf("code = %q, want invalid_request", bridge.CodeOf(err))
	}
}

func TestSession_AuthorizeThenUpdate(t *testing.T) {
	request := storeFixture(t, `{"governances": ["gov-b", "gov-a"]}`)
	ctx := context.Background()

	session, err := New(Options{Preloaded: []governance.ID{"gov-z"}}).Initialize(ctx, withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	desired, err := session.ConfiguredGovernanceIDs(ctx)
	if err != nil || !slices.Equal(desired, []governance.ID{"gov-b", "gov-a"}) {
		t.Fatalf("ConfiguredGovernanceIDs = %v, %v", desired, err)
	}
	actual, _ := session.GovernanceIDs(ctx)
	if !slices.Equal(actual, []governance.ID{"gov-z"}) {
		t.Fatalf("actual = %v, want preloaded", actual)
	}

	if err := session.UpdateGovernance(ctx, "gov-a"); bridge.CodeOf(err) != bridge.CodeNotAuthorized {
		t.Fatalf("update before authorization: code %q, want not_authorized", bridge.CodeOf(err))
	}

	if err := session.PutAuthorization(ctx, "gov-a"); err != nil {
		t.Fatalf("PutAuthorization: %v", err)
	}
	if err := session.PutAuthorization(ctx, "gov-a"); err != nil {
		t.Fatalf("repeated PutAuthorization: %v", err)
	}
	controller, _ := session.ControllerID(ctx)
	subjects, _ := session.AuthorizedSubjects(ctx, "gov-a")
	if !slices.Equal(subjects, []string{controller}) {
		t.Errorf("subjects = %v, want [%s]", subjects, controller)
	}

	if err := session.UpdateGovernance(ctx, "gov-a"); err != nil {
		t.Fatalf("UpdateGovernance: %v", err)
	}
	actual, _ = session.GovernanceIDs(ctx)
	if !slices.Equal(actual, []governance.ID{"gov-a", "gov-z"}) {
		t.Errorf("actual = %v", actual)
	}
}

func TestSession_HeldUpdatesNeverLand(t *testing.T) {
	request := storeFixture(t, `{"governances": ["gov-a"]}`)
	ctx := context.Background()

	session, err := New(Options{Hold: []governance.ID{"gov-a"}}).Initialize(ctx, withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := session.PutAuthorization(ctx, "gov-a"); err != nil {
		t.Fatalf("PutAuthorization: %v", err)
	}
	if err := session.UpdateGovernance(ctx, "gov-a"); err != nil {
		t.Fatalf("UpdateGovernance: %v", err)
	}
	actual, _ := session.GovernanceIDs(ctx)
	if len(actual) != 0 {
		t.Errorf("held governance landed: %v", actual)
	}
}

func TestSession_StopAndCancel(t *testing.T) {
	request := storeFixture(t, `{}`)
	session, err := New(Options{}).Initialize(context.Background(), withPassword(t, request, "Abc12"))
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := session.GovernanceIDs(cancelled); err != context.Canceled {
		t.Errorf("cancelled call err = %v, want context.Canceled", err)
	}

	if err := session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := session.ControllerID(context.Background()); bridge.CodeOf(err) != bridge.CodeNotInitialized {
		t.Errorf("call after Stop: code %q, want not_initialized", bridge.CodeOf(err))
	}
}
