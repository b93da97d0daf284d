// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/localnode"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/securestore"
	"github.com/bureau-foundation/onboard/lib/testutil"
	"github.com/bureau-foundation/onboard/lib/vault"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBridge serves a fresh reference node, as a bridge daemon that
// has just started, and returns its socket path.
func startBridge(t *testing.T, options localnode.Options, legacyErrors bool) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "bridge.sock")
	options.Logger = discardLogger()
	server := bridge.NewServer(socketPath, localnode.New(options), discardLogger())
	server.LegacyErrors = legacyErrors

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx, ready); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	testutil.RequireClosed(t, ready, 5*time.Second, "bridge did not start")
	return socketPath
}

func connect(socketPath string) *bridge.Client {
	return bridge.NewClient(socketPath, discardLogger())
}

func password(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

type fixture struct {
	store   *securestore.Store
	primary string
	node    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	sources := t.TempDir()
	return fixture{
		store: securestore.New(filepath.Join(t.TempDir(), "data"), discardLogger()),
		primary: testutil.WriteFile(t, sources, "primary.yaml", `
network: test
governances:
  - gov-a
  - id: gov-b
  - gov-c
`),
		node: testutil.WriteFile(t, sources, "node.toml", "listen = \"127.0.0.1:4000\"\n"),
	}
}

func (f fixture) onboarder(connector bridge.Connector) *onboarding.Onboarder {
	return &onboarding.Onboarder{
		Store:       f.store,
		Connector:   connector,
		InitTimeout: 30 * time.Second,
		Logger:      discardLogger(),
	}
}

func (f fixture) generate(t *testing.T, connector bridge.Connector, value string) (bridge.Session, error) {
	t.Helper()
	result, err := f.onboarder(connector).Generate(context.Background(), onboarding.GenerateRequest{
		Password:     password(t, value),
		Confirmation: password(t, value),
		PrimaryPath:  f.primary,
		NodePath:     f.node,
	})
	return result.Session, err
}

func reconcileOptions(observer func(reconcile.Status)) reconcile.Options {
	return reconcile.Options{
		CallTimeout:    5 * time.Second,
		RetryAttempts:  2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Logger:         discardLogger(),
		Observer:       observer,
	}
}

// TestOnboardAndConverge follows a new vault from onboarding to a
// converged governance set. The node starts out recognizing gov-a; the
// pass corrects gov-b and then gov-c and signals convergence.
func TestOnboardAndConverge(t *testing.T) {
	f := newFixture(t)
	client := connect(startBridge(t, localnode.Options{Preloaded: []governance.ID{"gov-a"}}, false))

	if state := vault.NewProbe(f.store, nil).Check().State; state != vault.Absent {
		t.Fatalf("probe before onboarding = %s", state)
	}

	session, err := f.generate(t, client, "Passw0rd")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if state := vault.NewProbe(f.store, nil).Check().State; state != vault.Present {
		t.Fatalf("probe after onboarding = %s", state)
	}

	var mu sync.Mutex
	var missingSeen [][]governance.ID
	reconciler := reconcile.New(session, reconcileOptions(func(status reconcile.Status) {
		mu.Lock()
		defer mu.Unlock()
		if status.Diff.Missing == nil {
			return
		}
		if n := len(missingSeen); n == 0 || !slices.Equal(missingSeen[n-1], status.Diff.Missing) {
			missingSeen = append(missingSeen, slices.Clone(status.Diff.Missing))
		}
	}))

	result, err := reconciler.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Outcome != reconcile.OutcomeCovered {
		t.Fatalf("outcome = %s, diff = %+v", result.Outcome, result.Diff)
	}
	if !slices.Equal(result.Corrected, []governance.ID{"gov-b", "gov-c"}) {
		t.Errorf("corrected = %v", result.Corrected)
	}
	if result.ControllerID == "" || result.ControllerID[0] != 'E' {
		t.Errorf("controller id = %q", result.ControllerID)
	}
	testutil.RequireClosed(t, reconciler.Converged(), time.Second, "convergence not signalled")

	mu.Lock()
	if len(missingSeen) == 0 || !slices.Equal(missingSeen[0], []governance.ID{"gov-b", "gov-c"}) {
		t.Errorf("first missing set = %v, want [gov-b gov-c]", missingSeen)
	}
	mu.Unlock()

	// A second pass finds nothing to do.
	again, err := reconciler.Run(context.Background())
	if err != nil || again.Outcome != reconcile.OutcomeCovered || len(again.Corrected) != 0 {
		t.Errorf("second pass = %+v, %v", again, err)
	}

	if err := reconciler.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

// TestRestartUnlockAndWrongPassword restarts the bridge between
// attempts. The same password unlocks the vault and yields the same
// controller id; a different one is reported as incorrect and the
// store is left alone.
func TestRestartUnlockAndWrongPassword(t *testing.T) {
	f := newFixture(t)

	first, err := f.generate(t, connect(startBridge(t, localnode.Options{}, false)), "Passw0rd")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	firstID, err := first.ControllerID(context.Background())
	if err != nil {
		t.Fatalf("ControllerID: %v", err)
	}

	restarted := connect(startBridge(t, localnode.Options{}, false))
	unlocked, err := f.onboarder(restarted).Unlock(context.Background(), password(t, "Passw0rd"))
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if id, _ := unlocked.ControllerID(context.Background()); id != firstID {
		t.Errorf("controller id after restart = %q, want %q", id, firstID)
	}

	again := connect(startBridge(t, localnode.Options{}, false))
	_, err = f.onboarder(again).Unlock(context.Background(), password(t, "Other1pw"))
	var initialization *onboarding.InitializationError
	if !errors.As(err, &initialization) || initialization.Kind != onboarding.InitIncorrectPassword {
		t.Fatalf("wrong password: %v", err)
	}
	if onboarding.Describe(err) != "Incorrect password." {
		t.Errorf("Describe = %q", onboarding.Describe(err))
	}
	if state := vault.NewProbe(f.store, nil).Check().State; state != vault.Present {
		t.Errorf("store after wrong password = %s", state)
	}

	// The failed attempt did not use up the bridge's one initialization.
	if _, err := f.onboarder(again).Unlock(context.Background(), password(t, "Passw0rd")); err != nil {
		t.Errorf("Unlock after a wrong password: %v", err)
	}
}

// TestHeldGovernanceStaysLive holds one governance back. Watch keeps
// polling until its context ends, leaving the node live but not
// covered.
func TestHeldGovernanceStaysLive(t *testing.T) {
	f := newFixture(t)
	client := connect(startBridge(t, localnode.Options{Hold: []governance.ID{"gov-c"}}, false))

	session, err := f.generate(t, client, "Passw0rd")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	reconciler := reconcile.New(session, reconcileOptions(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, err := reconciler.Watch(ctx, 20*time.Millisecond); err == nil {
		t.Fatal("Watch converged with a held governance")
	}

	status := reconciler.Status()
	if status.Outcome != reconcile.OutcomeLive {
		t.Errorf("outcome = %s, want live", status.Outcome)
	}
	if !slices.Equal(status.Diff.Missing, []governance.ID{"gov-c"}) {
		t.Errorf("missing = %v", status.Diff.Missing)
	}
	select {
	case <-reconciler.Converged():
		t.Error("convergence signalled")
	default:
	}
}

// TestLegacyBridgeErrors runs against a bridge that sends no error
// codes. Failures are still classified from their messages.
func TestLegacyBridgeErrors(t *testing.T) {
	f := newFixture(t)
	socketPath := startBridge(t, localnode.Options{}, true)

	if _, err := f.generate(t, connect(socketPath), "Passw0rd"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// The node is already initialized; another client gets the
	// message "could not initialize globally".
	_, err := f.onboarder(connect(socketPath)).Unlock(context.Background(), password(t, "Passw0rd"))
	var initialization *onboarding.InitializationError
	if !errors.As(err, &initialization) || initialization.Kind != onboarding.InitAlreadyInitialized {
		t.Fatalf("second initialize: %v", err)
	}
}
