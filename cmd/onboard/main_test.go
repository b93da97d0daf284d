// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/localnode"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
	"github.com/bureau-foundation/onboard/lib/securestore"
	"github.com/bureau-foundation/onboard/lib/testutil"
)

// TestCommandTree walks the production command tree and checks that
// every command is listed with a summary and every leaf can run.
func TestCommandTree(t *testing.T) {
	walkCommands(rootCommand(), nil, func(command *cli.Command, path []string) {
		name := strings.Join(path, " ")
		if len(path) > 1 && command.Summary == "" {
			t.Errorf("%s: missing Summary", name)
		}
		if len(command.Subcommands) == 0 && command.Run == nil {
			t.Errorf("%s: leaf without Run", name)
		}
		seen := make(map[string]bool)
		for _, sub := range command.Subcommands {
			if seen[sub.Name] {
				t.Errorf("%s: duplicate subcommand %q", name, sub.Name)
			}
			seen[sub.Name] = true
		}
		if command.Flags != nil {
			// Panics on a badly tagged params struct.
			command.Flags()
		}
	})
}

func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := make([]string, len(path)+1)
	copy(current, path)
	current[len(path)] = command.Name
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want cli.ErrorCategory
	}{
		{"validation", &onboarding.ValidationError{EmptyPassword: true}, cli.CategoryValidation},
		{"selection", &onboarding.FileSelectionError{Err: onboarding.ErrUnsupportedExtension}, cli.CategoryValidation},
		{"no terminal", cli.ErrNoTerminal, cli.CategoryValidation},
		{"incorrect password", &onboarding.InitializationError{Kind: onboarding.InitIncorrectPassword}, cli.CategoryConflict},
		{"already initialized", &onboarding.InitializationError{Kind: onboarding.InitAlreadyInitialized}, cli.CategoryConflict},
		{"unavailable", &onboarding.InitializationError{Kind: onboarding.InitUnavailable}, cli.CategoryTransient},
		{"init failed", &onboarding.InitializationError{Kind: onboarding.InitFailed}, cli.CategoryInternal},
		{"store missing", &securestore.StorageError{Op: "unlock", Err: securestore.ErrStoreMissing}, cli.CategoryNotFound},
		{"snapshot missing", &securestore.StorageError{Op: "restore", Err: fs.ErrNotExist}, cli.CategoryNotFound},
		{"store exists", &securestore.StorageError{Op: "save", Err: securestore.ErrStoreExists}, cli.CategoryConflict},
		{"empty document", &securestore.StorageError{Op: "read", Err: securestore.ErrEmptyDocument}, cli.CategoryValidation},
		{"corrupt snapshot", &securestore.StorageError{Op: "restore", Err: securestore.ErrCorruptSnapshot}, cli.CategoryValidation},
		{"storage", &securestore.StorageError{Op: "save", Err: fs.ErrPermission}, cli.CategoryInternal},
		{"step unavailable", &reconcile.StepError{Step: reconcile.PhaseFetchActual, Err: bridge.Errorf(bridge.CodeUnavailable, "down")}, cli.CategoryTransient},
		{"step refused", &reconcile.StepError{Step: reconcile.PhaseUpdate, Err: bridge.Errorf(bridge.CodeNotAuthorized, "no")}, cli.CategoryInternal},
		{"already categorized", cli.NotFound("gone"), cli.CategoryNotFound},
		{"anything else", errors.New("boom"), cli.CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := categorize(test.err)
			if got := cli.CategoryOf(err); got != test.want {
				t.Errorf("category = %q, want %q", got, test.want)
			}
			if !errors.Is(err, test.err) {
				t.Error("original error lost")
			}
		})
	}
	if categorize(nil) != nil {
		t.Error("categorize(nil) != nil")
	}
}

// harness runs commands against a reference bridge on a socket.
type harness struct {
	t          *testing.T
	configPath string
	dataDir    string
	sources    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	socketPath := filepath.Join(testutil.SocketDir(t), "bridge.sock")

	node := localnode.New(localnode.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	server := bridge.NewServer(socketPath, node, slog.New(slog.NewTextHandler(io.Discard, nil)))
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

	configPath := testutil.WriteFile(t, root, "onboard.yaml", fmt.Sprintf(`
paths:
  data_dir: %s
bridge:
  socket_path: %s
  call_timeout: 5s
  init_timeout: 30s
reconcile:
  poll_interval: 10ms
  retry_attempts: 2
  initial_backoff: 10ms
  max_backoff: 20ms
store:
  snapshot_on_wipe: true
  snapshot_compression: lz4
logging:
  level: error
`, dataDir, socketPath))

	sources := filepath.Join(root, "sources")
	testutil.WriteFile(t, sources, "primary.jsonc", `{
  // governances the node must recognize
  "governances": ["gov-a", {"id": "gov-b"}],
}`)
	testutil.WriteFile(t, sources, "node.yaml", "listen: 127.0.0.1:4000\n")
	testutil.WriteFile(t, sources, "password", "Passw0rd\n")

	return &harness{t: t, configPath: configPath, dataDir: dataDir, sources: sources}
}

// run executes one command line and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var stdout bytes.Buffer
	previous := cli.Stdout
	cli.Stdout = &stdout
	defer func() { cli.Stdout = previous }()

	args = append(args, "--config", h.configPath)
	err := rootCommand().Execute(context.Background(), args, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return stdout.String(), err
}

func (h *harness) source(name string) string {
	return filepath.Join(h.sources, name)
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var value T
	if err := json.Unmarshal([]byte(output), &value); err != nil {
		t.Fatalf("decoding %q: %v", output, err)
	}
	return value
}

// initOutput mirrors the --json output of init with text enums.
type initOutput struct {
	Vault     string `json:"vault"`
	Session   string `json:"session"`
	Reconcile *struct {
		Outcome      string   `json:"outcome"`
		ControllerID string   `json:"controller_id"`
		Corrected    []string `json:"corrected"`
	} `json:"reconcile"`
}

func exitCode(err error) int {
	var exit *cli.ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return -1
}

func TestInitProbeAndStoreMaintenance(t *testing.T) {
	h := newHarness(t)

	output, err := h.run("probe", "--json")
	if exitCode(err) != 1 {
		t.Fatalf("probe before init: err = %v", err)
	}
	if probe := decode[map[string]string](t, output); probe["state"] != "absent" || probe["next"] != "onboard" {
		t.Errorf("probe = %v", probe)
	}

	output, err = h.run("init",
		"--primary", h.source("primary.jsonc"),
		"--node", h.source("node.yaml"),
		"--password-file", h.source("password"),
		"--json",
	)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	report := decode[initOutput](t, output)
	if report.Vault != "created" || report.Session == "" {
		t.Errorf("report = %+v", report)
	}
	if report.Reconcile == nil || report.Reconcile.Outcome != "covered" {
		t.Fatalf("reconcile = %+v", report.Reconcile)
	}
	if !strings.HasPrefix(report.Reconcile.ControllerID, "E") {
		t.Errorf("controller id = %q", report.Reconcile.ControllerID)
	}
	if len(report.Reconcile.Corrected) != 2 {
		t.Errorf("corrected = %v", report.Reconcile.Corrected)
	}

	if _, err := h.run("probe"); err != nil {
		t.Errorf("probe after init: %v", err)
	}

	// The node is initialized once per bridge lifetime.
	_, err = h.run("unlock", "--password-file", h.source("password"))
	if cli.CategoryOf(err) != cli.CategoryConflict {
		t.Errorf("unlock on an initialized bridge: %v (category %q)", err, cli.CategoryOf(err))
	}

	// Replacing needs --replace.
	_, err = h.run("init", "--primary", h.source("primary.jsonc"), "--node", h.source("node.yaml"),
		"--password-file", h.source("password"))
	if cli.CategoryOf(err) != cli.CategoryConflict || !strings.Contains(err.Error(), "--replace") {
		t.Errorf("second init: %v", err)
	}

	_, err = h.run("store", "wipe")
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("wipe without --yes: %v", err)
	}

	output, err = h.run("store", "wipe", "--yes", "--json")
	if err != nil {
		t.Fatalf("wipe: %v", err)
	}
	wiped := decode[wipeReport](t, output)
	if wiped.SnapshotPath == "" {
		t.Fatal("wipe took no snapshot")
	}
	if _, err := h.run("probe"); exitCode(err) != 1 {
		t.Errorf("probe after wipe: %v", err)
	}

	output, err = h.run("store", "restore", wiped.SnapshotPath)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(output, "Restored snapshot") {
		t.Errorf("restore output = %q", output)
	}
	if _, err := h.run("probe"); err != nil {
		t.Errorf("probe after restore: %v", err)
	}

	_, err = h.run("store", "restore", wiped.SnapshotPath)
	if cli.CategoryOf(err) != cli.CategoryConflict {
		t.Errorf("restore over an existing store: %v", err)
	}
}

func TestInit_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("init", "--primary", h.source("primary.jsonc"))
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("missing --node: %v", err)
	}

	notes := testutil.WriteFile(t, h.sources, "notes.txt", "hello")
	_, err = h.run("init", "--primary", notes, "--node", h.source("node.yaml"), "--password-file", h.source("password"))
	if cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("unsupported extension: %v", err)
	}

	weak := testutil.WriteFile(t, h.sources, "weak", "password\n")
	_, err = h.run("init", "--primary", h.source("primary.jsonc"), "--node", h.source("node.yaml"), "--password-file", weak)
	var validation *onboarding.ValidationError
	if !errors.As(err, &validation) || cli.CategoryOf(err) != cli.CategoryValidation {
		t.Errorf("weak password: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.dataDir, securestore.DirectoryName)); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("store written despite validation failure: %v", statErr)
	}
}

func TestUnlock_NoVault(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("unlock", "--password-file", h.source("password"), "--no-reconcile")
	if cli.CategoryOf(err) != cli.CategoryNotFound {
		t.Errorf("unlock without a vault: %v (category %q)", err, cli.CategoryOf(err))
	}
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	previous := cli.Stdout
	cli.Stdout = &stdout
	defer func() { cli.Stdout = previous }()

	if err := rootCommand().Execute(context.Background(), []string{"version", "--json"}, slog.Default()); err != nil {
		t.Fatalf("version: %v", err)
	}
	var build map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &build); err != nil {
		t.Fatalf("version output: %v", err)
	}
	if build["version"] == "" || build["go_version"] == "" {
		t.Errorf("build = %v", build)
	}
}
