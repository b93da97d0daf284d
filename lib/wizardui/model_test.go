// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/testutil"
	"github.com/bureau-foundation/onboard/lib/vault"
)

type fakeProber struct{ result vault.Result }

func (p fakeProber) Check() vault.Result { return p.result }

type fakeOnboarder struct {
	mu            sync.Mutex
	errs          []error
	generateCalls int
	unlockCalls   int
	lastPrimary   string
	lastNode      string
	lastPassword  string
}

func (o *fakeOnboarder) next() error {
	if len(o.errs) == 0 {
		return nil
	}
	err := o.errs[0]
	o.errs = o.errs[1:]
	return err
}

func (o *fakeOnboarder) Generate(_ context.Context, request onboarding.GenerateRequest) (onboarding.GenerateResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generateCalls++
	o.lastPrimary = request.PrimaryPath
	o.lastNode = request.NodePath
	o.lastPassword = request.Password.String()
	if err := o.next(); err != nil {
		return onboarding.GenerateResult{}, err
	}
	return onboarding.GenerateResult{Session: stubSession{}}, nil
}

func (o *fakeOnboarder) Unlock(_ context.Context, password *secret.Buffer) (bridge.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unlockCalls++
	o.lastPassword = password.String()
	if err := o.next(); err != nil {
		return nil, err
	}
	return stubSession{}, nil
}

type stubSession struct{}

func (stubSession) ID() string                                   { return "stub" }
func (stubSession) ControllerID(context.Context) (string, error) { return "Ecafe", nil }
func (stubSession) AuthorizedSubjects(context.Context, governance.ID) ([]string, error) {
	return nil, nil
}
func (stubSession) PutAuthorization(context.Context, governance.ID) error { return nil }
func (stubSession) GovernanceIDs(context.Context) ([]governance.ID, error) {
	return nil, nil
}
func (stubSession) ConfiguredGovernanceIDs(context.Context) ([]governance.ID, error) {
	return nil, nil
}
func (stubSession) UpdateGovernance(context.Context, governance.ID) error { return nil }
func (stubSession) Stop(context.Context) error {
	sessionStops.Add(1)
	return nil
}

// sessionStops counts Stop calls on every stubSession.
var sessionStops atomic.Int32

func update(t *testing.T, model Model, message tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := model.Update(message)
	return next.(Model), cmd
}

func typeText(t *testing.T, model Model, text string) Model {
	t.Helper()
	for _, r := range text {
		model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return model
}

func press(t *testing.T, model Model, keyType tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	return update(t, model, tea.KeyMsg{Type: keyType})
}

func view(model Model) string {
	return ansi.Strip(model.View())
}

func newTestModel(t *testing.T, state vault.State, config Config) (Model, *fakeOnboarder) {
	t.Helper()
	onboarder := &fakeOnboarder{}
	config.Prober = fakeProber{result: vault.Result{State: state, Reason: errors.New("config.json unreadable")}}
	config.Onboarder = onboarder
	model := New(context.Background(), config)
	t.Cleanup(model.cancel)
	model, _ = update(t, model, probeMsg{result: config.Prober.Check()})
	return model, onboarder
}

// fillPasswords moves from the first field to the password fields and
// types both values, leaving focus on the confirmation.
func fillPasswords(t *testing.T, model Model, password, confirmation string) Model {
	t.Helper()
	model, _ = press(t, model, tea.KeyTab)
	model, _ = press(t, model, tea.KeyTab)
	model = typeText(t, model, password)
	model, _ = press(t, model, tea.KeyTab)
	return typeText(t, model, confirmation)
}

func documents(t *testing.T) (string, string) {
	t.Helper()
	directory := t.TempDir()
	return testutil.WriteFile(t, directory, "primary.json", `{"governances": ["a"]}`),
		testutil.WriteFile(t, directory, "node.yaml", "listen: x\n")
}

func TestProbeRouting(t *testing.T) {
	tests := []struct {
		name         string
		state        vault.State
		assumeAbsent bool
		want         screen
	}{
		{"absent", vault.Absent, false, screenGenerate},
		{"present", vault.Present, false, screenUnlock},
		{"unknown", vault.Unknown, false, screenConfirmUnknown},
		{"unknown assumed absent", vault.Unknown, true, screenGenerate},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			model, _ := newTestModel(t, test.state, Config{AssumeAbsent: test.assumeAbsent})
			if model.screen != test.want {
				t.Errorf("screen = %d, want %d", model.screen, test.want)
			}
		})
	}
}

func TestConfirmUnknown(t *testing.T) {
	model, _ := newTestModel(t, vault.Unknown, Config{})
	if !strings.Contains(view(model), "config.json unreadable") {
		t.Errorf("confirmation does not show the reason:\n%s", view(model))
	}

	accepted, _ := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	if accepted.screen != screenGenerate {
		t.Errorf("after y: screen = %d", accepted.screen)
	}

	_, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if cmd == nil {
		t.Fatal("n did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("n did not return tea.Quit")
	}
}

func TestGenerate_ChecklistAppearsWithPassword(t *testing.T) {
	model, _ := newTestModel(t, vault.Absent, Config{})
	if strings.Contains(view(model), "contains a number") {
		t.Error("checklist shown before any password was typed")
	}

	model = fillPasswords(t, model, "abc", "")
	rendered := view(model)
	for _, line := range []string{
		"✗ contains a number",
		"✗ at least 5 characters",
		"✗ confirmation matches",
		"✓ contains a lowercase letter",
		"✗ contains an uppercase letter",
	} {
		if !strings.Contains(rendered, line) {
			t.Errorf("view lacks %q:\n%s", line, rendered)
		}
	}
}

func TestGenerate_InvalidFormDoesNotSubmit(t *testing.T) {
	primary, node := documents(t)
	model, onboarder := newTestModel(t, vault.Absent, Config{InitialPrimary: primary, InitialNode: node})

	model = fillPasswords(t, model, "Abc12", "Abc13")
	model, cmd := press(t, model, tea.KeyEnter)
	if cmd != nil || model.screen != screenGenerate {
		t.Fatalf("invalid form submitted (screen %d)", model.screen)
	}
	if model.message != "The password does not meet every requirement." {
		t.Errorf("message = %q", model.message)
	}
	if onboarder.generateCalls != 0 {
		t.Error("onboarder called")
	}
}

func TestGenerate_RejectedFileKeepsPreviousPath(t *testing.T) {
	primary, node := documents(t)
	notes := testutil.WriteFile(t, t.TempDir(), "notes.txt", "hello")

	model, _ := newTestModel(t, vault.Absent, Config{InitialPrimary: primary, InitialNode: node})
	model = fillPasswords(t, model, "Abc12", "Abc13")
	model, _ = press(t, model, tea.KeyEnter)
	if model.selection.Path(onboarding.DocumentPrimary) != primary {
		t.Fatalf("primary not selected: %q", model.selection.Path(onboarding.DocumentPrimary))
	}

	model.inputs[fieldPrimary].SetValue(notes)
	model, _ = press(t, model, tea.KeyEnter)
	if model.message != "Choose a JSON, JSONC, YAML or TOML file." {
		t.Errorf("message = %q", model.message)
	}
	if got := model.inputs[fieldPrimary].Value(); got != primary {
		t.Errorf("primary field = %q, want previous %q", got, primary)
	}
	if model.focus != fieldPrimary {
		t.Errorf("focus = %d, want primary field", model.focus)
	}
}

func TestGenerate_FailureKeepsSelectionsAndClearsPasswords(t *testing.T) {
	primary, node := documents(t)
	model, onboarder := newTestModel(t, vault.Absent, Config{InitialPrimary: primary, InitialNode: node})
	onboarder.errs = []error{&onboarding.InitializationError{Kind: onboarding.InitIncorrectPassword, Err: errors.New("bad")}}

	model = fillPasswords(t, model, "Abc12", "Abc12")
	model, cmd := press(t, model, tea.KeyEnter)
	if model.screen != screenSubmitting || cmd == nil {
		t.Fatalf("screen = %d, want submitting", model.screen)
	}
	model, _ = update(t, model, cmd())

	if onboarder.lastPrimary != primary || onboarder.lastNode != node || onboarder.lastPassword != "Abc12" {
		t.Errorf("onboarder got %q %q %q", onboarder.lastPrimary, onboarder.lastNode, onboarder.lastPassword)
	}
	if model.screen != screenGenerate || model.message != "Incorrect password." {
		t.Errorf("screen %d message %q", model.screen, model.message)
	}
	if model.inputs[fieldPrimary].Value() != primary || model.inputs[fieldNode].Value() != node {
		t.Error("document selections were not kept")
	}
	if model.inputs[fieldPassword].Value() != "" || model.inputs[fieldConfirmation].Value() != "" {
		t.Error("password fields were not cleared")
	}
	if model.focus != fieldPassword {
		t.Errorf("focus = %d, want password field", model.focus)
	}

	// Retyping the password resubmits.
	model = typeText(t, model, "Abc12")
	model, _ = press(t, model, tea.KeyTab)
	model = typeText(t, model, "Abc12")
	model, cmd = press(t, model, tea.KeyEnter)
	model, _ = update(t, model, cmd())
	if model.screen != screenReconciling {
		t.Fatalf("screen = %d, want reconciling", model.screen)
	}
	if onboarder.generateCalls != 2 {
		t.Errorf("generate calls = %d", onboarder.generateCalls)
	}
}

func TestGenerate_ClearedFieldIsNotSubmitted(t *testing.T) {
	primary, node := documents(t)
	model, onboarder := newTestModel(t, vault.Absent, Config{InitialPrimary: primary, InitialNode: node})
	onboarder.errs = []error{&onboarding.InitializationError{Kind: onboarding.InitIncorrectPassword, Err: errors.New("bad")}}

	model = fillPasswords(t, model, "Abc12", "Abc12")
	model, cmd := press(t, model, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("first submission did not start")
	}
	model, _ = update(t, model, cmd())
	if model.screen != screenGenerate || onboarder.generateCalls != 1 {
		t.Fatalf("screen %d, generate calls %d", model.screen, onboarder.generateCalls)
	}

	model.inputs[fieldNode].SetValue("")
	model = typeText(t, model, "Abc12")
	model, _ = press(t, model, tea.KeyTab)
	model = typeText(t, model, "Abc12")
	model, _ = press(t, model, tea.KeyEnter)

	if model.screen != screenGenerate {
		t.Fatalf("screen = %d, want the form", model.screen)
	}
	if model.message != "Select both configuration files." {
		t.Errorf("message = %q", model.message)
	}
	if onboarder.generateCalls != 1 {
		t.Errorf("generate calls = %d, want 1", onboarder.generateCalls)
	}
	if model.selection.Path(onboarding.DocumentNode) != "" {
		t.Errorf("node selection = %q, want cleared", model.selection.Path(onboarding.DocumentNode))
	}
	if model.inputs[fieldPrimary].Value() != primary {
		t.Errorf("primary field = %q", model.inputs[fieldPrimary].Value())
	}
}

func TestUnlock(t *testing.T) {
	model, onboarder := newTestModel(t, vault.Present, Config{})

	model, cmd := press(t, model, tea.KeyEnter)
	if cmd != nil || model.message != "Enter your password." {
		t.Fatalf("empty unlock: message %q", model.message)
	}

	onboarder.errs = []error{&onboarding.InitializationError{Kind: onboarding.InitUnavailable, Err: errors.New("x")}}
	model = typeText(t, model, "secret1")
	model, cmd = press(t, model, tea.KeyEnter)
	model, _ = update(t, model, cmd())
	if model.screen != screenUnlock || model.message != "The bridge is not responding. Try again." {
		t.Fatalf("screen %d message %q", model.screen, model.message)
	}
	if onboarder.lastPassword != "secret1" {
		t.Errorf("password = %q", onboarder.lastPassword)
	}
	if model.unlock.Value() != "" {
		t.Error("unlock field not cleared")
	}

	model = typeText(t, model, "secret1")
	model, cmd = press(t, model, tea.KeyEnter)
	model, _ = update(t, model, cmd())
	if model.screen != screenReconciling || model.Reconciler() == nil {
		t.Fatalf("screen = %d, want reconciling", model.screen)
	}
}

func reconcilingModel(t *testing.T, config Config) Model {
	t.Helper()
	model, _ := newTestModel(t, vault.Present, config)
	model = typeText(t, model, "secret1")
	model, cmd := press(t, model, tea.KeyEnter)
	model, _ = update(t, model, cmd())
	if model.screen != screenReconciling {
		t.Fatalf("screen = %d, want reconciling", model.screen)
	}
	return model
}

func TestQuitLeavesSessionRunning(t *testing.T) {
	sessionStops.Store(0)
	model := reconcilingModel(t, Config{})

	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c did not quit")
	}
	if model.ctx.Err() == nil {
		t.Error("wizard context still live after quit")
	}
	if stops := sessionStops.Load(); stops != 0 {
		t.Errorf("session stopped %d times on quit, want 0", stops)
	}
}

func TestReconciling_View(t *testing.T) {
	model := reconcilingModel(t, Config{})
	model, _ = update(t, model, statusMsg(reconcile.Status{
		Phase:        reconcile.PhaseUpdate,
		Current:      "b",
		ControllerID: "Ecafe",
		Desired:      []governance.ID{"a", "b"},
		Actual:       []governance.ID{"a", "z"},
	}))

	rendered := view(model)
	for _, fragment := range []string{"Controller id: Ecafe", "update b", "✓ a", "… b", "also recognized: z"} {
		if !strings.Contains(rendered, fragment) {
			t.Errorf("view lacks %q:\n%s", fragment, rendered)
		}
	}
}

func TestReconciling_CoveredAutoAdvances(t *testing.T) {
	model := reconcilingModel(t, Config{AutoAdvance: true})
	model, _ = update(t, model, watchDoneMsg{result: reconcile.Result{Outcome: reconcile.OutcomeCovered}})
	if model.screen != screenDone || !model.Finished() {
		t.Errorf("screen = %d, want done", model.screen)
	}
}

func TestReconciling_CoveredWaitsWithoutAutoAdvance(t *testing.T) {
	model := reconcilingModel(t, Config{AutoAdvance: false})
	model, _ = update(t, model, watchDoneMsg{result: reconcile.Result{Outcome: reconcile.OutcomeCovered}})
	if model.screen != screenReconciling {
		t.Fatalf("screen = %d, want reconciling", model.screen)
	}
	model, _ = press(t, model, tea.KeyEnter)
	if model.screen != screenDone {
		t.Errorf("screen = %d after Enter, want done", model.screen)
	}
}

func TestReconciling_LiveAllowsManualContinue(t *testing.T) {
	model := reconcilingModel(t, Config{AutoAdvance: true})

	model, _ = press(t, model, tea.KeyEnter)
	if model.screen != screenReconciling {
		t.Fatal("Enter advanced while pending")
	}

	model, _ = update(t, model, statusMsg(reconcile.Status{Phase: reconcile.PhaseIdle, Outcome: reconcile.OutcomeLive}))
	if !strings.Contains(view(model), "The node is live") {
		t.Errorf("live hint missing:\n%s", view(model))
	}
	model, _ = press(t, model, tea.KeyEnter)
	if model.screen != screenDone {
		t.Errorf("screen = %d, want done", model.screen)
	}
}

func TestReconciling_FailureAndRetry(t *testing.T) {
	model := reconcilingModel(t, Config{})
	model, _ = update(t, model, watchDoneMsg{err: &reconcile.StepError{Step: reconcile.PhaseFetchActual, Err: errors.New("socket closed")}})
	if !strings.Contains(model.message, "socket closed") {
		t.Errorf("message = %q", model.message)
	}
	if model.watching {
		t.Fatal("still watching after failure")
	}

	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil || !model.watching || model.message != "" {
		t.Errorf("retry did not restart watching (watching %v, message %q)", model.watching, model.message)
	}

	// A second retry while watching does nothing.
	_, cmd = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd != nil {
		t.Error("retry started a second watch")
	}
}

func TestWriteOSC52(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("Ecafe"))

	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm-256color")
	var direct bytes.Buffer
	writeOSC52(&direct, "Ecafe")
	if want := "\x1b]52;c;" + encoded + "\x07"; direct.String() != want {
		t.Errorf("direct = %q, want %q", direct.String(), want)
	}

	t.Setenv("TMUX", "/tmp/tmux-1000/default,1,0")
	var tmux bytes.Buffer
	writeOSC52(&tmux, "Ecafe")
	if !strings.HasPrefix(tmux.String(), "\x1bPtmux;") || !strings.HasSuffix(tmux.String(), "\x07") {
		t.Errorf("tmux output = %q", tmux.String())
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestCopyControllerID(t *testing.T) {
	var written bytes.Buffer
	previous := openTerminal
	openTerminal = func() (io.WriteCloser, error) { return nopCloser{&written}, nil }
	t.Cleanup(func() { openTerminal = previous })
	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm")

	model := reconcilingModel(t, Config{})
	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd != nil {
		t.Fatal("copy before the controller id is known")
	}

	model, _ = update(t, model, statusMsg(reconcile.Status{ControllerID: "Ecafe"}))
	model, cmd = update(t, model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd == nil || model.notice == "" {
		t.Fatal("copy did not run")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) == 0 {
		t.Fatalf("copy command is not a batch")
	}
	batch[0]()
	if !strings.Contains(written.String(), base64.StdEncoding.EncodeToString([]byte("Ecafe"))) {
		t.Errorf("terminal got %q", written.String())
	}

	model, _ = update(t, model, clipboardFadeMsg{})
	if model.notice != "" {
		t.Error("notice not cleared")
	}
}
