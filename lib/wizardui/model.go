// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/vault"
)

// Prober reports whether a vault exists.
type Prober interface {
	Check() vault.Result
}

// Onboarder performs the two submissions.
type Onboarder interface {
	Generate(ctx context.Context, request onboarding.GenerateRequest) (onboarding.GenerateResult, error)
	Unlock(ctx context.Context, password *secret.Buffer) (bridge.Session, error)
}

// Config wires the wizard to its backends.
type Config struct {
	Prober    Prober
	Onboarder Onboarder

	// Reconcile configures the reconciler created for the session. Its
	// Observer is replaced by the wizard's.
	Reconcile    reconcile.Options
	PollInterval time.Duration

	// AutoAdvance finishes the wizard as soon as the desired set is
	// covered.
	AutoAdvance bool

	// AssumeAbsent skips the confirmation for an undeterminable vault.
	AssumeAbsent bool

	// InitialPrimary and InitialNode prefill the document fields.
	InitialPrimary string
	InitialNode    string

	Theme *Theme
	Keys  *KeyMap
}

type screen int

const (
	screenProbing screen = iota
	screenConfirmUnknown
	screenGenerate
	screenUnlock
	screenSubmitting
	screenReconciling
	screenDone
)

type mode int

const (
	modeGenerate mode = iota
	modeUnlock
)

// Form field indexes on the generate screen.
const (
	fieldPrimary = iota
	fieldNode
	fieldPassword
	fieldConfirmation
	fieldCount
)

// statusBuffer bounds queued reconciler progress. Older snapshots are
// dropped when the UI falls behind; the pass result arrives separately.
const statusBuffer = 32

type probeMsg struct{ result vault.Result }

type submittedMsg struct {
	session      bridge.Session
	snapshotPath string
	err          error
}

type statusMsg reconcile.Status

type watchDoneMsg struct {
	result reconcile.Result
	err    error
}

// Model is the wizard's bubbletea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	config Config
	keys   KeyMap
	styles styles

	screen screen
	mode   mode
	width  int

	probe     vault.Result
	selection onboarding.Selection
	inputs    [fieldCount]textinput.Model
	unlock    textinput.Model
	focus     int
	spinner   spinner.Model

	// message is the error line; notice is transient feedback.
	message string
	notice  string

	snapshotPath string
	reconciler   *reconcile.Reconciler
	updates      chan reconcile.Status
	status       reconcile.Status
	watching     bool
	covered      bool
	finished     bool
}

// New returns a wizard. Cancelling ctx aborts in-flight work.
func New(ctx context.Context, config Config) Model {
	ctx, cancel := context.WithCancel(ctx)

	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}

	model := Model{
		ctx:     ctx,
		cancel:  cancel,
		config:  config,
		keys:    keys,
		styles:  newStyles(theme),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		updates: make(chan reconcile.Status, statusBuffer),
	}

	placeholders := [fieldCount]string{
		"path to primary configuration",
		"path to node configuration",
		"password",
		"confirm password",
	}
	for index := range model.inputs {
		input := textinput.New()
		input.Prompt = ""
		input.Placeholder = placeholders[index]
		if index == fieldPassword || index == fieldConfirmation {
			input.EchoMode = textinput.EchoPassword
			input.EchoCharacter = '•'
		}
		model.inputs[index] = input
	}
	model.inputs[fieldPrimary].SetValue(config.InitialPrimary)
	model.inputs[fieldNode].SetValue(config.InitialNode)

	model.unlock = textinput.New()
	model.unlock.Prompt = ""
	model.unlock.Placeholder = "password"
	model.unlock.EchoMode = textinput.EchoPassword
	model.unlock.EchoCharacter = '•'

	return model
}

// Init starts the probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.probeCmd(), m.spinner.Tick)
}

func (m Model) probeCmd() tea.Cmd {
	prober := m.config.Prober
	return func() tea.Msg {
		return probeMsg{result: prober.Check()}
	}
}

// Finished reports whether the user reached the final screen.
func (m Model) Finished() bool { return m.finished }

// Status returns the last reconciler progress seen.
func (m Model) Status() reconcile.Status { return m.status }

// Reconciler returns the reconciler owning the session, or nil before
// a session exists.
func (m Model) Reconciler() *reconcile.Reconciler { return m.reconciler }

// Update handles a message.
func (m Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		m.width = message.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(message, m.keys.ForceQuit) {
			return m.quit()
		}
		return m.handleKey(message)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(message)
		return m, cmd

	case probeMsg:
		m.probe = message.result
		switch message.result.Route(m.config.AssumeAbsent) {
		case vault.RouteUnlock:
			return m.enterUnlock()
		case vault.RouteConfirm:
			m.screen = screenConfirmUnknown
			return m, nil
		default:
			return m.enterGenerate()
		}

	case submittedMsg:
		return m.handleSubmitted(message)

	case statusMsg:
		m.status = reconcile.Status(message)
		return m, m.waitForStatus()

	case watchDoneMsg:
		return m.handleWatchDone(message)

	case clipboardFadeMsg:
		m.notice = ""
		return m, nil
	}

	return m.forwardToInput(message)
}

// quit leaves the bridge session running: the node outlives the
// wizard and keeps serving the application.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenConfirmUnknown:
		switch {
		case key.Matches(message, m.keys.Confirm):
			return m.enterGenerate()
		case key.Matches(message, m.keys.Decline), key.Matches(message, m.keys.Quit):
			return m.quit()
		}
		return m, nil

	case screenGenerate:
		switch {
		case key.Matches(message, m.keys.Next):
			return m.setFocus(m.focus + 1)
		case key.Matches(message, m.keys.Previous):
			return m.setFocus(m.focus - 1)
		case key.Matches(message, m.keys.Submit):
			if m.focus < fieldCount-1 {
				return m.setFocus(m.focus + 1)
			}
			return m.submitGenerate()
		}
		return m.forwardToInput(message)

	case screenUnlock:
		if key.Matches(message, m.keys.Submit) {
			return m.submitUnlock()
		}
		return m.forwardToInput(message)

	case screenReconciling:
		switch {
		case key.Matches(message, m.keys.Retry):
			if m.watching {
				return m, nil
			}
			m.message = ""
			m.watching = true
			return m, m.watchCmd()
		case key.Matches(message, m.keys.Copy):
			if m.status.ControllerID == "" {
				return m, nil
			}
			m.notice = "Controller id copied to clipboard."
			return m, copyToClipboard(m.status.ControllerID)
		case key.Matches(message, m.keys.Continue):
			if m.covered || m.status.Outcome == reconcile.OutcomeLive {
				m.screen = screenDone
				m.finished = true
			}
			return m, nil
		case key.Matches(message, m.keys.Quit):
			return m.quit()
		}
		return m, nil

	case screenDone:
		if key.Matches(message, m.keys.Quit) || key.Matches(message, m.keys.Continue) {
			return m.quit()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) enterGenerate() (tea.Model, tea.Cmd) {
	m.screen = screenGenerate
	m.mode = modeGenerate
	return m.setFocus(fieldPrimary)
}

func (m Model) enterUnlock() (tea.Model, tea.Cmd) {
	m.screen = screenUnlock
	m.mode = modeUnlock
	return m, m.unlock.Focus()
}

// setFocus moves focus to field, wrapping around.
func (m Model) setFocus(field int) (tea.Model, tea.Cmd) {
	m.focus = (field + fieldCount) % fieldCount
	var cmd tea.Cmd
	for index := range m.inputs {
		if index == m.focus {
			cmd = m.inputs[index].Focus()
		} else {
			m.inputs[index].Blur()
		}
	}
	return m, cmd
}

func (m Model) forwardToInput(message tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case screenGenerate:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(message)
	case screenUnlock:
		m.unlock, cmd = m.unlock.Update(message)
	}
	return m, cmd
}

// submitGenerate records the document choices, checks the form and
// starts Generate. A failed pick keeps the previous path in the field;
// an emptied field clears its selection.
func (m Model) submitGenerate() (tea.Model, tea.Cmd) {
	m.message = ""
	for _, slot := range []struct {
		document onboarding.Document
		field    int
	}{
		{onboarding.DocumentPrimary, fieldPrimary},
		{onboarding.DocumentNode, fieldNode},
	} {
		value := m.inputs[slot.field].Value()
		if strings.TrimSpace(value) == "" {
			m.selection.Clear(slot.document)
			continue
		}
		if _, err := m.selection.Select(m.ctx, slot.document, onboarding.PathPicker(value)); err != nil {
			m.message = onboarding.Describe(err)
			m.inputs[slot.field].SetValue(m.selection.Path(slot.document))
			return m.setFocus(slot.field)
		}
		m.inputs[slot.field].SetValue(m.selection.Path(slot.document))
	}

	password := m.inputs[fieldPassword].Value()
	confirmation := m.inputs[fieldConfirmation].Value()
	request := onboarding.GenerateRequest{
		PrimaryPath: m.selection.Path(onboarding.DocumentPrimary),
		NodePath:    m.selection.Path(onboarding.DocumentNode),
	}
	request.Password = protect(password)
	request.Confirmation = protect(confirmation)
	err := onboarding.Validate(request)
	closeBuffers(request.Password, request.Confirmation)
	if err != nil {
		m.message = onboarding.Describe(err)
		return m, nil
	}

	onboarder := m.config.Onboarder
	ctx := m.ctx
	m.screen = screenSubmitting
	return m, func() tea.Msg {
		request.Password = protect(password)
		request.Confirmation = protect(confirmation)
		defer closeBuffers(request.Password, request.Confirmation)

		result, err := onboarder.Generate(ctx, request)
		return submittedMsg{session: result.Session, snapshotPath: result.SnapshotPath, err: err}
	}
}

func (m Model) submitUnlock() (tea.Model, tea.Cmd) {
	m.message = ""
	password := m.unlock.Value()
	if password == "" {
		m.message = onboarding.Describe(&onboarding.ValidationError{EmptyPassword: true})
		return m, nil
	}

	onboarder := m.config.Onboarder
	ctx := m.ctx
	m.screen = screenSubmitting
	return m, func() tea.Msg {
		buffer := protect(password)
		defer closeBuffers(buffer)
		session, err := onboarder.Unlock(ctx, buffer)
		return submittedMsg{session: session, err: err}
	}
}

// protect moves a form value into a secret buffer. Empty values and
// allocation failures yield nil, which validation reports as unmet.
func protect(value string) *secret.Buffer {
	if value == "" {
		return nil
	}
	buffer, err := secret.NewFromBytes([]byte(value))
	if err != nil {
		return nil
	}
	return buffer
}

func closeBuffers(buffers ...*secret.Buffer) {
	for _, buffer := range buffers {
		if buffer != nil {
			buffer.Close()
		}
	}
}

// handleSubmitted starts reconciliation, or returns to the form with
// the document selections kept and the password fields cleared.
func (m Model) handleSubmitted(message submittedMsg) (tea.Model, tea.Cmd) {
	if message.err != nil {
		m.message = onboarding.Describe(message.err)
		m.inputs[fieldPassword].SetValue("")
		m.inputs[fieldConfirmation].SetValue("")
		m.unlock.SetValue("")
		if m.mode == modeUnlock {
			m.screen = screenUnlock
			return m, m.unlock.Focus()
		}
		m.screen = screenGenerate
		return m.setFocus(fieldPassword)
	}

	m.snapshotPath = message.snapshotPath
	options := m.config.Reconcile
	updates := m.updates
	options.Observer = func(status reconcile.Status) {
		select {
		case updates <- status:
		default:
		}
	}
	m.reconciler = reconcile.New(message.session, options)
	m.screen = screenReconciling
	m.watching = true
	return m, tea.Batch(m.watchCmd(), m.waitForStatus())
}

func (m Model) watchCmd() tea.Cmd {
	reconciler := m.reconciler
	ctx := m.ctx
	interval := m.config.PollInterval
	return func() tea.Msg {
		result, err := reconciler.Watch(ctx, interval)
		return watchDoneMsg{result: result, err: err}
	}
}

func (m Model) waitForStatus() tea.Cmd {
	updates := m.updates
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case status := <-updates:
			return statusMsg(status)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) handleWatchDone(message watchDoneMsg) (tea.Model, tea.Cmd) {
	m.watching = false
	if m.reconciler != nil {
		m.status = m.reconciler.Status()
	}
	if message.err != nil {
		m.message = "Reconciliation stopped: " + message.err.Error()
		return m, nil
	}
	if message.result.Outcome == reconcile.OutcomeCovered {
		m.covered = true
		if m.config.AutoAdvance {
			m.screen = screenDone
			m.finished = true
		}
	}
	return m, nil
}
