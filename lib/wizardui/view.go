// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
)

const (
	markSatisfied = "✓"
	markUnmet     = "✗"
	markPending   = "…"
)

// View renders the current screen.
func (m Model) View() string {
	var body string
	var help []key.Binding

	switch m.screen {
	case screenProbing:
		body = m.spinner.View() + " Looking for an existing vault…"
	case screenConfirmUnknown:
		body = m.viewConfirm()
		help = []key.Binding{m.keys.Confirm, m.keys.Decline}
	case screenGenerate:
		body = m.viewGenerate()
		help = []key.Binding{m.keys.Next, m.keys.Previous, m.keys.Submit, m.keys.ForceQuit}
	case screenUnlock:
		body = m.viewUnlock()
		help = []key.Binding{m.keys.Submit, m.keys.ForceQuit}
	case screenSubmitting:
		body = m.spinner.View() + " Starting the bridge…"
	case screenReconciling:
		body = m.viewReconciling()
		help = []key.Binding{m.keys.Retry, m.keys.Copy}
		if m.covered || m.status.Outcome == reconcile.OutcomeLive {
			help = append(help, m.keys.Continue)
		}
		help = append(help, m.keys.Quit)
	case screenDone:
		body = m.viewDone()
		help = []key.Binding{m.keys.Quit}
	}

	var sections []string
	sections = append(sections, m.styles.header.Render("onboard"), "", body)
	if m.message != "" {
		sections = append(sections, "", m.styles.error.Render(m.message))
	}
	if m.notice != "" {
		sections = append(sections, "", m.styles.notice.Render(m.notice))
	}
	if len(help) > 0 {
		sections = append(sections, "", m.renderHelp(help))
	}

	frame := m.styles.frame
	if m.width > 4 {
		frame = frame.Width(m.width - 2)
	}
	return frame.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return m.styles.help.Render(strings.Join(parts, " • "))
}

func (m Model) viewConfirm() string {
	reason := "the vault files could not be read"
	if m.probe.Reason != nil {
		reason = m.probe.Reason.Error()
	}
	return strings.Join([]string{
		"The state of the existing vault could not be determined:",
		m.styles.faint.Render("  " + reason),
		"",
		"Starting over replaces it with a new vault.",
	}, "\n")
}

func (m Model) viewGenerate() string {
	labels := [fieldCount]string{"Primary configuration", "Node configuration", "Password", "Confirm password"}

	var lines []string
	lines = append(lines, "Create a new vault.", "")
	for index, label := range labels {
		style := m.styles.label
		if index == m.focus {
			style = m.styles.focused
		}
		lines = append(lines, style.Render(label), "  "+m.inputs[index].View())
	}

	password := m.inputs[fieldPassword].Value()
	if password != "" {
		report := onboarding.EvaluatePassword([]byte(password), []byte(m.inputs[fieldConfirmation].Value()))
		lines = append(lines, "")
		for _, result := range report.Results {
			if result.Satisfied {
				lines = append(lines, m.styles.satisfied.Render(markSatisfied+" "+result.Predicate.Description()))
			} else {
				lines = append(lines, m.styles.unmet.Render(markUnmet+" "+result.Predicate.Description()))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewUnlock() string {
	return strings.Join([]string{
		"A vault exists on this machine. Enter its password to unlock it.",
		"",
		m.styles.focused.Render("Password"),
		"  " + m.unlock.View(),
	}, "\n")
}

func (m Model) viewReconciling() string {
	status := m.status
	var lines []string

	controller := status.ControllerID
	if controller == "" {
		controller = m.styles.faint.Render("(fetching)")
	}
	lines = append(lines, "Controller id: "+controller)
	if m.snapshotPath != "" {
		lines = append(lines, m.styles.faint.Render("Previous vault saved to "+m.snapshotPath))
	}

	step := status.Phase.String()
	if status.Current != "" {
		step += " " + status.Current.String()
	}
	if m.watching {
		step = m.spinner.View() + " " + step
	}
	lines = append(lines, "Step: "+step, "")

	actual := governance.NewSet(status.Actual...)
	lines = append(lines, "Governances:")
	if len(status.Desired) == 0 {
		lines = append(lines, m.styles.faint.Render("  none declared in the primary configuration"))
	}
	for _, id := range status.Desired {
		if actual.Contains(id) {
			lines = append(lines, m.styles.satisfied.Render("  "+markSatisfied+" "+id.String()))
		} else {
			lines = append(lines, m.styles.pending.Render("  "+markPending+" "+id.String()))
		}
	}

	desired := governance.NewSet(status.Desired...)
	var extra []string
	for _, id := range status.Actual {
		if !desired.Contains(id) {
			extra = append(extra, id.String())
		}
	}
	if len(extra) > 0 {
		lines = append(lines, m.styles.faint.Render(fmt.Sprintf("  also recognized: %s", strings.Join(extra, ", "))))
	}

	switch {
	case m.covered:
		lines = append(lines, "", m.styles.satisfied.Render("Every governance is recognized."))
	case status.Outcome == reconcile.OutcomeLive:
		lines = append(lines, "", m.styles.pending.Render("The node is live. Remaining governances may arrive later; press Enter to continue."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewDone() string {
	lines := []string{m.styles.satisfied.Render("The vault is ready.")}
	if m.status.ControllerID != "" {
		lines = append(lines, "Controller id: "+m.status.ControllerID)
	}
	return strings.Join(lines, "\n")
}
