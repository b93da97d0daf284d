// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the wizard's key bindings.
type KeyMap struct {
	// Form navigation.
	Next     key.Binding
	Previous key.Binding
	Submit   key.Binding // Next field, or submit from the last one.

	// Unknown-vault confirmation.
	Confirm key.Binding
	Decline key.Binding

	// Reconciliation screen.
	Retry    key.Binding
	Copy     key.Binding // Copy the controller id.
	Continue key.Binding

	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap is the built-in binding set.
var DefaultKeyMap = KeyMap{
	Next: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("Tab", "next field"),
	),
	Previous: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-Tab", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "submit"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "start over"),
	),
	Decline: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "exit"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy controller id"),
	),
	Continue: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "continue"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	ForceQuit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
