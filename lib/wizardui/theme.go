// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import "github.com/charmbracelet/lipgloss"

// Theme is the wizard's color palette, in ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Checklist and governance marks.
	Satisfied   lipgloss.Color
	Unsatisfied lipgloss.Color
	Pending     lipgloss.Color

	ErrorText  lipgloss.Color
	NoticeText lipgloss.Color
	FocusText  lipgloss.Color
}

// DefaultTheme works on dark terminals.
var DefaultTheme = Theme{
	NormalText:       lipgloss.Color("252"),
	FaintText:        lipgloss.Color("243"),
	HeaderForeground: lipgloss.Color("39"),
	BorderColor:      lipgloss.Color("238"),
	HelpText:         lipgloss.Color("241"),
	Satisfied:        lipgloss.Color("78"),
	Unsatisfied:      lipgloss.Color("203"),
	Pending:          lipgloss.Color("214"),
	ErrorText:        lipgloss.Color("196"),
	NoticeText:       lipgloss.Color("114"),
	FocusText:        lipgloss.Color("117"),
}

type styles struct {
	header    lipgloss.Style
	frame     lipgloss.Style
	label     lipgloss.Style
	focused   lipgloss.Style
	faint     lipgloss.Style
	satisfied lipgloss.Style
	unmet     lipgloss.Style
	pending   lipgloss.Style
	error     lipgloss.Style
	notice    lipgloss.Style
	help      lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		header:    lipgloss.NewStyle().Bold(true).Foreground(theme.HeaderForeground),
		frame:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.BorderColor).Padding(0, 1),
		label:     lipgloss.NewStyle().Foreground(theme.NormalText),
		focused:   lipgloss.NewStyle().Bold(true).Foreground(theme.FocusText),
		faint:     lipgloss.NewStyle().Foreground(theme.FaintText),
		satisfied: lipgloss.NewStyle().Foreground(theme.Satisfied),
		unmet:     lipgloss.NewStyle().Foreground(theme.Unsatisfied),
		pending:   lipgloss.NewStyle().Foreground(theme.Pending),
		error:     lipgloss.NewStyle().Bold(true).Foreground(theme.ErrorText),
		notice:    lipgloss.NewStyle().Foreground(theme.NoticeText),
		help:      lipgloss.NewStyle().Foreground(theme.HelpText),
	}
}
