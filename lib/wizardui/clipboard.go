// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wizardui

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// clipboardFadeDelay is how long the "copied" notice stays visible.
const clipboardFadeDelay = 2 * time.Second

type clipboardFadeMsg struct{}

// openTerminal is replaced in tests.
var openTerminal = func() (io.WriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
}

// writeOSC52 emits the OSC 52 clipboard sequence for text. Inside tmux
// or screen the sequence is also sent wrapped in DCS passthrough, so
// both forwarding modes work.
func writeOSC52(w io.Writer, text string) {
	osc52 := fmt.Sprintf("\x1b]52;c;%s\x07", base64.StdEncoding.EncodeToString([]byte(text)))

	term := os.Getenv("TERM")
	if os.Getenv("TMUX") != "" || strings.HasPrefix(term, "tmux") || strings.HasPrefix(term, "screen") {
		fmt.Fprintf(w, "\x1bPtmux;\x1b%s\x1b\\", osc52)
	}
	io.WriteString(w, osc52)
}

// copyToClipboard writes text to the terminal clipboard, bypassing the
// bubbletea renderer (OSC 52 has no visible effect), and clears the
// notice after clipboardFadeDelay.
func copyToClipboard(text string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			tty, err := openTerminal()
			if err != nil {
				return nil
			}
			defer tty.Close()
			writeOSC52(tty, text)
			return nil
		},
		tea.Tick(clipboardFadeDelay, func(time.Time) tea.Msg {
			return clipboardFadeMsg{}
		}),
	)
}
