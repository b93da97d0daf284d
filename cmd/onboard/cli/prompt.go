// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/onboard/lib/secret"
)

// ErrNoTerminal is returned by ReadPassword when stdin is not a
// terminal and the password cannot be prompted for.
var ErrNoTerminal = errors.New("stdin is not a terminal; use --password-file")

// ReadPassword prompts on stderr and reads one line from the terminal
// with echo disabled. The result is moved into a secret.Buffer and
// the intermediate slice zeroed.
func ReadPassword(prompt string) (*secret.Buffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTerminal
	}
	return readPassword(os.Stderr, prompt, func() ([]byte, error) {
		return term.ReadPassword(fd)
	})
}

func readPassword(w io.Writer, prompt string, read func() ([]byte, error)) (*secret.Buffer, error) {
	fmt.Fprint(w, prompt)
	data, err := read()
	fmt.Fprintln(w)
	if err != nil {
		secret.Zero(data)
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(data) == 0 {
		return nil, Validation("empty password")
	}
	// NewFromBytes zeroes data.
	return secret.NewFromBytes(data)
}
