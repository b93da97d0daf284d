// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/secret"
)

// readPassword reads the password from path ("-" for stdin) or, when
// path is empty, prompts on the terminal.
func readPassword(path, prompt string) (*secret.Buffer, error) {
	if path != "" {
		buffer, err := secret.ReadFromPath(path)
		if err != nil {
			return nil, categorize(err)
		}
		return buffer, nil
	}
	buffer, err := cli.ReadPassword(prompt)
	if err != nil {
		return nil, categorize(err)
	}
	return buffer, nil
}

// readNewPassword returns a password and its confirmation. A password
// file serves as both; interactively the user types it twice.
func readNewPassword(path string) (*secret.Buffer, *secret.Buffer, error) {
	password, err := readPassword(path, "New password: ")
	if err != nil {
		return nil, nil, err
	}

	var confirmation *secret.Buffer
	if path != "" {
		confirmation, err = secret.NewFromBytes(bytes.Clone(password.Bytes()))
	} else {
		confirmation, err = readPassword("", "Confirm password: ")
	}
	if err != nil {
		password.Close()
		return nil, nil, err
	}
	return password, confirmation, nil
}
