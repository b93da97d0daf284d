// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
)

func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "onboard",
		Description: `onboard: local vault setup for the bridge.

Create a vault from a primary and a node configuration, or unlock the
existing one, start the bridge with it, and make sure the bridge
recognizes every governance the primary configuration declares.`,
		Subcommands: []*cli.Command{
			probeCommand(),
			initCommand(),
			unlockCommand(),
			wizardCommand(),
			storeCommand(),
			versionCommand(),
		},
	}
}
