// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// onboard creates or unlocks the local credential vault, starts the
// bridge with it, and reconciles the bridge's governances against the
// primary configuration.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
)

// logLevel follows logging.level once a command has read the settings.
var logLevel = new(slog.LevelVar)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired exit code. Don't print a redundant "error:"
		// line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.CategoryOf(err).ExitCode())
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCommand().Execute(ctx, os.Args[1:], cli.NewCommandLogger(logLevel))
}
