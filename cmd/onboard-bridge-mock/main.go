// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// onboard-bridge-mock serves the bridge socket protocol backed by an
// in-process reference node, for manual testing of onboard and for
// scripted end-to-end runs.
//
// The node initializes once per process, keeps its key material beside
// the secure store it is given, and reads the desired governances from
// the primary configuration at --governance-path. Governances named
// with --hold accept updates that never land; --preload makes the node
// recognize governances from the start. --legacy-errors drops error
// codes from replies so clients fall back to message classification.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/localnode"
	"github.com/bureau-foundation/onboard/lib/version"
)

type options struct {
	SocketPath     string
	GovernancePath string
	Hold           []governance.ID
	Preload        []governance.ID
	LegacyErrors   bool
	ShowVersion    bool
	Debug          bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}
	if opts.ShowVersion {
		fmt.Printf("onboard-bridge-mock %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node := localnode.New(localnode.Options{
		GovernancePath: opts.GovernancePath,
		Hold:           opts.Hold,
		Preloaded:      opts.Preload,
		Logger:         logger,
	})
	server := bridge.NewServer(opts.SocketPath, node, logger)
	server.LegacyErrors = opts.LegacyErrors

	ready := make(chan struct{})
	go func() {
		select {
		case <-ready:
			logger.Info("bridge mock running",
				"socket", opts.SocketPath,
				"held", len(opts.Hold),
				"preloaded", len(opts.Preload),
				"legacy_errors", opts.LegacyErrors,
			)
		case <-ctx.Done():
		}
	}()

	if err := server.Serve(ctx, ready); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var opts options
	var hold, preload []string

	flagSet := pflag.NewFlagSet("onboard-bridge-mock", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.SocketPath, "socket", "", "unix socket to listen on (required)")
	flagSet.StringVar(&opts.GovernancePath, "governance-path", localnode.DefaultGovernancePath, "gjson path of the governance list in the primary configuration")
	flagSet.StringArrayVar(&hold, "hold", nil, "governance whose updates never land (repeatable)")
	flagSet.StringArrayVar(&preload, "preload", nil, "governance recognized from the start (repeatable)")
	flagSet.BoolVar(&opts.LegacyErrors, "legacy-errors", false, "omit error codes from replies")
	flagSet.BoolVar(&opts.Debug, "debug", false, "log at debug level")
	flagSet.BoolVar(&opts.ShowVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if opts.ShowVersion {
		return opts, nil
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.SocketPath == "" {
		return options{}, errors.New("--socket is required")
	}

	opts.Hold = governance.ParseIDs(hold)
	opts.Preload = governance.ParseIDs(preload)
	return opts, nil
}
