// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/wizardui"
)

type wizardParams struct {
	Config       string `flag:"config" desc:"settings file (default $ONBOARD_CONFIG, then built-in defaults)"`
	Primary      string `flag:"primary" desc:"prefill the primary configuration path"`
	Node         string `flag:"node" desc:"prefill the node configuration path"`
	AssumeAbsent bool   `flag:"assume-absent" desc:"skip the confirmation when the vault state cannot be determined"`
}

// wizardLogName is the log file inside the data directory. The
// terminal belongs to the wizard while it runs.
const wizardLogName = "wizard.log"

func wizardCommand() *cli.Command {
	var params wizardParams
	return &cli.Command{
		Name:    "wizard",
		Summary: "Run the interactive setup wizard",
		Description: `Walk through vault creation or unlock in the terminal, then watch
governances reconcile. Logs go to wizard.log in the data directory.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("wizard", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			settings, err := loadSettings(params.Config)
			if err != nil {
				return err
			}

			logPath := filepath.Join(settings.Paths.DataDir, wizardLogName)
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return cli.Internal("opening wizard log: %w", err)
			}
			defer logFile.Close()
			logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: logLevel}))

			env := newEnvironment(settings, logger)
			onboarder, err := env.onboarder()
			if err != nil {
				return err
			}

			model := wizardui.New(ctx, wizardui.Config{
				Prober:         env.probe,
				Onboarder:      onboarder,
				Reconcile:      env.reconcileOptions(),
				PollInterval:   settings.Reconcile.PollInterval,
				AutoAdvance:    settings.Reconcile.AutoAdvance,
				AssumeAbsent:   params.AssumeAbsent,
				InitialPrimary: params.Primary,
				InitialNode:    params.Node,
			})
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			final, err := program.Run()
			if err != nil {
				return cli.Internal("wizard: %w", err)
			}

			result := final.(wizardui.Model)
			if !result.Finished() {
				return &cli.ExitError{Code: 1}
			}
			if id := result.Status().ControllerID; id != "" {
				fmt.Fprintf(cli.Stdout, "Controller id: %s\n", id)
			}
			return nil
		},
	}
}
