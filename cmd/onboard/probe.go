// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/vault"
)

type probeParams struct {
	globalParams
}

// probeReport is the --json form of "onboard probe".
type probeReport struct {
	State  vault.State `json:"state"`
	Reason string      `json:"reason,omitempty"`
	Store  string      `json:"store"`
	Next   string      `json:"next"`
}

func probeCommand() *cli.Command {
	var params probeParams
	return &cli.Command{
		Name:    "probe",
		Summary: "Report whether a vault exists",
		Description: `Inspect the secure store without modifying it.

Exits 0 when a complete vault is present and 1 otherwise, so scripts
can choose between "onboard unlock" and "onboard init".`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("probe", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := loadEnvironment(params.globalParams, logger)
			if err != nil {
				return err
			}

			result := env.probe.Check()
			report := probeReport{
				State: result.State,
				Store: env.store.Path(),
				Next:  result.Route(false).String(),
			}
			if result.Reason != nil {
				report.Reason = result.Reason.Error()
			}

			if done, err := params.EmitJSON(report); done {
				if err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cli.Stdout, "vault: %s (%s)\n", report.State, report.Store)
				if report.Reason != "" {
					fmt.Fprintf(cli.Stdout, "reason: %s\n", report.Reason)
				}
			}

			if result.State != vault.Present {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
