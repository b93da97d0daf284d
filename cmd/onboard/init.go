// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/vault"
)

type initParams struct {
	sessionParams
	Primary      string `json:"-" flag:"primary" desc:"primary configuration file (JSON, JSONC, YAML or TOML)"`
	Node         string `json:"-" flag:"node" desc:"node configuration file (JSON, JSONC, YAML or TOML)"`
	AssumeAbsent bool   `json:"-" flag:"assume-absent" desc:"replace a vault whose state cannot be determined"`
	Replace      bool   `json:"-" flag:"replace" desc:"replace an existing vault"`
}

func initCommand() *cli.Command {
	var params initParams
	return &cli.Command{
		Name:    "init",
		Summary: "Create a vault and start the bridge with it",
		Description: `Copy the primary and node configuration into the secure store,
initialize the bridge with a new password, and reconcile governances.

An existing vault is only replaced with --replace, and one whose
state cannot be determined only with --assume-absent. The replaced
vault is saved as a snapshot first when store.snapshot_on_wipe is set.`,
		Examples: []cli.Example{
			{
				Description: "Create a vault, prompting for the password",
				Command:     "onboard init --primary config.json --node node.yaml",
			},
			{
				Description: "Non-interactive, without waiting for governances",
				Command:     "onboard init --primary config.json --node node.yaml --password-file pw --no-reconcile --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("init", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Primary == "" || params.Node == "" {
				return cli.Validation("--primary and --node are required")
			}

			env, err := loadEnvironment(params.globalParams, logger.With("command", "init"))
			if err != nil {
				return err
			}

			probe := env.probe.Check()
			switch probe.Route(params.AssumeAbsent) {
			case vault.RouteUnlock:
				if !params.Replace {
					return cli.Conflict("a vault already exists at %s; run 'onboard unlock' or pass --replace", env.store.Path())
				}
			case vault.RouteConfirm:
				return cli.Conflict("the existing vault cannot be read (%v); pass --assume-absent to replace it", probe.Reason)
			}

			// Check the documents before asking for a password.
			var selection onboarding.Selection
			for _, pick := range []struct {
				document onboarding.Document
				path     string
			}{
				{onboarding.DocumentPrimary, params.Primary},
				{onboarding.DocumentNode, params.Node},
			} {
				if _, err := selection.Select(ctx, pick.document, onboarding.PathPicker(pick.path)); err != nil {
					return categorize(err)
				}
			}

			password, confirmation, err := readNewPassword(params.PasswordFile)
			if err != nil {
				return err
			}
			defer password.Close()
			defer confirmation.Close()

			onboarder, err := env.onboarder()
			if err != nil {
				return err
			}
			result, err := onboarder.Generate(ctx, onboarding.GenerateRequest{
				Password:     password,
				Confirmation: confirmation,
				PrimaryPath:  selection.Path(onboarding.DocumentPrimary),
				NodePath:     selection.Path(onboarding.DocumentNode),
			})
			if err != nil {
				return categorize(err)
			}

			return finishSession(ctx, env, params.sessionParams, result.Session, sessionReport{
				Vault:        "created",
				SnapshotPath: result.SnapshotPath,
			})
		},
	}
}
