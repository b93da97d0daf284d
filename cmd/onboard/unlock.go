// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
)

type unlockParams struct {
	sessionParams
}

func unlockCommand() *cli.Command {
	var params unlockParams
	return &cli.Command{
		Name:    "unlock",
		Summary: "Start the bridge with the existing vault",
		Description: `Initialize the bridge with the password of the existing vault, then
reconcile governances.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("unlock", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := loadEnvironment(params.globalParams, logger.With("command", "unlock"))
			if err != nil {
				return err
			}

			password, err := readPassword(params.PasswordFile, "Password: ")
			if err != nil {
				return err
			}
			defer password.Close()

			onboarder, err := env.onboarder()
			if err != nil {
				return err
			}
			session, err := onboarder.Unlock(ctx, password)
			if err != nil {
				return categorize(err)
			}
			return finishSession(ctx, env, params.sessionParams, session, sessionReport{Vault: "unlocked"})
		},
	}
}
