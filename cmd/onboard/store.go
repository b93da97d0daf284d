// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/securestore"
	"github.com/bureau-foundation/onboard/lib/vault"
)

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:    "store",
		Summary: "Maintain the secure store",
		Description: `Snapshot, restore or wipe the secure store holding the primary and
node configuration.`,
		Subcommands: []*cli.Command{
			storeSnapshotCommand(),
			storeRestoreCommand(),
			storeWipeCommand(),
		},
	}
}

type snapshotParams struct {
	globalParams
	Output      string `json:"-" flag:"output,o" desc:"directory for the snapshot (default paths.backup_dir)"`
	Compression string `json:"-" flag:"compression" desc:"none, lz4 or zstd (default store.snapshot_compression)"`
}

type snapshotReport struct {
	Path        string `json:"path"`
	Compression string `json:"compression"`
}

func storeSnapshotCommand() *cli.Command {
	var params snapshotParams
	return &cli.Command{
		Name:    "snapshot",
		Summary: "Write a snapshot of the secure store",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("snapshot", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			env, err := loadEnvironment(params.globalParams, logger.With("command", "store/snapshot"))
			if err != nil {
				return err
			}

			name := params.Compression
			if name == "" {
				name = env.settings.Store.SnapshotCompression
			}
			compression, err := securestore.ParseCompression(name)
			if err != nil {
				return cli.Validation("%w", err)
			}
			directory := params.Output
			if directory == "" {
				directory = env.settings.Paths.BackupDir
			}

			path, err := env.store.SnapshotToDir(directory, compression, time.Now())
			if err != nil {
				return categorize(err)
			}

			report := snapshotReport{Path: path, Compression: compression.String()}
			if done, err := params.EmitJSON(report); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "Snapshot written to %s\n", path)
			return nil
		},
	}
}

type restoreParams struct {
	globalParams
	Force bool `json:"-" flag:"force" desc:"wipe an existing store before restoring"`
}

type restoreReport struct {
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
	Store     string `json:"store"`
}

func storeRestoreCommand() *cli.Command {
	var params restoreParams
	return &cli.Command{
		Name:    "restore",
		Summary: "Restore the secure store from a snapshot",
		Usage:   "onboard store restore <snapshot> [flags]",
		Description: `Verify a snapshot's digests and save its documents as the secure
store. The store must be absent unless --force is given.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("restore", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("expected exactly one snapshot path")
			}
			env, err := loadEnvironment(params.globalParams, logger.With("command", "store/restore"))
			if err != nil {
				return err
			}

			snapshot, err := securestore.ReadSnapshotFile(args[0])
			if err != nil {
				return categorize(&securestore.StorageError{Op: "restore", Path: args[0], Err: err})
			}

			if env.probe.Check().State != vault.Absent {
				if !params.Force {
					return cli.Conflict("a secure store already exists at %s; pass --force to replace it", env.store.Path())
				}
				if err := env.store.Wipe(); err != nil {
					return categorize(err)
				}
			}
			if err := env.store.Restore(snapshot); err != nil {
				return categorize(err)
			}

			report := restoreReport{Snapshot: args[0], CreatedAt: snapshot.CreatedAt, Store: env.store.Path()}
			if done, err := params.EmitJSON(report); done {
				return err
			}
			fmt.Fprintf(cli.Stdout, "Restored snapshot from %s into %s\n", report.CreatedAt, report.Store)
			return nil
		},
	}
}

type wipeParams struct {
	globalParams
	Yes        bool `json:"-" flag:"yes" desc:"confirm deleting the secure store"`
	NoSnapshot bool `json:"-" flag:"no-snapshot" desc:"skip the snapshot taken before wiping"`
}

type wipeReport struct {
	Store        string `json:"store"`
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

func storeWipeCommand() *cli.Command {
	var params wipeParams
	return &cli.Command{
		Name:    "wipe",
		Summary: "Delete the secure store",
		Description: `Delete the secure store. A snapshot is written to paths.backup_dir
first when store.snapshot_on_wipe is set and the store is complete.
The bridge's key material is not touched.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("wipe", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if !params.Yes {
				return cli.Validation("refusing to wipe without --yes")
			}
			env, err := loadEnvironment(params.globalParams, logger.With("command", "store/wipe"))
			if err != nil {
				return err
			}

			report := wipeReport{Store: env.store.Path()}
			if env.settings.Store.SnapshotOnWipe && !params.NoSnapshot && env.probe.Check().State == vault.Present {
				compression, err := securestore.ParseCompression(env.settings.Store.SnapshotCompression)
				if err != nil {
					return cli.Validation("%w", err)
				}
				report.SnapshotPath, err = env.store.SnapshotToDir(env.settings.Paths.BackupDir, compression, time.Now())
				if err != nil {
					return categorize(err)
				}
			}
			if err := env.store.Wipe(); err != nil {
				return categorize(err)
			}

			if done, err := params.EmitJSON(report); done {
				return err
			}
			if report.SnapshotPath != "" {
				fmt.Fprintf(cli.Stdout, "Snapshot written to %s\n", report.SnapshotPath)
			}
			fmt.Fprintf(cli.Stdout, "Wiped %s\n", report.Store)
			return nil
		},
	}
}
