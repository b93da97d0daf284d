// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/config"
	"github.com/bureau-foundation/onboard/lib/onboarding"
	"github.com/bureau-foundation/onboard/lib/reconcile"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/securestore"
	"github.com/bureau-foundation/onboard/lib/vault"
)

// globalParams are accepted by every command that touches the vault.
type globalParams struct {
	cli.JSONOutput
	Config string `json:"-" flag:"config" desc:"settings file (default $ONBOARD_CONFIG, then built-in defaults)"`
}

// environment is everything a command needs, built from the settings.
type environment struct {
	settings *config.Config
	logger   *slog.Logger
	store    *securestore.Store
	probe    *vault.Probe
	client   *bridge.Client
}

func loadEnvironment(params globalParams, logger *slog.Logger) (*environment, error) {
	settings, err := loadSettings(params.Config)
	if err != nil {
		return nil, err
	}
	return newEnvironment(settings, logger), nil
}

// loadSettings reads and validates the settings, creates the data
// directories and applies the configured log level.
func loadSettings(path string) (*config.Config, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, cli.Validation("invalid settings:\n%w", err)
	}
	if err := settings.EnsurePaths(); err != nil {
		return nil, cli.Internal("%w", err)
	}
	logLevel.Set(settings.LogLevel())
	return settings, nil
}

func newEnvironment(settings *config.Config, logger *slog.Logger) *environment {
	store := securestore.New(settings.Paths.DataDir, logger)
	return &environment{
		settings: settings,
		logger:   logger,
		store:    store,
		probe:    vault.NewProbe(store, logger),
		client:   bridge.NewClient(settings.Bridge.SocketPath, logger),
	}
}

func (e *environment) onboarder() (*onboarding.Onboarder, error) {
	compression, err := securestore.ParseCompression(e.settings.Store.SnapshotCompression)
	if err != nil {
		return nil, cli.Validation("%v", err)
	}
	onboarder := &onboarding.Onboarder{
		Store:               e.store,
		Connector:           e.client,
		InitTimeout:         e.settings.Bridge.InitTimeout,
		SnapshotCompression: compression,
		Logger:              e.logger,
	}
	if e.settings.Store.SnapshotOnWipe {
		onboarder.SnapshotDir = e.settings.Paths.BackupDir
	}
	return onboarder, nil
}

func (e *environment) reconcileOptions() reconcile.Options {
	return reconcile.Options{
		CallTimeout:    e.settings.Bridge.CallTimeout,
		RetryAttempts:  e.settings.Reconcile.RetryAttempts,
		InitialBackoff: e.settings.Reconcile.InitialBackoff,
		MaxBackoff:     e.settings.Reconcile.MaxBackoff,
		Logger:         e.logger,
	}
}

// categorize attaches a cli.ErrorCategory to the errors the onboarding
// libraries return.
func categorize(err error) error {
	if err == nil {
		return nil
	}

	var toolError *cli.ToolError
	var validation *onboarding.ValidationError
	var selection *onboarding.FileSelectionError
	var initialization *onboarding.InitializationError
	var storage *securestore.StorageError
	var step *reconcile.StepError

	switch {
	case errors.As(err, &toolError):
		return err

	case errors.As(err, &validation), errors.As(err, &selection),
		errors.Is(err, cli.ErrNoTerminal), errors.Is(err, secret.ErrEmpty):
		return cli.Wrap(cli.CategoryValidation, err)

	case errors.As(err, &initialization):
		switch initialization.Kind {
		case onboarding.InitIncorrectPassword, onboarding.InitAlreadyInitialized:
			return cli.Wrap(cli.CategoryConflict, err)
		case onboarding.InitUnavailable:
			return cli.Wrap(cli.CategoryTransient, err)
		default:
			return cli.Wrap(cli.CategoryInternal, err)
		}

	case errors.As(err, &storage):
		switch {
		case errors.Is(err, securestore.ErrStoreMissing), errors.Is(err, fs.ErrNotExist):
			return cli.Wrap(cli.CategoryNotFound, err)
		case errors.Is(err, securestore.ErrStoreExists):
			return cli.Wrap(cli.CategoryConflict, err)
		case errors.Is(err, securestore.ErrEmptyDocument), errors.Is(err, securestore.ErrNotText),
			errors.Is(err, securestore.ErrDocumentTooLarge), errors.Is(err, securestore.ErrCorruptSnapshot):
			return cli.Wrap(cli.CategoryValidation, err)
		default:
			return cli.Wrap(cli.CategoryInternal, err)
		}

	case errors.As(err, &step):
		if bridge.Retryable(err) {
			return cli.Wrap(cli.CategoryTransient, err)
		}
		return cli.Wrap(cli.CategoryInternal, err)

	case bridge.Retryable(err):
		return cli.Wrap(cli.CategoryTransient, err)
	}
	return cli.Wrap(cli.CategoryInternal, err)
}
