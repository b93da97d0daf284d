// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/clock"
	"github.com/bureau-foundation/onboard/lib/secret"
	"github.com/bureau-foundation/onboard/lib/securestore"
	"github.com/bureau-foundation/onboard/lib/vault"
)

// Onboarder runs submissions against one store and one connector.
type Onboarder struct {
	Store     *securestore.Store
	Connector bridge.Connector

	// Clock drives InitTimeout. Nil means the real clock.
	Clock clock.Clock

	// InitTimeout bounds Connector.Initialize. Zero means no bound
	// beyond the caller's context.
	InitTimeout time.Duration

	// SnapshotDir receives a snapshot of an existing store before
	// Generate wipes it. Empty disables snapshots.
	SnapshotDir         string
	SnapshotCompression securestore.Compression

	Logger *slog.Logger
}

// GenerateRequest is one submission of the onboarding form. The
// buffers are borrowed; the caller closes them.
type GenerateRequest struct {
	Password     *secret.Buffer
	Confirmation *secret.Buffer
	PrimaryPath  string
	NodePath     string
}

// GenerateResult describes a successful submission.
type GenerateResult struct {
	Session bridge.Session

	// SnapshotPath is where the previous store was saved, if one was.
	SnapshotPath string
}

func (o *Onboarder) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Onboarder) clock() clock.Clock {
	if o.Clock == nil {
		return clock.Real()
	}
	return o.Clock
}

func bytesOf(buffer *secret.Buffer) []byte {
	if buffer == nil {
		return nil
	}
	return buffer.Bytes()
}

// Validate checks request without side effects.
func Validate(request GenerateRequest) error {
	report := EvaluatePassword(bytesOf(request.Password), bytesOf(request.Confirmation))

	var missing []Document
	if request.PrimaryPath == "" {
		missing = append(missing, DocumentPrimary)
	}
	if request.NodePath == "" {
		missing = append(missing, DocumentNode)
	}

	if report.Satisfied() && len(missing) == 0 {
		return nil
	}
	return &ValidationError{Unmet: report.Unmet(), MissingDocuments: missing}
}

// Generate creates a new vault from request and initializes the bridge
// with it. Steps run in order and the first failure is returned:
// validation, snapshot of any existing store, wipe, save, initialize.
// A failed initialization leaves the new store in place; submitting
// again starts over with the wipe.
func (o *Onboarder) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	logger := o.logger()

	if err := Validate(request); err != nil {
		return GenerateResult{}, err
	}

	var result GenerateResult
	if o.SnapshotDir != "" {
		inspection, err := o.Store.Inspect()
		if err != nil {
			return GenerateResult{}, err
		}
		if inspection.Complete() {
			path, err := o.Store.SnapshotToDir(o.SnapshotDir, o.SnapshotCompression, o.clock().Now())
			if err != nil {
				return GenerateResult{}, err
			}
			result.SnapshotPath = path
		}
	}

	if err := o.Store.Wipe(); err != nil {
		return GenerateResult{}, err
	}

	bundle, err := securestore.ReadBundle(request.PrimaryPath, request.NodePath)
	if err != nil {
		return GenerateResult{}, err
	}
	if err := o.Store.Save(bundle); err != nil {
		return GenerateResult{}, err
	}

	session, err := o.initialize(ctx, request.Password)
	if err != nil {
		return GenerateResult{}, err
	}

	logger.Info("vault created", "store", o.Store.Path(), "session", session.ID())
	result.Session = session
	return result, nil
}

// Unlock starts a bridge session against the existing store.
func (o *Onboarder) Unlock(ctx context.Context, password *secret.Buffer) (bridge.Session, error) {
	if password == nil || password.Len() == 0 {
		return nil, &ValidationError{EmptyPassword: true}
	}

	probe := vault.NewProbe(o.Store, o.logger()).Check()
	if probe.State != vault.Present {
		cause := securestore.ErrStoreMissing
		if probe.Reason != nil {
			cause = errors.Join(securestore.ErrStoreMissing, probe.Reason)
		}
		return nil, &securestore.StorageError{Op: "unlock", Path: o.Store.Path(), Err: cause}
	}

	session, err := o.initialize(ctx, password)
	if err != nil {
		return nil, err
	}
	o.logger().Info("vault unlocked", "store", o.Store.Path(), "session", session.ID())
	return session, nil
}

func (o *Onboarder) initialize(ctx context.Context, password *secret.Buffer) (bridge.Session, error) {
	if o.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = clock.WithTimeout(ctx, o.clock(), o.InitTimeout)
		defer cancel()
	}

	session, err := o.Connector.Initialize(ctx, bridge.InitRequest{
		Password:          password,
		PrimaryConfigPath: o.Store.PrimaryPath(),
		NodeConfigPath:    o.Store.NodePath(),
		SecureStorePath:   o.Store.Path(),
	})
	if err != nil {
		if clock.TimedOut(ctx) && bridge.CodeOf(err) != bridge.CodeUnavailable {
			err = &bridge.Error{Code: bridge.CodeUnavailable, Action: bridge.ActionInitialize, Message: "initialization timed out", Err: err}
		}
		classified := classifyInit(err)
		o.logger().Warn("bridge initialization failed",
			"kind", classified.Kind.String(),
			"error", err,
		)
		return nil, classified
	}
	return session, nil
}
