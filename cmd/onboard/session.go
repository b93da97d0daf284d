// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/cmd/onboard/cli"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/reconcile"
)

// sessionParams are shared by init and unlock.
type sessionParams struct {
	globalParams
	PasswordFile string        `json:"-" flag:"password-file" desc:"read the password from this file (- for stdin) instead of prompting"`
	NoReconcile  bool          `json:"-" flag:"no-reconcile" desc:"stop after the bridge is initialized"`
	Timeout      time.Duration `json:"-" flag:"timeout" desc:"bound on reconciliation; 0 waits until every governance is recognized" default:"2m"`
}

// sessionReport is the --json result of init and unlock.
type sessionReport struct {
	Vault        string            `json:"vault"`
	Session      string            `json:"session"`
	SnapshotPath string            `json:"snapshot_path,omitempty"`
	Reconcile    *reconcile.Result `json:"reconcile,omitempty"`
}

// reconcileSession watches the session until the desired governances
// are covered or timeout passes. Running out of time is acceptable
// once the bridge recognizes at least one governance.
func reconcileSession(ctx context.Context, env *environment, session bridge.Session, timeout time.Duration) (*reconcile.Result, error) {
	reconciler := reconcile.New(session, env.reconcileOptions())

	watchContext := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		watchContext, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := reconciler.Watch(watchContext, env.settings.Reconcile.PollInterval)
	if err == nil {
		return &result, nil
	}
	if ctx.Err() != nil || watchContext.Err() == nil {
		return nil, categorize(err)
	}

	status := reconciler.Status()
	partial := &reconcile.Result{
		Outcome:      status.Outcome,
		ControllerID: status.ControllerID,
		Desired:      status.Desired,
		Actual:       status.Actual,
		Diff:         status.Diff,
	}
	if status.Outcome == reconcile.OutcomeLive {
		env.logger.Warn("governances still missing after timeout",
			"timeout", timeout,
			"missing", len(status.Diff.Missing),
		)
		return partial, nil
	}
	return partial, cli.Transient("the bridge recognized no governance within %s", timeout)
}

func printSessionReport(w io.Writer, report sessionReport) {
	fmt.Fprintf(w, "Vault %s.\n", report.Vault)
	if report.SnapshotPath != "" {
		fmt.Fprintf(w, "Previous vault saved to %s\n", report.SnapshotPath)
	}
	result := report.Reconcile
	if result == nil {
		return
	}

	if result.ControllerID != "" {
		fmt.Fprintf(w, "Controller id: %s\n", result.ControllerID)
	}
	actual := governance.NewSet(result.Actual...)
	recognized := 0
	for _, id := range result.Desired {
		if actual.Contains(id) {
			recognized++
		}
	}
	fmt.Fprintf(w, "Governances: %d/%d recognized (%s)\n", recognized, len(result.Desired), result.Outcome)
	for _, id := range result.Desired {
		mark := "…"
		if actual.Contains(id) {
			mark = "✓"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, id)
	}
}

// finishSession reconciles unless disabled and writes the report.
func finishSession(ctx context.Context, env *environment, params sessionParams, session bridge.Session, report sessionReport) error {
	report.Session = session.ID()

	var reconcileErr error
	if !params.NoReconcile {
		report.Reconcile, reconcileErr = reconcileSession(ctx, env, session, params.Timeout)
	}

	if done, err := params.EmitJSON(report); done {
		if err != nil {
			return err
		}
	} else {
		printSessionReport(cli.Stdout, report)
	}
	return reconcileErr
}
