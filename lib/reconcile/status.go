// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/onboard/lib/governance"
)

// Phase is the reconciler's position in a pass.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetchIdentity
	PhaseFetchDesired
	PhaseFetchActual
	PhaseDiff
	PhaseReconciling
	PhaseAuthorize
	PhaseUpdate
	PhaseReverify
	PhaseConverged
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetchIdentity:
		return "fetch_identity"
	case PhaseFetchDesired:
		return "fetch_desired"
	case PhaseFetchActual:
		return "fetch_actual"
	case PhaseDiff:
		return "diff"
	case PhaseReconciling:
		return "reconciling"
	case PhaseAuthorize:
		return "authorize"
	case PhaseUpdate:
		return "update"
	case PhaseReverify:
		return "reverify"
	case PhaseConverged:
		return "converged"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON output.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Outcome grades a completed pass.
type Outcome int

const (
	// OutcomePending: nothing the bridge recognizes yet.
	OutcomePending Outcome = iota

	// OutcomeLive: the bridge recognizes some governance but the
	// desired set is not covered. Good enough for the user to continue
	// by hand.
	OutcomeLive

	// OutcomeCovered: every desired governance is recognized.
	OutcomeCovered
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeLive:
		return "live"
	case OutcomeCovered:
		return "covered"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome name in JSON output.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func grade(diff governance.Diff, actual governance.Set) Outcome {
	switch {
	case diff.Covered():
		return OutcomeCovered
	case !actual.Empty():
		return OutcomeLive
	default:
		return OutcomePending
	}
}

// Result describes one completed pass.
type Result struct {
	Outcome      Outcome         `json:"outcome"`
	ControllerID string          `json:"controller_id"`
	Desired      []governance.ID `json:"desired"`
	Actual       []governance.ID `json:"actual"`
	Diff         governance.Diff `json:"diff"`

	// Corrected lists the governances this pass authorized and
	// updated, in order.
	Corrected []governance.ID `json:"corrected"`

	// Joined is set when the caller waited on a pass another caller
	// started.
	Joined bool `json:"joined,omitempty"`
}

// Status is a snapshot of reconciler progress.
type Status struct {
	Phase        Phase
	Current      governance.ID
	ControllerID string
	Desired      []governance.ID
	Actual       []governance.ID
	Diff         governance.Diff
	Outcome      Outcome
	LastError    error
	Passes       int
}

func (s Status) clone() Status {
	s.Desired = slices.Clone(s.Desired)
	s.Actual = slices.Clone(s.Actual)
	s.Diff.Missing = slices.Clone(s.Diff.Missing)
	s.Diff.Present = slices.Clone(s.Diff.Present)
	return s
}

// ErrPassInProgress is returned by TryRun while a pass is running.
var ErrPassInProgress = errors.New("reconcile: pass already in progress")

// StepError is the failure that aborted a pass.
type StepError struct {
	Step       Phase
	Governance governance.ID
	Err        error
}

func (e *StepError) Error() string {
	if e.Governance == "" {
		return fmt.Sprintf("reconcile %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("reconcile %s %s: %v", e.Step, e.Governance, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
