// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/onboard/lib/securestore"
)

// State is the probe outcome.
type State int

const (
	Absent State = iota
	Present
	Unknown
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText lets State appear by name in --json output.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrIncomplete is the Unknown reason when the store directory exists
// but a canonical document is missing.
var ErrIncomplete = errors.New("secure store is incomplete")

// Result is a probe outcome with the reason for Unknown.
type Result struct {
	State  State
	Reason error
}

// Inspector is the view of the SecureStore the probe needs.
type Inspector interface {
	Inspect() (securestore.Inspection, error)
}

// Probe checks for an existing vault.
type Probe struct {
	store  Inspector
	logger *slog.Logger
}

// NewProbe returns a probe over store.
func NewProbe(store Inspector, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{store: store, logger: logger}
}

// Check inspects the store. It never modifies anything and may be
// called any number of times.
func (p *Probe) Check() Result {
	result := classify(p.store.Inspect())
	if result.State == Unknown {
		p.logger.Warn("vault state could not be determined", "reason", result.Reason)
	} else {
		p.logger.Debug("vault probed", "state", result.State.String())
	}
	return result
}

func classify(inspection securestore.Inspection, err error) Result {
	if err != nil {
		return Result{State: Unknown, Reason: err}
	}
	if !inspection.DirectoryExists {
		return Result{State: Absent}
	}
	if inspection.Complete() {
		return Result{State: Present}
	}

	for _, document := range []struct {
		name  string
		state securestore.FileState
	}{
		{securestore.PrimaryFileName, inspection.Primary},
		{securestore.NodeFileName, inspection.Node},
	} {
		if document.state.Readable {
			continue
		}
		if !document.state.Exists {
			return Result{State: Unknown, Reason: fmt.Errorf("%w: %s missing", ErrIncomplete, document.name)}
		}
		return Result{State: Unknown, Reason: fmt.Errorf("%s unreadable: %w", document.name, document.state.Err)}
	}
	return Result{State: Unknown, Reason: ErrIncomplete}
}

// Route is where the wizard goes after probing.
type Route int

const (
	RouteOnboard Route = iota
	RouteUnlock
	RouteConfirm
)

func (r Route) String() string {
	switch r {
	case RouteOnboard:
		return "onboard"
	case RouteUnlock:
		return "unlock"
	case RouteConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("Route(%d)", int(r))
	}
}

// Route maps the probe outcome to the next screen. Unknown goes to a
// confirmation step unless assumeAbsent records that the user already
// accepted starting over.
func (r Result) Route(assumeAbsent bool) Route {
	switch r.State {
	case Present:
		return RouteUnlock
	case Absent:
		return RouteOnboard
	default:
		if assumeAbsent {
			return RouteOnboard
		}
		return RouteConfirm
	}
}
