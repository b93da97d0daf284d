// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/clock"
	"github.com/bureau-foundation/onboard/lib/governance"
)

// Options configures a Reconciler. Zero durations disable the
// corresponding bound.
type Options struct {
	// CallTimeout bounds each bridge call.
	CallTimeout time.Duration

	// RetryAttempts is how many times a call failing with a retryable
	// error is repeated before the pass gives up.
	RetryAttempts int

	// InitialBackoff is the wait before the first retry; each further
	// retry doubles it, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Clock  clock.Clock
	Logger *slog.Logger

	// Observer receives a status snapshot after every phase change.
	// It runs on the pass goroutine and must not call back into the
	// Reconciler.
	Observer func(Status)
}

// Reconciler owns a bridge session and reconciles its governances.
type Reconciler struct {
	session bridge.Session
	options Options
	clock   clock.Clock
	logger  *slog.Logger

	mu       sync.Mutex
	status   Status
	inflight *pass

	// Cached for the life of the session after the first successful
	// fetch.
	identity      string
	identityKnown bool
	desired       governance.Set
	desiredKnown  bool

	converged     chan struct{}
	convergedOnce sync.Once

	// onJoin, if set, runs when a Run call joins an in-flight pass.
	onJoin func()
}

// pass is the single-flight record of a running pass.
type pass struct {
	done   chan struct{}
	result Result
	err    error
}

// New returns a reconciler for session. The reconciler owns the
// session from now on.
func New(session bridge.Session, options Options) *Reconciler {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Reconciler{
		session:   session,
		options:   options,
		clock:     options.Clock,
		logger:    options.Logger,
		converged: make(chan struct{}),
	}
}

// Session returns the owned session.
func (r *Reconciler) Session() bridge.Session { return r.session }

// Converged is closed the first time a pass covers the desired set.
func (r *Reconciler) Converged() <-chan struct{} { return r.converged }

// Status returns a snapshot of the latest progress.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.clone()
}

// Run performs a pass, or waits for the pass already running and
// returns its result with Joined set. The pass runs under the context
// of the caller that started it; a joiner's ctx only bounds its wait.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if current := r.inflight; current != nil {
		r.mu.Unlock()
		if r.onJoin != nil {
			r.onJoin()
		}
		select {
		case <-current.done:
			result := current.result
			result.Joined = true
			return result, current.err
		case <-ctx.Done():
			return Result{Joined: true}, ctx.Err()
		}
	}
	return r.start(ctx)
}

// TryRun performs a pass unless one is already running, in which case
// it returns ErrPassInProgress.
func (r *Reconciler) TryRun(ctx context.Context) (Result, error) {
	r.mu.Lock()
	if r.inflight != nil {
		r.mu.Unlock()
		return Result{}, ErrPassInProgress
	}
	return r.start(ctx)
}

// start runs a pass. Called with r.mu held; releases it.
func (r *Reconciler) start(ctx context.Context) (Result, error) {
	current := &pass{done: make(chan struct{})}
	r.inflight = current
	r.mu.Unlock()

	current.result, current.err = r.run(ctx)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(current.done)
	return current.result, current.err
}

// Watch runs passes every interval until the desired set is covered,
// a pass fails, or ctx ends. Manual Run calls made meanwhile join
// Watch's passes.
func (r *Reconciler) Watch(ctx context.Context, interval time.Duration) (Result, error) {
	if interval <= 0 {
		return Result{}, fmt.Errorf("reconcile: watch interval must be positive, got %v", interval)
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := r.Run(ctx)
		if err != nil {
			return result, err
		}
		if result.Outcome == OutcomeCovered {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop stops the owned session.
func (r *Reconciler) Stop(ctx context.Context) error {
	return r.session.Stop(ctx)
}

func (r *Reconciler) run(ctx context.Context) (Result, error) {
	r.update(func(s *Status) {
		s.Passes++
		s.LastError = nil
		s.Current = ""
	})

	result, err := r.reconcile(ctx)
	if err != nil {
		r.logger.Warn("reconcile pass failed", "error", err)
		r.update(func(s *Status) {
			s.Phase = PhaseFailed
			s.LastError = err
		})
		return result, err
	}

	phase := PhaseIdle
	if result.Outcome == OutcomeCovered {
		phase = PhaseConverged
		r.convergedOnce.Do(func() { close(r.converged) })
	}
	r.update(func(s *Status) {
		s.Phase = phase
		s.Current = ""
		s.Outcome = result.Outcome
	})
	r.logger.Info("reconcile pass finished",
		"outcome", result.Outcome.String(),
		"missing", len(result.Diff.Missing),
		"corrected", len(result.Corrected),
	)
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context) (Result, error) {
	if !r.identityKnown {
		r.enter(PhaseFetchIdentity, "")
		var identity string
		err := r.call(ctx, func(ctx context.Context) (err error) {
			identity, err = r.session.ControllerID(ctx)
			return err
		})
		if err != nil {
			return Result{}, &StepError{Step: PhaseFetchIdentity, Err: err}
		}
		r.identity, r.identityKnown = identity, true
		r.update(func(s *Status) { s.ControllerID = identity })
	}

	if !r.desiredKnown {
		r.enter(PhaseFetchDesired, "")
		var ids []governance.ID
		err := r.call(ctx, func(ctx context.Context) (err error) {
			ids, err = r.session.ConfiguredGovernanceIDs(ctx)
			return err
		})
		if err != nil {
			return Result{}, &StepError{Step: PhaseFetchDesired, Err: err}
		}
		r.desired, r.desiredKnown = governance.NewSet(ids...), true
		sorted := r.desired.Sorted()
		r.update(func(s *Status) { s.Desired = sorted })
	}

	r.enter(PhaseFetchActual, "")
	actual, err := r.fetchActual(ctx)
	if err != nil {
		return Result{}, &StepError{Step: PhaseFetchActual, Err: err}
	}

	result := Result{
		ControllerID: r.identity,
		Desired:      r.desired.Sorted(),
		Corrected:    []governance.ID{},
	}
	diff := r.diff(actual)

	if len(diff.Missing) > 0 {
		r.enter(PhaseReconciling, "")
	}
	for _, id := range diff.Missing {
		if actual.Contains(id) {
			continue
		}

		r.enter(PhaseAuthorize, id)
		if err := r.call(ctx, func(ctx context.Context) error {
			return r.session.PutAuthorization(ctx, id)
		}); err != nil {
			return result, &StepError{Step: PhaseAuthorize, Governance: id, Err: err}
		}

		r.enter(PhaseUpdate, id)
		if err := r.call(ctx, func(ctx context.Context) error {
			return r.session.UpdateGovernance(ctx, id)
		}); err != nil {
			return result, &StepError{Step: PhaseUpdate, Governance: id, Err: err}
		}
		result.Corrected = append(result.Corrected, id)

		r.enter(PhaseReverify, id)
		actual, err = r.fetchActual(ctx)
		if err != nil {
			return result, &StepError{Step: PhaseReverify, Governance: id, Err: err}
		}
		r.diff(actual)
	}

	result.Actual = actual.Sorted()
	result.Diff = governance.Compare(r.desired, actual)
	result.Outcome = grade(result.Diff, actual)
	return result, nil
}

func (r *Reconciler) fetchActual(ctx context.Context) (governance.Set, error) {
	var ids []governance.ID
	err := r.call(ctx, func(ctx context.Context) (err error) {
		ids, err = r.session.GovernanceIDs(ctx)
		return err
	})
	if err != nil {
		return governance.Set{}, err
	}
	return governance.NewSet(ids...), nil
}

// diff publishes the comparison of actual against the cached desired
// set.
func (r *Reconciler) diff(actual governance.Set) governance.Diff {
	diff := governance.Compare(r.desired, actual)
	sorted := actual.Sorted()
	r.update(func(s *Status) {
		s.Phase = PhaseDiff
		s.Actual = sorted
		s.Diff = diff
	})
	return diff
}

// call runs one bridge call under CallTimeout, retrying retryable
// failures with exponential backoff.
func (r *Reconciler) call(ctx context.Context, operation func(context.Context) error) error {
	backoff := r.options.InitialBackoff
	for attempt := 0; ; attempt++ {
		err := r.attempt(ctx, operation)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !bridge.Retryable(err) || attempt >= r.options.RetryAttempts {
			return err
		}

		r.logger.Warn("bridge call failed, retrying",
			"phase", r.Status().Phase.String(),
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-r.clock.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
		if r.options.MaxBackoff > 0 && backoff > r.options.MaxBackoff {
			backoff = r.options.MaxBackoff
		}
	}
}

func (r *Reconciler) attempt(ctx context.Context, operation func(context.Context) error) error {
	if r.options.CallTimeout <= 0 {
		return operation(ctx)
	}
	callCtx, cancel := clock.WithTimeout(ctx, r.clock, r.options.CallTimeout)
	defer cancel()

	err := operation(callCtx)
	if err != nil && ctx.Err() == nil && clock.TimedOut(callCtx) && !bridge.Retryable(err) {
		// A session that returns the raw context error still timed
		// out from the caller's point of view.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = &bridge.Error{Code: bridge.CodeUnavailable, Message: "bridge did not answer in time", Err: err}
		}
	}
	return err
}

func (r *Reconciler) enter(phase Phase, id governance.ID) {
	r.update(func(s *Status) {
		s.Phase = phase
		s.Current = id
	})
}

// update applies change under the lock and notifies the observer
// outside it.
func (r *Reconciler) update(change func(*Status)) {
	r.mu.Lock()
	change(&r.status)
	snapshot := r.status.clone()
	r.mu.Unlock()

	if r.options.Observer != nil {
		r.options.Observer(snapshot)
	}
}
