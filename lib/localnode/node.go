// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localnode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/governance"
)

// Options configures a Node.
type Options struct {
	// GovernancePath is the gjson path of the governance list in the
	// primary configuration. Empty means DefaultGovernancePath.
	GovernancePath string

	// Hold lists governances whose updates are accepted but never
	// land, as when the network has not delivered them yet.
	Hold []governance.ID

	// Preloaded lists governances the node recognizes from the start.
	Preloaded []governance.ID

	Logger *slog.Logger
}

// Node is a bridge.Connector. It initializes at most once.
type Node struct {
	options Options
	logger  *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// New returns an uninitialized node.
func New(options Options) *Node {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{options: options, logger: logger}
}

// Initialize implements bridge.Connector. Key material is created on
// first use and must be opened with the same password afterwards. A
// failed attempt leaves the node uninitialized.
func (n *Node) Initialize(ctx context.Context, request bridge.InitRequest) (bridge.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.initialized {
		return nil, bridge.Errorf(bridge.CodeAlreadyInitialized, "could not initialize globally")
	}
	if request.Password == nil || request.Password.Len() == 0 {
		return nil, bridge.Errorf(bridge.CodeInvalidRequest, "password is required")
	}

	primary, err := os.ReadFile(request.PrimaryConfigPath)
	if err != nil {
		return nil, readError("primary configuration", err)
	}
	if _, err := os.Stat(request.NodeConfigPath); err != nil {
		return nil, readError("node configuration", err)
	}

	desired, err := DesiredGovernances(request.PrimaryConfigPath, primary, n.options.GovernancePath)
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInvalidRequest, Message: "primary configuration: " + err.Error(), Err: err}
	}

	identity, err := openIdentity(KeyPath(request.SecureStorePath), request.Password)
	if err != nil {
		return nil, err
	}

	session := &session{
		id:           uuid.NewString(),
		controllerID: controllerID(identity),
		desired:      desired,
		authorized:   make(map[governance.ID]bool),
		actual:       governance.NewSet(n.options.Preloaded...),
		held:         governance.NewSet(n.options.Hold...),
		logger:       n.logger,
	}
	n.initialized = true

	n.logger.Info("node initialized",
		"session", session.id,
		"controller_id", session.controllerID,
		"desired", len(desired),
	)
	return session, nil
}

func readError(what string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return &bridge.Error{Code: bridge.CodeInvalidRequest, Message: what + " not found", Err: err}
	}
	return &bridge.Error{Code: bridge.CodeInternal, Message: "reading " + what, Err: err}
}

type session struct {
	id           string
	controllerID string
	desired      []governance.ID
	logger       *slog.Logger

	mu         sync.Mutex
	stopped    bool
	authorized map[governance.ID]bool
	actual     governance.Set
	held       governance.Set
}

// enter checks ctx and the session state and takes the lock. Callers
// must unlock when it returns nil.
func (s *session) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return bridge.Errorf(bridge.CodeNotInitialized, "session %s is stopped", s.id)
	}
	return nil
}

func (s *session) ID() string { return s.id }

func (s *session) ControllerID(ctx context.Context) (string, error) {
	if err := s.enter(ctx); err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	return s.controllerID, nil
}

func (s *session) AuthorizedSubjects(ctx context.Context, id governance.ID) ([]string, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if s.authorized[id] {
		return []string{s.controllerID}, nil
	}
	return []string{}, nil
}

func (s *session) PutAuthorization(ctx context.Context, id governance.ID) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.authorized[id] = true
	s.logger.Debug("governance authorized", "governance", id.String())
	return nil
}

func (s *session) GovernanceIDs(ctx context.Context) ([]governance.ID, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.actual.Sorted(), nil
}

func (s *session) ConfiguredGovernanceIDs(ctx context.Context) ([]governance.ID, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return slices.Clone(s.desired), nil
}

func (s *session) UpdateGovernance(ctx context.Context, id governance.ID) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if !s.authorized[id] {
		return bridge.Errorf(bridge.CodeNotAuthorized, "governance %s is not authorized", id)
	}
	if s.held.Contains(id) {
		s.logger.Debug("governance update held", "governance", id.String())
		return nil
	}
	s.actual.Add(id)
	s.logger.Debug("governance updated", "governance", id.String())
	return nil
}

func (s *session) Stop(ctx context.Context) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.stopped = true
	s.logger.Info("node session stopped", "session", s.id)
	return nil
}
