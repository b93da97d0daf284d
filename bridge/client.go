// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/onboard/lib/codec"
	"github.com/bureau-foundation/onboard/lib/governance"
)

// dialTimeout covers only the connect phase of a call.
const dialTimeout = 5 * time.Second

// Client is a Connector that talks to a node daemon over a Unix
// socket. Every call opens its own connection and is bounded by the
// caller's context; callers attach deadlines.
//
// A Client holds at most one active session. Initialize while a
// session is active fails locally with CodeAlreadyInitialized.
type Client struct {
	socketPath string
	logger     *slog.Logger

	mu     sync.Mutex
	active *clientSession

	// initializing reserves the session slot while initialize is in
	// flight.
	initializing bool
}

// NewClient returns a client for the daemon listening on socketPath.
func NewClient(socketPath string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{socketPath: socketPath, logger: logger}
}

// Initialize implements Connector.
func (c *Client) Initialize(ctx context.Context, request InitRequest) (Session, error) {
	if request.Password == nil || request.Password.Len() == 0 {
		return nil, &Error{Code: CodeInvalidRequest, Action: ActionInitialize, Message: "password is required"}
	}

	c.mu.Lock()
	if c.active != nil || c.initializing {
		c.mu.Unlock()
		return nil, &Error{Code: CodeAlreadyInitialized, Action: ActionInitialize, Message: "a session is already active on this client"}
	}
	c.initializing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	// The password slice is referenced, not copied, by the request
	// map; the encoder writes it straight from protected memory.
	fields := map[string]any{
		"password":            request.Password.Bytes(),
		"primary_config_path": request.PrimaryConfigPath,
		"node_config_path":    request.NodeConfigPath,
		"secure_store_path":   request.SecureStorePath,
	}
	var result initializeResponse
	if err := c.call(ctx, ActionInitialize, "", fields, &result); err != nil {
		return nil, err
	}
	if result.Session == "" {
		return nil, &Error{Code: CodeInternal, Action: ActionInitialize, Message: "bridge returned an empty session id"}
	}

	session := &clientSession{client: c, id: result.Session}
	c.mu.Lock()
	c.active = session
	c.mu.Unlock()

	c.logger.Info("bridge session started", "session", session.id, "socket", c.socketPath)
	return session, nil
}

func (c *Client) release(session *clientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == session {
		c.active = nil
	}
}

// call performs one request/response exchange.
func (c *Client) call(ctx context.Context, action, session string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		request[key] = value
	}
	requestID := uuid.NewString()
	request["action"] = action
	request["request_id"] = requestID
	if session != "" {
		request["session"] = session
	}

	reply, err := c.send(ctx, request)
	if err != nil {
		return c.transportError(ctx, action, err)
	}

	if !reply.OK {
		code := reply.Code
		if code == "" {
			code = ClassifyMessage(reply.Error)
		}
		c.logger.Debug("bridge call failed",
			"action", action,
			"request_id", requestID,
			"code", string(code),
		)
		return &Error{Code: code, Action: action, Message: reply.Error}
	}

	if result != nil && len(reply.Data) > 0 {
		if err := codec.Unmarshal(reply.Data, result); err != nil {
			return &Error{Code: CodeInternal, Action: action, Message: "undecodable response data", Err: err}
		}
	}
	return nil
}

// transportError classifies a failure to complete the exchange. A
// caller cancellation is returned as the context error so it is never
// mistaken for an unavailable node.
func (c *Client) transportError(ctx context.Context, action string, err error) error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, context.DeadlineExceeded) {
			return &Error{Code: CodeUnavailable, Action: action, Message: "bridge did not answer in time", Err: cause}
		}
		return fmt.Errorf("bridge %s: %w", action, cause)
	}
	return &Error{Code: CodeUnavailable, Action: action, Message: "cannot reach bridge at " + c.socketPath, Err: err}
}

func (c *Client) send(ctx context.Context, request map[string]any) (*response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	// Unblock reads and writes as soon as ctx ends.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var reply response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &reply, nil
}

type clientSession struct {
	client *Client
	id     string
}

func (s *clientSession) ID() string { return s.id }

func (s *clientSession) ControllerID(ctx context.Context) (string, error) {
	var result controllerResponse
	if err := s.client.call(ctx, ActionControllerID, s.id, nil, &result); err != nil {
		return "", err
	}
	return result.ControllerID, nil
}

func (s *clientSession) AuthorizedSubjects(ctx context.Context, id governance.ID) ([]string, error) {
	var result subjectsResponse
	if err := s.client.call(ctx, ActionAuthorizedSubjects, s.id, governanceFields(id), &result); err != nil {
		return nil, err
	}
	return result.Subjects, nil
}

func (s *clientSession) PutAuthorization(ctx context.Context, id governance.ID) error {
	return s.client.call(ctx, ActionPutAuth, s.id, governanceFields(id), nil)
}

func (s *clientSession) GovernanceIDs(ctx context.Context) ([]governance.ID, error) {
	var result governanceListResponse
	if err := s.client.call(ctx, ActionGovernanceIDs, s.id, nil, &result); err != nil {
		return nil, err
	}
	return result.GovernanceIDs, nil
}

func (s *clientSession) ConfiguredGovernanceIDs(ctx context.Context) ([]governance.ID, error) {
	var result governanceListResponse
	if err := s.client.call(ctx, ActionConfiguredGovernanceIDs, s.id, nil, &result); err != nil {
		return nil, err
	}
	return result.GovernanceIDs, nil
}

func (s *clientSession) UpdateGovernance(ctx context.Context, id governance.ID) error {
	return s.client.call(ctx, ActionUpdateGovernance, s.id, governanceFields(id), nil)
}

// Stop releases the session locally even when the daemon cannot be
// reached, so a new Initialize is possible.
func (s *clientSession) Stop(ctx context.Context) error {
	defer s.client.release(s)
	return s.client.call(ctx, ActionStop, s.id, nil, nil)
}

func governanceFields(id governance.ID) map[string]any {
	return map[string]any{"governance_id": string(id)}
}
