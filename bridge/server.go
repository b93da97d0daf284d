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
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/onboard/lib/codec"
	"github.com/bureau-foundation/onboard/lib/governance"
	"github.com/bureau-foundation/onboard/lib/secret"
)

// readTimeout is how long the server waits for a request after a
// client connects.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response.
const writeTimeout = 10 * time.Second

// handlerFunc processes one decoded request. raw is the full CBOR
// request; handlers decode their own fields from it.
type handlerFunc func(ctx context.Context, session Session, raw []byte) (any, error)

// Server exposes a Connector on a Unix socket. Each connection
// carries exactly one request and one response.
//
// The first successful initialize creates the session and returns its
// id. Every other action must name that id.
type Server struct {
	socketPath string
	connector  Connector
	logger     *slog.Logger

	// LegacyErrors omits the code field from failure responses, the
	// way older nodes reply. Clients fall back to message matching.
	LegacyErrors bool

	handlers map[string]handlerFunc

	mu       sync.Mutex
	sessions map[string]Session

	activeConnections sync.WaitGroup
}

// NewServer returns a server for connector on socketPath.
func NewServer(socketPath string, connector Connector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		socketPath: socketPath,
		connector:  connector,
		logger:     logger,
		sessions:   make(map[string]Session),
	}
	s.handlers = map[string]handlerFunc{
		ActionControllerID:            s.handleControllerID,
		ActionAuthorizedSubjects:      s.handleAuthorizedSubjects,
		ActionPutAuth:                 s.handlePutAuth,
		ActionGovernanceIDs:           s.handleGovernanceIDs,
		ActionConfiguredGovernanceIDs: s.handleConfiguredGovernanceIDs,
		ActionUpdateGovernance:        s.handleUpdateGovernance,
		ActionStop:                    s.handleStop,
	}
	return s
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests. A stale socket file is removed first; the socket
// file is removed on return. ready, if non-nil, is closed once the
// listener is accepting.
func (s *Server) Serve(ctx context.Context, ready chan<- struct{}) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("bridge server listening", "path", s.socketPath)
	if ready != nil {
		close(ready)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeFailure(conn, Errorf(CodeInvalidRequest, "invalid request: %v", err))
		return
	}

	var header requestHeader
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeFailure(conn, Errorf(CodeInvalidRequest, "invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeFailure(conn, Errorf(CodeInvalidRequest, "missing required field: action"))
		return
	}

	result, err := s.dispatch(ctx, header, raw)
	if err != nil {
		s.logger.Debug("bridge action failed",
			"action", header.Action,
			"request_id", header.RequestID,
			"code", string(CodeOf(err)),
			"error", err,
		)
		s.writeFailure(conn, err)
		return
	}
	s.writeSuccess(conn, result)
}

func (s *Server) dispatch(ctx context.Context, header requestHeader, raw []byte) (any, error) {
	if header.Action == ActionInitialize {
		return s.handleInitialize(ctx, raw)
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return nil, Errorf(CodeInvalidRequest, "unknown action %q", header.Action)
	}

	s.mu.Lock()
	session, exists := s.sessions[header.Session]
	s.mu.Unlock()
	if header.Session == "" || !exists {
		return nil, Errorf(CodeNotInitialized, "no active session %q", header.Session)
	}
	return handler(ctx, session, raw)
}

func (s *Server) handleInitialize(ctx context.Context, raw []byte) (any, error) {
	var request initializeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, Errorf(CodeInvalidRequest, "invalid initialize request: %v", err)
	}
	if len(request.Password) == 0 {
		return nil, Errorf(CodeInvalidRequest, "missing required field: password")
	}
	if request.PrimaryConfigPath == "" || request.NodeConfigPath == "" || request.SecureStorePath == "" {
		secret.Zero(request.Password)
		return nil, Errorf(CodeInvalidRequest, "initialize requires primary_config_path, node_config_path and secure_store_path")
	}

	password, err := secret.NewFromBytes(request.Password)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "protecting password", Err: err}
	}
	defer password.Close()

	session, err := s.connector.Initialize(ctx, InitRequest{
		Password:          password,
		PrimaryConfigPath: request.PrimaryConfigPath,
		NodeConfigPath:    request.NodeConfigPath,
		SecureStorePath:   request.SecureStorePath,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info("bridge session initialized", "session", session.ID())
	return initializeResponse{Session: session.ID()}, nil
}

func decodeGovernance(raw []byte) (governance.ID, error) {
	var request governanceRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return "", Errorf(CodeInvalidRequest, "invalid request: %v", err)
	}
	if request.GovernanceID == "" {
		return "", Errorf(CodeInvalidRequest, "missing required field: governance_id")
	}
	return request.GovernanceID, nil
}

func (s *Server) handleControllerID(ctx context.Context, session Session, _ []byte) (any, error) {
	id, err := session.ControllerID(ctx)
	if err != nil {
		return nil, err
	}
	return controllerResponse{ControllerID: id}, nil
}

func (s *Server) handleAuthorizedSubjects(ctx context.Context, session Session, raw []byte) (any, error) {
	id, err := decodeGovernance(raw)
	if err != nil {
		return nil, err
	}
	subjects, err := session.AuthorizedSubjects(ctx, id)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []string{}
	}
	return subjectsResponse{Subjects: subjects}, nil
}

func (s *Server) handlePutAuth(ctx context.Context, session Session, raw []byte) (any, error) {
	id, err := decodeGovernance(raw)
	if err != nil {
		return nil, err
	}
	return nil, session.PutAuthorization(ctx, id)
}

func (s *Server) handleGovernanceIDs(ctx context.Context, session Session, _ []byte) (any, error) {
	ids, err := session.GovernanceIDs(ctx)
	if err != nil {
		return nil, err
	}
	return governanceListResponse{GovernanceIDs: nonNil(ids)}, nil
}

func (s *Server) handleConfiguredGovernanceIDs(ctx context.Context, session Session, _ []byte) (any, error) {
	ids, err := session.ConfiguredGovernanceIDs(ctx)
	if err != nil {
		return nil, err
	}
	return governanceListResponse{GovernanceIDs: nonNil(ids)}, nil
}

func (s *Server) handleUpdateGovernance(ctx context.Context, session Session, raw []byte) (any, error) {
	id, err := decodeGovernance(raw)
	if err != nil {
		return nil, err
	}
	return nil, session.UpdateGovernance(ctx, id)
}

func (s *Server) handleStop(ctx context.Context, session Session, _ []byte) (any, error) {
	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()
	return nil, session.Stop(ctx)
}

func nonNil(ids []governance.ID) []governance.ID {
	if ids == nil {
		return []governance.ID{}
	}
	return ids
}

// writeFailure sends {ok: false, code, error}. Errors without a bridge
// code are reported as internal.
func (s *Server) writeFailure(conn net.Conn, err error) {
	reply := response{OK: false, Code: CodeOf(err), Error: err.Error()}
	var bridgeError *Error
	if errors.As(err, &bridgeError) {
		reply.Error = bridgeError.Message
	}
	if s.LegacyErrors {
		reply.Code = ""
	}
	s.write(conn, reply)
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	reply := response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeFailure(conn, &Error{Code: CodeInternal, Message: "marshaling response", Err: err})
			return
		}
		reply.Data = data
	}
	s.write(conn, reply)
}

// write failures are logged at debug: the connection is closing
// regardless.
func (s *Server) write(conn net.Conn, reply response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
