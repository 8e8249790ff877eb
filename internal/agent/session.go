// File: internal/agent/session.go
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionStatus is the lifecycle state of one managed run.
type SessionStatus string

const (
	StatusRunning  SessionStatus = "running"
	StatusFinished SessionStatus = "finished"
	StatusFailed   SessionStatus = "failed"
	StatusStopped  SessionStatus = "stopped"
)

// Session is one managed run of a controller.
type Session struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status SessionStatus
	result Result
	err    error
}

// Status returns the current lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the run result and error; valid once the session left the
// running state.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Wait blocks until the run ends and returns its result.
func (s *Session) Wait() (Result, error) {
	<-s.done
	return s.Result()
}

// SessionManager tracks concurrent controller runs. Each run owns its own
// driver and policy state; the manager only handles lifecycle.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewSessionManager builds an empty manager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger.Named("session_manager"),
	}
}

// Start launches the controller in the background and returns its session
// handle immediately.
func (m *SessionManager) Start(ctx context.Context, controller *Controller) *Session {
	runCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
		status: StatusRunning,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.logger.Info("Session started", zap.String("session_id", session.ID))

	go func() {
		defer close(session.done)
		result, err := controller.Run(runCtx)

		session.mu.Lock()
		session.result = result
		session.err = err
		switch {
		case err == nil:
			session.status = StatusFinished
		case runCtx.Err() != nil:
			session.status = StatusStopped
		default:
			session.status = StatusFailed
		}
		status := session.status
		session.mu.Unlock()

		m.logger.Info("Session ended",
			zap.String("session_id", session.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}()

	return session
}

// Get looks a session up by id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("agent: unknown session %q", id)
	}
	return session, nil
}

// List returns all known session ids, sorted for stable output.
func (m *SessionManager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop cancels a running session and waits for its loop to exit.
func (m *SessionManager) Stop(id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	session.cancel()
	<-session.done
	return nil
}

// CloseAll stops every session. Used on process shutdown.
func (m *SessionManager) CloseAll() {
	for _, id := range m.List() {
		if err := m.Stop(id); err != nil {
			m.logger.Warn("Failed to stop session", zap.String("session_id", id), zap.Error(err))
		}
	}
}
