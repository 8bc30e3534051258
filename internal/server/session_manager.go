package server

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session defaults for the streamable HTTP transport.
const (
	// DefaultSessionTimeout is how long an idle session stays valid.
	DefaultSessionTimeout = 24 * time.Hour

	// sessionIDPrefix marks IDs issued by SessionIDManager.
	sessionIDPrefix = "batchfs-session-"
)

// sessionInfo tracks session metadata for cleanup
type sessionInfo struct {
	created    time.Time
	lastAccess time.Time
}

// SessionIDManager issues and tracks MCP session IDs for the streamable HTTP
// transport. Sessions idle for longer than the timeout are reported as
// terminated, so clients re-initialize instead of reusing stale state.
//
// It satisfies mcp-go's server.SessionIdManager.
type SessionIDManager struct {
	sessions       map[string]*sessionInfo
	terminated     map[string]time.Time
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// NewSessionIDManager creates a new session ID manager with default logger
func NewSessionIDManager() *SessionIDManager {
	return NewSessionIDManagerWithLogger(DefaultSessionTimeout, slog.Default())
}

// NewSessionIDManagerWithLogger creates a new session ID manager with custom timeout and logger
func NewSessionIDManagerWithLogger(timeout time.Duration, logger *slog.Logger) *SessionIDManager {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}

	interval := timeout / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}

	m := &SessionIDManager{
		sessions:       make(map[string]*sessionInfo),
		terminated:     make(map[string]time.Time),
		cleanupTicker:  time.NewTicker(interval),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: timeout,
		now:            time.Now,
		logger:         logger,
	}

	go m.cleanupLoop()

	return m
}

// Generate issues a new session ID.
func (m *SessionIDManager) Generate() string {
	id := sessionIDPrefix + uuid.NewString()
	now := m.now()

	m.mu.Lock()
	m.sessions[id] = &sessionInfo{created: now, lastAccess: now}
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", id)
	return id
}

// Validate reports whether sessionID belongs to a live session and refreshes
// its idle timer. Expired and terminated sessions return isTerminated.
func (m *SessionIDManager) Validate(sessionID string) (isTerminated bool, err error) {
	if !validSessionID(sessionID) {
		return false, fmt.Errorf("invalid session id: %q", sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.terminated[sessionID]; ok {
		return true, nil
	}
	info, ok := m.sessions[sessionID]
	if !ok {
		return false, fmt.Errorf("session not found: %s", sessionID)
	}

	now := m.now()
	if now.Sub(info.lastAccess) > m.sessionTimeout {
		delete(m.sessions, sessionID)
		m.terminated[sessionID] = now
		return true, nil
	}
	info.lastAccess = now
	return false, nil
}

// Terminate ends a session at the client's request.
func (m *SessionIDManager) Terminate(sessionID string) (isNotAllowed bool, err error) {
	if !validSessionID(sessionID) {
		return false, fmt.Errorf("invalid session id: %q", sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		m.terminated[sessionID] = m.now()
	}
	return false, nil
}

// ActiveSessions returns the number of live sessions.
func (m *SessionIDManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// expire drops idle sessions and forgets terminated IDs older than the
// timeout. It returns the number of sessions expired.
func (m *SessionIDManager) expire() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for id, info := range m.sessions {
		if now.Sub(info.lastAccess) > m.sessionTimeout {
			delete(m.sessions, id)
			m.terminated[id] = now
			expired++
		}
	}
	for id, at := range m.terminated {
		if now.Sub(at) > m.sessionTimeout {
			delete(m.terminated, id)
		}
	}
	return expired
}

func (m *SessionIDManager) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.expire(); n > 0 {
				m.logger.Info("cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine
func (m *SessionIDManager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}

func validSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, sessionIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
