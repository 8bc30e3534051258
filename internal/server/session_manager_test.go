package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ mcpserver.SessionIdManager = (*SessionIDManager)(nil)

func newTestSessionManager(t *testing.T, timeout time.Duration) (*SessionIDManager, *time.Time) {
	t.Helper()
	m := NewSessionIDManagerWithLogger(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(m.Stop)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestSessionIDManager_GenerateAndValidate(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	id := m.Generate()
	assert.True(t, strings.HasPrefix(id, sessionIDPrefix))
	assert.NotEqual(t, id, m.Generate())
	assert.Equal(t, 2, m.ActiveSessions())

	terminated, err := m.Validate(id)
	require.NoError(t, err)
	assert.False(t, terminated)
}

func TestSessionIDManager_ValidateRejectsUnknownIDs(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	tests := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "wrong prefix", id: "mcp-session-6f1c1a0e-6a53-4c8e-9d0e-2b0c1f0f4a11"},
		{name: "not a uuid", id: sessionIDPrefix + "abc"},
		{name: "never issued", id: sessionIDPrefix + "6f1c1a0e-6a53-4c8e-9d0e-2b0c1f0f4a11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terminated, err := m.Validate(tt.id)
			assert.Error(t, err)
			assert.False(t, terminated)
		})
	}
}

func TestSessionIDManager_Terminate(t *testing.T) {
	m, _ := newTestSessionManager(t, time.Hour)

	id := m.Generate()
	notAllowed, err := m.Terminate(id)
	require.NoError(t, err)
	assert.False(t, notAllowed)
	assert.Equal(t, 0, m.ActiveSessions())

	terminated, err := m.Validate(id)
	require.NoError(t, err)
	assert.True(t, terminated)

	_, err = m.Terminate("bogus")
	assert.Error(t, err)
}

func TestSessionIDManager_IdleExpiry(t *testing.T) {
	m, now := newTestSessionManager(t, time.Hour)

	idle := m.Generate()
	busy := m.Generate()

	*now = now.Add(40 * time.Minute)
	terminated, err := m.Validate(busy)
	require.NoError(t, err)
	require.False(t, terminated)

	*now = now.Add(40 * time.Minute)
	terminated, err = m.Validate(idle)
	require.NoError(t, err)
	assert.True(t, terminated, "idle session expires")

	terminated, err = m.Validate(busy)
	require.NoError(t, err)
	assert.False(t, terminated, "validation refreshes the idle timer")
	assert.Equal(t, 1, m.ActiveSessions())
}

func TestSessionIDManager_Expire(t *testing.T) {
	m, now := newTestSessionManager(t, time.Hour)

	id := m.Generate()
	*now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.expire())
	assert.Equal(t, 0, m.ActiveSessions())

	terminated, err := m.Validate(id)
	require.NoError(t, err)
	assert.True(t, terminated)

	// Terminated IDs are forgotten after another timeout period
	*now = now.Add(2 * time.Hour)
	assert.Equal(t, 0, m.expire())
	_, err = m.Validate(id)
	assert.Error(t, err)
}

func TestSessionIDManager_StopIsIdempotent(t *testing.T) {
	m := NewSessionIDManager()
	m.Stop()
	m.Stop()
}

func TestHTTPServer_SessionLifecycle(t *testing.T) {
	health := NewHealthChecker(nil, "test")
	s, err := NewHTTPServer(newMCPServer(), HTTPServerConfig{
		Addr:   ":0",
		Health: health,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(s.Sessions().Stop)

	initBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
	req := httptest.NewRequest(http.MethodPost, MCPEndpointPath, strings.NewReader(initBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sessionID := rec.Header().Get(mcpserver.HeaderKeySessionID)
	require.True(t, strings.HasPrefix(sessionID, sessionIDPrefix))
	assert.Equal(t, 1, s.Sessions().ActiveSessions())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
	assert.Contains(t, rec.Body.String(), `"activeSessions":1`)

	ping := func(id string) int {
		req := httptest.NewRequest(http.MethodPost, MCPEndpointPath, strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"ping"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(mcpserver.HeaderKeySessionID, id)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, ping("not-a-session"))

	_, err = s.Sessions().Terminate(sessionID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, ping(sessionID))
}
