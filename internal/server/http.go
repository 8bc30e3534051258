package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/batchfs/internal/instrumentation"
)

// MCPEndpointPath is where the streamable HTTP transport is mounted.
const MCPEndpointPath = "/mcp"

// HTTPServerConfig configures the streamable HTTP transport.
type HTTPServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// DisableStreaming turns off SSE streaming of responses.
	DisableStreaming bool

	// Health serves the health check endpoints. Nil skips them.
	Health *HealthChecker

	// Metrics records HTTP request metrics. May be nil.
	Metrics *instrumentation.Metrics

	// SessionTimeout expires idle MCP sessions. Zero uses DefaultSessionTimeout.
	SessionTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// HTTPServer serves an MCP server over streamable HTTP.
type HTTPServer struct {
	config   HTTPServerConfig
	handler  http.Handler
	sessions *SessionIDManager

	mu         sync.Mutex
	httpServer *http.Server
	listenAddr string
}

// NewHTTPServer mounts mcpSrv at /mcp next to the health endpoints.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, config HTTPServerConfig) (*HTTPServer, error) {
	if mcpSrv == nil {
		return nil, fmt.Errorf("MCP server is required")
	}
	if (config.TLSCertFile == "") != (config.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS certificate and key files are required for HTTPS")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := NewSessionIDManagerWithLogger(config.SessionTimeout, logger)

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithDisableStreaming(config.DisableStreaming),
		mcpserver.WithSessionIdManager(sessions),
	)

	mux := http.NewServeMux()
	mux.Handle(MCPEndpointPath, streamable)
	if config.Health != nil {
		config.Health.SetSessionCounter(sessions.ActiveSessions)
		config.Health.RegisterHealthEndpoints(mux)
	}

	return &HTTPServer{
		config:   config,
		handler:  requestMetricsMiddleware(config.Metrics, mux),
		sessions: sessions,
	}, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// TLSEnabled reports whether the server serves HTTPS.
func (s *HTTPServer) TLSEnabled() bool {
	return s.config.TLSCertFile != "" && s.config.TLSKeyFile != ""
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.listenAddr = ln.Addr().String()
	s.mu.Unlock()

	slog.Info("starting MCP HTTP server",
		"addr", s.listenAddr,
		"endpoint", MCPEndpointPath,
		"tls", s.TLSEnabled())

	if s.TLSEnabled() {
		err = srv.ServeTLS(ln, s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Sessions returns the session ID manager used by the MCP endpoint.
func (s *HTTPServer) Sessions() *SessionIDManager {
	return s.sessions
}

// Shutdown gracefully stops the server and its session cleanup.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.sessions.Stop()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ListenAddr returns the bound address once the server has started.
func (s *HTTPServer) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestMetricsMiddleware(metrics *instrumentation.Metrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
