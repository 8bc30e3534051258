package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/batchfs/internal/instrumentation"
	"github.com/teemow/batchfs/internal/logging"
	"github.com/teemow/batchfs/internal/server"
)

// Supported transports.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

// MetricsConfig holds the dedicated metrics server settings.
type MetricsConfig struct {
	// Enabled starts the metrics server (HTTP transport only).
	Enabled bool

	// Addr is the metrics server listen address.
	Addr string
}

// HTTPConfig holds the streamable HTTP transport settings.
type HTTPConfig struct {
	Addr             string
	DisableStreaming bool
	TLSCertFile      string
	TLSKeyFile       string
}

// serveOptions is everything runServe needs.
type serveOptions struct {
	Transport string
	Debug     bool
	Engine    engineSettings
	HTTP      HTTPConfig
	Metrics   MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		disableStreaming bool
		engine           engineFlags
		// TLS/HTTPS support
		tlsCertFile string
		tlsKeyFile  string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the
batch_file_operations tool to AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp, with /healthz,
    /readyz and /healthz/detailed probes

Filesystem:
  --root confines every operation path to a directory (BATCHFS_ROOT).
  --read-only accepts read operations only (BATCHFS_READ_ONLY).
  Batch option defaults come from the [defaults] table of the config file.

Logs are written to stderr so the stdio transport stays clean.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := engine.resolve(cmd)
			if err != nil {
				return err
			}

			// Load TLS paths from environment if not provided via flags
			if tlsCertFile == "" {
				tlsCertFile = os.Getenv("TLS_CERT_FILE")
			}
			if tlsKeyFile == "" {
				tlsKeyFile = os.Getenv("TLS_KEY_FILE")
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			loadMetricsEnvVars(cmd, &metricsConfig)

			return runServe(cmd.Context(), serveOptions{
				Transport: transport,
				Debug:     debugMode,
				Engine:    settings,
				HTTP: HTTPConfig{
					Addr:             httpAddr,
					DisableStreaming: disableStreaming,
					TLSCertFile:      tlsCertFile,
					TLSKeyFile:       tlsKeyFile,
				},
				Metrics: metricsConfig,
			})
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	engine.register(cmd)

	// TLS/HTTPS flags
	cmd.Flags().StringVar(&tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). If provided with --tls-key-file, enables HTTPS. Can also use TLS_CERT_FILE env var.")
	cmd.Flags().StringVar(&tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). If provided with --tls-cert-file, enables HTTPS. Can also use TLS_KEY_FILE env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadMetricsEnvVars applies METRICS_ENABLED and METRICS_ADDR to flags the
// user did not set.
func loadMetricsEnvVars(cmd *cobra.Command, config *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") {
		switch os.Getenv("METRICS_ENABLED") {
		case "true":
			config.Enabled = true
		case "false":
			config.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			config.Addr = addr
		}
	}
}

// validateServeOptions rejects combinations that cannot work before any
// resource is created.
func validateServeOptions(opts serveOptions, instrConfig instrumentation.Config) error {
	switch opts.Transport {
	case transportStdio:
		if instrConfig.Enabled && (instrConfig.MetricsExporter == "stdout" || instrConfig.TracingExporter == "stdout") {
			return fmt.Errorf("stdout exporters cannot be used with the stdio transport")
		}
	case transportStreamableHTTP:
		if (opts.HTTP.TLSCertFile == "") != (opts.HTTP.TLSKeyFile == "") {
			return fmt.Errorf("both --tls-cert-file and --tls-key-file are required for HTTPS")
		}
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.Transport, transportStdio, transportStreamableHTTP)
	}
	return nil
}

func runServe(ctx context.Context, opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	if err := validateServeOptions(opts, instrConfig); err != nil {
		return err
	}

	logger := logging.NewLogger(os.Stderr, opts.Debug)
	slog.SetDefault(logger)

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.Transport != transportStdio && opts.Metrics.Enabled && provider.Enabled() && provider.PrometheusHandler() != nil {
		metricsServer, err = startMetricsServer(provider, opts.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	serverContext, err := server.NewServerContext(shutdownCtx, server.Config{
		Root:     opts.Engine.Root,
		ReadOnly: opts.Engine.ReadOnly,
		Defaults: opts.Engine.Defaults,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("error during server context shutdown", logging.Err(err))
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	root := opts.Engine.Root
	if root == "" {
		root = "(unrestricted)"
	}
	logger.Info("starting batchfs MCP server",
		"transport", opts.Transport,
		"version", version,
		"root", root,
		"read_only", opts.Engine.ReadOnly)

	switch opts.Transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	default:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, opts.HTTP, provider.Metrics(), logger)
	}
}

func startMetricsServer(provider *instrumentation.Provider, addr string, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	// Wait for metrics server to be ready or fail
	select {
	case <-metricsReady:
		logger.Info("metrics server started", "addr", metricsServer.ListenAddr())
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg HTTPConfig, metrics *instrumentation.Metrics, logger *slog.Logger) error {
	health := server.NewHealthChecker(sc, version)

	httpServer, err := server.NewHTTPServer(mcpSrv, server.HTTPServerConfig{
		Addr:             cfg.Addr,
		TLSCertFile:      cfg.TLSCertFile,
		TLSKeyFile:       cfg.TLSKeyFile,
		DisableStreaming: cfg.DisableStreaming,
		Health:           health,
		Metrics:          metrics,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
