// Package server provides the shared server context and the HTTP servers of
// batchfs.
//
// # Key Components
//
// ServerContext owns the filesystem operations run against, the batch
// coordinator built on it, the server-wide batch defaults and read-only mode,
// and the optional metrics recorder and audit logger used by tool handlers.
//
// HTTPServer exposes an MCP server over the streamable HTTP transport at
// /mcp, next to the /healthz, /readyz and /healthz/detailed probes served by
// HealthChecker. HTTPS is enabled when a certificate and key are configured.
// SessionIDManager issues the MCP session IDs for that transport and expires
// idle sessions.
//
// MetricsServer serves Prometheus metrics on a dedicated port so operational
// data stays off the MCP listener.
package server
