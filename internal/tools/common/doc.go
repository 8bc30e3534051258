// Package common provides helpers shared by the MCP tool packages, chiefly
// the instrumented handler wrapper that adds tracing, metrics and audit
// logging to every tool call.
package common
