// Package resources provides read-only MCP resources describing the server.
//
// Resources:
//   - batchfs://server/config: root, read-only flag, batch defaults and option limits
//   - batchfs://operations: supported operation types and their arguments
package resources
