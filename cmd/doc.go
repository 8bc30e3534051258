// Package cmd implements the command-line interface for batchfs.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the batch_file_operations tool
//   - run: Execute a JSON batch request from a file or stdin and print the summary
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Settings are resolved from flags first, then BATCHFS_* environment
// variables, then the TOML config file (default ~/.batchfs/config.toml).
package cmd
