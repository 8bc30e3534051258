// Package fileops_tools provides the MCP tool for batched file operations.
//
// Tools:
//   - batch_file_operations: Execute create, read, update, delete, copy and
//     move operations as one batch and return a JSON summary
//
// Arguments are validated before anything runs. An invalid request returns a
// tool error result of the form "Error: <field> <message>" and touches no
// files. A valid request always yields a summary, even when every operation
// fails; per-operation failures are listed under "errors" with a code.
//
// When the server runs read-only, the tool advertises only the read type and
// rejects every other operation during validation.
//
// Example:
//
//	batch_file_operations(
//	  operations: [
//	    {type: "create", path: "notes/a.txt", content: "hello"},
//	    {type: "copy", path: "notes/a.txt", destination: "notes/b.txt"},
//	    {type: "read", path: "notes/b.txt"}
//	  ],
//	  options: {maxConcurrent: 4, stopOnError: true}
//	)
package fileops_tools
