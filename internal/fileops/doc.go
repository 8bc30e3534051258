// Package fileops implements single file operations for batchfs.
//
// An Operation is a tagged value: its Type selects one of create, read,
// update, delete, copy or move, and the remaining fields carry the payload
// that kind needs. The Executor runs one Operation against a go-billy
// filesystem and retries failed attempts with a linear backoff.
//
// # Filesystems
//
// Three filesystem constructors are provided:
//
//   - NewOSFilesystem(""): native OS paths, relative paths resolve against the
//     process working directory
//   - NewOSFilesystem(root): every path is resolved inside root; paths that
//     escape it fail with CodeForbidden
//   - NewMemoryFilesystem(): in-memory filesystem for tests
//
// # Errors
//
// Failed operations return an *Error carrying an ErrorCode. The message of
// the underlying error is preserved so callers can surface it unchanged.
package fileops
