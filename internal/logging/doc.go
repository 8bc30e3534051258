// Package logging provides structured logging utilities for batchfs.
//
// It keeps attribute names consistent across the codebase and offers a small
// Logger interface, implemented by SlogAdapter, for components that should
// not depend on slog directly.
//
// # Usage Patterns
//
//	logger := logging.WithBatch(logging.NewLogger(os.Stderr, debug), batchID)
//	logger.Info("operation failed",
//	    logging.OpType("copy"),
//	    logging.Path(op.Path),
//	    logging.Err(err))
//
// Info and warning records never carry file content; use ContentSize to
// record its length. Debug records may include whole batch summaries.
package logging
