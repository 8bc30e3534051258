// Package batch runs batches of file operations.
//
// A batch goes through four steps:
//   - Validator turns tool arguments or JSON into a defaulted Request
//   - GroupOperations orders the operations into groups, by type unless
//     grouping is disabled
//   - Coordinator runs the groups one after another, admitting operations
//     through a Limiter shared by the whole run
//   - the outcomes are folded into a Summary, rendered by FormatSummary
//
// Individual operation failures never fail a batch. They are recorded as
// failure outcomes, and with StopOnError they stop further scheduling.
package batch
