package instrumentation

import "strings"

// Cardinality management helpers for metrics.
//
// Operation types arrive from untrusted tool input. Recording them verbatim
// would let a caller create an unbounded number of label values, so every
// type label passes through NormalizeKind first.

// Known operation type label values.
const (
	KindCreate = "create"
	KindRead   = "read"
	KindUpdate = "update"
	KindDelete = "delete"
	KindCopy   = "copy"
	KindMove   = "move"

	// KindOther is recorded for anything not in the list above.
	KindOther = "other"
)

// NormalizeKind maps an operation type to a bounded label value.
//
// Example:
//
//	NormalizeKind("create")   // "create"
//	NormalizeKind(" Move ")   // "move"
//	NormalizeKind("chmod")    // "other"
//	NormalizeKind("")         // "other"
func NormalizeKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case KindCreate, KindRead, KindUpdate, KindDelete, KindCopy, KindMove:
		return k
	default:
		return KindOther
	}
}
