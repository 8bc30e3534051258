package batch

import "github.com/teemow/batchfs/internal/fileops"

// GroupOperations partitions ops into the groups a batch runs in.
//
// With byType, there is one group per operation type, ordered by the first
// appearance of each type and stable within a type. Without it, a single
// group holds every operation in input order.
func GroupOperations(ops []fileops.Operation, byType bool) [][]fileops.Operation {
	groups := groupIndices(ops, byType)
	out := make([][]fileops.Operation, len(groups))
	for i, idx := range groups {
		out[i] = make([]fileops.Operation, len(idx))
		for j, n := range idx {
			out[i][j] = ops[n]
		}
	}
	return out
}

// groupIndices is GroupOperations over input positions.
func groupIndices(ops []fileops.Operation, byType bool) [][]int {
	if !byType {
		return groupBy(ops, func(fileops.Operation) struct{} { return struct{}{} })
	}
	return groupBy(ops, func(op fileops.Operation) fileops.Kind { return op.Type })
}

// groupBy returns the indices of items grouped by key, in first-seen key order.
func groupBy[T any, K comparable](items []T, key func(T) K) [][]int {
	var groups [][]int
	pos := make(map[K]int)
	for i, item := range items {
		k := key(item)
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
