package graph

// Edge kinds written by the merge.
const (
	EdgeContains          = "CONTAINS"
	EdgeCalls             = "CALLS"
	EdgeExecutes          = "EXECUTES"
	EdgeExecutesProcedure = "EXECUTES_PROCEDURE"
)

// EdgeKinds lists every edge kind in a stable order.
var EdgeKinds = []string{EdgeContains, EdgeCalls, EdgeExecutes, EdgeExecutesProcedure}

// IsEdgeKind reports whether kind is one of EdgeKinds.
func IsEdgeKind(kind string) bool {
	for _, k := range EdgeKinds {
		if k == kind {
			return true
		}
	}
	return false
}
