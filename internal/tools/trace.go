package tools

import (
	"context"
	"errors"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/graph"
)

const (
	defaultTraceDepth = 3
	maxTraceDepth     = 5
	maxTraceResults   = 200
)

func (s *Server) traceCalls(ctx context.Context, args map[string]any) (any, error) {
	if s.backends == nil || s.backends.SQLite == nil {
		return nil, errNoGraph
	}
	class := getStringArg(args, "class_name")
	method := getStringArg(args, "method_name")
	if class == "" || method == "" {
		return nil, errors.New("class_name and method_name are required")
	}

	depth := getIntArg(args, "depth", defaultTraceDepth)
	if depth < 1 {
		depth = 1
	}
	if depth > maxTraceDepth {
		depth = maxTraceDepth
	}
	edgeTypes := getStringSliceArg(args, "edge_types")
	for _, et := range edgeTypes {
		if !graph.IsEdgeKind(et) {
			return nil, errors.New("unknown edge type: " + et)
		}
	}
	if len(edgeTypes) == 0 {
		edgeTypes = []string{graph.EdgeCalls, graph.EdgeExecutes, graph.EdgeExecutesProcedure}
	}

	key := fqn.MethodKey(getStringArg(args, "namespace"), class, method)
	res, err := s.backends.SQLite.Outbound(ctx, key, edgeTypes, depth, maxTraceResults)
	if err != nil {
		return nil, err
	}

	hops := make([]map[string]any, 0, len(res.Visited))
	for _, h := range res.Visited {
		hops = append(hops, map[string]any{
			"key":   h.Node.QualifiedName,
			"label": h.Node.Label,
			"name":  h.Node.Name,
			"hop":   h.Hop,
		})
	}
	return map[string]any{
		"root":  res.Root.QualifiedName,
		"depth": depth,
		"hops":  hops,
		"edges": res.Edges,
	}, nil
}
