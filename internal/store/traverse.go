package store

import (
	"context"
	"fmt"
)

// TraverseResult holds BFS traversal results.
type TraverseResult struct {
	Root    *Node
	Visited []*NodeHop
	Edges   []EdgeInfo
}

// NodeHop is a node with its BFS hop distance.
type NodeHop struct {
	Node *Node
	Hop  int
}

// EdgeInfo is a simplified edge for output.
type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

type bfsQueue struct {
	nodeID int64
	hop    int
}

// Outbound performs a breadth-first traversal from the node with the given
// key, following outgoing edges of the given types. maxDepth caps the BFS
// depth, maxResults caps total visited nodes.
func (s *Store) Outbound(ctx context.Context, key string, edgeTypes []string, maxDepth, maxResults int) (*TraverseResult, error) {
	root, err := s.FindNodeByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxResults <= 0 {
		maxResults = 200
	}

	result := &TraverseResult{Root: root}
	visited := map[int64]int{root.ID: 0}
	nodeCache := map[int64]*Node{root.ID: root}
	queue := []bfsQueue{{root.ID, 0}}

	for len(queue) > 0 && len(result.Visited) < maxResults {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := queue[0]
		queue = queue[1:]

		if item.hop >= maxDepth {
			continue
		}

		for _, et := range edgeTypes {
			edges, err := s.FindEdgesBySourceAndType(ctx, item.nodeID, et)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if _, seen := visited[e.TargetID]; !seen {
					visited[e.TargetID] = item.hop + 1
					next, err := s.cachedNode(ctx, nodeCache, e.TargetID)
					if err != nil || next == nil {
						continue
					}
					result.Visited = append(result.Visited, &NodeHop{Node: next, Hop: item.hop + 1})
					queue = append(queue, bfsQueue{e.TargetID, item.hop + 1})
				}
				from, _ := s.cachedNode(ctx, nodeCache, e.SourceID)
				to, _ := s.cachedNode(ctx, nodeCache, e.TargetID)
				if from != nil && to != nil {
					result.Edges = append(result.Edges, EdgeInfo{From: from.QualifiedName, To: to.QualifiedName, Type: e.Type})
				}
				if len(result.Visited) >= maxResults {
					return result, nil
				}
			}
		}
	}

	return result, nil
}

// cachedNode returns the node for an ID, using the cache first.
func (s *Store) cachedNode(ctx context.Context, cache map[int64]*Node, id int64) (*Node, error) {
	if n, ok := cache[id]; ok {
		return n, nil
	}
	n, err := s.FindNodeByID(ctx, id)
	if err != nil || n == nil {
		return nil, err
	}
	cache[id] = n
	return n, nil
}
