package store

import (
	"context"
	"fmt"
)

// UpsertEdge creates the edge sourceKey -[kind]-> targetKey, or merges props
// into the existing one. Both endpoints must already exist.
func (s *Store) UpsertEdge(ctx context.Context, kind, sourceKey, targetKey string, props map[string]any) error {
	srcID, err := s.nodeID(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("edge source: %w", err)
	}
	tgtID, err := s.nodeID(ctx, targetKey)
	if err != nil {
		return fmt.Errorf("edge target: %w", err)
	}
	_, err = s.InsertEdge(ctx, &Edge{SourceID: srcID, TargetID: tgtID, Type: kind, Properties: props})
	return err
}

// InsertEdge inserts an edge (dedup by source_id, target_id, type).
func (s *Store) InsertEdge(ctx context.Context, e *Edge) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, type, properties)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			properties = json_patch(edges.properties, excluded.properties)`,
		e.SourceID, e.TargetID, e.Type, marshalProps(e.Properties))
	if err != nil {
		return 0, fmt.Errorf("insert edge: %w", err)
	}
	return res.LastInsertId()
}

// FindEdgesBySourceAndType finds edges from a source with a specific type.
func (s *Store) FindEdgesBySourceAndType(ctx context.Context, sourceID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, source_id, target_id, type, properties
		FROM edges WHERE source_id=? AND type=? ORDER BY id`, sourceID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by source+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTargetAndType finds edges to a target with a specific type.
func (s *Store) FindEdgesByTargetAndType(ctx context.Context, targetID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, source_id, target_id, type, properties
		FROM edges WHERE target_id=? AND type=? ORDER BY id`, targetID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by target+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges.
func (s *Store) CountEdges(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// CountEdgesByType returns the number of edges of the given type.
func (s *Store) CountEdgesByType(ctx context.Context, edgeType string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges WHERE type=?", edgeType).Scan(&count)
	return count, err
}

func scanEdges(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var props string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
