package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DeusData/executer-finder/internal/fqn"
)

const nodeColumns = `id, label, name, qualified_name, namespace, class_name, request_type, response_type, properties`

// upsertNode inserts a node or merges it into an existing one with the same
// qualified name. Non-empty owner and type fields fill empty ones; a recorded
// value is never replaced by an empty one.
func (s *Store) upsertNode(ctx context.Context, n *Node) (int64, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO nodes (label, name, qualified_name, namespace, class_name, request_type, response_type, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(qualified_name) DO UPDATE SET
			namespace = COALESCE(NULLIF(nodes.namespace, ''), excluded.namespace),
			class_name = COALESCE(NULLIF(nodes.class_name, ''), excluded.class_name),
			request_type = COALESCE(NULLIF(nodes.request_type, ''), excluded.request_type),
			response_type = COALESCE(NULLIF(nodes.response_type, ''), excluded.response_type),
			properties = json_patch(nodes.properties, excluded.properties)`,
		n.Label, n.Name, n.QualifiedName, n.Namespace, n.ClassName, n.RequestType, n.ResponseType, marshalProps(n.Properties))
	if err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	// LastInsertId is stale after ON CONFLICT DO UPDATE; query the actual id.
	var id int64
	if err := s.q.QueryRowContext(ctx, "SELECT id FROM nodes WHERE qualified_name=?", n.QualifiedName).Scan(&id); err != nil {
		return 0, fmt.Errorf("get node id: %w", err)
	}
	return id, nil
}

// UpsertClassNode creates or updates the node of a class.
func (s *Store) UpsertClassNode(ctx context.Context, namespace, class string) error {
	_, err := s.upsertNode(ctx, &Node{
		Label:         LabelClass,
		Name:          fqn.Sanitize(class),
		QualifiedName: fqn.ClassKey(namespace, class),
		Namespace:     fqn.Sanitize(namespace),
		ClassName:     fqn.Sanitize(class),
	})
	return err
}

// UpsertMethodNode creates or updates the node of a method owned by a class.
// When the request and response types are known, a bare signature-only node
// with the same signature is folded into it: its incoming edges move to the
// owned node and the bare node is removed.
func (s *Store) UpsertMethodNode(ctx context.Context, namespace, class, method, request, response string) error {
	return s.WithTransaction(ctx, func(tx *Store) error {
		id, err := tx.upsertNode(ctx, &Node{
			Label:         LabelMethod,
			Name:          method,
			QualifiedName: fqn.MethodKey(namespace, class, method),
			Namespace:     fqn.Sanitize(namespace),
			ClassName:     fqn.Sanitize(class),
			RequestType:   request,
			ResponseType:  response,
		})
		if err != nil {
			return err
		}
		if request == "" || response == "" {
			return nil
		}
		return tx.adoptSignatureNode(ctx, fqn.SignatureKey(method, request, response), id)
	})
}

func (s *Store) adoptSignatureNode(ctx context.Context, sigKey string, ownerID int64) error {
	var bareID int64
	err := s.q.QueryRowContext(ctx, "SELECT id FROM nodes WHERE qualified_name=?", sigKey).Scan(&bareID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find signature node: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, "UPDATE OR IGNORE edges SET target_id=? WHERE target_id=?", ownerID, bareID); err != nil {
		return fmt.Errorf("move signature edges: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM nodes WHERE id=?", bareID); err != nil {
		return fmt.Errorf("delete signature node: %w", err)
	}
	return nil
}

// UpsertProcedureNode creates the node of a stored procedure.
func (s *Store) UpsertProcedureNode(ctx context.Context, name string) error {
	_, err := s.upsertNode(ctx, &Node{
		Label:         LabelProcedure,
		Name:          name,
		QualifiedName: fqn.ProcedureKey(name),
	})
	return err
}

// EnsureMethodNodeBySignature returns the keys of every owned method node
// matching the signature. When none exists it creates a bare node keyed by
// the signature alone and returns its key.
func (s *Store) EnsureMethodNodeBySignature(ctx context.Context, method, request, response string) ([]string, error) {
	found, err := s.FindMethodsBySignature(ctx, method, request, response)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, n := range found {
		if !fqn.IsSignatureKey(n.QualifiedName) {
			keys = append(keys, n.QualifiedName)
		}
	}
	if len(keys) > 0 {
		return keys, nil
	}
	key := fqn.SignatureKey(method, request, response)
	_, err = s.upsertNode(ctx, &Node{
		Label:         LabelMethod,
		Name:          method,
		QualifiedName: key,
		RequestType:   request,
		ResponseType:  response,
	})
	if err != nil {
		return nil, err
	}
	return []string{key}, nil
}

// FindMethodsBySignature finds method nodes by name and request/response
// types, ordered by qualified name.
func (s *Store) FindMethodsBySignature(ctx context.Context, method, request, response string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+nodeColumns+`
		FROM nodes WHERE label=? AND name=? AND request_type=? AND response_type=?
		ORDER BY qualified_name`, LabelMethod, method, request, response)
	if err != nil {
		return nil, fmt.Errorf("find by signature: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodeByID finds a node by its primary key ID.
func (s *Store) FindNodeByID(ctx context.Context, id int64) (*Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id=?`, id)
	return scanNode(row)
}

// FindNodeByKey finds a node by qualified name. It returns nil, nil when no
// node matches.
func (s *Store) FindNodeByKey(ctx context.Context, key string) (*Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE qualified_name=?`, key)
	return scanNode(row)
}

// FindNodesByLabel finds all nodes with a given label.
func (s *Store) FindNodesByLabel(ctx context.Context, label string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE label=? ORDER BY qualified_name`, label)
	if err != nil {
		return nil, fmt.Errorf("find by label: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes.
func (s *Store) CountNodes(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

// CountNodesByLabel returns the number of nodes with the given label.
func (s *Store) CountNodesByLabel(ctx context.Context, label string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE label=?", label).Scan(&count)
	return count, err
}

func (s *Store) nodeID(ctx context.Context, key string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, "SELECT id FROM nodes WHERE qualified_name=?", key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	return id, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.Label, &n.Name, &n.QualifiedName, &n.Namespace, &n.ClassName,
		&n.RequestType, &n.ResponseType, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
