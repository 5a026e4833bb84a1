// Package neo4jgraph writes the call graph into Neo4j with MERGE queries.
// Every node carries the :Code label and a unique key property equal to the
// keys produced by package fqn.
package neo4jgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/graph"
)

// ErrMissingEndpoint is returned when an edge endpoint node does not exist.
var ErrMissingEndpoint = errors.New("edge endpoint not found")

// Config holds the Neo4j connection parameters.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
}

// Store is a graph.GraphStore backed by Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

var schemaQueries = []string{
	"CREATE CONSTRAINT code_key IF NOT EXISTS FOR (n:Code) REQUIRE n.key IS UNIQUE",
	"CREATE INDEX method_signature IF NOT EXISTS FOR (n:Method) ON (n.name, n.requestType, n.responseType)",
	"CREATE INDEX class_owner IF NOT EXISTS FOR (n:Class) ON (n.namespace, n.name)",
}

// Open connects to Neo4j, verifies connectivity and ensures the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j: uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	s := &Store{driver: driver, database: cfg.Database}
	for _, q := range schemaQueries {
		if _, err := s.run(ctx, q, nil); err != nil {
			driver.Close(ctx)
			return nil, fmt.Errorf("neo4j schema: %w", err)
		}
	}
	slog.Info("neo4j.open", "uri", cfg.URI)
	return s, nil
}

func (s *Store) run(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return neo4j.ExecuteQuery(ctx, s.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
}

const upsertClassQuery = `
MERGE (n:Code {key: $key})
SET n:Class, n.name = $name, n.namespace = $namespace, n.className = $name`

// UpsertClassNode merges the class node.
func (s *Store) UpsertClassNode(ctx context.Context, namespace, class string) error {
	_, err := s.run(ctx, upsertClassQuery, map[string]any{
		"key":       fqn.ClassKey(namespace, class),
		"name":      fqn.Sanitize(class),
		"namespace": fqn.Sanitize(namespace),
	})
	return err
}

const upsertMethodQuery = `
MERGE (n:Code {key: $key})
SET n:Method, n.name = $name, n.namespace = $namespace, n.className = $className,
    n.requestType = CASE WHEN coalesce(n.requestType, '') = '' THEN $requestType ELSE n.requestType END,
    n.responseType = CASE WHEN coalesce(n.responseType, '') = '' THEN $responseType ELSE n.responseType END`

// adoptSignatureQuery moves EXECUTES edges from a bare signature node onto
// the owned method node and removes the bare node.
const adoptSignatureQuery = `
MATCH (bare:Code {key: $sig})
MATCH (owner:Code {key: $key})
OPTIONAL MATCH (src)-[r:EXECUTES]->(bare)
FOREACH (_ IN CASE WHEN src IS NULL THEN [] ELSE [1] END |
    MERGE (src)-[moved:EXECUTES]->(owner)
    SET moved += properties(r))
WITH DISTINCT bare
DETACH DELETE bare`

// UpsertMethodNode merges the method node. Recorded request/response types
// are never replaced; when both are known a bare signature node with the
// same signature is folded into this one.
func (s *Store) UpsertMethodNode(ctx context.Context, namespace, class, method, request, response string) error {
	key := fqn.MethodKey(namespace, class, method)
	_, err := s.run(ctx, upsertMethodQuery, map[string]any{
		"key":          key,
		"name":         method,
		"namespace":    fqn.Sanitize(namespace),
		"className":    fqn.Sanitize(class),
		"requestType":  request,
		"responseType": response,
	})
	if err != nil || request == "" || response == "" {
		return err
	}
	_, err = s.run(ctx, adoptSignatureQuery, map[string]any{
		"sig": fqn.SignatureKey(method, request, response),
		"key": key,
	})
	return err
}

const upsertProcedureQuery = `
MERGE (n:Code {key: $key})
SET n:Procedure, n.name = $name`

// UpsertProcedureNode merges the stored procedure node.
func (s *Store) UpsertProcedureNode(ctx context.Context, name string) error {
	_, err := s.run(ctx, upsertProcedureQuery, map[string]any{
		"key":  fqn.ProcedureKey(name),
		"name": name,
	})
	return err
}

// edgeQuery builds the MERGE statement for kind. Relationship types cannot
// be parameterized, so kind is checked against the known edge kinds.
func edgeQuery(kind string) (string, error) {
	if !graph.IsEdgeKind(kind) {
		return "", fmt.Errorf("unknown edge kind %q", kind)
	}
	return `
MATCH (a:Code {key: $source})
MATCH (b:Code {key: $target})
MERGE (a)-[r:` + kind + `]->(b)
SET r += $props
RETURN count(r) AS n`, nil
}

// UpsertEdge merges source -[kind]-> target. Both nodes must exist.
func (s *Store) UpsertEdge(ctx context.Context, kind, sourceKey, targetKey string, props map[string]any) error {
	q, err := edgeQuery(kind)
	if err != nil {
		return err
	}
	if props == nil {
		props = map[string]any{}
	}
	res, err := s.run(ctx, q, map[string]any{"source": sourceKey, "target": targetKey, "props": props})
	if err != nil {
		return err
	}
	if countOf(res) == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrMissingEndpoint, sourceKey, targetKey)
	}
	return nil
}

const findBySignatureQuery = `
MATCH (n:Method {name: $name, requestType: $requestType, responseType: $responseType})
WHERE NOT n.key STARTS WITH 'sig:'
RETURN n.key AS key
ORDER BY key`

const mergeSignatureQuery = `
MERGE (n:Code {key: $key})
SET n:Method, n.name = $name, n.requestType = $requestType, n.responseType = $responseType`

// EnsureMethodNodeBySignature returns the keys of the owned method nodes
// matching the signature, or creates and returns a bare signature node.
func (s *Store) EnsureMethodNodeBySignature(ctx context.Context, method, request, response string) ([]string, error) {
	params := map[string]any{"name": method, "requestType": request, "responseType": response}
	res, err := s.run(ctx, findBySignatureQuery, params)
	if err != nil {
		return nil, err
	}
	keys := stringColumn(res, "key")
	if len(keys) > 0 {
		return keys, nil
	}
	key := fqn.SignatureKey(method, request, response)
	params["key"] = key
	if _, err := s.run(ctx, mergeSignatureQuery, params); err != nil {
		return nil, err
	}
	return []string{key}, nil
}

// IsTransient reports whether the driver classifies err as retryable.
func (s *Store) IsTransient(err error) bool {
	return neo4j.IsRetryable(err)
}

// Close releases the driver.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

func countOf(res *neo4j.EagerResult) int64 {
	if res == nil || len(res.Records) == 0 {
		return 0
	}
	v, ok := res.Records[0].Get("n")
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

func stringColumn(res *neo4j.EagerResult, key string) []string {
	if res == nil {
		return nil
	}
	out := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		v, ok := rec.Get(key)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
