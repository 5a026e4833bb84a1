package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection for graph storage.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// Node labels.
const (
	LabelClass     = "Class"
	LabelMethod    = "Method"
	LabelProcedure = "Procedure"
)

// Node represents a graph node stored in SQLite.
type Node struct {
	ID            int64
	Label         string
	Name          string
	QualifiedName string
	Namespace     string
	ClassName     string
	RequestType   string
	ResponseType  string
	Properties    map[string]any
}

// Edge represents a graph edge stored in SQLite.
type Edge struct {
	ID         int64
	SourceID   int64
	TargetID   int64
	Type       string
	Properties map[string]any
}

// ErrNodeNotFound is returned when an edge endpoint does not exist.
var ErrNodeNotFound = errors.New("node not found")

// CacheDir returns the default cache directory for databases.
func CacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".cache", "executer-finder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache: %w", err)
	}
	return dir, nil
}

// Open opens or creates the named database in the cache directory.
func Open(name string) (*Store, error) {
	dir, err := CacheDir()
	if err != nil {
		return nil, err
	}
	return OpenPath(filepath.Join(dir, name+".db"))
}

// OpenPath opens a SQLite database at the given path. ":memory:" opens a
// private in-memory database.
func OpenPath(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return OpenMemory()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return newStore(db, dbPath)
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	return newStore(db, ":memory:")
}

func newStore(db *sql.DB, dbPath string) (*Store, error) {
	// One connection: an in-memory database is private to its connection,
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store; all store methods called on
// txStore use the transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(txStore *Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// IsTransient reports whether err is a lock or busy condition worth retrying.
func (s *Store) IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL UNIQUE,
		namespace TEXT DEFAULT '',
		class_name TEXT DEFAULT '',
		request_type TEXT DEFAULT '',
		response_type TEXT DEFAULT '',
		properties TEXT DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label, name);
	CREATE INDEX IF NOT EXISTS idx_nodes_signature ON nodes(name, request_type, response_type);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		properties TEXT DEFAULT '{}',
		UNIQUE(source_id, target_id, type)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, type);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// marshalProps serializes properties to JSON.
func marshalProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// unmarshalProps deserializes JSON properties.
func unmarshalProps(data string) map[string]any {
	if data == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return map[string]any{}
	}
	return m
}
