package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/DeusData/executer-finder/internal/model"
)

// SQLiteStore keeps documents as JSON text in a SQLite table and queries
// them with the JSON1 functions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a document database at path. ":memory:" opens a private
// in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := "file::memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open docs db: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		doc_type TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init docs schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// UpsertClasses writes all class documents in one transaction.
func (s *SQLiteStore) UpsertClasses(ctx context.Context, classes []*model.ClassRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	write := func(ctx context.Context, key string, doc any) error {
		return upsertDocument(ctx, tx, key, doc)
	}
	if err := upsertEach(ctx, classes, write); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpsertDocument writes doc under key. A class document keeps the createdAt
// of its first write.
func (s *SQLiteStore) UpsertDocument(ctx context.Context, key string, doc any) error {
	return upsertDocument(ctx, s.db, key, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDocument(ctx context.Context, q execer, key string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	docType := ""
	if cd, ok := doc.(*ClassDocument); ok {
		docType = cd.DocType
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (key, doc_type, body, updated_at) VALUES (?, ?, json(?), ?)
		ON CONFLICT(key) DO UPDATE SET
			doc_type = excluded.doc_type,
			body = CASE
				WHEN json_extract(documents.body, '$.createdAt') IS NOT NULL
				 AND json_extract(excluded.body, '$.createdAt') IS NOT NULL
				THEN json_set(excluded.body, '$.createdAt', json_extract(documents.body, '$.createdAt'))
				ELSE excluded.body END,
			updated_at = excluded.updated_at`,
		key, docType, string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// FindOne returns the owner of the first class document, by key order, that
// declares a method with the given name and request/response types.
func (s *SQLiteStore) FindOne(ctx context.Context, sig model.Signature) (model.Owner, bool, error) {
	var owner model.Owner
	err := s.db.QueryRowContext(ctx, `
		SELECT json_extract(d.body, '$.namespace'), json_extract(d.body, '$.className')
		FROM documents d, json_each(d.body, '$.methods') m
		WHERE d.doc_type = ?
		  AND json_extract(m.value, '$.name') = ?
		  AND json_extract(m.value, '$.requestType') = ?
		  AND json_extract(m.value, '$.responseType') = ?
		ORDER BY d.key
		LIMIT 1`,
		DocTypeClass, sig.MethodName, sig.RequestType, sig.ResponseType).Scan(&owner.Namespace, &owner.ClassName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Owner{}, false, nil
	}
	if err != nil {
		return model.Owner{}, false, fmt.Errorf("find dispatch target: %w", err)
	}
	return owner, true, nil
}

// PatchFields sets each patch path inside the stored body.
func (s *SQLiteStore) PatchFields(ctx context.Context, key string, patches []Patch) error {
	if len(patches) == 0 {
		return nil
	}
	var b strings.Builder
	args := make([]any, 0, 2*len(patches)+1)
	b.WriteString("UPDATE documents SET body = json_set(body")
	for _, p := range patches {
		val, err := json.Marshal(p.Value)
		if err != nil {
			return fmt.Errorf("marshal patch %s: %w", p.Path, err)
		}
		b.WriteString(", ?, json(?)")
		args = append(args, jsonPath(p.Path), string(val))
	}
	b.WriteString(") WHERE key = ?")
	args = append(args, key)

	res, err := s.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("patch %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// Get returns the stored body of key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE key = ?", key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Count returns the number of stored documents.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsTransient reports whether err is a lock or busy condition worth retrying.
func (s *SQLiteStore) IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// jsonPath turns a sub-document path into a SQLite JSON path.
func jsonPath(p string) string {
	if strings.HasPrefix(p, "$") {
		return p
	}
	return "$." + p
}
