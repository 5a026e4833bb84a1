package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/DeusData/executer-finder/internal/config"
	"github.com/DeusData/executer-finder/internal/docstore"
	"github.com/DeusData/executer-finder/internal/graph"
	"github.com/DeusData/executer-finder/internal/neo4jgraph"
	"github.com/DeusData/executer-finder/internal/store"
)

// Backends holds the opened stores. Graph and Docs are nil when the
// corresponding backend is "none".
type Backends struct {
	Graph graph.GraphStore
	Docs  docstore.Store
	// SQLite is set when the graph backend is SQLite; it serves graph
	// queries.
	SQLite *store.Store

	closers []io.Closer
}

// OpenBackends opens the stores selected by cfg. root names the default
// SQLite database files.
func OpenBackends(ctx context.Context, cfg *config.Config, root string) (*Backends, error) {
	b := &Backends{}
	project := ProjectNameFromPath(root)

	switch cfg.Graph.Backend {
	case config.BackendSQLite:
		s, err := openSQLiteGraph(cfg.Graph.SQLitePath, project)
		if err != nil {
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		b.Graph, b.SQLite = s, s
		b.closers = append(b.closers, s)
	case config.BackendNeo4j:
		s, err := neo4jgraph.Open(ctx, neo4jgraph.Config{
			URI:      cfg.Neo4j.URI,
			User:     cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		b.Graph = s
		b.closers = append(b.closers, s)
	}

	switch cfg.Documents.Backend {
	case config.BackendSQLite:
		path := cfg.Documents.SQLitePath
		if path == "" {
			dir, err := store.CacheDir()
			if err != nil {
				b.Close()
				return nil, err
			}
			path = filepath.Join(dir, project+".docs.db")
		}
		d, err := docstore.OpenSQLite(path)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open document store: %w", err)
		}
		b.Docs = d
		b.closers = append(b.closers, d)
	case config.BackendCouchbase:
		d, err := docstore.OpenCouchbase(ctx, docstore.CouchbaseConfig{
			ConnectionString: cfg.Couchbase.ConnectionString,
			Username:         cfg.Couchbase.Username,
			Password:         cfg.Couchbase.Password,
			Bucket:           cfg.Couchbase.Bucket,
			Scope:            cfg.Couchbase.Scope,
			Collection:       cfg.Couchbase.Collection,
			ConnectTimeout:   cfg.Couchbase.ConnectTimeout,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open document store: %w", err)
		}
		b.Docs = d
		b.closers = append(b.closers, d)
	}

	slog.Info("pipeline.backends", "graph", cfg.Graph.Backend, "documents", cfg.Documents.Backend)
	return b, nil
}

func openSQLiteGraph(path, project string) (*store.Store, error) {
	if path == "" {
		return store.Open(project)
	}
	return store.OpenPath(path)
}

// Close closes every opened store.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
