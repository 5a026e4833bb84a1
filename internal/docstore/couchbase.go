package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"

	"github.com/DeusData/executer-finder/internal/model"
)

// CouchbaseConfig locates the collection holding class documents.
type CouchbaseConfig struct {
	ConnectionString string
	Username         string
	Password         string
	Bucket           string
	Scope            string
	Collection       string
	ConnectTimeout   time.Duration
}

func (c CouchbaseConfig) withDefaults() CouchbaseConfig {
	if c.Scope == "" {
		c.Scope = "_default"
	}
	if c.Collection == "" {
		c.Collection = "_default"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// keyspace returns the escaped bucket.scope.collection path for N1QL.
func (c CouchbaseConfig) keyspace() string {
	return quoteIdent(c.Bucket) + "." + quoteIdent(c.Scope) + "." + quoteIdent(c.Collection)
}

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// findOneStatement selects the owner of the first matching method.
func findOneStatement(keyspace string) string {
	return "SELECT c.`namespace` AS `namespace`, c.className AS className FROM " + keyspace +
		" AS c UNNEST c.methods AS m" +
		" WHERE c.docType = $docType AND m.name = $name AND m.requestType = $requestType AND m.responseType = $responseType" +
		" ORDER BY META(c).id LIMIT 1"
}

// CouchbaseStore stores class documents in a Couchbase collection.
type CouchbaseStore struct {
	cluster  *gocb.Cluster
	coll     *gocb.Collection
	keyspace string
}

// OpenCouchbase connects and waits for the bucket to become ready.
func OpenCouchbase(ctx context.Context, cfg CouchbaseConfig) (*CouchbaseStore, error) {
	cfg = cfg.withDefaults()
	if cfg.ConnectionString == "" || cfg.Bucket == "" {
		return nil, errors.New("couchbase: connection string and bucket are required")
	}
	cluster, err := gocb.Connect(cfg.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("couchbase connect: %w", err)
	}
	bucket := cluster.Bucket(cfg.Bucket)
	timeout := cfg.ConnectTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if err := bucket.WaitUntilReady(timeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, fmt.Errorf("couchbase bucket %s: %w", cfg.Bucket, err)
	}
	return &CouchbaseStore{
		cluster:  cluster,
		coll:     bucket.Scope(cfg.Scope).Collection(cfg.Collection),
		keyspace: cfg.keyspace(),
	}, nil
}

// UpsertClasses writes one document per class.
func (s *CouchbaseStore) UpsertClasses(ctx context.Context, classes []*model.ClassRecord) error {
	return upsertEach(ctx, classes, s.UpsertDocument)
}

// UpsertDocument replaces the document stored under key.
func (s *CouchbaseStore) UpsertDocument(ctx context.Context, key string, doc any) error {
	if _, err := s.coll.Upsert(key, doc, &gocb.UpsertOptions{Context: ctx}); err != nil {
		return fmt.Errorf("couchbase upsert %s: %w", key, err)
	}
	return nil
}

// FindOne runs a N1QL query over the methods array of class documents.
func (s *CouchbaseStore) FindOne(ctx context.Context, sig model.Signature) (model.Owner, bool, error) {
	rows, err := s.cluster.Query(findOneStatement(s.keyspace), &gocb.QueryOptions{
		Context: ctx,
		NamedParameters: map[string]any{
			"docType":      DocTypeClass,
			"name":         sig.MethodName,
			"requestType":  sig.RequestType,
			"responseType": sig.ResponseType,
		},
	})
	if err != nil {
		return model.Owner{}, false, fmt.Errorf("couchbase query: %w", err)
	}
	defer rows.Close()

	var owner model.Owner
	found := false
	if rows.Next() {
		if err := rows.Row(&owner); err != nil {
			return model.Owner{}, false, fmt.Errorf("couchbase row: %w", err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return model.Owner{}, false, fmt.Errorf("couchbase query: %w", err)
	}
	return owner, found, nil
}

// PatchFields applies the patches as one sub-document mutation.
func (s *CouchbaseStore) PatchFields(ctx context.Context, key string, patches []Patch) error {
	if len(patches) == 0 {
		return nil
	}
	specs := make([]gocb.MutateInSpec, 0, len(patches))
	for _, p := range patches {
		specs = append(specs, gocb.UpsertSpec(strings.TrimPrefix(p.Path, "$."), p.Value, nil))
	}
	_, err := s.coll.MutateIn(key, specs, &gocb.MutateInOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("couchbase patch %s: %w", key, err)
	}
	return nil
}

// Get returns the stored body of key.
func (s *CouchbaseStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	res, err := s.coll.Get(key, &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("couchbase get %s: %w", key, err)
	}
	var body json.RawMessage
	if err := res.Content(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// Close shuts down the cluster connection.
func (s *CouchbaseStore) Close() error {
	return s.cluster.Close(nil)
}

// IsTransient reports whether err is a timeout or temporary server condition.
func (s *CouchbaseStore) IsTransient(err error) bool {
	return errors.Is(err, gocb.ErrTimeout) ||
		errors.Is(err, gocb.ErrAmbiguousTimeout) ||
		errors.Is(err, gocb.ErrUnambiguousTimeout) ||
		errors.Is(err, gocb.ErrTemporaryFailure)
}
