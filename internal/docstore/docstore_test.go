package docstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/executer-finder/internal/model"
)

func openTest(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleClass(ns, name string) *model.ClassRecord {
	m := &model.MethodRecord{
		Name:         "Save",
		RequestType:  "SaveReq",
		ResponseType: "SaveResp",
		DispatchCalls: []*model.DispatchCall{
			{RequestType: "LoadReq", ResponseType: "LoadResp", MethodName: "Load", RequestVariableName: "req"},
		},
	}
	m.Normalize()
	return &model.ClassRecord{
		Namespace: ns,
		Name:      name,
		Kind:      model.KindClass,
		FilePath:  "src/" + name + ".cs",
		Methods:   []*model.MethodRecord{m},
	}
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestNewClassDocumentGlobalNamespace(t *testing.T) {
	c := &model.ClassRecord{Name: "C", Kind: model.KindClass}
	doc := NewClassDocument(c, time.Unix(0, 0))
	assert.Equal(t, DocTypeClass, doc.DocType)
	assert.Equal(t, "(global)", doc.Namespace)
	assert.NotNil(t, doc.Methods)
}

func TestDispatchPatchesOnlyResolved(t *testing.T) {
	c := sampleClass("Demo", "C")
	c.Methods[0].DispatchCalls = append(c.Methods[0].DispatchCalls,
		&model.DispatchCall{RequestType: "A", ResponseType: "B", MethodName: "X"})
	c.Methods[0].DispatchCalls[1].Resolve(model.Owner{Namespace: "Ext", ClassName: "Svc"}, true)

	patches := DispatchPatches(c)
	require.Len(t, patches, 3)
	assert.Equal(t, "methods[0].executerCalls[1].namespace", patches[0].Path)
	assert.Equal(t, "Ext", patches[0].Value)
	assert.Equal(t, "methods[0].executerCalls[1].className", patches[1].Path)
	assert.Equal(t, "Svc", patches[1].Value)
	assert.Equal(t, "methods[0].executerCalls[1].isExternal", patches[2].Path)
	assert.Equal(t, true, patches[2].Value)
}

func TestUpsertClassesAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.UpsertClasses(ctx, []*model.ClassRecord{sampleClass("Demo", "C"), sampleClass("Demo", "D")}))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := s.Get(ctx, "Demo::C")
	require.NoError(t, err)
	doc := decode(t, raw)
	assert.Equal(t, "ClassInfo", doc["docType"])
	assert.Equal(t, "Demo", doc["namespace"])
	assert.Equal(t, "C", doc["className"])
	assert.Equal(t, "class", doc["classType"])
	methods := doc["methods"].([]any)
	require.Len(t, methods, 1)
	calls := methods[0].(map[string]any)["executerCalls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "Load", calls[0].(map[string]any)["methodName"])
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	c := sampleClass("Demo", "C")

	require.NoError(t, s.UpsertDocument(ctx, c.Key(), NewClassDocument(c, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))))
	c.FilePath = "moved/C.cs"
	require.NoError(t, s.UpsertDocument(ctx, c.Key(), NewClassDocument(c, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	raw, err := s.Get(ctx, c.Key())
	require.NoError(t, err)
	doc := decode(t, raw)
	assert.Equal(t, "moved/C.cs", doc["filePath"])
	assert.True(t, strings.HasPrefix(doc["createdAt"].(string), "2020-01-01"))
}

func TestGetMissing(t *testing.T) {
	s := openTest(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOne(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	require.NoError(t, s.UpsertClasses(ctx, []*model.ClassRecord{sampleClass("Zeta", "Z"), sampleClass("Alpha", "A")}))

	owner, ok, err := s.FindOne(ctx, model.Signature{MethodName: "Save", RequestType: "SaveReq", ResponseType: "SaveResp"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Owner{Namespace: "Alpha", ClassName: "A"}, owner)

	_, ok, err = s.FindOne(ctx, model.Signature{MethodName: "Save", RequestType: "SaveReq", ResponseType: "Other"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindOneIgnoresOtherDocuments(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	other := map[string]any{"methods": []map[string]string{{"name": "Save", "requestType": "SaveReq", "responseType": "SaveResp"}}}
	require.NoError(t, s.UpsertDocument(ctx, "meta", other))

	_, ok, err := s.FindOne(ctx, model.Signature{MethodName: "Save", RequestType: "SaveReq", ResponseType: "SaveResp"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPatchFields(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	c := sampleClass("Demo", "C")
	require.NoError(t, s.UpsertClasses(ctx, []*model.ClassRecord{c}))

	c.Methods[0].DispatchCalls[0].Resolve(model.Owner{Namespace: "Svc", ClassName: "Loader"}, false)
	require.NoError(t, s.PatchFields(ctx, c.Key(), DispatchPatches(c)))

	raw, err := s.Get(ctx, c.Key())
	require.NoError(t, err)
	doc := decode(t, raw)
	call := doc["methods"].([]any)[0].(map[string]any)["executerCalls"].([]any)[0].(map[string]any)
	assert.Equal(t, "Svc", call["namespace"])
	assert.Equal(t, "Loader", call["className"])
	assert.Equal(t, false, call["isExternal"])
	assert.Equal(t, "Load", call["methodName"])
}

func TestPatchFieldsMissingDocument(t *testing.T) {
	s := openTest(t)
	err := s.PatchFields(context.Background(), "nope", []Patch{{Path: "a", Value: 1}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.PatchFields(context.Background(), "nope", nil))
}

func TestOpenSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs", "docs.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertClasses(ctx, []*model.ClassRecord{sampleClass("Demo", "C")}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCouchbaseStatement(t *testing.T) {
	cfg := CouchbaseConfig{Bucket: "code", Collection: "cl`s"}.withDefaults()
	assert.Equal(t, "`code`.`_default`.`cl``s`", cfg.keyspace())
	stmt := findOneStatement(cfg.keyspace())
	assert.Contains(t, stmt, "UNNEST c.methods AS m")
	assert.Contains(t, stmt, "m.requestType = $requestType")
	assert.Contains(t, stmt, "LIMIT 1")
}

func TestOpenCouchbaseRequiresBucket(t *testing.T) {
	_, err := OpenCouchbase(context.Background(), CouchbaseConfig{ConnectionString: "couchbase://localhost"})
	assert.Error(t, err)
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*CouchbaseStore)(nil)
)
