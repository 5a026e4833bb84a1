package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/executer-finder/internal/fqn"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graph.db")
	s, err := OpenPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	// Reopen sees the schema without error.
	s, err = OpenPath(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUpsertClassAndMethodIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.UpsertClassNode(ctx, "Demo", "C"))
		require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "C", "M", "Req", "Resp"))
		require.NoError(t, s.UpsertEdge(ctx, "CONTAINS", fqn.ClassKey("Demo", "C"), fqn.MethodKey("Demo", "C", "M"), nil))
	}

	nodes, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	edges, err := s.CountEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, edges)

	m, err := s.FindNodeByKey(ctx, "Demo::C.M")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, LabelMethod, m.Label)
	assert.Equal(t, "Req", m.RequestType)
	assert.Equal(t, "Resp", m.ResponseType)
	assert.Equal(t, "C", m.ClassName)
}

func TestUpsertMethodNeverClearsTypes(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "C", "M", "", ""))
	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "C", "M", "Req", "Resp"))
	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "C", "M", "", ""))
	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "C", "M", "Other", "Other"))

	m, err := s.FindNodeByKey(ctx, fqn.MethodKey("Demo", "C", "M"))
	require.NoError(t, err)
	assert.Equal(t, "Req", m.RequestType)
	assert.Equal(t, "Resp", m.ResponseType)
}

func TestUpsertEdgeMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)
	require.NoError(t, s.UpsertClassNode(ctx, "Demo", "C"))

	err := s.UpsertEdge(ctx, "CONTAINS", "Demo::C", "Demo::C.Missing", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestEnsureMethodNodeBySignature(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	// No owner known: a bare node is created once.
	keys, err := s.EnsureMethodNodeBySignature(ctx, "Op", "Req", "Resp")
	require.NoError(t, err)
	assert.Equal(t, []string{fqn.SignatureKey("Op", "Req", "Resp")}, keys)
	again, err := s.EnsureMethodNodeBySignature(ctx, "Op", "Req", "Resp")
	require.NoError(t, err)
	assert.Equal(t, keys, again)

	n, err := s.CountNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Owned nodes take precedence over the bare one.
	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "Target", "Op", "Req", "Resp"))
	keys, err = s.EnsureMethodNodeBySignature(ctx, "Op", "Req", "Resp")
	require.NoError(t, err)
	assert.Equal(t, []string{"Demo::Target.Op"}, keys)
}

func TestSignatureNodeAdoptedByOwner(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "Caller", "Run", "", ""))
	keys, err := s.EnsureMethodNodeBySignature(ctx, "Op", "Req", "Resp")
	require.NoError(t, err)
	require.NoError(t, s.UpsertEdge(ctx, "EXECUTES", "Demo::Caller.Run", keys[0], map[string]any{"operation": "Op"}))

	require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "Target", "Op", "Req", "Resp"))

	bare, err := s.FindNodeByKey(ctx, keys[0])
	require.NoError(t, err)
	assert.Nil(t, bare, "bare signature node should be folded into the owner")

	res, err := s.Outbound(ctx, "Demo::Caller.Run", []string{"EXECUTES"}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res.Visited, 1)
	assert.Equal(t, "Demo::Target.Op", res.Visited[0].Node.QualifiedName)

	owner, err := s.FindNodeByKey(ctx, "Demo::Target.Op")
	require.NoError(t, err)
	require.NotNil(t, owner)
	in, err := s.FindEdgesByTargetAndType(ctx, owner.ID, "EXECUTES")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "Op", in[0].Properties["operation"])
}

func TestProcedureNodes(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	require.NoError(t, s.UpsertProcedureNode(ctx, "dbo.GetUser"))
	require.NoError(t, s.UpsertProcedureNode(ctx, "dbo.GetUser"))
	n, err := s.CountNodesByLabel(ctx, LabelProcedure)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	procs, err := s.FindNodesByLabel(ctx, LabelProcedure)
	require.NoError(t, err)
	require.Len(t, procs, 1)
	assert.Equal(t, "dbo.GetUser", procs[0].Name)

	p, err := s.FindNodeByKey(ctx, fqn.ProcedureKey("dbo.GetUser"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "dbo.GetUser", p.Name)
}

func TestOutboundDepth(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	for _, m := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpsertMethodNode(ctx, "Demo", "X", m, "", ""))
	}
	require.NoError(t, s.UpsertEdge(ctx, "CALLS", "Demo::X.A", "Demo::X.B", nil))
	require.NoError(t, s.UpsertEdge(ctx, "CALLS", "Demo::X.B", "Demo::X.C", nil))

	res, err := s.Outbound(ctx, "Demo::X.A", []string{"CALLS"}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, res.Visited, 1)

	res, err = s.Outbound(ctx, "Demo::X.A", []string{"CALLS"}, 5, 0)
	require.NoError(t, err)
	require.Len(t, res.Visited, 2)
	assert.Equal(t, 2, res.Visited[1].Hop)
	assert.Equal(t, EdgeInfo{From: "Demo::X.B", To: "Demo::X.C", Type: "CALLS"}, res.Edges[1])

	_, err = s.Outbound(ctx, "Demo::X.Missing", []string{"CALLS"}, 1, 0)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}

func TestIsTransient(t *testing.T) {
	s := openTest(t)
	assert.False(t, s.IsTransient(errors.New("boom")))
	assert.True(t, s.IsTransient(sqlite3.Error{Code: sqlite3.ErrBusy}))
}
