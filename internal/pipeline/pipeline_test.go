package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/executer-finder/internal/config"
	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/graph"
	"github.com/DeusData/executer-finder/internal/store"
)

const callerSource = `namespace Shop.Api
{
    public class OrderController
    {
        private OrderValidator validator;

        public PlaceOrderResponse Place(PlaceOrderRequest request)
        {
            var req = new GetStockRequest { MethodName = "GetStock" };
            var stock = BOAExecuter<GetStockRequest, GetStockResponse>.Execute(req);
            validator.Validate();
            return null;
        }
    }

    public class OrderValidator
    {
        public void Validate()
        {
            var cmd = GetDBCommand(connection, "EXEC [dbo].[CheckOrder]");
        }
    }
}
`

const targetSource = `namespace Shop.Stock
{
    public class StockService
    {
        public GetStockResponse GetStock(GetStockRequest request)
        {
            return null;
        }
    }
}
`

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Api/OrderController.cs": callerSource,
		"Stock/StockService.cs":  targetSource,
	}
	for rel, src := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return root
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Root:      root,
		Workers:   2,
		Retries:   1,
		Graph:     config.GraphConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "graph.db")},
		Documents: config.DocumentsConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "docs.db")},
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t)
	cfg := testConfig(t, root)

	b, err := OpenBackends(ctx, cfg, root)
	require.NoError(t, err)
	defer b.Close()
	require.NotNil(t, b.SQLite)

	res, err := New(cfg, b).Run(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Classes)
	assert.Equal(t, 1, res.Stats.DispatchCalls)
	assert.Equal(t, 1, res.Stats.InvokedMethods)
	assert.Equal(t, 1, res.Stats.StoredProcedures)
	assert.Equal(t, 1, res.Progress.Resolved)

	execs, err := b.SQLite.CountEdgesByType(ctx, graph.EdgeExecutes)
	require.NoError(t, err)
	assert.Equal(t, 1, execs)

	tr, err := b.SQLite.Outbound(ctx, fqn.MethodKey("Shop.Api", "OrderController", "Place"),
		[]string{graph.EdgeExecutes, graph.EdgeCalls}, 1, 0)
	require.NoError(t, err)
	var targets []string
	for _, e := range tr.Edges {
		targets = append(targets, e.To)
	}
	assert.ElementsMatch(t, []string{
		"Shop.Stock::StockService.GetStock",
		"Shop.Api::OrderValidator.Validate",
	}, targets)

	proc, err := b.SQLite.FindNodeByKey(ctx, fqn.ProcedureKey("dbo.CheckOrder"))
	require.NoError(t, err)
	assert.NotNil(t, proc)

	raw, err := b.Docs.Get(ctx, "Shop.Api::OrderController")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"className":"StockService"`)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t)
	cfg := testConfig(t, root)

	_, err := Run(ctx, cfg)
	require.NoError(t, err)

	s, err := store.OpenPath(cfg.Graph.SQLitePath)
	require.NoError(t, err)
	nodes1, err := s.CountNodes(ctx)
	require.NoError(t, err)
	edges1, err := s.CountEdges(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Run(ctx, cfg)
	require.NoError(t, err)

	s, err = store.OpenPath(cfg.Graph.SQLitePath)
	require.NoError(t, err)
	defer s.Close()
	nodes2, err := s.CountNodes(ctx)
	require.NoError(t, err)
	edges2, err := s.CountEdges(ctx)
	require.NoError(t, err)

	assert.Equal(t, nodes1, nodes2)
	assert.Equal(t, edges1, edges2)
}

func TestRunWithoutBackends(t *testing.T) {
	root := writeTree(t)
	cfg := testConfig(t, root)
	cfg.Graph.Backend = config.BackendNone
	cfg.Documents.Backend = config.BackendNone

	b, err := OpenBackends(context.Background(), cfg, root)
	require.NoError(t, err)
	assert.Nil(t, b.Graph)
	assert.Nil(t, b.Docs)

	res, err := New(cfg, b).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Classes)
	// Dispatch targets still resolve against the analyzed classes.
	assert.Equal(t, 1, res.Progress.Resolved)
	assert.Zero(t, res.Progress.Edges)
}

func TestRunMissingRoot(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent"))
	cfg.Graph.Backend = config.BackendNone
	cfg.Documents.Backend = config.BackendNone
	_, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, graph.ErrBackend))
}

func TestProjectNameFromPath(t *testing.T) {
	name := ProjectNameFromPath("/home/user/src/shop")
	assert.Equal(t, "home-user-src-shop", name)
	assert.False(t, strings.HasPrefix(ProjectNameFromPath("relative/dir"), "-"))
}
