package neo4jgraph

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/executer-finder/internal/graph"
)

func TestEdgeQueryKnownKinds(t *testing.T) {
	for _, kind := range graph.EdgeKinds {
		q, err := edgeQuery(kind)
		require.NoError(t, err)
		assert.Contains(t, q, "[r:"+kind+"]")
	}
}

func TestEdgeQueryRejectsUnknownKind(t *testing.T) {
	_, err := edgeQuery("CALLS]->(x) DETACH DELETE x //")
	assert.Error(t, err)
}

func TestResultHelpers(t *testing.T) {
	res := &neo4j.EagerResult{
		Keys: []string{"key"},
		Records: []*neo4j.Record{
			{Keys: []string{"key"}, Values: []any{"A::C.M"}},
			{Keys: []string{"key"}, Values: []any{""}},
			{Keys: []string{"key"}, Values: []any{"B::D.M"}},
		},
	}
	assert.Equal(t, []string{"A::C.M", "B::D.M"}, stringColumn(res, "key"))
	assert.Empty(t, stringColumn(nil, "key"))

	count := &neo4j.EagerResult{Records: []*neo4j.Record{{Keys: []string{"n"}, Values: []any{int64(1)}}}}
	assert.Equal(t, int64(1), countOf(count))
	assert.Equal(t, int64(0), countOf(&neo4j.EagerResult{}))
}

func TestOpenRequiresURI(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

var _ graph.GraphStore = (*Store)(nil)
