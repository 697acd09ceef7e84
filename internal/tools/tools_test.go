package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/pgraf-cypher/internal/cache"
	"github.com/DeusData/pgraf-cypher/internal/engine"
	"github.com/DeusData/pgraf-cypher/internal/history"
	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/translate"
)

type rowsExec struct {
	args [][]any
	rows int
}

func (r *rowsExec) Query(ctx context.Context, query string, args ...any) (*store.Result, error) {
	res := &store.Result{}
	err := r.Stream(ctx, query, args, func(cols []string, row []any) error {
		res.Columns = cols
		res.Rows = append(res.Rows, row)
		return nil
	})
	return res, err
}

func (r *rowsExec) Stream(_ context.Context, _ string, args []any, fn func([]string, []any) error) error {
	r.args = append(r.args, args)
	for i := 0; i < r.rows; i++ {
		if err := fn([]string{"i"}, []any{int64(i)}); err != nil {
			return err
		}
	}
	return nil
}

type staticSchema struct{}

func (staticSchema) GetSchema(context.Context) (*store.SchemaInfo, error) {
	return &store.SchemaInfo{
		NodeCount:  2,
		NodeLabels: []store.LabelCount{{Label: "Person", Count: 2}},
	}, nil
}

func newTestServer(t *testing.T, exec store.Executor, schema SchemaSource) *Server {
	t.Helper()
	h, err := history.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	opts := []engine.Option{engine.WithHistory(h), engine.WithCache(cache.NewMemory(8, 0))}
	if exec != nil {
		opts = append(opts, engine.WithExecutor(exec))
	}
	return NewServer(engine.New(translate.New(translate.Config{}), opts...), schema, "test")
}

func call(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args string) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)}}
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	var out map[string]any
	if !res.IsError {
		require.NoError(t, json.Unmarshal([]byte(text), &out), text)
	} else {
		out = map[string]any{"error": text}
	}
	return res, out
}

func TestTranslateCypherTool(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	res, out := call(t, srv.handleTranslateCypher, `{"query": "MATCH (n:Person) WHERE n.age > $min RETURN n.name", "params": {"min": 30}}`)
	require.False(t, res.IsError, out["error"])
	assert.Contains(t, out["sql"], `FROM "pgraf"."nodes" AS "n"`)
	assert.Equal(t, []any{"simple"}, out["strategies"])
	assert.Equal(t, false, out["cache_hit"])

	_, out = call(t, srv.handleTranslateCypher, `{"query": "MATCH (n:Person) WHERE n.age > $min RETURN n.name", "params": {"min": 30}}`)
	assert.Equal(t, true, out["cache_hit"])
}

func TestTranslateCypherToolErrors(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	res, out := call(t, srv.handleTranslateCypher, `{}`)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "missing required 'query'")

	res, out = call(t, srv.handleTranslateCypher, `{"query": "MERGE (n)"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "invalid query")

	res, out = call(t, srv.handleTranslateCypher, `{"query": "MATCH (a)-[*0..1]->(b) RETURN b"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "unsupported")

	res, _ = call(t, srv.handleTranslateCypher, `{"query": "MATCH (n)", "params": [1]}`)
	assert.True(t, res.IsError)
}

func TestTranslateCypherBatch(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	res, out := call(t, srv.handleTranslateCypher, `{"queries": ["MATCH (n)", "DELETE n", "MATCH (a)-[:R*]->(b) RETURN b"]}`)
	require.False(t, res.IsError)
	assert.Equal(t, float64(3), out["total"])
	assert.Equal(t, float64(1), out["failed"])
	results := out["results"].([]any)
	assert.Contains(t, results[1].(map[string]any)["error"], "invalid query")
	assert.Equal(t, []any{"recursive"}, results[2].(map[string]any)["strategies"])
}

func TestQueryGraphTool(t *testing.T) {
	exec := &rowsExec{rows: 5}
	srv := newTestServer(t, exec, nil)

	res, out := call(t, srv.handleQueryGraph, `{"query": "MATCH (n:Person) RETURN n", "max_rows": 3}`)
	require.False(t, res.IsError, out["error"])
	assert.Equal(t, float64(3), out["total"])
	assert.Equal(t, true, out["truncated"])
	assert.Equal(t, []any{"i"}, out["columns"])
	assert.Equal(t, []any{"Person"}, exec.args[0])

	_, out = call(t, srv.handleQueryGraph, `{"query": "MATCH (n:Person) RETURN n"}`)
	assert.Equal(t, false, out["truncated"])
	assert.Equal(t, float64(5), out["total"])
}

func TestQueryGraphWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	res, out := call(t, srv.handleQueryGraph, `{"query": "MATCH (n)"}`)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "not configured")

	res, _ = call(t, srv.handleGetGraphSchema, `{}`)
	assert.True(t, res.IsError)
}

func TestGetGraphSchemaTool(t *testing.T) {
	srv := newTestServer(t, nil, staticSchema{})
	res, out := call(t, srv.handleGetGraphSchema, `{}`)
	require.False(t, res.IsError)
	assert.Equal(t, "pgraf", out["schema"])
	assert.Equal(t, float64(2), out["node_count"])
	labels := out["node_labels"].([]any)
	assert.Equal(t, "Person", labels[0].(map[string]any)["label"])
}

func TestTranslationHistoryTool(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv.handleTranslateCypher, `{"query": "MATCH (n)"}`)
	call(t, srv.handleTranslateCypher, `{"query": "SET n.x = 1"}`)

	res, out := call(t, srv.handleTranslationHistory, `{"limit": 10}`)
	require.False(t, res.IsError)
	assert.Equal(t, float64(2), out["total"])
	assert.Contains(t, out, "cache")

	_, out = call(t, srv.handleTranslationHistory, `{"failed_only": true}`)
	assert.Equal(t, float64(1), out["total"])
	entry := out["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "SET n.x = 1", entry["query"])
}

func TestGetParamsIntegral(t *testing.T) {
	got, err := getParams(map[string]any{"params": map[string]any{"a": float64(3), "b": 1.5, "c": []any{float64(1)}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(3), "b": 1.5, "c": []any{int64(1)}}, got)
}
