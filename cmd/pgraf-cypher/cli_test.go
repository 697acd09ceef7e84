package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/history"
	"github.com/DeusData/pgraf-cypher/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// testEnv isolates a run from the user's environment and returns a config
// file that keeps history inside a temp dir.
func testEnv(t *testing.T) (cfgFile, dir string) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "PGRAF_CYPHER_DATABASE_URL", "PGRAF_CYPHER_CACHE_REDIS_ADDR", "PGRAF_CYPHER_SCHEMA"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir = t.TempDir()
	t.Setenv("HOME", dir)
	cfgFile = filepath.Join(dir, "pgraf-cypher.yaml")
	content := "log:\n  level: error\nhistory:\n  path: " + filepath.Join(dir, "history.db") + "\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))
	return cfgFile, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pgraf-cypher dev\n", out)
}

func TestTranslateText(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, "--config", cfg, "translate", "MATCH (a)-[:KNOWS*1..2]->(b) RETURN b")
	require.NoError(t, err)
	assert.Contains(t, out, "WITH RECURSIVE")
	assert.Contains(t, out, "-- strategies: recursive")
}

func TestTranslateJSONWithParams(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, "--config", cfg, "translate", "--json",
		"-p", `name="Ada"`, "-p", "age=36",
		"MATCH (n:Person {name: $name}) WHERE n.age > $age RETURN n")
	require.NoError(t, err)

	var got struct {
		SQL        string         `json:"sql"`
		Parameters map[string]any `json:"parameters"`
		Strategies []string       `json:"strategies"`
		CacheHit   bool           `json:"cache_hit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got.SQL, `"pgraf"."nodes"`)
	assert.Contains(t, got.Parameters, "p0")
	values := make([]any, 0, len(got.Parameters))
	for _, v := range got.Parameters {
		values = append(values, v)
	}
	assert.Contains(t, values, "Ada")
	assert.Equal(t, []string{"simple"}, got.Strategies)
	assert.False(t, got.CacheHit)
}

func TestTranslateFromFile(t *testing.T) {
	cfg, dir := testEnv(t)
	q := filepath.Join(dir, "q.cypher")
	require.NoError(t, os.WriteFile(q, []byte("MATCH (a:A)-[:R]->(b:B)\nRETURN a, b\n"), 0o600))

	out, err := run(t, "--config", cfg, "translate", "-f", q)
	require.NoError(t, err)
	assert.Contains(t, out, `"pgraf"."edges"`)

	_, err = run(t, "--config", cfg, "translate", "-f", q, "MATCH (n) RETURN n")
	assert.Error(t, err)
}

func TestTranslateErrors(t *testing.T) {
	cfg, _ := testEnv(t)

	_, err := run(t, "--config", cfg, "translate", "MERGE (n)")
	assert.ErrorIs(t, err, cypher.ErrInput)

	_, err = run(t, "--config", cfg, "translate", "MATCH (a)-[*0..2]->(b) RETURN b")
	assert.ErrorIs(t, err, cypher.ErrUnsupported)

	_, err = run(t, "--config", cfg, "translate")
	assert.EqualError(t, err, "no query given")
}

func TestTranslateBatchFiles(t *testing.T) {
	cfg, dir := testEnv(t)
	good := filepath.Join(dir, "good.cypher")
	bad := filepath.Join(dir, "bad.cypher")
	require.NoError(t, os.WriteFile(good, []byte("MATCH (n:Person) RETURN n.name"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("DELETE n"), 0o600))

	out, err := run(t, "--config", cfg, "translate", "-f", good, "-f", bad, "--json")
	assert.EqualError(t, err, "1 of 2 queries failed")

	var items []struct {
		File        string          `json:"file"`
		Translation json.RawMessage `json:"translation"`
		Error       string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, good, items[0].File)
	assert.NotEmpty(t, items[0].Translation)
	assert.Empty(t, items[0].Error)
	assert.Equal(t, bad, items[1].File)
	assert.NotEmpty(t, items[1].Error)
}

func TestHistoryRecordsTranslations(t *testing.T) {
	cfg, _ := testEnv(t)
	_, err := run(t, "--config", cfg, "translate", "MATCH (n) RETURN n")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "translate", "CREATE (n)")
	require.Error(t, err)

	out, err := run(t, "--config", cfg, "history", "--json")
	require.NoError(t, err)
	var entries []*history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].Error)
	assert.Equal(t, "MATCH (n) RETURN n", entries[1].Query)

	out, err = run(t, "--config", cfg, "history", "--failed")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE (n)")
	assert.NotContains(t, out, "MATCH (n) RETURN n")

	out, err = run(t, "--config", cfg, "history", entries[1].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "-- strategies: simple")

	out, err = run(t, "--config", cfg, "history", "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 1 entries")
}

func TestDatabaseCommandsNeedDatabase(t *testing.T) {
	cfg, _ := testEnv(t)
	for _, args := range [][]string{
		{"query", "MATCH (n) RETURN n"},
		{"schema"},
		{"init-schema"},
		{"node", "get", "x"},
		{"node", "list", "--label", "Person"},
		{"node", "put", "--label", "Person"},
		{"node", "delete", "x"},
		{"edges", "--type", "KNOWS"},
	} {
		_, err := run(t, append([]string{"--config", cfg}, args...)...)
		assert.ErrorIs(t, err, errNoDatabase, args[0])
	}
}

func TestConfigShow(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, "--config", cfg, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# "+cfg)
	assert.Contains(t, out, "schema: pgraf")
	assert.Contains(t, out, "level: error")
	assert.Contains(t, out, "placeholder_style: dollar")
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{`name="Ada"`, "age=36", "ratio=0.5", "tags=[1,2]", "raw=hello world", "$flag=true", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":  "Ada",
		"age":   int64(36),
		"ratio": 0.5,
		"tags":  []any{int64(1), int64(2)},
		"raw":   "hello world",
		"flag":  true,
		"empty": "",
	}, got)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=1"})
	assert.Error(t, err)

	got, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEditorInstallAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	in := &installer{fs: fs, out: &out, findCLI: func(string) string { return "" }}
	target := editorTarget{name: "Cursor", path: "/home/u/.cursor/mcp.json"}
	require.NoError(t, afero.WriteFile(fs, target.path, []byte(`{"mcpServers":{"other":{"command":"x"}}}`), 0o600))

	require.NoError(t, in.installEditor(target, "/usr/local/bin/pgraf-cypher", []string{"serve"}))
	// Idempotent.
	require.NoError(t, in.installEditor(target, "/usr/local/bin/pgraf-cypher", []string{"serve"}))

	var root map[string]map[string]map[string]any
	data, err := afero.ReadFile(fs, target.path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &root))
	assert.Len(t, root["mcpServers"], 2)
	assert.Equal(t, "/usr/local/bin/pgraf-cypher", root["mcpServers"][mcpServerKey]["command"])
	assert.Equal(t, []any{"serve"}, root["mcpServers"][mcpServerKey]["args"])

	require.NoError(t, in.removeEditor(target))
	data, err = afero.ReadFile(fs, target.path)
	require.NoError(t, err)
	root = nil
	require.NoError(t, json.Unmarshal(data, &root))
	assert.Len(t, root["mcpServers"], 1)
	assert.Contains(t, root["mcpServers"], "other")
}

func TestEditorInstallDryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	in := &installer{fs: fs, out: &out, dryRun: true}
	target := editorTarget{name: "Windsurf", path: "/home/u/.codeium/windsurf/mcp_config.json"}

	require.NoError(t, in.installEditor(target, "/bin/pgraf-cypher", []string{"serve"}))
	exists, err := afero.Exists(fs, target.path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Contains(t, out.String(), "[dry-run] would upsert pgraf-cypher")
}

func TestClaudeCodeRegistration(t *testing.T) {
	var out bytes.Buffer
	var calls [][]string
	in := &installer{
		out:     &out,
		findCLI: func(string) string { return "/bin/claude" },
		runCLI: func(path string, args ...string) error {
			calls = append(calls, append([]string{path}, args...))
			return nil
		},
	}
	in.registerClaudeCode("/bin/pgraf-cypher", []string{"serve", "--config", "/etc/pgraf.yaml"})
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"/bin/claude", "mcp", "remove", "-s", "user", "pgraf-cypher"}, calls[0])
	assert.Equal(t, []string{"/bin/claude", "mcp", "add", "--scope", "user", "pgraf-cypher", "--",
		"/bin/pgraf-cypher", "serve", "--config", "/etc/pgraf.yaml"}, calls[1])
}

func TestParseGraphFile(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"yaml", "nodes:\n  - key: ada\n    labels: [Person]\n    properties: {name: Ada}\nedges: []\n", ""},
		{"json", `{"nodes":[{"labels":["Person"]}],"edges":[{"source":"a","target":"b","labels":["KNOWS"]}]}`, ""},
		{"no labels", "nodes:\n  - key: ada\n", "node 0: no labels"},
		{"duplicate key", "nodes:\n  - {key: a, labels: [X]}\n  - {key: a, labels: [Y]}\n", `node 1: duplicate key "a"`},
		{"edge without target", "edges:\n  - {source: a, labels: [R]}\n", "edge 0: source and target are required"},
		{"edge without type", "edges:\n  - {source: a, target: b}\n", "edge 0: no type"},
		{"malformed", "nodes: [", "parse graph file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGraphFile([]byte(tt.data))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	g, err := parseGraphFile([]byte("nodes:\n  - key: ada\n    id: 0b8f6e2a-0000-4000-8000-000000000001\n    labels: [Person]\n    properties: {name: Ada, age: 36}\n"))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "ada", g.Nodes[0].Key)
	assert.Equal(t, "0b8f6e2a-0000-4000-8000-000000000001", g.Nodes[0].Node.ID)
	assert.Equal(t, []string{"Person"}, g.Nodes[0].Node.Labels)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36}, g.Nodes[0].Node.Properties)
}

func TestResolveEndpoint(t *testing.T) {
	ids := map[string]string{"ada": "id-1"}
	assert.Equal(t, "id-1", resolveEndpoint(ids, "ada"))
	assert.Equal(t, "id-9", resolveEndpoint(ids, "id-9"))
}

func TestEdgesNeedOneFilter(t *testing.T) {
	cfg, _ := testEnv(t)
	_, err := run(t, "--config", cfg, "edges")
	assert.EqualError(t, err, "exactly one of --from and --type is required")
	_, err = run(t, "--config", cfg, "edges", "--from", "a", "--type", "R")
	assert.Error(t, err)
}

// dbEnv extends testEnv with PGRAF_CYPHER_TEST_DSN and a throwaway schema.
func dbEnv(t *testing.T) (cfgFile, dir string) {
	t.Helper()
	dsn := os.Getenv("PGRAF_CYPHER_TEST_DSN")
	if dsn == "" {
		t.Skip("PGRAF_CYPHER_TEST_DSN not set")
	}
	cfgFile, dir = testEnv(t)
	schema := "pgraf_cli_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	content := "schema: " + schema + "\ndatabase:\n  url: " + dsn + "\nlog:\n  level: error\nhistory:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o600))
	t.Cleanup(func() {
		ctx := context.Background()
		st, err := store.Open(ctx, dsn, store.Options{Layout: store.Layout{Schema: schema}})
		if err != nil {
			return
		}
		_, _ = st.DB().ExecContext(ctx, `DROP SCHEMA IF EXISTS "`+schema+`" CASCADE`)
		st.Close()
	})
	return cfgFile, dir
}

func TestSeedAndInspectGraph(t *testing.T) {
	cfg, dir := dbEnv(t)
	file := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
nodes:
  - {key: ada, labels: [Person], properties: {name: Ada}}
  - {key: bob, labels: [Person], properties: {name: Bob}}
  - {key: acme, labels: [Company], properties: {name: Acme}}
edges:
  - {source: ada, target: bob, labels: [KNOWS], properties: {since: 2020}}
  - {source: bob, target: acme, labels: [WORKS_AT]}
`), 0o600))

	out, err := run(t, "--config", cfg, "seed", "--init", "--json", file)
	require.NoError(t, err)
	var seeded struct {
		Nodes int               `json:"nodes"`
		Edges int               `json:"edges"`
		Keys  map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	assert.Equal(t, 3, seeded.Nodes)
	assert.Equal(t, 2, seeded.Edges)
	require.Len(t, seeded.Keys, 3)

	out, err = run(t, "--config", cfg, "node", "get", seeded.Keys["ada"])
	require.NoError(t, err)
	var got struct {
		Node  store.Node    `json:"node"`
		Edges []*store.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Ada", got.Node.Properties["name"])
	require.Len(t, got.Edges, 1)
	assert.Equal(t, seeded.Keys["bob"], got.Edges[0].Target)

	out, err = run(t, "--config", cfg, "edges", "--type", "WORKS_AT")
	require.NoError(t, err)
	var edges []*store.Edge
	require.NoError(t, json.Unmarshal([]byte(out), &edges))
	require.Len(t, edges, 1)
	assert.Equal(t, seeded.Keys["acme"], edges[0].Target)

	out, err = run(t, "--config", cfg, "node", "put", "-l", "Person", "-p", `name="Cy"`)
	require.NoError(t, err)
	cy := strings.TrimSpace(out)
	require.NotEmpty(t, cy)

	out, err = run(t, "--config", cfg, "node", "list", "-l", "Person")
	require.NoError(t, err)
	var people []*store.Node
	require.NoError(t, json.Unmarshal([]byte(out), &people))
	assert.Len(t, people, 3)

	_, err = run(t, "--config", cfg, "node", "delete", seeded.Keys["bob"])
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "node", "get", seeded.Keys["bob"])
	assert.ErrorIs(t, err, errNodeNotFound)

	out, err = run(t, "--config", cfg, "query", "--json", "MATCH (a:Person)-[:KNOWS]->(b) RETURN b")
	require.NoError(t, err)
	assert.NotContains(t, out, "Bob")
}
