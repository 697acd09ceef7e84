package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/pgraf-cypher/internal/translate"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func cleanEnv(t *testing.T) {
	unsetEnv(t, "DATABASE_URL", "PGRAF_CYPHER_DATABASE_URL", "PGRAF_CYPHER_SCHEMA",
		"PGRAF_CYPHER_CACHE_REDIS_ADDR", "PGRAF_CYPHER_LOG_LEVEL", "PGRAF_CYPHER_MAX_PATH_DEPTH")
}

func write(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestDefaults(t *testing.T) {
	cleanEnv(t)
	fs := afero.NewMemMapFs()
	cfg, err := Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)

	assert.Equal(t, "pgraf", cfg.Schema)
	assert.Equal(t, "nodes", cfg.NodesTable)
	assert.Equal(t, "dollar", cfg.PlaceholderStyle)
	assert.Equal(t, 10, cfg.MaxPathDepth)
	assert.Equal(t, 5, cfg.DefaultMaxHops)
	assert.True(t, cfg.ValidateSQL)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 1024, cfg.Cache.Size)
	assert.Equal(t, "/home/u/.cache/pgraf-cypher/history.db", cfg.History.Path)
	assert.Empty(t, cfg.File)
}

func TestConfigFileSearchOrder(t *testing.T) {
	cleanEnv(t)
	fs := afero.NewMemMapFs()
	write(t, fs, "/home/u/.config/pgraf-cypher/.pgraf-cypher.yaml", "schema: fromxdg\n")
	write(t, fs, "/home/u/.pgraf-cypher.yaml", "schema: fromhome\n")

	cfg, err := Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "fromhome", cfg.Schema)
	assert.Equal(t, "/home/u/.pgraf-cypher.yaml", cfg.File)

	write(t, fs, "/work/.pgraf-cypher.yaml", `
schema: graph
placeholder_style: named
case_insensitive_match: true
database:
  max_open_conns: 3
  conn_max_lifetime: 90s
cache:
  ttl: 5m
history:
  path: ~/h.db
log:
  level: debug
`)
	cfg, err = Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "graph", cfg.Schema)
	assert.Equal(t, "named", cfg.PlaceholderStyle)
	assert.True(t, cfg.CaseInsensitiveMatch)
	assert.Equal(t, 3, cfg.Database.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.NotContains(t, cfg.History.Path, "~")
	assert.Equal(t, "debug", cfg.Log.Level)

	tc := cfg.Translator()
	assert.Equal(t, translate.PlaceholderNamed, tc.Placeholders)
	assert.Equal(t, "graph", tc.Schema)
	assert.Equal(t, "graph", cfg.Store().Layout.Schema)
}

func TestExplicitFileMustExist(t *testing.T) {
	cleanEnv(t)
	fs := afero.NewMemMapFs()
	_, err := Loader{Fs: fs, File: "/nope.yaml", Dir: "/work", Home: "/home/u"}.Load()
	assert.Error(t, err)

	write(t, fs, "/etc/pc.yaml", "edges_table: rels\n")
	cfg, err := Loader{Fs: fs, File: "/etc/pc.yaml", Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "rels", cfg.EdgesTable)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	cleanEnv(t)
	fs := afero.NewMemMapFs()
	write(t, fs, "/work/.pgraf-cypher.yaml", "schema: graph\nmax_path_depth: 4\n")
	t.Setenv("PGRAF_CYPHER_SCHEMA", "fromenv")
	t.Setenv("PGRAF_CYPHER_CACHE_REDIS_ADDR", "localhost:6379")

	cfg, err := Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Schema)
	assert.Equal(t, 4, cfg.MaxPathDepth)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
}

func TestDotenv(t *testing.T) {
	cleanEnv(t)
	fs := afero.NewMemMapFs()
	write(t, fs, "/work/.env", "DATABASE_URL=postgres://a@db/one\nPGRAF_CYPHER_LOG_LEVEL=warn\nPGRAF_CYPHER_MAX_PATH_DEPTH=7\n")
	write(t, fs, "/work/.env.local", "DATABASE_URL=postgres://b@db/two\n")

	cfg, err := Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://b@db/two", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7, cfg.MaxPathDepth)

	t.Setenv("DATABASE_URL", "postgres://c@db/three")
	t.Setenv("PGRAF_CYPHER_LOG_LEVEL", "error")
	cfg, err = Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://c@db/three", cfg.Database.URL)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cleanEnv(t)
	tests := []struct {
		name string
		file string
	}{
		{"placeholder", "placeholder_style: qmark\n"},
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
		{"depth", "max_path_depth: 0\n"},
		{"concurrency", "batch:\n  concurrency: 0\n"},
		{"cache size", "cache:\n  size: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			write(t, fs, "/work/.pgraf-cypher.yaml", tt.file)
			_, err := Loader{Fs: fs, Dir: "/work", Home: "/home/u"}.Load()
			assert.Error(t, err)
		})
	}
}

func TestYAMLRedactsPassword(t *testing.T) {
	cleanEnv(t)
	cfg, err := Loader{Fs: afero.NewMemMapFs(), Dir: "/work", Home: "/home/u"}.Load()
	require.NoError(t, err)
	cfg.Database.URL = "postgres://user:secret@db:5432/graph"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Equal(t, "postgres://user:secret@db:5432/graph", cfg.Database.URL)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "pgraf", back["schema"])
	assert.Equal(t, "1h0m0s", back["cache"].(map[string]any)["ttl"])
}

func TestReadQueryFile(t *testing.T) {
	old := AppFs
	AppFs = afero.NewMemMapFs()
	t.Cleanup(func() { AppFs = old })

	write(t, AppFs, "/q/people.cypher", "MATCH (n:Person) RETURN n")
	q, err := ReadQueryFile("/q/people.cypher")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n:Person) RETURN n", q)

	_, err = ReadQueryFile("/q/missing.cypher")
	assert.Error(t, err)
}
