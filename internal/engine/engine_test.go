package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/pgraf-cypher/internal/cache"
	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/history"
	"github.com/DeusData/pgraf-cypher/internal/store"
	"github.com/DeusData/pgraf-cypher/internal/translate"
	"github.com/DeusData/pgraf-cypher/internal/validate"
)

// fakeExec records statements and returns canned rows.
type fakeExec struct {
	mu   sync.Mutex
	sql  []string
	args [][]any
	rows [][]any
}

func (f *fakeExec) Query(ctx context.Context, query string, args ...any) (*store.Result, error) {
	res := &store.Result{}
	err := f.Stream(ctx, query, args, func(cols []string, row []any) error {
		res.Columns = cols
		res.Rows = append(res.Rows, row)
		return nil
	})
	return res, err
}

func (f *fakeExec) Stream(_ context.Context, query string, args []any, fn func([]string, []any) error) error {
	f.mu.Lock()
	f.sql = append(f.sql, query)
	f.args = append(f.args, args)
	f.mu.Unlock()
	for _, r := range f.rows {
		if err := fn([]string{"name"}, r); err != nil {
			return err
		}
	}
	return nil
}

func newHistory(t *testing.T) *history.Log {
	t.Helper()
	h, err := history.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestTranslateUsesCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory(16, 0)
	e := New(translate.New(translate.Config{}), WithCache(mem), WithValidation(true))

	first, err := e.Translate(ctx, "MATCH (n:Person) RETURN n.name", nil)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.NotEmpty(t, first.Fingerprint)
	assert.Equal(t, []any{"Person"}, first.Args())

	second, err := e.Translate(ctx, "MATCH (n:Person) RETURN n.name", nil)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.SQL, second.SQL)

	third, err := e.Translate(ctx, "MATCH (n:Person) WHERE n.age > $min RETURN n.name", map[string]any{"min": 30})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)

	stats, ok := e.CacheStats()
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 2, stats.Size)
}

func TestTranslateErrorsKeepTheirKind(t *testing.T) {
	e := New(translate.New(translate.Config{}))
	_, err := e.Translate(context.Background(), "", nil)
	assert.ErrorIs(t, err, cypher.ErrInput)

	_, err = e.Translate(context.Background(), "MATCH (a)-[*0..2]->(b) RETURN b", nil)
	assert.ErrorIs(t, err, cypher.ErrUnsupported)
	assert.False(t, errors.Is(err, validate.ErrInvalidSQL))
}

func TestTranslateRecordsHistory(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)
	e := New(translate.New(translate.Config{}), WithHistory(h), WithCache(cache.NewMemory(4, 0)))

	_, err := e.Translate(ctx, "MATCH (a)-[:KNOWS*1..2]->(b) RETURN b", nil)
	require.NoError(t, err)
	_, err = e.Translate(ctx, "MATCH (a)-[:KNOWS*1..2]->(b) RETURN b", nil)
	require.NoError(t, err)
	_, err = e.Translate(ctx, "CREATE (n)", nil)
	require.Error(t, err)

	entries, err := e.History().Recent(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.NotEmpty(t, entries[0].Error)
	assert.True(t, entries[1].CacheHit)
	assert.Equal(t, []string{"recursive"}, entries[2].Strategies)
	assert.Contains(t, entries[2].SQL, "WITH RECURSIVE")
}

func TestConcurrentIdenticalTranslations(t *testing.T) {
	e := New(translate.New(translate.Config{}), WithCache(cache.NewMemory(4, 0)))
	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := e.Translate(context.Background(), "MATCH (a:A)-[:R]->(b:B) RETURN a, b", nil)
			if assert.NoError(t, err) {
				results[i] = tr.SQL
			}
		}()
	}
	wg.Wait()
	for _, sql := range results {
		assert.Equal(t, results[0], sql)
	}
}

func TestTranslateBatch(t *testing.T) {
	e := New(translate.New(translate.Config{}), WithConcurrency(2))
	items, err := e.TranslateBatch(context.Background(), []string{
		"MATCH (n)",
		"MERGE (n)",
		"MATCH (a)-[:KNOWS]->(b) RETURN b",
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, "MATCH (n)", items[0].Query)
	assert.ErrorIs(t, items[1].Err, cypher.ErrInput)
	require.NotNil(t, items[2].Translation)
	assert.Contains(t, items[2].Translation.SQL, `"pgraf"."edges"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.TranslateBatch(ctx, []string{"MATCH (n)"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteAndStream(t *testing.T) {
	ctx := context.Background()
	x := &fakeExec{rows: [][]any{{"Ada"}, {"Bob"}}}
	e := New(translate.New(translate.Config{}), WithExecutor(x))

	out, err := e.Execute(ctx, "MATCH (n:Person) RETURN n.name AS name", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, out.Result.Columns)
	assert.Len(t, out.Result.Rows, 2)
	assert.Equal(t, out.Translation.SQL, x.sql[0])
	assert.Equal(t, []any{"Person"}, x.args[0])

	var seen []any
	err = e.Stream(ctx, "MATCH (n:Person) RETURN n.name AS name", nil, func(_ []string, row []any) error {
		seen = append(seen, row[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"Ada", "Bob"}, seen)
}

func TestExecuteNeedsExecutorAndDollarPlaceholders(t *testing.T) {
	ctx := context.Background()
	_, err := New(translate.New(translate.Config{})).Execute(ctx, "MATCH (n)", nil)
	assert.ErrorIs(t, err, ErrNoExecutor)

	named := New(translate.New(translate.Config{Placeholders: translate.PlaceholderNamed}), WithExecutor(&fakeExec{}))
	_, err = named.Execute(ctx, "MATCH (n)", nil)
	assert.Error(t, err)
}
