package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/translate"
)

func TestCheckRejects(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"syntax", "SELEC 1"},
		{"two statements", "SELECT 1; SELECT 2"},
		{"not a select", `DELETE FROM "pgraf"."nodes"`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Check(tt.sql), ErrInvalidSQL)
		})
	}
}

func TestNormalizePlaceholders(t *testing.T) {
	got := normalizePlaceholders(`SELECT %(p0)s, %(p1)s, '100%'`)
	assert.Equal(t, `SELECT $1, $2, '100%'`, got)
}

func TestInspectShape(t *testing.T) {
	r, err := Inspect(`WITH RECURSIVE "path" AS (SELECT 1) SELECT * FROM "path"`)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.True(t, r.Recursive)
	assert.Equal(t, 1, r.CTEs)
	assert.NotEmpty(t, r.Fingerprint)

	r, err = Inspect(`(SELECT 1) UNION ALL (SELECT 2)`)
	require.NoError(t, err)
	assert.True(t, r.SetOp)
}

func TestFingerprintIgnoresConstants(t *testing.T) {
	a, err := Inspect(`SELECT * FROM "pgraf"."nodes" AS "n" WHERE "n"."labels" && ARRAY['A']`)
	require.NoError(t, err)
	b, err := Inspect(`SELECT * FROM "pgraf"."nodes" AS "n" WHERE "n"."labels" && ARRAY['B']`)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestTranslatedQueriesParse(t *testing.T) {
	queries := []string{
		"MATCH (n)",
		"MATCH (n:Person {name: 'Ada', age: 36}) WHERE n.age > 30 RETURN n.name ORDER BY n.name LIMIT 5",
		"MATCH (a)-[:KNOWS|LIKES]-(b) RETURN a, b",
		"MATCH (a:Person)-[r:KNOWS*1..3]->(b) RETURN b.name, length(r)",
		"MATCH (a)-[:A]->(b)-[*2..]->(c) RETURN c",
		"MATCH (a:Person), (b:Company) WHERE a.employer = b.name RETURN a, b",
		"MATCH (a:Person) OPTIONAL MATCH (a)-[:OWNS]->(c:Car) RETURN a.name, count(c) AS cars",
		"MATCH p = shortestPath((a:Person)-[:KNOWS*]->(b:Person)) RETURN p, length(p)",
		"MATCH (a) WHERE EXISTS { MATCH (a)-[:KNOWS]->(:Person) } RETURN a",
		"MATCH (n:A) RETURN n.x UNION MATCH (n:B) RETURN n.x",
		"MATCH (n) WHERE n.name STARTS WITH 'A' AND n.tag IN ['x', 'y'] RETURN DISTINCT n.name",
		"SHOW DATABASES",
	}
	for _, style := range []translate.PlaceholderStyle{translate.PlaceholderDollar, translate.PlaceholderNamed, translate.PlaceholderPyFormat} {
		tr := translate.New(translate.Config{Placeholders: style})
		for _, q := range queries {
			doc, err := cypher.Parse(q)
			require.NoError(t, err, q)
			res, err := tr.Translate(doc)
			require.NoError(t, err, q)
			assert.NoError(t, Check(res.SQL), "%s: %s", style, res.SQL)
		}
	}
}
