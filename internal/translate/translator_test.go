package translate

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
)

const nodeCols = `"n"."id" AS "n_id", "n"."labels" AS "n_labels", "n"."properties" AS "n_properties", "n"."mimetype" AS "n_mimetype", "n"."content" AS "n_content"`

func mustTranslate(t *testing.T, tr *Translator, query string, opts ...Option) *Result {
	t.Helper()
	doc, err := cypher.Parse(query)
	require.NoError(t, err, "parse %q", query)
	res, err := tr.Translate(doc, opts...)
	require.NoError(t, err, "translate %q", query)
	return res
}

func translateErr(t *testing.T, query string) error {
	t.Helper()
	doc, err := cypher.Parse(query)
	require.NoError(t, err, "parse %q", query)
	res, err := New(Config{}).Translate(doc)
	require.Error(t, err, "translate %q", query)
	assert.Nil(t, res)
	return err
}

func TestSingleNode(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n)")
	assert.Equal(t, `SELECT `+nodeCols+` FROM "pgraf"."nodes" AS "n"`, res.SQL)
	assert.Empty(t, res.Parameters)
	assert.Equal(t, []Strategy{StrategySimple}, res.Strategies)
}

func TestLabelFilter(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n:Person)")
	assert.Equal(t, `SELECT `+nodeCols+` FROM "pgraf"."nodes" AS "n" WHERE "n"."labels" && ARRAY[$1]`, res.SQL)
	assert.Equal(t, map[string]any{"p0": "Person"}, res.Parameters)
	assert.Equal(t, []any{"Person"}, res.Args())
}

func TestAllLabelsUseContainment(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n:Person:Admin)")
	assert.Contains(t, res.SQL, `"n"."labels" @> ARRAY[$1, $2]`)
	assert.Equal(t, []any{"Person", "Admin"}, res.Args())
}

func TestUndirectedRelationship(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (a)-[:KNOWS]-(b)")
	sql := res.SQL

	assert.Contains(t, sql, `JOIN "pgraf"."edges" AS "e0" ON ("e0"."source" = "a"."id" OR "e0"."target" = "a"."id")`)
	assert.Contains(t, sql, `JOIN "pgraf"."nodes" AS "b" ON (("e0"."source" = "a"."id" AND "e0"."target" = "b"."id") OR ("e0"."target" = "a"."id" AND "e0"."source" = "b"."id"))`)
	assert.Contains(t, sql, `WHERE "e0"."labels" && ARRAY[$1] AND "a"."id" <> "b"."id"`)
	assert.Equal(t, map[string]any{"p0": "KNOWS"}, res.Parameters)
	assert.NotContains(t, sql, `"e0_id"`, "anonymous relationships have no output columns")
}

func TestDirectedRelationships(t *testing.T) {
	out := mustTranslate(t, New(Config{}), "MATCH (a)-[r:KNOWS]->(b)").SQL
	assert.Contains(t, out, `JOIN "pgraf"."edges" AS "r" ON "r"."source" = "a"."id"`)
	assert.Contains(t, out, `JOIN "pgraf"."nodes" AS "b" ON "r"."target" = "b"."id"`)
	assert.Contains(t, out, `"r"."source" AS "r_source"`)

	in := mustTranslate(t, New(Config{}), "MATCH (a)<-[r:KNOWS]-(b)").SQL
	assert.Contains(t, in, `JOIN "pgraf"."edges" AS "r" ON "r"."target" = "a"."id"`)
	assert.Contains(t, in, `JOIN "pgraf"."nodes" AS "b" ON "r"."source" = "b"."id"`)
}

func TestVariableLengthUsesRecursiveCTE(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (a)-[:KNOWS*1..5]->(b)")
	sql := res.SQL

	assert.True(t, strings.HasPrefix(sql, `WITH RECURSIVE "path" AS (SELECT "n1"."id" AS "start_id", "n2"."id" AS "end_id"`), sql)
	assert.Contains(t, sql, ` UNION ALL SELECT "p"."start_id", "n2"."id"`)
	assert.Contains(t, sql, `"p"."depth" < 5`)
	assert.Contains(t, sql, `NOT "n2"."id" = ANY("p"."path_nodes")`)
	assert.Contains(t, sql, `JOIN "path" AS "p" ON "p"."start_id" = "a"."id"`)
	assert.Contains(t, sql, `WHERE "p"."depth" BETWEEN 1 AND 5`)
	assert.True(t, strings.HasSuffix(sql, `ORDER BY "p"."depth"`), sql)
	assert.Equal(t, 2, strings.Count(sql, "ARRAY[$1]"), "base and recursive branch share the type placeholder")
	assert.Equal(t, map[string]any{"p0": "KNOWS"}, res.Parameters)
	assert.Equal(t, []Strategy{StrategyRecursive}, res.Strategies)
}

func TestVariableLengthDefaults(t *testing.T) {
	sql := mustTranslate(t, New(Config{DefaultMaxHops: 3}), "MATCH (a)-[*]->(b)").SQL
	assert.Contains(t, sql, `BETWEEN 1 AND 3`)

	sql = mustTranslate(t, New(Config{}), "MATCH (a)-[*2..]->(b)").SQL
	assert.Contains(t, sql, `BETWEEN 2 AND 5`)
}

func TestMultiplePatternsJoinOnPredicate(t *testing.T) {
	res := mustTranslate(t, New(Config{}),
		"MATCH (m1:Message) MATCH (m2:Message) WHERE m1.thread_ts = m2.thread_ts RETURN m1.text, m2.text")
	sql := res.SQL

	assert.True(t, strings.HasPrefix(sql, `WITH "cte_0" AS (SELECT "m1"."id" AS "m1_id"`), sql)
	assert.Contains(t, sql, `"cte_1" AS (SELECT "m2"."id" AS "m2_id"`)
	assert.Contains(t, sql, `FROM "cte_0" JOIN "cte_1" ON "cte_0"."m1_properties"->>'thread_ts' = "cte_1"."m2_properties"->>'thread_ts'`)
	assert.Equal(t, 2, strings.Count(sql, "'thread_ts'"), "predicate appears once")
	assert.Contains(t, sql, `SELECT "cte_0"."m1_properties"->>'text' AS "m1_text", "cte_1"."m2_properties"->>'text' AS "m2_text"`)
	assert.Equal(t, map[string]any{"p0": "Message"}, res.Parameters)
	assert.Equal(t, []Strategy{StrategySimple, StrategySimple}, res.Strategies)
}

func TestPredicatePushedIntoOwningCTE(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (a:A), (b:B) WHERE a.x = 1 RETURN a.x, b.y").SQL
	assert.Contains(t, sql, `WHERE "a"."labels" && ARRAY[$1] AND ("a"."properties"->>'x')::numeric = 1)`)
	assert.Contains(t, sql, `FROM "cte_0" CROSS JOIN "cte_1"`)
	final := sql[strings.LastIndex(sql, `FROM "cte_0"`):]
	assert.NotContains(t, final, "WHERE")
}

func TestSharedVariableJoinsCTEs(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (a:Person)-[:KNOWS]->(b) MATCH (b)-[:LIKES]->(c) RETURN a, c").SQL
	assert.Contains(t, sql, `FROM "cte_0" JOIN "cte_1" ON "cte_1"."b_id" = "cte_0"."b_id"`)
	assert.Contains(t, sql, `SELECT "cte_0"."a_properties" AS "a", "cte_1"."c_properties" AS "c"`)
}

func TestOptionalMatchLeftJoins(t *testing.T) {
	res := mustTranslate(t, New(Config{}),
		"MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b) RETURN a.name, b.name")
	sql := res.SQL
	assert.Contains(t, sql, `LEFT JOIN "cte_1" ON "cte_1"."a_id" = "cte_0"."a_id"`)
	assert.Contains(t, sql, `"cte_1"."b_properties"->>'name' AS "b_name"`)
	assert.Equal(t, []Strategy{StrategySimple, StrategySimple}, res.Strategies)
}

func TestOptionalMatchAlone(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "OPTIONAL MATCH (n:Ghost) RETURN n.name").SQL
	assert.Contains(t, sql, `FROM (SELECT 1) AS "seed" LEFT JOIN "cte_0" ON TRUE`)
}

func TestOptionalMatchWhereStaysInside(t *testing.T) {
	sql := mustTranslate(t, New(Config{}),
		"MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b) WHERE b.age > 30 RETURN a.name").SQL
	inner := sql[strings.Index(sql, `"cte_1" AS (`):strings.Index(sql, `SELECT "cte_0"`)]
	assert.Contains(t, inner, `("b"."properties"->>'age')::numeric > 30`)
}

func TestShortestPath(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "SHORTEST_PATH((a)-[:KNOWS*]-(b))")
	sql := res.SQL

	assert.True(t, strings.HasPrefix(sql, `WITH RECURSIVE "shortest_path" AS (`), sql)
	assert.Contains(t, sql, `"shortest_paths_by_pair" AS (SELECT "start_id", "end_id", MIN("path_length") AS "min_path_length" FROM "shortest_path" GROUP BY "start_id", "end_id")`)
	assert.Contains(t, sql, `NOT "n2"."id" = ANY("sp"."path_nodes")`)
	assert.Contains(t, sql, `"sp"."path_length" < 10`)
	assert.Contains(t, sql, `"sp"."path_length" = "spp"."min_path_length"`)
	assert.True(t, strings.HasSuffix(sql, `ORDER BY "sp"."path_length"`), sql)
	assert.Equal(t, []Strategy{StrategyShortestPath}, res.Strategies)
	assert.Equal(t, map[string]any{"p0": "KNOWS"}, res.Parameters)
}

func TestShortestPathFunctionSyntax(t *testing.T) {
	res := mustTranslate(t, New(Config{MaxPathDepth: 4}), "MATCH p = shortestPath((a:Person)-[:KNOWS*..8]->(b:Person)) RETURN p")
	assert.Contains(t, res.SQL, `"sp"."path_length" < 4`)
	assert.Contains(t, res.SQL, `"sp"."path_nodes" AS "p"`)
	assert.Equal(t, []any{"KNOWS", "Person"}, res.Args(), "the recursive base binds the type first")
}

func TestEmptyPatternIdentity(t *testing.T) {
	res, err := New(Config{}).Translate(&cypher.Query{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", res.SQL)
	assert.Empty(t, res.Parameters)

	res = mustTranslate(t, New(Config{}), "RETURN 1")
	assert.Equal(t, "SELECT 1", res.SQL)
	assert.Empty(t, res.Parameters)
}

func TestAdminCommand(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "SHOW INDEXES")
	assert.Equal(t, "SELECT 1", res.SQL)
	assert.Empty(t, res.Parameters)
}

func TestDeterminism(t *testing.T) {
	queries := []string{
		"MATCH (a:Person)-[:KNOWS*1..3]->(b) WHERE a.name = 'x' RETURN b.name ORDER BY b.name",
		"MATCH (m1:M) MATCH (m2:M) WHERE m1.t = m2.t AND m1.name CONTAINS 'q' RETURN m1, m2",
		"SHORTEST_PATH((a)-[:R*]-(b))",
	}
	tr := New(Config{})
	for _, q := range queries {
		first := mustTranslate(t, tr, q)
		second := mustTranslate(t, tr, q)
		assert.Equal(t, first.SQL, second.SQL, q)
		assert.Equal(t, first.Parameters, second.Parameters, q)
	}
}

func TestConcurrentTranslate(t *testing.T) {
	tr := New(Config{})
	const q = "MATCH (a:Person)-[:KNOWS]->(b:Person) WHERE a.age > $min RETURN a.name, b.name"
	params := map[string]any{"min": 21}
	want := mustTranslate(t, tr, q, WithParameters(params))

	doc, err := cypher.Parse(q)
	require.NoError(t, err)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tr.Translate(doc, WithParameters(params))
			if err != nil {
				errs <- err
				return
			}
			if res.SQL != want.SQL {
				errs <- errors.New("translation differs across goroutines")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestParameterDedup(t *testing.T) {
	res := mustTranslate(t, New(Config{}),
		"MATCH (a:Person)-[:KNOWS]->(b:Person) WHERE a.name = 'x' AND b.name = 'x' RETURN a, b")
	assert.Equal(t, map[string]any{"p0": "Person", "p1": "KNOWS", "p2": "x"}, res.Parameters)
	assert.Equal(t, 2, strings.Count(res.SQL, "ARRAY[$1]"))
	assert.Equal(t, 2, strings.Count(res.SQL, "$3"))
}

func TestParameterDedupAcrossPatterns(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (a:Person) MATCH (b:Person) RETURN a, b")
	assert.Equal(t, map[string]any{"p0": "Person"}, res.Parameters)
	assert.Equal(t, 2, strings.Count(res.SQL, "ARRAY[$1]"))
	assert.NotContains(t, res.SQL, "$2")
}

func TestPlaceholdersMatchSQL(t *testing.T) {
	tests := []struct {
		style PlaceholderStyle
		want  map[string]string
	}{
		{PlaceholderDollar, map[string]string{"p0": "$1", "p1": "$2"}},
		{PlaceholderNamed, map[string]string{"p0": "@p0", "p1": "@p1"}},
		{PlaceholderPyFormat, map[string]string{"p0": "%(p0)s", "p1": "%(p1)s"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			res := mustTranslate(t, New(Config{Placeholders: tt.style}), "MATCH (n:Person {name: 'x'}) RETURN n")
			assert.Equal(t, tt.want, res.Placeholders)
			require.Len(t, res.Parameters, len(res.Placeholders))
			for name := range res.Parameters {
				assert.Contains(t, res.SQL, res.Placeholders[name], name)
			}
		})
	}
}

func TestPlaceholderStyles(t *testing.T) {
	named := mustTranslate(t, New(Config{Placeholders: PlaceholderNamed}), "MATCH (n:Person) RETURN n")
	assert.Contains(t, named.SQL, "ARRAY[@p0]")

	py := mustTranslate(t, New(Config{Placeholders: PlaceholderPyFormat}), "MATCH (n:Person) RETURN n")
	assert.Contains(t, py.SQL, "ARRAY[%(p0)s]")
	assert.Equal(t, []any{"Person"}, py.Args())

	_, err := ParsePlaceholderStyle("qmark")
	assert.Error(t, err)
}

func TestCustomSchemaAndTables(t *testing.T) {
	sql := mustTranslate(t, New(Config{Schema: "graph", NodesTable: "vertices", EdgesTable: "links"}), "MATCH (a)-->(b)").SQL
	assert.Contains(t, sql, `FROM "graph"."vertices" AS "a"`)
	assert.Contains(t, sql, `JOIN "graph"."links" AS "e0"`)
}

func TestReturnProjection(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (n:Person) RETURN n, n.name, n.address.city, toUpper(n.name) AS upper").SQL
	assert.True(t, strings.HasPrefix(sql,
		`SELECT "n"."properties" AS "n", "n"."properties"->>'name' AS "n_name", "n"."properties"->'address'->>'city' AS "n_address_city", upper("n"."properties"->>'name') AS "upper" FROM`), sql)
}

func TestAggregationGroupsByPlainItems(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (n:Person) RETURN n.city, count(*) AS total ORDER BY total DESC LIMIT 3").SQL
	assert.Contains(t, sql, `count(*) AS "total"`)
	assert.Contains(t, sql, `GROUP BY "n"."properties"->>'city'`)
	assert.True(t, strings.HasSuffix(sql, `ORDER BY "total" DESC LIMIT 3`), sql)
}

func TestSkipLimit(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (n) RETURN n SKIP 5 LIMIT 10").SQL
	assert.True(t, strings.HasSuffix(sql, "LIMIT 10 OFFSET 5"), sql)

	res := mustTranslate(t, New(Config{}), "MATCH (n) RETURN n LIMIT $max", WithParameters(map[string]any{"max": 25}))
	assert.True(t, strings.HasSuffix(res.SQL, "LIMIT $1"), res.SQL)
	assert.Equal(t, []any{int64(25)}, res.Args())
}

func TestDistinctDropsStrategyOrder(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (a)-[:R*1..2]->(b) RETURN DISTINCT b.name").SQL
	assert.Contains(t, sql, `SELECT DISTINCT "b"."properties"->>'name' AS "b_name"`)
	assert.NotContains(t, sql, "ORDER BY")
}

func TestWithPassThroughWhere(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (n:Person) WITH n WHERE n.age >= 18 RETURN n.name").SQL
	assert.Contains(t, sql, `WHERE "n"."labels" && ARRAY[$1] AND ("n"."properties"->>'age')::numeric >= 18`)
}

func TestStringOperators(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n) WHERE n.name STARTS WITH 'a_b' RETURN n")
	assert.Contains(t, res.SQL, `"n"."properties"->>'name' LIKE $1`)
	assert.Equal(t, []any{`a\_b%`}, res.Args())

	res = mustTranslate(t, New(Config{CaseInsensitiveMatch: true}), "MATCH (n) WHERE n.name CONTAINS 'al' RETURN n")
	assert.Contains(t, res.SQL, `ILIKE $1`)
	assert.Equal(t, []any{"%al%"}, res.Args())
}

func TestInList(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n) WHERE n.name IN ['a', 'b'] RETURN n")
	assert.Contains(t, res.SQL, `"n"."properties"->>'name' IN ($1, $2)`)
}

func TestExistsSubquery(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (a:Person) WHERE EXISTS { MATCH (a)-[:KNOWS]->(:Person) } RETURN a.name")
	sql := res.SQL
	assert.Contains(t, sql, `EXISTS (SELECT 1 FROM "pgraf"."nodes" AS "a_2"`)
	assert.Contains(t, sql, `"a_2"."id" = "a"."id"`)
	assert.Equal(t, []any{"Person", "KNOWS"}, res.Args())
}

func TestUnion(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (n:A) RETURN n.name UNION ALL MATCH (n:B) RETURN n.name")
	assert.True(t, strings.HasPrefix(res.SQL, "(SELECT "), res.SQL)
	assert.Contains(t, res.SQL, ") UNION ALL (SELECT ")
	assert.Equal(t, []any{"A", "B"}, res.Args())
}

func TestErrorKinds(t *testing.T) {
	unsupported := []string{
		"MATCH (a)-[*0..2]->(b) RETURN b",
		"MATCH (n) WHERE frobnicate(n.x) RETURN n",
		"MATCH (n) RETURN m",
		"MATCH (n) WITH DISTINCT n RETURN n",
		"MATCH (n) WITH n.name AS name RETURN name",
		"MATCH (n) RETURN n LIMIT 1.5",
		"SHORTEST_PATH((a)-[:R*]-(a))",
		"MATCH (n) WHERE n.x = $missing RETURN n",
		"MATCH (a)-[r]->(b) MATCH (r)-->(c) RETURN a",
	}
	for _, q := range unsupported {
		err := translateErr(t, q)
		assert.True(t, errors.Is(err, cypher.ErrUnsupported), "%q: %v", q, err)
		var ue *cypher.UnsupportedError
		assert.True(t, errors.As(err, &ue), "%q", q)
	}

	_, err := New(Config{}).Translate(nil)
	assert.True(t, errors.Is(err, cypher.ErrInput))

	doc := &cypher.Query{Matches: []*cypher.MatchClause{{
		Patterns: []*cypher.Pattern{{Elements: []*cypher.PatternElement{{}}}},
	}}}
	_, err = New(Config{}).Translate(doc)
	assert.True(t, errors.Is(err, cypher.ErrInvariant), "%v", err)
}

func TestOptionalClauseWithTwoElements(t *testing.T) {
	err := translateErr(t, "MATCH (a) OPTIONAL MATCH (a)-->(b), (c) RETURN a")
	assert.True(t, errors.Is(err, cypher.ErrUnsupported))
}

func TestQuantifiedGroupIsRecursive(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH ((a:Person)-[:KNOWS]->(b)){1,3} RETURN b.name")
	assert.Equal(t, []Strategy{StrategyRecursive}, res.Strategies)
	assert.Contains(t, res.SQL, `BETWEEN 1 AND 3`)
	assert.Contains(t, res.SQL, `"p"."depth" < 3`)
}

func TestParenthesizedPattern(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (x)-[:A]->((a)-[:B]->(b)) RETURN x, a, b")
	assert.Equal(t, []Strategy{StrategyParenthesized}, res.Strategies)
	for _, want := range []string{`"x"."id" <> "a"."id"`, `"x"."id" <> "b"."id"`, `"a"."id" <> "b"."id"`} {
		assert.Contains(t, res.SQL, want)
	}
	assert.Contains(t, res.SQL, `AS "x_to_a_relationship"`)
	assert.Contains(t, res.SQL, `AS "a_to_b_relationship"`)
}

func TestParenthesizedRelationshipColumns(t *testing.T) {
	bare := mustTranslate(t, New(Config{}), "MATCH (x)-[:A]->((a)-[:B]->(b))").SQL
	assert.Contains(t, bare, `AS "x_to_a_relationship"`)
	assert.Contains(t, bare, `AS "a_to_b_relationship"`)

	for _, q := range []string{
		"MATCH (x)-[:A]->((a)-[:B]->(b)) RETURN count(*) AS total",
		"MATCH (x)-[:A]->((a)-[:B]->(b)) RETURN DISTINCT x",
	} {
		sql := mustTranslate(t, New(Config{}), q).SQL
		assert.NotContains(t, sql, "_relationship", q)
	}
}

func TestPropertyOrderingComparesJSON(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (a)-[:R]->(b) WHERE a.v > b.v RETURN a").SQL
	assert.Contains(t, sql, `("a"."properties"->'v') > ("b"."properties"->'v')`)

	sql = mustTranslate(t, New(Config{}), "MATCH (a:A) MATCH (b:B) WHERE a.v <= b.v RETURN a").SQL
	assert.Contains(t, sql, `("cte_0"."a_properties"->'v') <= ("cte_1"."b_properties"->'v')`)

	sql = mustTranslate(t, New(Config{}), "MATCH (a)-[:R]->(b) WHERE a.v = b.v RETURN a").SQL
	assert.Contains(t, sql, `"a"."properties"->>'v' = "b"."properties"->>'v'`, "equality stays on text")
}

func TestPredicateOverThreePatternsUnsupported(t *testing.T) {
	err := translateErr(t, "MATCH (a:A) MATCH (b:B) MATCH (c:C) WHERE a.x + b.x = c.x RETURN a")
	assert.True(t, errors.Is(err, cypher.ErrUnsupported), "%v", err)
	assert.Contains(t, err.Error(), "3 pattern elements")

	// Conjuncts spanning two patterns each still join.
	res := mustTranslate(t, New(Config{}), "MATCH (a:A) MATCH (b:B) MATCH (c:C) WHERE a.x = b.x AND b.y = c.y RETURN a")
	assert.Contains(t, res.SQL, `JOIN "cte_1" ON`)
	assert.Contains(t, res.SQL, `JOIN "cte_2" ON`)
}

func TestRecursiveElementInComposition(t *testing.T) {
	res := mustTranslate(t, New(Config{}), "MATCH (a)-[:KNOWS*1..2]->(b) MATCH (c:X) RETURN b, c")
	assert.Equal(t, []Strategy{StrategyRecursive, StrategySimple}, res.Strategies)
	assert.True(t, strings.HasPrefix(res.SQL, `WITH "cte_0" AS (WITH RECURSIVE `), res.SQL)
	assert.Contains(t, res.SQL, `"cte_1" AS (SELECT`)
	assert.Contains(t, res.SQL, `CROSS JOIN "cte_1"`)
	assert.Equal(t, []any{"KNOWS", "X"}, res.Args())
}

func TestShortestPathFollowsDirection(t *testing.T) {
	out := mustTranslate(t, New(Config{}), "MATCH p = shortestPath((a)-[:R*]->(b)) RETURN p").SQL
	assert.Contains(t, out, `JOIN "pgraf"."edges" AS "e" ON "e"."source" = "n1"."id"`)

	in := mustTranslate(t, New(Config{}), "MATCH p = shortestPath((a)<-[:R*]-(b)) RETURN p").SQL
	assert.Contains(t, in, `JOIN "pgraf"."edges" AS "e" ON "e"."target" = "n1"."id"`)

	both := mustTranslate(t, New(Config{}), "MATCH p = shortestPath((a)-[:R*]-(b)) RETURN p").SQL
	assert.Contains(t, both, `JOIN "pgraf"."edges" AS "e" ON ("e"."source" = "n1"."id" OR "e"."target" = "n1"."id")`)
}

func TestEdgeUniquenessAcrossHops(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH (a)-[r1]->(b)-[r2]->(c) RETURN c").SQL
	assert.Contains(t, sql, `"r1"."id" <> "r2"."id"`)
}

func TestPathVariable(t *testing.T) {
	sql := mustTranslate(t, New(Config{}), "MATCH p = (a)-[:R]->(b) RETURN p, length(p) AS hops").SQL
	assert.Contains(t, sql, `(ARRAY["a"."id"] || ARRAY["b"."id"]) AS "p"`)
	assert.Contains(t, sql, `(cardinality((ARRAY["a"."id"] || ARRAY["b"."id"])) - 1) AS "hops"`)
}
