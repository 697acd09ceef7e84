package sqlfrag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderQuotesSegments(t *testing.T) {
	f := Concat(
		SQL("SELECT "), Ident("n", "properties"), SQL("->>"), String("it's"),
		SQL(" FROM "), Ident("pgraf", "nodes"), SQL(" AS "), Ident(`we"ird`),
		SQL(" WHERE x = "), Placeholder("p0"),
	)
	got := f.Render(Named("@"))
	assert.Equal(t, `SELECT "n"."properties"->>'it''s' FROM "pgraf"."nodes" AS "we""ird" WHERE x = @p0`, got)
}

func TestRenderCollapsesWhitespaceAcrossSegments(t *testing.T) {
	f := Concat(SQL("SELECT  1 "), SQL("\n  FROM "), Ident("t"), SQL(" "))
	assert.Equal(t, `SELECT 1 FROM "t"`, f.Render(PyFormat))
}

func TestRenderKeepsWhitespaceInsideConstants(t *testing.T) {
	f := Concat(SQL("SELECT "), String("a  b"))
	assert.Equal(t, `SELECT 'a  b'`, f.String())
}

func TestJoinSkipsEmpty(t *testing.T) {
	f := Join(" AND ", []Fragment{SQL("a"), {}, SQL("b")})
	assert.Equal(t, "a AND b", f.String())
	assert.True(t, Join(", ", nil).IsEmpty())
}

func TestPlaceholdersInOrder(t *testing.T) {
	f := Concat(Placeholder("p1"), SQL(" "), Placeholder("p0"), SQL(" "), Placeholder("p1"))
	assert.Equal(t, []string{"p1", "p0"}, f.Placeholders())
	assert.Equal(t, "%(p1)s %(p0)s %(p1)s", f.Render(PyFormat))
}
