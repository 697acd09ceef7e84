package translate

import (
	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// exists lowers EXISTS { MATCH pattern [WHERE ...] } to a correlated
// sub-query. Variables bound by the enclosing query are re-aliased inside
// and tied to the outer row by id.
func (c *compiler) exists(x *cypher.Exists, r resolver) (sqlfrag.Fragment, error) {
	pats := x.Patterns()
	if len(pats) != 1 || len(pats[0].Elements) != 1 {
		return sqlfrag.Fragment{}, cypher.Unsupported("exists", "only a single pattern element is supported")
	}
	sub, err := c.compileElement(pats[0], pats[0].Elements[0], &cypher.Query{}, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	q := sub.query
	if x.Match != nil && x.Match.Where != nil {
		f, err := c.expr(x.Match.Where, chain{sub.scope, r})
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		q.where = append(q.where, f)
	}
	q.columns = []sqlfrag.Fragment{sqlfrag.SQL("1")}
	return sqlfrag.Concat(sqlfrag.SQL("EXISTS ("), q.fragment(), sqlfrag.SQL(")")), nil
}
