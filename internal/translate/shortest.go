package translate

import (
	"strconv"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// shortest lowers a shortest-path element. A recursive CTE enumerates
// cycle-free paths up to the depth ceiling, a second CTE keeps the minimum
// length per (start, end) pair, and the final SELECT joins both so only the
// shortest paths survive, ordered by length. Every shortest path of a pair is
// returned. Edges are walked in the relationship's written direction only; an
// undirected relationship walks each edge both ways.
func (b *builder) shortest() error {
	el := b.el
	if len(el.Relationships) == 0 || len(el.Nodes) < 2 {
		return cypher.Unsupported("shortest path", "pattern needs a relationship between two nodes")
	}
	if len(el.Relationships) > 1 || len(el.Nodes) > 2 {
		return cypher.Unsupported("shortest path", "patterns with %d relationships", len(el.Relationships))
	}
	rel := el.Relationships[0]
	from, to := el.Nodes[0], el.Nodes[1]
	if from.Variable != "" && from.Variable == to.Variable {
		return cypher.Unsupported("shortest path", "start and end are both %s", from.Variable)
	}
	if rel.Where != nil {
		return cypher.Unsupported("shortest path", "inline WHERE on the relationship")
	}

	ceiling, minLen := b.c.cfg.MaxPathDepth, 1
	if rel.Length != nil {
		if rel.Length.Max != nil && *rel.Length.Max < ceiling {
			ceiling = *rel.Length.Max
		}
		if rel.Length.Min != nil {
			minLen = *rel.Length.Min
		}
	}
	if minLen < 1 {
		return cypher.Unsupported("shortest path", "zero-length paths")
	}
	if minLen > ceiling {
		return cypher.Unsupported("shortest path", "minimum length %d exceeds depth limit %d", minLen, ceiling)
	}

	c := b.c
	pathsName := c.aliases.fresh("shortest_path")
	pairsName := c.aliases.fresh("shortest_paths_by_pair")
	sp, spp := c.aliases.fresh("sp"), c.aliases.fresh("spp")

	body, err := c.recursiveCTE(pathsName, "sp", "path_length", rel, from, ceiling)
	if err != nil {
		return err
	}
	pairs := &selectQuery{
		columns: []sqlfrag.Fragment{
			sqlfrag.Ident("start_id"),
			sqlfrag.Ident("end_id"),
			as(sqlfrag.Concat(sqlfrag.SQL("MIN("), sqlfrag.Ident("path_length"), sqlfrag.SQL(")")), "min_path_length"),
		},
		from:    sqlfrag.Ident(pathsName),
		groupBy: []sqlfrag.Fragment{sqlfrag.Ident("start_id"), sqlfrag.Ident("end_id")},
	}
	if minLen > 1 {
		pairs.where = append(pairs.where, sqlfrag.Concat(sqlfrag.Ident("path_length"), sqlfrag.SQL(" >= "+strconv.Itoa(minLen))))
	}
	b.q.recursive = true
	b.q.ctes = append(b.q.ctes, cte(pathsName, body), cte(pairsName, pairs.fragment()))

	col := func(alias, name string) sqlfrag.Fragment { return sqlfrag.Ident(alias, name) }
	b.q.from = sqlfrag.Concat(sqlfrag.Ident(pathsName), sqlfrag.SQL(" AS "), sqlfrag.Ident(sp))
	b.q.join("JOIN", sqlfrag.Ident(pairsName), spp, and(
		eq(col(sp, "start_id"), col(spp, "start_id")),
		eq(col(sp, "end_id"), col(spp, "end_id")),
		eq(col(sp, "path_length"), col(spp, "min_path_length")),
	))

	start, _, err := b.bindNode(0)
	if err != nil {
		return err
	}
	b.q.join("JOIN", c.cfg.nodesTable(), start, eq(col(sp, "start_id"), col(start, "id")))
	end, _, err := b.bindNode(1)
	if err != nil {
		return err
	}
	b.q.join("JOIN", c.cfg.nodesTable(), end, eq(col(sp, "end_id"), col(end, "id")))

	b.order = append(b.order, col(sp, "path_length"))
	b.ordCols = append(b.ordCols, "path_length")
	b.extra = append(b.extra,
		as(col(sp, "path_nodes"), "path_nodes"),
		as(col(sp, "path_edges"), "path_edges"),
		as(col(sp, "path_length"), "path_length"),
	)
	if err := b.bindVar(rel.Variable, &binding{kind: kindEdgeList, array: col(sp, "path_edges")}); err != nil {
		return err
	}
	if name := b.pat.Variable; name != "" && name != string(cypher.SelectorShortestPath) {
		return b.bindVar(name, &binding{kind: kindPath, array: col(sp, "path_nodes")})
	}
	return nil
}
