package translate

import (
	"strconv"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// recursiveHop joins a variable-length hop through its own recursive CTE:
//
//	JOIN "path" AS "p" ON "p"."start_id" = left.id
//	JOIN nodes AS right ON "p"."end_id" = right.id
//	WHERE "p"."depth" BETWEEN min AND max
func (b *builder) recursiveHop(h hop) error {
	rel := h.rel
	if rel.Where != nil {
		return cypher.Unsupported("variable-length relationship", "inline WHERE")
	}
	if rel.Variable != "" && b.outer != nil {
		if _, ok := b.outer.resolve(rel.Variable); ok {
			return cypher.Unsupported("variable-length relationship", "%s is bound outside the pattern", rel.Variable)
		}
	}

	b.hops++
	left := b.nodes[h.from]
	name := b.c.aliases.fresh("path")
	alias := b.c.aliases.fresh("p")

	body, err := b.c.recursiveCTE(name, "p", "depth", rel, b.el.Nodes[h.from], h.max)
	if err != nil {
		return err
	}
	b.q.recursive = true
	b.q.ctes = append(b.q.ctes, cte(name, body))

	right, isNew, err := b.bindNode(h.to)
	if err != nil {
		return err
	}
	start := eq(sqlfrag.Ident(alias, "start_id"), sqlfrag.Ident(left, "id"))
	end := eq(sqlfrag.Ident(alias, "end_id"), sqlfrag.Ident(right, "id"))
	if isNew {
		b.q.join("JOIN", sqlfrag.Ident(name), alias, start)
		b.q.join("JOIN", b.c.cfg.nodesTable(), right, end)
	} else {
		b.q.join("JOIN", sqlfrag.Ident(name), alias, and(start, end))
	}

	depth := sqlfrag.Ident(alias, "depth")
	b.q.where = append(b.q.where, sqlfrag.Concat(depth,
		sqlfrag.SQL(" BETWEEN "+strconv.Itoa(h.min)+" AND "+strconv.Itoa(h.max))))
	suffix := ""
	if b.hops > 1 {
		suffix = "_" + strconv.Itoa(b.hops)
	}
	b.order = append(b.order, depth)
	b.ordCols = append(b.ordCols, "depth"+suffix)
	b.extra = append(b.extra,
		as(sqlfrag.Ident(alias, "path_nodes"), "path_nodes"+suffix),
		as(sqlfrag.Ident(alias, "path_edges"), "path_edges"+suffix),
		as(depth, "depth"+suffix),
	)
	if err := b.bindVar(rel.Variable, &binding{kind: kindEdgeList, array: sqlfrag.Ident(alias, "path_edges")}); err != nil {
		return err
	}
	b.path = append(b.path, sqlfrag.Concat(sqlfrag.Ident(alias, "path_nodes"), sqlfrag.SQL("[2:]")))
	return nil
}

// recursiveCTE renders the body of a path-enumerating CTE named name. The
// base case is one hop matching rel, seeded with the start node's own
// filters; the recursive case extends a path by one hop while depth < limit,
// never revisiting a node already in path_nodes.
func (c *compiler) recursiveCTE(name, self, depthCol string, rel *cypher.RelationshipPattern, start *cypher.NodePattern, limit int) (sqlfrag.Fragment, error) {
	nodes, edges := c.cfg.nodesTable(), c.cfg.edgesTable()
	types := c.typeFilter("e", rel.Types)
	props, err := c.propertyFilters("e", rel.Properties)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	seed, err := c.nodeFilters(start, "n1")
	if err != nil {
		return sqlfrag.Fragment{}, err
	}

	n1, n2, e := sqlfrag.Ident("n1", "id"), sqlfrag.Ident("n2", "id"), sqlfrag.Ident("e", "id")
	base := &selectQuery{
		columns: []sqlfrag.Fragment{
			as(n1, "start_id"),
			as(n2, "end_id"),
			as(sqlfrag.Concat(sqlfrag.SQL("ARRAY["), n1, sqlfrag.SQL(", "), n2, sqlfrag.SQL("]")), "path_nodes"),
			as(sqlfrag.Concat(sqlfrag.SQL("ARRAY["), e, sqlfrag.SQL("]")), "path_edges"),
			as(sqlfrag.SQL("1"), depthCol),
		},
		from: sqlfrag.Concat(nodes, sqlfrag.SQL(" AS "), sqlfrag.Ident("n1")),
	}
	edgeOn, nodeOn := hopJoins(n1, "e", "n2", rel.Direction)
	base.join("JOIN", edges, "e", edgeOn)
	base.join("JOIN", nodes, "n2", nodeOn)
	base.where = append(base.where, types)
	base.where = append(base.where, props...)
	base.where = append(base.where, seed...)
	base.where = append(base.where, neq(n1, n2))

	p := func(col string) sqlfrag.Fragment { return sqlfrag.Ident(self, col) }
	step := &selectQuery{
		columns: []sqlfrag.Fragment{
			p("start_id"),
			n2,
			sqlfrag.Concat(p("path_nodes"), sqlfrag.SQL(" || "), n2),
			sqlfrag.Concat(p("path_edges"), sqlfrag.SQL(" || "), e),
			sqlfrag.Concat(p(depthCol), sqlfrag.SQL(" + 1")),
		},
		from: sqlfrag.Concat(sqlfrag.Ident(name), sqlfrag.SQL(" AS "), sqlfrag.Ident(self)),
	}
	edgeOn, nodeOn = hopJoins(p("end_id"), "e", "n2", rel.Direction)
	step.join("JOIN", edges, "e", edgeOn)
	step.join("JOIN", nodes, "n2", nodeOn)
	step.where = append(step.where, sqlfrag.Concat(p(depthCol), sqlfrag.SQL(" < "+strconv.Itoa(limit))), types)
	step.where = append(step.where, props...)
	step.where = append(step.where, sqlfrag.Concat(sqlfrag.SQL("NOT "), n2, sqlfrag.SQL(" = ANY("), p("path_nodes"), sqlfrag.SQL(")")))

	return sqlfrag.Concat(base.fragment(), sqlfrag.SQL(" UNION ALL "), step.fragment()), nil
}
