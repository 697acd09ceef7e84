package translate

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// unit is one pattern element of a MATCH or OPTIONAL MATCH clause.
type unit struct {
	pattern  *cypher.Pattern
	element  *cypher.PatternElement
	optional bool
	where    cypher.Expression // the OPTIONAL MATCH's own WHERE
}

func (c *compiler) compileQuery(doc *cypher.Query) (sqlfrag.Fragment, error) {
	first, err := c.compileSingle(doc)
	if err != nil || doc.Union == nil || len(doc.Union.Queries) == 0 {
		return first, err
	}
	parts := []sqlfrag.Fragment{sqlfrag.Paren(first)}
	for _, q := range doc.Union.Queries {
		f, err := c.compileSingle(q)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		parts = append(parts, sqlfrag.Paren(f))
	}
	sep := " UNION "
	if doc.Union.All {
		sep = " UNION ALL "
	}
	return sqlfrag.Join(sep, parts), nil
}

// compileSingle lowers one query of a (possibly) UNIONed document. A single
// regular element becomes a plain SELECT; anything else is composed from one
// CTE per element.
func (c *compiler) compileSingle(doc *cypher.Query) (sqlfrag.Fragment, error) {
	if doc.Command != "" {
		slog.Debug("translate.command", "command", commandName(doc.Command))
		return sqlfrag.SQL("SELECT 1"), nil
	}
	preds, err := predicates(doc)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}

	var units []unit
	for _, m := range doc.Matches {
		for _, p := range m.Patterns {
			for _, el := range p.Elements {
				units = append(units, unit{pattern: p, element: el})
			}
		}
	}
	for _, m := range doc.OptionalMatches {
		var only unit
		n := 0
		for _, p := range m.Patterns {
			for _, el := range p.Elements {
				only = unit{pattern: p, element: el, optional: true, where: m.Where}
				n++
			}
		}
		if n != 1 {
			return sqlfrag.Fragment{}, cypher.Unsupported("optional match", "%d pattern elements in one clause", n)
		}
		units = append(units, only)
	}

	switch {
	case len(units) == 0:
		return sqlfrag.SQL("SELECT 1"), nil
	case len(units) == 1 && !units[0].optional:
		return c.direct(doc, units[0], preds)
	}
	return c.composed(doc, units, preds)
}

func commandName(cmd string) string {
	if f := strings.Fields(cmd); len(f) > 0 {
		return strings.ToUpper(f[0])
	}
	return ""
}

// predicates flattens the document WHERE and the WHERE of every WITH into
// a list of conjuncts.
func predicates(doc *cypher.Query) ([]cypher.Expression, error) {
	var out []cypher.Expression
	for _, w := range doc.Where {
		out = append(out, cypher.Conjuncts(w)...)
	}
	for _, w := range doc.With {
		if err := passThrough(w); err != nil {
			return nil, err
		}
		if w.Where != nil {
			out = append(out, cypher.Conjuncts(w.Where)...)
		}
	}
	return out, nil
}

// passThrough accepts WITH clauses that only carry variables forward.
func passThrough(w *cypher.WithClause) error {
	b := w.Body
	switch {
	case b.Distinct:
		return cypher.Unsupported("WITH", "DISTINCT")
	case len(b.OrderBy) > 0:
		return cypher.Unsupported("WITH", "ORDER BY")
	case b.Skip != nil || b.Limit != nil:
		return cypher.Unsupported("WITH", "SKIP or LIMIT")
	}
	for _, item := range b.Items {
		v, ok := item.Expr.(*cypher.Variable)
		if !ok {
			return cypher.Unsupported("WITH", "projection of %s", item.Expr.Kind())
		}
		if item.Alias != "" && item.Alias != v.Name {
			return cypher.Unsupported("WITH", "renaming %s to %s", v.Name, item.Alias)
		}
	}
	return nil
}

func (c *compiler) direct(doc *cypher.Query, u unit, preds []cypher.Expression) (sqlfrag.Fragment, error) {
	el, err := c.compileElement(u.pattern, u.element, doc, nil)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	c.strategies = append(c.strategies, el.strategy)

	seen := make(map[cypher.Expression]bool, len(preds))
	for _, p := range preds {
		if seen[p] {
			continue
		}
		seen[p] = true
		f, err := c.expr(p, el.scope)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		el.query.where = append(el.query.where, f)
	}
	if err := c.project(el.query, doc.Return, el.scope, el.order, el.relCols); err != nil {
		return sqlfrag.Fragment{}, err
	}
	return el.query.fragment(), nil
}

// composed lowers several elements: each becomes a CTE, shared variables
// join on their ids, optional elements LEFT JOIN, and every predicate goes
// to the narrowest place that binds all of its variables.
func (c *compiler) composed(doc *cypher.Query, units []unit, preds []cypher.Expression) (sqlfrag.Fragment, error) {
	els := make([]*compiledElement, len(units))
	names := make([]string, len(units))
	owners := cteScope{}
	ownerOf := make(map[string]int)

	for i, u := range units {
		el, err := c.compileElement(u.pattern, u.element, doc, nil)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		c.strategies = append(c.strategies, el.strategy)
		els[i] = el
		names[i] = c.aliases.fresh("cte_" + strconv.Itoa(i))

		for _, v := range el.scope.order {
			bd := el.scope.vars[v]
			if prev, ok := owners[v]; ok {
				if prev.kind != bd.kind {
					return sqlfrag.Fragment{}, cypher.Unsupported("pattern", "%s is bound as %s and as %s", v, prev.kind, bd.kind)
				}
				if bd.kind != kindNode && bd.kind != kindEdge {
					return sqlfrag.Fragment{}, cypher.Unsupported("pattern", "%s %s cannot be shared between patterns", bd.kind, v)
				}
				continue
			}
			owners[v] = cteVar{cte: names[i], kind: bd.kind}
			ownerOf[v] = i
		}
	}

	on := make([][]sqlfrag.Fragment, len(units))
	for i := 1; i < len(units); i++ {
		for _, v := range els[i].scope.order {
			if o := ownerOf[v]; o != i {
				on[i] = append(on[i], eq(sqlfrag.Ident(names[i], v+"_id"), sqlfrag.Ident(names[o], v+"_id")))
			}
		}
	}

	for i, u := range units {
		if u.where == nil {
			continue
		}
		for _, p := range cypher.Conjuncts(u.where) {
			if bindsAll(els[i].scope, known(p, ownerOf)) {
				f, err := c.expr(p, els[i].scope)
				if err != nil {
					return sqlfrag.Fragment{}, err
				}
				els[i].query.where = append(els[i].query.where, f)
				continue
			}
			f, err := c.expr(p, owners)
			if err != nil {
				return sqlfrag.Fragment{}, err
			}
			on[i] = append(on[i], f)
		}
	}

	var final []sqlfrag.Fragment
	seen := make(map[cypher.Expression]bool, len(preds))
	for _, p := range preds {
		if seen[p] {
			continue
		}
		seen[p] = true
		vars := known(p, ownerOf)

		placed := false
		if len(vars) > 0 {
			for i, u := range units {
				if u.optional || !bindsAll(els[i].scope, vars) {
					continue
				}
				f, err := c.expr(p, els[i].scope)
				if err != nil {
					return sqlfrag.Fragment{}, err
				}
				els[i].query.where = append(els[i].query.where, f)
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		ctes := make(map[int]bool)
		later := 0
		for _, v := range vars {
			ctes[ownerOf[v]] = true
			later = max(later, ownerOf[v])
		}
		if len(ctes) > 2 {
			return sqlfrag.Fragment{}, cypher.Unsupported("predicate", "references variables of %d pattern elements", len(ctes))
		}
		f, err := c.expr(p, owners)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		if len(ctes) == 2 && !units[later].optional {
			on[later] = append(on[later], f)
		} else {
			final = append(final, f)
		}
	}

	q := &selectQuery{where: final}
	for i := range units {
		q.ctes = append(q.ctes, cte(names[i], els[i].query.fragment()))
	}
	start := 0
	if units[0].optional {
		seed := c.aliases.fresh("seed")
		q.from = sqlfrag.Concat(sqlfrag.SQL("(SELECT 1) AS "), sqlfrag.Ident(seed))
	} else {
		q.from = sqlfrag.Ident(names[0])
		start = 1
	}
	for i := start; i < len(units); i++ {
		cond := and(on[i]...)
		var item sqlfrag.Fragment
		switch {
		case units[i].optional && cond.IsEmpty():
			item = sqlfrag.Concat(sqlfrag.SQL("LEFT JOIN "), sqlfrag.Ident(names[i]), sqlfrag.SQL(" ON TRUE"))
		case units[i].optional:
			item = sqlfrag.Concat(sqlfrag.SQL("LEFT JOIN "), sqlfrag.Ident(names[i]), sqlfrag.SQL(" ON "), cond)
		case cond.IsEmpty():
			item = sqlfrag.Concat(sqlfrag.SQL("CROSS JOIN "), sqlfrag.Ident(names[i]))
		default:
			item = sqlfrag.Concat(sqlfrag.SQL("JOIN "), sqlfrag.Ident(names[i]), sqlfrag.SQL(" ON "), cond)
		}
		q.joins = append(q.joins, item)
	}

	var order []sqlfrag.Fragment
	for i, el := range els {
		for _, col := range el.orderCols {
			order = append(order, sqlfrag.Ident(names[i], col))
		}
		q.columns = append(q.columns, sqlfrag.Concat(sqlfrag.Ident(names[i]), sqlfrag.SQL(".*")))
	}
	if err := c.project(q, doc.Return, owners, order, nil); err != nil {
		return sqlfrag.Fragment{}, err
	}
	return q.fragment(), nil
}

// known returns the variables of e that some element binds.
func known(e cypher.Expression, ownerOf map[string]int) []string {
	var out []string
	for _, v := range cypher.Variables(e) {
		if _, ok := ownerOf[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func bindsAll(s *scope, vars []string) bool {
	for _, v := range vars {
		if _, ok := s.vars[v]; !ok {
			return false
		}
	}
	return true
}
