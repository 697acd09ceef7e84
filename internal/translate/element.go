package translate

import (
	"strconv"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// compiledElement is one pattern element lowered to a SELECT.
type compiledElement struct {
	query    *selectQuery
	scope    *scope
	strategy Strategy
	// order is the strategy's own ordering (depth, path length); orderCols
	// names the same values among the output columns.
	order     []sqlfrag.Fragment
	orderCols []string
	// relCols are the parenthesized strategy's relationship label columns,
	// kept next to an explicit RETURN.
	relCols []sqlfrag.Fragment
}

// output is a column group of the element's SELECT list, in bind order.
type output struct {
	name string
	b    *binding
}

// builder accumulates one element. Aliases of named variables are the
// variable names; everything else comes from the alias allocator.
type builder struct {
	c     *compiler
	pat   *cypher.Pattern
	el    *cypher.PatternElement
	outer resolver // enclosing scope of an EXISTS body

	scope    *scope
	q        *selectQuery
	outputs  []output
	extra    []sqlfrag.Fragment
	relCols  []sqlfrag.Fragment
	nodes    []string // alias per node index
	edges    []string // single-edge aliases, for edge uniqueness
	path     []sqlfrag.Fragment
	order    []sqlfrag.Fragment
	ordCols  []string
	deferred []cypher.Expression
	distinct map[[2]string]bool
	hops     int // recursive hops so far
}

func (c *compiler) compileElement(pat *cypher.Pattern, el *cypher.PatternElement, doc *cypher.Query, outer resolver) (*compiledElement, error) {
	plan, err := c.planElement(pat, el, doc)
	if err != nil {
		return nil, err
	}
	b := &builder{
		c:        c,
		pat:      pat,
		el:       el,
		outer:    outer,
		scope:    newScope(),
		q:        &selectQuery{},
		nodes:    make([]string, len(el.Nodes)),
		distinct: make(map[[2]string]bool),
	}

	if plan.strategy == StrategyShortestPath {
		err = b.shortest()
	} else {
		err = b.chain(plan)
	}
	if err != nil {
		return nil, err
	}

	for _, w := range b.deferred {
		f, err := c.expr(w, b.resolver())
		if err != nil {
			return nil, err
		}
		b.q.where = append(b.q.where, f)
	}
	b.q.columns = append(b.columns(), b.extra...)
	return &compiledElement{query: b.q, scope: b.scope, strategy: plan.strategy, order: b.order, orderCols: b.ordCols, relCols: b.relCols}, nil
}

func (b *builder) resolver() resolver {
	if b.outer != nil {
		return chain{b.scope, b.outer}
	}
	return b.scope
}

func (b *builder) columns() []sqlfrag.Fragment {
	var out []sqlfrag.Fragment
	for _, o := range b.outputs {
		switch o.b.kind {
		case kindNode, kindEdge:
			cols := nodeColumns
			if o.b.kind == kindEdge {
				cols = edgeColumns
			}
			for _, col := range cols {
				out = append(out, as(sqlfrag.Ident(o.b.alias, col), o.name+"_"+col))
			}
		default:
			out = append(out, as(o.b.array, o.name+"_"+arraySuffix(o.b.kind)))
		}
	}
	return out
}

// bindVar registers a named variable, rejecting a second binding of
// relationships and paths.
func (b *builder) bindVar(name string, bd *binding) error {
	if name != "" {
		if prev, ok := b.scope.lookup(name); ok {
			return cypher.Unsupported("pattern", "%s is bound as %s and again as %s", name, prev.kind, bd.kind)
		}
	}
	b.scope.bind(name, bd)
	if name != "" {
		b.outputs = append(b.outputs, output{name: name, b: bd})
	}
	return nil
}

// correlate links a variable already bound by the enclosing query to a
// fresh alias in this element.
func (b *builder) correlate(name string, kind bindKind) (string, bool, error) {
	if name == "" || b.outer == nil {
		return "", false, nil
	}
	rf, ok := b.outer.resolve(name)
	if !ok {
		return "", false, nil
	}
	if rf.kind != kind {
		return "", false, cypher.Unsupported("pattern", "%s is bound as %s outside and used as %s", name, rf.kind, kind)
	}
	alias := b.c.aliases.fresh(name)
	b.q.where = append(b.q.where, eq(sqlfrag.Ident(alias, "id"), rf.column("id")))
	return alias, true, nil
}

// bindNode returns the alias of node i and whether this is its first
// appearance in the element.
func (b *builder) bindNode(i int) (string, bool, error) {
	n := b.el.Nodes[i]
	if n.Variable != "" {
		if prev, ok := b.scope.lookup(n.Variable); ok {
			if prev.kind != kindNode {
				return "", false, cypher.Unsupported("pattern", "%s is bound as %s and used as node", n.Variable, prev.kind)
			}
			b.nodes[i] = prev.alias
			if n.Where != nil {
				b.deferred = append(b.deferred, n.Where)
			}
			return prev.alias, false, b.nodeFilters(n, prev.alias)
		}
	}

	alias, _, err := b.correlate(n.Variable, kindNode)
	if err != nil {
		return "", false, err
	}
	switch {
	case alias != "":
	case n.Variable != "":
		alias = n.Variable
	default:
		alias = b.c.aliases.fresh("n" + strconv.Itoa(i))
	}

	bd := &binding{kind: kindNode, alias: alias}
	if n.Variable == "" {
		b.outputs = append(b.outputs, output{name: alias, b: bd})
	} else if err := b.bindVar(n.Variable, bd); err != nil {
		return "", false, err
	}
	b.nodes[i] = alias
	if n.Where != nil {
		b.deferred = append(b.deferred, n.Where)
	}
	return alias, true, b.nodeFilters(n, alias)
}

func (b *builder) nodeFilters(n *cypher.NodePattern, alias string) error {
	filters, err := b.c.nodeFilters(n, alias)
	if err != nil {
		return err
	}
	b.q.where = append(b.q.where, filters...)
	return nil
}

// bindEdge binds the single edge of a fixed hop and adds its type and
// property filters.
func (b *builder) bindEdge(rel *cypher.RelationshipPattern, i int) (string, error) {
	alias, _, err := b.correlate(rel.Variable, kindEdge)
	if err != nil {
		return "", err
	}
	switch {
	case alias != "":
	case rel.Variable != "":
		alias = rel.Variable
	default:
		alias = b.c.aliases.fresh("e" + strconv.Itoa(i))
	}
	if err := b.bindVar(rel.Variable, &binding{kind: kindEdge, alias: alias}); err != nil {
		return "", err
	}
	if f := b.c.typeFilter(alias, rel.Types); !f.IsEmpty() {
		b.q.where = append(b.q.where, f)
	}
	props, err := b.c.propertyFilters(alias, rel.Properties)
	if err != nil {
		return "", err
	}
	b.q.where = append(b.q.where, props...)
	if rel.Where != nil {
		b.deferred = append(b.deferred, rel.Where)
	}
	return alias, nil
}

// requireDistinct adds a.id <> b.id once per pair.
func (b *builder) requireDistinct(x, y string) {
	if x == y {
		return
	}
	key := [2]string{x, y}
	if y < x {
		key = [2]string{y, x}
	}
	if b.distinct[key] {
		return
	}
	b.distinct[key] = true
	b.q.where = append(b.q.where, neq(sqlfrag.Ident(x, "id"), sqlfrag.Ident(y, "id")))
}

// chain lowers the simple, parenthesized and recursive strategies: one join
// chain over the element, with recursive hops joined through their CTE.
func (b *builder) chain(plan elementPlan) error {
	first, _, err := b.bindNode(0)
	if err != nil {
		return err
	}
	b.q.from = sqlfrag.Concat(b.c.cfg.nodesTable(), sqlfrag.SQL(" AS "), sqlfrag.Ident(first))
	b.path = append(b.path, sqlfrag.Concat(sqlfrag.SQL("ARRAY["), sqlfrag.Ident(first, "id"), sqlfrag.SQL("]")))

	for _, h := range plan.hops {
		if h.recursive {
			err = b.recursiveHop(h)
		} else {
			err = b.fixedHop(h)
		}
		if err != nil {
			return err
		}
	}

	// Relationship uniqueness: one edge never matches two hops.
	for i := range b.edges {
		for j := i + 1; j < len(b.edges); j++ {
			b.q.where = append(b.q.where, neq(sqlfrag.Ident(b.edges[i], "id"), sqlfrag.Ident(b.edges[j], "id")))
		}
	}

	if plan.strategy == StrategyParenthesized {
		b.parenthesized(plan)
	}
	return b.pathVariable()
}

func (b *builder) fixedHop(h hop) error {
	left := b.nodes[h.from]
	edge, err := b.bindEdge(h.rel, h.from)
	if err != nil {
		return err
	}
	right, isNew, err := b.bindNode(h.to)
	if err != nil {
		return err
	}

	leftID := sqlfrag.Ident(left, "id")
	edges := b.c.cfg.edgesTable()
	if isNew {
		edgeOn, nodeOn := hopJoins(leftID, edge, right, h.rel.Direction)
		b.q.join("JOIN", edges, edge, edgeOn)
		b.q.join("JOIN", b.c.cfg.nodesTable(), right, nodeOn)
		if h.rel.Direction == cypher.DirectionBoth {
			b.requireDistinct(left, right)
		}
	} else {
		b.q.join("JOIN", edges, edge, endpoints(leftID, edge, sqlfrag.Ident(right, "id"), h.rel.Direction))
	}
	b.edges = append(b.edges, edge)
	b.path = append(b.path, sqlfrag.Concat(sqlfrag.SQL("ARRAY["), sqlfrag.Ident(right, "id"), sqlfrag.SQL("]")))
	return nil
}

// hopJoins returns the ON conditions that walk from the node id `from`
// across edge to the node aliased to.
func hopJoins(from sqlfrag.Fragment, edge, to string, dir cypher.Direction) (edgeOn, nodeOn sqlfrag.Fragment) {
	src, tgt := sqlfrag.Ident(edge, "source"), sqlfrag.Ident(edge, "target")
	toID := sqlfrag.Ident(to, "id")
	switch dir {
	case cypher.DirectionOutgoing:
		return eq(src, from), eq(tgt, toID)
	case cypher.DirectionIncoming:
		return eq(tgt, from), eq(src, toID)
	}
	return or(eq(src, from), eq(tgt, from)), endpoints(from, edge, toID, dir)
}

// endpoints constrains both ends of edge at once.
func endpoints(from sqlfrag.Fragment, edge string, to sqlfrag.Fragment, dir cypher.Direction) sqlfrag.Fragment {
	src, tgt := sqlfrag.Ident(edge, "source"), sqlfrag.Ident(edge, "target")
	switch dir {
	case cypher.DirectionOutgoing:
		return and(eq(src, from), eq(tgt, to))
	case cypher.DirectionIncoming:
		return and(eq(tgt, from), eq(src, to))
	}
	return or(sqlfrag.Paren(and(eq(src, from), eq(tgt, to))), sqlfrag.Paren(and(eq(tgt, from), eq(src, to))))
}

// parenthesized keeps every pair of distinct node variables apart and exposes
// the labels of each joined relationship.
func (b *builder) parenthesized(plan elementPlan) {
	var seen []string
	for _, alias := range b.nodes {
		dup := false
		for _, s := range seen {
			if s == alias {
				dup = true
			}
		}
		if !dup {
			seen = append(seen, alias)
		}
	}
	for i := range seen {
		for j := i + 1; j < len(seen); j++ {
			b.requireDistinct(seen[i], seen[j])
		}
	}

	k := 0
	for _, h := range plan.hops {
		if h.recursive {
			continue
		}
		name := b.nodes[h.from] + "_to_" + b.nodes[h.to] + "_relationship"
		rc := as(sqlfrag.Ident(b.edges[k], "labels"), name)
		b.extra = append(b.extra, rc)
		b.relCols = append(b.relCols, rc)
		k++
	}
}

// pathVariable binds p in p = (...) to the array of node ids along the chain.
func (b *builder) pathVariable() error {
	name := b.pat.Variable
	if name == "" || name == string(cypher.SelectorShortestPath) {
		return nil
	}
	arr := sqlfrag.Paren(sqlfrag.Join(" || ", b.path))
	return b.bindVar(name, &binding{kind: kindPath, array: arr})
}

func (c *compiler) nodeFilters(n *cypher.NodePattern, alias string) ([]sqlfrag.Fragment, error) {
	var out []sqlfrag.Fragment
	if len(n.Labels) > 0 {
		out = append(out, c.labelFilter(alias, n.Labels, "&&"))
	}
	if len(n.AllLabels) > 0 {
		out = append(out, c.labelFilter(alias, n.AllLabels, "@>"))
	}
	props, err := c.propertyFilters(alias, n.Properties)
	if err != nil {
		return nil, err
	}
	return append(out, props...), nil
}

// labelFilter compares the labels array with ARRAY[...] of bound names:
// && for any-of, @> for all-of.
func (c *compiler) labelFilter(alias string, labels []string, op string) sqlfrag.Fragment {
	items := make([]sqlfrag.Fragment, len(labels))
	for i, l := range labels {
		items[i] = sqlfrag.Placeholder(c.binder.Bind(l))
	}
	return sqlfrag.Concat(sqlfrag.Ident(alias, "labels"), sqlfrag.SQL(" "+op+" ARRAY["), sqlfrag.Join(", ", items), sqlfrag.SQL("]"))
}

// typeFilter matches any of the relationship types; several alternatives
// become an OR of overlap tests.
func (c *compiler) typeFilter(alias string, types []string) sqlfrag.Fragment {
	switch len(types) {
	case 0:
		return sqlfrag.Fragment{}
	case 1:
		return c.labelFilter(alias, types, "&&")
	}
	parts := make([]sqlfrag.Fragment, len(types))
	for i, t := range types {
		parts[i] = c.labelFilter(alias, []string{t}, "&&")
	}
	return or(parts...)
}

// propertyFilters lowers inline {key: value} maps to JSON equality tests.
func (c *compiler) propertyFilters(alias string, props []cypher.Property) ([]sqlfrag.Fragment, error) {
	var out []sqlfrag.Fragment
	for _, p := range props {
		col := sqlfrag.Concat(sqlfrag.Ident(alias, "properties"), sqlfrag.SQL("->>"), sqlfrag.String(p.Key))
		if p.Param != "" {
			v, ok := c.params[p.Param]
			if !ok {
				return nil, cypher.Unsupported("parameter", "no value supplied for $%s", p.Param)
			}
			scalar, ok := normalizeValue(v)
			if !ok {
				return nil, cypher.Unsupported("parameter", "$%s has unsupported type %T for property %s", p.Param, v, p.Key)
			}
			ph := sqlfrag.Placeholder(c.binder.Bind(scalar))
			switch scalar.(type) {
			case nil:
				out = append(out, sqlfrag.Concat(col, sqlfrag.SQL(" IS NULL")))
			case string:
				out = append(out, eq(col, ph))
			case bool:
				out = append(out, eq(cast(col, "boolean"), ph))
			default:
				out = append(out, eq(cast(col, "numeric"), ph))
			}
			continue
		}

		if p.Value == nil {
			return nil, cypher.Invariant("property", "%s has neither value nor parameter", p.Key)
		}
		switch p.Value.LitKind {
		case cypher.LiteralNull:
			out = append(out, sqlfrag.Concat(col, sqlfrag.SQL(" IS NULL")))
			continue
		case cypher.LiteralString, cypher.LiteralInteger, cypher.LiteralFloat, cypher.LiteralBoolean:
		default:
			return nil, cypher.Unsupported("property", "%s values for %s", p.Value.LitKind, p.Key)
		}
		v, err := c.literal(p.Value)
		if err != nil {
			return nil, err
		}
		switch p.Value.LitKind {
		case cypher.LiteralString:
			out = append(out, eq(col, v))
		case cypher.LiteralBoolean:
			out = append(out, eq(cast(col, "boolean"), v))
		default:
			out = append(out, eq(cast(col, "numeric"), v))
		}
	}
	return out, nil
}
