package translate

import (
	"strconv"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// bindKind is what a pattern variable stands for in SQL.
type bindKind int

const (
	kindNode     bindKind = iota // a row of the nodes table
	kindEdge                     // a row of the edges table
	kindEdgeList                 // the edge ids of a variable-length hop
	kindPath                     // the node ids of a named path
)

func (k bindKind) String() string {
	switch k {
	case kindNode:
		return "node"
	case kindEdge:
		return "relationship"
	case kindEdgeList:
		return "relationship list"
	case kindPath:
		return "path"
	}
	return "unknown"
}

// Output columns of an element are {var}_{col} for each of these.
var (
	nodeColumns = []string{"id", "labels", "properties", "mimetype", "content"}
	edgeColumns = []string{"id", "labels", "properties", "source", "target"}
)

// arraySuffix names the output column of list-valued bindings.
func arraySuffix(k bindKind) string {
	if k == kindPath {
		return "nodes"
	}
	return "edges"
}

// binding is one variable visible inside an element's SELECT.
type binding struct {
	kind  bindKind
	alias string           // table alias for nodes and edges
	array sqlfrag.Fragment // id array for edge lists and paths
}

// ref is a resolved variable: how to reach its columns from the current scope.
type ref struct {
	kind   bindKind
	column func(col string) sqlfrag.Fragment
	array  sqlfrag.Fragment
}

type resolver interface {
	resolve(name string) (ref, bool)
}

// scope binds variables to table aliases of one element.
type scope struct {
	vars  map[string]*binding
	order []string
}

func newScope() *scope {
	return &scope{vars: make(map[string]*binding)}
}

func (s *scope) bind(name string, b *binding) {
	if name == "" {
		return
	}
	if _, ok := s.vars[name]; ok {
		return
	}
	s.vars[name] = b
	s.order = append(s.order, name)
}

func (s *scope) lookup(name string) (*binding, bool) {
	b, ok := s.vars[name]
	return b, ok
}

func (s *scope) resolve(name string) (ref, bool) {
	b, ok := s.vars[name]
	if !ok {
		return ref{}, false
	}
	alias := b.alias
	return ref{
		kind:   b.kind,
		column: func(col string) sqlfrag.Fragment { return sqlfrag.Ident(alias, col) },
		array:  b.array,
	}, true
}

// cteVar locates a variable in the composed statement.
type cteVar struct {
	cte  string
	kind bindKind
}

// cteScope resolves variables to the columns of the CTE that owns them.
type cteScope map[string]cteVar

func (s cteScope) resolve(name string) (ref, bool) {
	v, ok := s[name]
	if !ok {
		return ref{}, false
	}
	return ref{
		kind:   v.kind,
		column: func(col string) sqlfrag.Fragment { return sqlfrag.Ident(v.cte, name+"_"+col) },
		array:  sqlfrag.Ident(v.cte, name+"_"+arraySuffix(v.kind)),
	}, true
}

// chain tries resolvers in order; EXISTS bodies see their own scope first.
type chain []resolver

func (c chain) resolve(name string) (ref, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if out, ok := r.resolve(name); ok {
			return out, true
		}
	}
	return ref{}, false
}

// aliasAllocator hands out table and CTE names that never collide with a
// variable of the document or with each other.
type aliasAllocator struct {
	used map[string]bool
}

func newAliasAllocator(doc *cypher.Query) *aliasAllocator {
	a := &aliasAllocator{used: make(map[string]bool)}
	a.reserveQuery(doc)
	return a
}

func (a *aliasAllocator) fresh(base string) string {
	if !a.used[base] {
		a.used[base] = true
		return base
	}
	for i := 2; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if !a.used[name] {
			a.used[name] = true
			return name
		}
	}
}

func (a *aliasAllocator) reserve(name string) {
	if name != "" {
		a.used[name] = true
	}
}

func (a *aliasAllocator) reserveQuery(q *cypher.Query) {
	if q == nil {
		return
	}
	for _, m := range append(append([]*cypher.MatchClause(nil), q.Matches...), q.OptionalMatches...) {
		for _, p := range m.Patterns {
			a.reservePattern(p)
		}
		a.reserveExpr(m.Where)
	}
	for _, w := range q.Where {
		a.reserveExpr(w)
	}
	for _, w := range q.With {
		a.reserveBody(w.Body)
		a.reserveExpr(w.Where)
	}
	if q.Return != nil {
		a.reserveBody(q.Return.Body)
	}
	if q.Union != nil {
		for _, sub := range q.Union.Queries {
			a.reserveQuery(sub)
		}
	}
}

func (a *aliasAllocator) reservePattern(p *cypher.Pattern) {
	if p.Variable != string(cypher.SelectorShortestPath) {
		a.reserve(p.Variable)
	}
	for _, el := range p.Elements {
		for _, v := range el.Variables() {
			a.reserve(v)
		}
	}
}

func (a *aliasAllocator) reserveBody(b cypher.ReturnBody) {
	for _, item := range b.Items {
		a.reserve(item.Alias)
		a.reserveExpr(item.Expr)
	}
}

func (a *aliasAllocator) reserveExpr(e cypher.Expression) {
	for _, v := range cypher.Variables(e) {
		a.reserve(v)
	}
}

func as(expr sqlfrag.Fragment, alias string) sqlfrag.Fragment {
	return sqlfrag.Concat(expr, sqlfrag.SQL(" AS "), sqlfrag.Ident(alias))
}
