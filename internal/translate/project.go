package translate

import (
	"strconv"
	"strings"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// project applies RETURN to q. Without a RETURN (or with RETURN *) the
// columns already on q stay. order is the strategy ordering, kept after any
// explicit ORDER BY unless the result is DISTINCT or grouped; keep columns
// follow the RETURN items under the same condition.
func (c *compiler) project(q *selectQuery, ret *cypher.ReturnClause, r resolver, order, keep []sqlfrag.Fragment) error {
	if ret == nil {
		q.orderBy = order
		return nil
	}
	body := ret.Body
	q.distinct = body.Distinct

	var (
		exprs   []sqlfrag.Fragment
		aliases []string
		groupBy []sqlfrag.Fragment
		grouped bool
	)
	if !body.Star {
		cols := make([]sqlfrag.Fragment, 0, len(body.Items))
		for i, item := range body.Items {
			f, alias, err := c.returnItem(item, i, r)
			if err != nil {
				return err
			}
			cols = append(cols, as(f, alias))
			exprs = append(exprs, f)
			aliases = append(aliases, alias)
			if containsAggregate(item.Expr) {
				grouped = true
			} else {
				groupBy = append(groupBy, f)
			}
		}
		if !q.distinct && !grouped {
			cols = append(cols, keep...)
		}
		q.columns = cols
	}
	if grouped {
		q.groupBy = groupBy
	}

	var sorted []sqlfrag.Fragment
	for _, s := range body.OrderBy {
		f, err := c.sortKey(s.Expr, r, exprs, aliases)
		if err != nil {
			return err
		}
		if s.Descending {
			f = sqlfrag.Concat(f, sqlfrag.SQL(" DESC"))
		}
		sorted = append(sorted, f)
	}
	if !q.distinct && !grouped {
		sorted = append(sorted, order...)
	}
	q.orderBy = sorted

	var err error
	if q.offset, err = c.rowCount("SKIP", body.Skip); err != nil {
		return err
	}
	if q.limit, err = c.rowCount("LIMIT", body.Limit); err != nil {
		return err
	}
	return nil
}

// returnItem compiles one RETURN item and picks its output name. A bare
// node or relationship variable projects its properties.
func (c *compiler) returnItem(item cypher.ReturnItem, i int, r resolver) (sqlfrag.Fragment, string, error) {
	var (
		f   sqlfrag.Fragment
		err error
	)
	if v, ok := item.Expr.(*cypher.Variable); ok {
		rf, lerr := c.lookup(v.Name, r)
		if lerr != nil {
			return sqlfrag.Fragment{}, "", lerr
		}
		if rf.kind == kindNode || rf.kind == kindEdge {
			f = rf.column("properties")
		} else {
			f = rf.array
		}
	} else if f, err = c.expr(item.Expr, r); err != nil {
		return sqlfrag.Fragment{}, "", err
	}

	alias := item.Alias
	if alias == "" {
		alias = defaultAlias(item.Expr, i)
	}
	return f, alias, nil
}

func defaultAlias(e cypher.Expression, i int) string {
	switch x := e.(type) {
	case *cypher.Variable:
		return x.Name
	case *cypher.PropertyAccess:
		if path, ok := propertyPath(x); ok {
			return strings.Join(path, "_")
		}
	case *cypher.Function:
		return strings.ToLower(x.Name)
	}
	return "column_" + strconv.Itoa(i+1)
}

// propertyPath flattens a.b.c into [a b c].
func propertyPath(x *cypher.PropertyAccess) ([]string, bool) {
	switch obj := x.Object.(type) {
	case *cypher.Variable:
		return []string{obj.Name, x.Property}, true
	case *cypher.PropertyAccess:
		inner, ok := propertyPath(obj)
		if !ok {
			return nil, false
		}
		return append(inner, x.Property), true
	}
	return nil, false
}

// sortKey refers to a projected column by its alias when the sort expression
// names the alias or compiles to that column; DISTINCT and GROUP BY need this.
func (c *compiler) sortKey(e cypher.Expression, r resolver, exprs []sqlfrag.Fragment, aliases []string) (sqlfrag.Fragment, error) {
	if v, ok := e.(*cypher.Variable); ok {
		for _, a := range aliases {
			if a == v.Name {
				return sqlfrag.Ident(a), nil
			}
		}
	}
	f, err := c.expr(e, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	key := f.String()
	for i, x := range exprs {
		if x.String() == key {
			return sqlfrag.Ident(aliases[i]), nil
		}
	}
	return f, nil
}

// rowCount lowers SKIP and LIMIT, which take an integer literal or a
// parameter.
func (c *compiler) rowCount(clause string, e cypher.Expression) (sqlfrag.Fragment, error) {
	switch x := e.(type) {
	case nil:
		return sqlfrag.Fragment{}, nil
	case *cypher.Literal:
		if x.LitKind == cypher.LiteralInteger {
			if n, err := strconv.ParseInt(x.Text, 10, 64); err == nil && n >= 0 {
				return sqlfrag.SQL(x.Text), nil
			}
		}
		return sqlfrag.Fragment{}, cypher.Unsupported(clause, "value %q", x.Text)
	case *cypher.Parameter:
		return c.parameter(x)
	}
	return sqlfrag.Fragment{}, cypher.Unsupported(clause, "%s expressions", e.Kind())
}
