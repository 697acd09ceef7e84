package translate

import "github.com/DeusData/pgraf-cypher/internal/sqlfrag"

// selectQuery is the working state of one SELECT statement. Joins hold the
// complete "JOIN x AS y ON ..." text; where entries are ANDed.
type selectQuery struct {
	recursive bool
	ctes      []sqlfrag.Fragment
	distinct  bool
	columns   []sqlfrag.Fragment
	from      sqlfrag.Fragment
	joins     []sqlfrag.Fragment
	where     []sqlfrag.Fragment
	groupBy   []sqlfrag.Fragment
	orderBy   []sqlfrag.Fragment
	limit     sqlfrag.Fragment
	offset    sqlfrag.Fragment
}

func (q *selectQuery) join(kind string, table sqlfrag.Fragment, alias string, on sqlfrag.Fragment) {
	item := sqlfrag.Concat(sqlfrag.SQL(kind+" "), table, sqlfrag.SQL(" AS "), sqlfrag.Ident(alias))
	if !on.IsEmpty() {
		item = sqlfrag.Concat(item, sqlfrag.SQL(" ON "), on)
	}
	q.joins = append(q.joins, item)
}

func (q *selectQuery) fragment() sqlfrag.Fragment {
	var parts []sqlfrag.Fragment
	if len(q.ctes) > 0 {
		kw := "WITH "
		if q.recursive {
			kw = "WITH RECURSIVE "
		}
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL(kw), sqlfrag.Join(", ", q.ctes)))
	}

	sel := "SELECT "
	if q.distinct {
		sel = "SELECT DISTINCT "
	}
	cols := sqlfrag.Join(", ", q.columns)
	if cols.IsEmpty() {
		cols = sqlfrag.SQL("*")
	}
	parts = append(parts, sqlfrag.Concat(sqlfrag.SQL(sel), cols))

	if !q.from.IsEmpty() {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("FROM "), q.from))
	}
	parts = append(parts, q.joins...)
	if where := sqlfrag.Join(" AND ", q.where); !where.IsEmpty() {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("WHERE "), where))
	}
	if len(q.groupBy) > 0 {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("GROUP BY "), sqlfrag.Join(", ", q.groupBy)))
	}
	if len(q.orderBy) > 0 {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("ORDER BY "), sqlfrag.Join(", ", q.orderBy)))
	}
	if !q.limit.IsEmpty() {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("LIMIT "), q.limit))
	}
	if !q.offset.IsEmpty() {
		parts = append(parts, sqlfrag.Concat(sqlfrag.SQL("OFFSET "), q.offset))
	}
	return sqlfrag.Join(" ", parts)
}

// cte renders name AS (body).
func cte(name string, body sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Concat(sqlfrag.Ident(name), sqlfrag.SQL(" AS ("), body, sqlfrag.SQL(")"))
}

func eq(a, b sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Concat(a, sqlfrag.SQL(" = "), b)
}

func neq(a, b sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Concat(a, sqlfrag.SQL(" <> "), b)
}

func and(frags ...sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Join(" AND ", frags)
}

func or(frags ...sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Paren(sqlfrag.Join(" OR ", frags))
}
