package translate

import (
	"strings"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

var aggregates = map[string]string{
	"count":   "count",
	"sum":     "sum",
	"avg":     "avg",
	"min":     "min",
	"max":     "max",
	"collect": "array_agg",
}

// scalarFuncs take their arguments unchanged.
var scalarFuncs = map[string]struct {
	sql   string
	arity int // -1 for variadic
}{
	"tolower":  {"lower", 1},
	"lower":    {"lower", 1},
	"toupper":  {"upper", 1},
	"upper":    {"upper", 1},
	"trim":     {"btrim", 1},
	"ltrim":    {"ltrim", 1},
	"rtrim":    {"rtrim", 1},
	"replace":  {"replace", 3},
	"reverse":  {"reverse", 1},
	"left":     {"left", 2},
	"right":    {"right", 2},
	"coalesce": {"coalesce", -1},
}

// mathFuncs cast JSON property arguments to numeric.
var mathFuncs = map[string]string{
	"abs":   "abs",
	"ceil":  "ceil",
	"floor": "floor",
	"round": "round",
	"sqrt":  "sqrt",
	"sign":  "sign",
	"exp":   "exp",
	"log":   "ln",
	"log10": "log",
}

var castFuncs = map[string]string{
	"tostring":  "text",
	"tointeger": "bigint",
	"tofloat":   "double precision",
	"toboolean": "boolean",
}

// nodeColumnFuncs read a column of a node or relationship variable.
var nodeColumnFuncs = map[string]string{
	"id":         "id",
	"elementid":  "id",
	"labels":     "labels",
	"properties": "properties",
	"content":    "content",
	"mimetype":   "mimetype",
}

func isAggregate(name string) bool {
	_, ok := aggregates[strings.ToLower(name)]
	return ok
}

// containsAggregate reports whether e calls an aggregate function anywhere.
func containsAggregate(e cypher.Expression) bool {
	switch x := e.(type) {
	case *cypher.Function:
		if isAggregate(x.Name) {
			return true
		}
		for _, a := range x.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *cypher.Arithmetic:
		for _, o := range x.Operands {
			if containsAggregate(o) {
				return true
			}
		}
	case *cypher.UnaryOperator:
		return containsAggregate(x.Operand)
	case *cypher.Operator:
		for _, o := range x.Operands {
			if containsAggregate(o) {
				return true
			}
		}
	case *cypher.Comparison:
		for _, o := range append([]cypher.Expression{x.Left, x.Right}, x.Operands...) {
			if o != nil && containsAggregate(o) {
				return true
			}
		}
	}
	return false
}

func (c *compiler) function(fn *cypher.Function, r resolver) (sqlfrag.Fragment, error) {
	name := strings.ToLower(fn.Name)
	if agg, ok := aggregates[name]; ok {
		return c.aggregate(fn, agg, r)
	}
	if fn.Star || fn.Distinct {
		return sqlfrag.Fragment{}, cypher.Unsupported("function", "DISTINCT or * in %s()", fn.Name)
	}

	if col, ok := nodeColumnFuncs[name]; ok {
		return c.columnFunc(fn, col, r)
	}
	switch name {
	case "type":
		if err := arity(fn, 1); err != nil {
			return sqlfrag.Fragment{}, err
		}
		rf, err := c.variableArg(fn, r, kindEdge)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(rf.column("labels"), sqlfrag.SQL("[1]")), nil
	case "size", "length":
		return c.size(fn, r)
	case "substring":
		return c.substring(fn, r)
	case "timestamp":
		if err := arity(fn, 0); err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.SQL("(extract(epoch from now()) * 1000)::bigint"), nil
	}

	if sf, ok := scalarFuncs[name]; ok {
		if sf.arity >= 0 {
			if err := arity(fn, sf.arity); err != nil {
				return sqlfrag.Fragment{}, err
			}
		}
		args, err := c.args(fn.Args, r, false)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return call(sf.sql, args...), nil
	}
	if sqlName, ok := mathFuncs[name]; ok {
		if err := arity(fn, 1); err != nil {
			return sqlfrag.Fragment{}, err
		}
		args, err := c.args(fn.Args, r, true)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return call(sqlName, args...), nil
	}
	if typ, ok := castFuncs[name]; ok {
		if err := arity(fn, 1); err != nil {
			return sqlfrag.Fragment{}, err
		}
		arg, err := c.expr(fn.Args[0], r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return cast(arg, typ), nil
	}
	return sqlfrag.Fragment{}, cypher.Unsupported("function", "%s", fn.Name)
}

func arity(fn *cypher.Function, n int) error {
	if len(fn.Args) != n {
		return cypher.Unsupported("function", "%s expects %d arguments, got %d", fn.Name, n, len(fn.Args))
	}
	return nil
}

func call(name string, args ...sqlfrag.Fragment) sqlfrag.Fragment {
	return sqlfrag.Concat(sqlfrag.SQL(name+"("), sqlfrag.Join(", ", args), sqlfrag.SQL(")"))
}

func (c *compiler) args(exprs []cypher.Expression, r resolver, numeric bool) ([]sqlfrag.Fragment, error) {
	out := make([]sqlfrag.Fragment, 0, len(exprs))
	for _, e := range exprs {
		var f sqlfrag.Fragment
		var err error
		if numeric {
			f, err = c.numeric(e, r)
		} else {
			f, err = c.expr(e, r)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// variableArg resolves the single variable argument of fn.
func (c *compiler) variableArg(fn *cypher.Function, r resolver, kinds ...bindKind) (ref, error) {
	v, ok := fn.Args[0].(*cypher.Variable)
	if !ok {
		return ref{}, cypher.Unsupported("function", "%s() of %s", fn.Name, fn.Args[0].Kind())
	}
	rf, err := c.lookup(v.Name, r)
	if err != nil {
		return ref{}, err
	}
	for _, k := range kinds {
		if rf.kind == k {
			return rf, nil
		}
	}
	return ref{}, cypher.Unsupported("function", "%s() of %s %s", fn.Name, rf.kind, v.Name)
}

func (c *compiler) columnFunc(fn *cypher.Function, col string, r resolver) (sqlfrag.Fragment, error) {
	if err := arity(fn, 1); err != nil {
		return sqlfrag.Fragment{}, err
	}
	kinds := []bindKind{kindNode, kindEdge}
	if col == "mimetype" || col == "content" {
		kinds = kinds[:1]
	}
	rf, err := c.variableArg(fn, r, kinds...)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	return rf.column(col), nil
}

func (c *compiler) aggregate(fn *cypher.Function, sqlName string, r resolver) (sqlfrag.Fragment, error) {
	if fn.Star {
		if sqlName != "count" {
			return sqlfrag.Fragment{}, cypher.Unsupported("function", "%s(*)", fn.Name)
		}
		return sqlfrag.SQL("count(*)"), nil
	}
	if err := arity(fn, 1); err != nil {
		return sqlfrag.Fragment{}, err
	}
	var arg sqlfrag.Fragment
	var err error
	if sqlName == "sum" || sqlName == "avg" {
		arg, err = c.numeric(fn.Args[0], r)
	} else {
		arg, err = c.expr(fn.Args[0], r)
	}
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if fn.Distinct {
		arg = sqlfrag.Concat(sqlfrag.SQL("DISTINCT "), arg)
	}
	return call(sqlName, arg), nil
}

// size counts list elements or string characters. length(path) counts hops.
func (c *compiler) size(fn *cypher.Function, r resolver) (sqlfrag.Fragment, error) {
	if err := arity(fn, 1); err != nil {
		return sqlfrag.Fragment{}, err
	}
	arg := fn.Args[0]
	if v, ok := arg.(*cypher.Variable); ok {
		rf, err := c.lookup(v.Name, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		switch rf.kind {
		case kindPath:
			return sqlfrag.Paren(sqlfrag.Concat(call("cardinality", rf.array), sqlfrag.SQL(" - 1"))), nil
		case kindEdgeList:
			return call("cardinality", rf.array), nil
		}
		return sqlfrag.Fragment{}, cypher.Unsupported("function", "%s() of %s %s", fn.Name, rf.kind, v.Name)
	}
	f, err := c.expr(arg, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if c.isList(arg) {
		return call("cardinality", f), nil
	}
	if pa, ok := arg.(*cypher.PropertyAccess); ok {
		// JSON arrays report their length, strings their character count.
		raw, err := c.property(pa, r, false)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(sqlfrag.SQL("CASE jsonb_typeof("), raw, sqlfrag.SQL(") WHEN 'array' THEN jsonb_array_length("),
			raw, sqlfrag.SQL(") ELSE char_length("), f, sqlfrag.SQL(") END")), nil
	}
	return call("char_length", f), nil
}

// isList reports whether e compiles to an SQL array.
func (c *compiler) isList(e cypher.Expression) bool {
	switch x := e.(type) {
	case *cypher.Literal:
		return x.LitKind == cypher.LiteralList
	case *cypher.Parameter:
		_, ok := listValue(c.params[x.Name])
		return ok
	case *cypher.Function:
		switch strings.ToLower(x.Name) {
		case "labels", "collect":
			return true
		}
	case *cypher.RangeAccess:
		return true
	}
	return false
}

// substring(s, start[, length]) uses 0-based start like Cypher.
func (c *compiler) substring(fn *cypher.Function, r resolver) (sqlfrag.Fragment, error) {
	if len(fn.Args) != 2 && len(fn.Args) != 3 {
		return sqlfrag.Fragment{}, cypher.Unsupported("function", "substring expects 2 or 3 arguments, got %d", len(fn.Args))
	}
	args, err := c.args(fn.Args, r, false)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	start := sqlfrag.Concat(sqlfrag.Paren(args[1]), sqlfrag.SQL(" + 1"))
	out := []sqlfrag.Fragment{args[0], start}
	if len(args) == 3 {
		out = append(out, args[2])
	}
	return call("substr", out...), nil
}
