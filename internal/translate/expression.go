package translate

import (
	"strconv"
	"strings"

	"github.com/DeusData/pgraf-cypher/internal/cypher"
	"github.com/DeusData/pgraf-cypher/internal/sqlfrag"
)

// expr compiles e against r. Every expression variant is handled here; the
// default branch rejects anything new rather than guessing.
func (c *compiler) expr(e cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	switch x := e.(type) {
	case nil:
		return sqlfrag.Fragment{}, cypher.Invariant("expression", "missing expression")
	case *cypher.Empty:
		return sqlfrag.Fragment{}, cypher.Invariant("expression", "empty expression")
	case *cypher.Literal:
		return c.literal(x)
	case *cypher.Parameter:
		return c.parameter(x)
	case *cypher.Variable:
		rf, err := c.lookup(x.Name, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		if rf.kind == kindNode || rf.kind == kindEdge {
			return rf.column("id"), nil
		}
		return rf.array, nil
	case *cypher.UnaryOperator:
		return c.unary(x, r)
	case *cypher.Operator:
		return c.boolean(x, r)
	case *cypher.Arithmetic:
		return c.arithmetic(x, r)
	case *cypher.Comparison:
		return c.comparison(x, r)
	case *cypher.NullComparison:
		if x.Op != "IS NULL" && x.Op != "IS NOT NULL" {
			return sqlfrag.Fragment{}, cypher.Invariant("null comparison", "operator %q", x.Op)
		}
		operand, err := c.expr(x.Operand, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(operand, sqlfrag.SQL(" "+x.Op)), nil
	case *cypher.TypeComparison:
		return c.typeComparison(x, r)
	case *cypher.Function:
		return c.function(x, r)
	case *cypher.PropertyAccess:
		return c.property(x, r, true)
	case *cypher.IndexAccess:
		return c.index(x, r)
	case *cypher.RangeAccess:
		return c.slice(x, r)
	case *cypher.Exists:
		return c.exists(x, r)
	default:
		return sqlfrag.Fragment{}, cypher.Unsupported("expression", "%s", e.Kind())
	}
}

func (c *compiler) lookup(name string, r resolver) (ref, error) {
	if r != nil {
		if rf, ok := r.resolve(name); ok {
			return rf, nil
		}
	}
	return ref{}, cypher.Unsupported("variable", "%s is not bound by any pattern", name)
}

func (c *compiler) literal(l *cypher.Literal) (sqlfrag.Fragment, error) {
	switch l.LitKind {
	case cypher.LiteralString:
		return sqlfrag.Placeholder(c.binder.Bind(l.Text)), nil
	case cypher.LiteralInteger:
		if _, err := strconv.ParseInt(l.Text, 10, 64); err != nil {
			return sqlfrag.Fragment{}, cypher.Invariant("literal", "invalid integer %q", l.Text)
		}
		return sqlfrag.SQL(l.Text), nil
	case cypher.LiteralFloat:
		if _, err := strconv.ParseFloat(l.Text, 64); err != nil {
			return sqlfrag.Fragment{}, cypher.Invariant("literal", "invalid float %q", l.Text)
		}
		return sqlfrag.SQL(l.Text), nil
	case cypher.LiteralBoolean:
		if strings.EqualFold(l.Text, "true") {
			return sqlfrag.SQL("TRUE"), nil
		}
		return sqlfrag.SQL("FALSE"), nil
	case cypher.LiteralNull:
		return sqlfrag.SQL("NULL"), nil
	case cypher.LiteralList:
		if len(l.Items) == 0 {
			return sqlfrag.SQL("ARRAY[]::text[]"), nil
		}
		items, err := c.literalItems(l.Items)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(sqlfrag.SQL("ARRAY["), sqlfrag.Join(", ", items), sqlfrag.SQL("]")), nil
	}
	return sqlfrag.Fragment{}, cypher.Unsupported("literal", "%s literals", l.LitKind)
}

func (c *compiler) literalItems(items []*cypher.Literal) ([]sqlfrag.Fragment, error) {
	out := make([]sqlfrag.Fragment, 0, len(items))
	for _, item := range items {
		if item.LitKind == cypher.LiteralList || item.LitKind == cypher.LiteralMap {
			return nil, cypher.Unsupported("literal", "nested %s in a list", item.LitKind)
		}
		f, err := c.literal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// parameter binds a caller-supplied $name value. Lists expand to ARRAY[...].
func (c *compiler) parameter(p *cypher.Parameter) (sqlfrag.Fragment, error) {
	v, ok := c.params[p.Name]
	if !ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("parameter", "no value supplied for $%s", p.Name)
	}
	if scalar, ok := normalizeValue(v); ok {
		return sqlfrag.Placeholder(c.binder.Bind(scalar)), nil
	}
	items, ok := listValue(v)
	if !ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("parameter", "$%s has unsupported type %T", p.Name, v)
	}
	if len(items) == 0 {
		return sqlfrag.SQL("ARRAY[]::text[]"), nil
	}
	frags := make([]sqlfrag.Fragment, 0, len(items))
	for _, item := range items {
		scalar, ok := normalizeValue(item)
		if !ok {
			return sqlfrag.Fragment{}, cypher.Unsupported("parameter", "$%s contains unsupported element %T", p.Name, item)
		}
		frags = append(frags, sqlfrag.Placeholder(c.binder.Bind(scalar)))
	}
	return sqlfrag.Concat(sqlfrag.SQL("ARRAY["), sqlfrag.Join(", ", frags), sqlfrag.SQL("]")), nil
}

func listValue(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out, true
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

// property compiles var.key chains to JSON operators. text selects ->> for
// the last step; nested steps always use ->.
func (c *compiler) property(x *cypher.PropertyAccess, r resolver, text bool) (sqlfrag.Fragment, error) {
	op := "->"
	if text {
		op = "->>"
	}
	switch obj := x.Object.(type) {
	case *cypher.Variable:
		rf, err := c.lookup(obj.Name, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		if rf.kind != kindNode && rf.kind != kindEdge {
			return sqlfrag.Fragment{}, cypher.Unsupported("property access", "%s.%s on a %s", obj.Name, x.Property, rf.kind)
		}
		return sqlfrag.Concat(rf.column("properties"), sqlfrag.SQL(op), sqlfrag.String(x.Property)), nil
	case *cypher.PropertyAccess:
		inner, err := c.property(obj, r, false)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(inner, sqlfrag.SQL(op), sqlfrag.String(x.Property)), nil
	case nil:
		return sqlfrag.Fragment{}, cypher.Invariant("property access", "%s has no object", x.Property)
	}
	return sqlfrag.Fragment{}, cypher.Unsupported("property access", "property %s of %s", x.Property, x.Object.Kind())
}

func (c *compiler) unary(x *cypher.UnaryOperator, r resolver) (sqlfrag.Fragment, error) {
	switch x.Op {
	case "+":
		return c.expr(x.Operand, r)
	case "-":
		if l, ok := x.Operand.(*cypher.Literal); ok && (l.LitKind == cypher.LiteralInteger || l.LitKind == cypher.LiteralFloat) {
			f, err := c.literal(l)
			if err != nil {
				return sqlfrag.Fragment{}, err
			}
			return sqlfrag.Concat(sqlfrag.SQL("-"), f), nil
		}
		f, err := c.numeric(x.Operand, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(sqlfrag.SQL("-"), sqlfrag.Paren(f)), nil
	}
	return sqlfrag.Fragment{}, cypher.Unsupported("unary operator", "%q", x.Op)
}

// numeric compiles e, casting JSON property text to numeric.
func (c *compiler) numeric(e cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	f, err := c.expr(e, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if _, ok := e.(*cypher.PropertyAccess); ok {
		return cast(f, "numeric"), nil
	}
	return f, nil
}

func cast(f sqlfrag.Fragment, typ string) sqlfrag.Fragment {
	return sqlfrag.Concat(sqlfrag.Paren(f), sqlfrag.SQL("::"+typ))
}

func (c *compiler) boolean(x *cypher.Operator, r resolver) (sqlfrag.Fragment, error) {
	op := strings.ToUpper(x.Op)
	switch op {
	case "NOT":
		if len(x.Operands) != 1 {
			return sqlfrag.Fragment{}, cypher.Invariant("operator", "NOT with %d operands", len(x.Operands))
		}
		f, err := c.expr(x.Operands[0], r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(sqlfrag.SQL("NOT "), sqlfrag.Paren(f)), nil
	case "AND", "OR", "XOR":
	default:
		return sqlfrag.Fragment{}, cypher.Unsupported("operator", "%q", x.Op)
	}

	if len(x.Operands) < 2 {
		return sqlfrag.Fragment{}, cypher.Invariant("operator", "%s with %d operands", op, len(x.Operands))
	}
	parts := make([]sqlfrag.Fragment, 0, len(x.Operands))
	for _, operand := range x.Operands {
		f, err := c.expr(operand, r)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		parts = append(parts, f)
	}
	if op != "XOR" {
		return sqlfrag.Paren(sqlfrag.Join(" "+op+" ", parts)), nil
	}
	// a XOR b is true when exactly one side is.
	acc := parts[0]
	for _, next := range parts[1:] {
		acc = sqlfrag.Paren(neq(sqlfrag.Paren(acc), sqlfrag.Paren(next)))
	}
	return acc, nil
}

func (c *compiler) arithmetic(x *cypher.Arithmetic, r resolver) (sqlfrag.Fragment, error) {
	if len(x.Operands) < 2 || len(x.Ops) != len(x.Operands)-1 {
		return sqlfrag.Fragment{}, cypher.Invariant("arithmetic", "%d operators for %d operands", len(x.Ops), len(x.Operands))
	}
	concat := false
	for i, op := range x.Ops {
		if op == "||" || (op == "+" && (c.isString(x.Operands[i]) || c.isString(x.Operands[i+1]))) {
			concat = true
		}
	}

	var out sqlfrag.Fragment
	for i, operand := range x.Operands {
		var f sqlfrag.Fragment
		var err error
		if concat {
			f, err = c.expr(operand, r)
		} else {
			f, err = c.numeric(operand, r)
		}
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		if i == 0 {
			out = f
			continue
		}
		op := x.Ops[i-1]
		switch op {
		case "+", "||":
			if concat {
				op = "||"
			}
		case "-", "*", "/", "%", "^":
			if concat {
				return sqlfrag.Fragment{}, cypher.Unsupported("arithmetic", "%q on strings", op)
			}
		default:
			return sqlfrag.Fragment{}, cypher.Unsupported("arithmetic", "operator %q", op)
		}
		out = sqlfrag.Concat(out, sqlfrag.SQL(" "+op+" "), f)
	}
	return sqlfrag.Paren(out), nil
}

// isString reports whether e is a string literal or a string parameter.
func (c *compiler) isString(e cypher.Expression) bool {
	switch x := e.(type) {
	case *cypher.Literal:
		return x.LitKind == cypher.LiteralString
	case *cypher.Parameter:
		_, ok := c.params[x.Name].(string)
		return ok
	}
	return false
}

// castFor picks the cast a JSON text property needs to be compared with e.
func (c *compiler) castFor(e cypher.Expression) string {
	switch x := e.(type) {
	case *cypher.Literal:
		switch x.LitKind {
		case cypher.LiteralInteger, cypher.LiteralFloat:
			return "numeric"
		case cypher.LiteralBoolean:
			return "boolean"
		case cypher.LiteralList:
			if len(x.Items) > 0 {
				return c.castFor(x.Items[0])
			}
		}
	case *cypher.UnaryOperator:
		return c.castFor(x.Operand)
	case *cypher.Arithmetic:
		return "numeric"
	case *cypher.Parameter:
		v := c.params[x.Name]
		if items, ok := listValue(v); ok && len(items) > 0 {
			v = items[0]
		}
		switch n, _ := normalizeValue(v); n.(type) {
		case int64, float64:
			return "numeric"
		case bool:
			return "boolean"
		}
	case *cypher.Function:
		switch strings.ToLower(x.Name) {
		case "count", "size", "length", "sum", "avg", "abs", "ceil", "floor", "round", "sqrt", "sign", "tointeger", "tofloat", "timestamp":
			return "numeric"
		case "toboolean":
			return "boolean"
		}
	}
	return ""
}

func (c *compiler) comparison(x *cypher.Comparison, r resolver) (sqlfrag.Fragment, error) {
	switch {
	case len(x.Operands) > 0 && (x.Left != nil || x.Right != nil):
		return sqlfrag.Fragment{}, cypher.Invariant("comparison", "both operand chain and left/right set")
	case len(x.Operands) > 0:
		if len(x.Ops) != len(x.Operands)-1 {
			return sqlfrag.Fragment{}, cypher.Invariant("comparison", "%d operators for %d operands", len(x.Ops), len(x.Operands))
		}
		parts := make([]sqlfrag.Fragment, 0, len(x.Ops))
		for i, op := range x.Ops {
			f, err := c.compare(op, x.Operands[i], x.Operands[i+1], r)
			if err != nil {
				return sqlfrag.Fragment{}, err
			}
			parts = append(parts, f)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return sqlfrag.Paren(and(parts...)), nil
	case x.Left != nil && x.Right != nil:
		if len(x.Ops) != 1 {
			return sqlfrag.Fragment{}, cypher.Invariant("comparison", "%d operators for a left/right pair", len(x.Ops))
		}
		return c.compare(x.Ops[0], x.Left, x.Right, r)
	}
	return sqlfrag.Fragment{}, cypher.Invariant("comparison", "neither operands nor left and right")
}

var comparisonSQL = map[string]string{
	"=": "=", "<>": "<>", "!=": "<>", "<": "<", ">": ">", "<=": "<=", ">=": ">=",
}

func (c *compiler) compare(op string, left, right cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	switch strings.ToUpper(op) {
	case "CONTAINS":
		return c.like(left, right, r, "%", "%")
	case "STARTS WITH":
		return c.like(left, right, r, "", "%")
	case "ENDS WITH":
		return c.like(left, right, r, "%", "")
	case "=~":
		return c.regex(left, right, r)
	case "IN":
		return c.in(left, right, r)
	}

	sqlOp, ok := comparisonSQL[op]
	if !ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("comparison", "operator %q", op)
	}
	if ordering[sqlOp] {
		if lp, ok := left.(*cypher.PropertyAccess); ok {
			if rp, ok := right.(*cypher.PropertyAccess); ok {
				return c.compareJSON(sqlOp, lp, rp, r)
			}
		}
	}
	lf, err := c.operand(left, right, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	rf, err := c.operand(right, left, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	return sqlfrag.Concat(lf, sqlfrag.SQL(" "+sqlOp+" "), rf), nil
}

var ordering = map[string]bool{"<": true, ">": true, "<=": true, ">=": true}

// compareJSON orders two properties by their jsonb values; numbers order
// numerically.
func (c *compiler) compareJSON(sqlOp string, left, right *cypher.PropertyAccess, r resolver) (sqlfrag.Fragment, error) {
	lf, err := c.property(left, r, false)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	rf, err := c.property(right, r, false)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	return sqlfrag.Concat(sqlfrag.Paren(lf), sqlfrag.SQL(" "+sqlOp+" "), sqlfrag.Paren(rf)), nil
}

// operand compiles one side of a comparison, casting a JSON text property
// when the other side is numeric or boolean.
func (c *compiler) operand(e, other cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	f, err := c.expr(e, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if _, ok := e.(*cypher.PropertyAccess); ok {
		if typ := c.castFor(other); typ != "" {
			return cast(f, typ), nil
		}
	}
	return f, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// like lowers CONTAINS / STARTS WITH / ENDS WITH. Literal and parameter
// operands are escaped and wrapped before binding so the wildcards live in
// the bound value.
func (c *compiler) like(left, right cypher.Expression, r resolver, prefix, suffix string) (sqlfrag.Fragment, error) {
	lf, err := c.expr(left, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	op := " LIKE "
	if c.cfg.CaseInsensitiveMatch {
		op = " ILIKE "
	}

	if s, ok := c.stringValue(right); ok {
		pattern := prefix + likeEscaper.Replace(s) + suffix
		return sqlfrag.Concat(lf, sqlfrag.SQL(op), sqlfrag.Placeholder(c.binder.Bind(pattern))), nil
	}

	rf, err := c.expr(right, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	var pattern []sqlfrag.Fragment
	if prefix != "" {
		pattern = append(pattern, sqlfrag.String(prefix))
	}
	pattern = append(pattern, rf)
	if suffix != "" {
		pattern = append(pattern, sqlfrag.String(suffix))
	}
	return sqlfrag.Concat(lf, sqlfrag.SQL(op), sqlfrag.Paren(sqlfrag.Join(" || ", pattern))), nil
}

// stringValue returns the value of a string literal or string parameter.
func (c *compiler) stringValue(e cypher.Expression) (string, bool) {
	switch x := e.(type) {
	case *cypher.Literal:
		if x.LitKind == cypher.LiteralString {
			return x.Text, true
		}
	case *cypher.Parameter:
		s, ok := c.params[x.Name].(string)
		return s, ok
	}
	return "", false
}

// regex lowers =~ to the POSIX match operator. Cypher regexes match the
// whole string, so the pattern is anchored.
func (c *compiler) regex(left, right cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	lf, err := c.expr(left, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if s, ok := c.stringValue(right); ok {
		return sqlfrag.Concat(lf, sqlfrag.SQL(" ~ "), sqlfrag.Placeholder(c.binder.Bind("^(?:"+s+")$"))), nil
	}
	rf, err := c.expr(right, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	anchored := sqlfrag.Paren(sqlfrag.Join(" || ", []sqlfrag.Fragment{sqlfrag.String("^(?:"), rf, sqlfrag.String(")$")}))
	return sqlfrag.Concat(lf, sqlfrag.SQL(" ~ "), anchored), nil
}

func (c *compiler) in(left, right cypher.Expression, r resolver) (sqlfrag.Fragment, error) {
	lf, err := c.operand(left, right, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if l, ok := right.(*cypher.Literal); ok && l.LitKind == cypher.LiteralList {
		if len(l.Items) == 0 {
			return sqlfrag.SQL("FALSE"), nil
		}
		items, err := c.literalItems(l.Items)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		return sqlfrag.Concat(lf, sqlfrag.SQL(" IN "), sqlfrag.Paren(sqlfrag.Join(", ", items))), nil
	}
	rf, err := c.expr(right, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	return sqlfrag.Concat(lf, sqlfrag.SQL(" = ANY("), rf, sqlfrag.SQL(")")), nil
}

var jsonTypes = map[string]string{
	"INTEGER": "number", "INT": "number", "FLOAT": "number", "NUMBER": "number",
	"STRING": "string", "BOOLEAN": "boolean", "BOOL": "boolean",
	"LIST": "array", "MAP": "object", "NULL": "null",
}

// typeComparison checks the JSON type of a property value.
func (c *compiler) typeComparison(x *cypher.TypeComparison, r resolver) (sqlfrag.Fragment, error) {
	pa, ok := x.Operand.(*cypher.PropertyAccess)
	if !ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("type comparison", "on %s", x.Operand.Kind())
	}
	typ, ok := jsonTypes[strings.ToUpper(x.ExpectedType)]
	if !ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("type comparison", "type %s", x.ExpectedType)
	}
	f, err := c.property(pa, r, false)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	op := " = "
	switch x.Op {
	case "IS":
	case "IS NOT":
		op = " IS DISTINCT FROM "
	default:
		return sqlfrag.Fragment{}, cypher.Invariant("type comparison", "operator %q", x.Op)
	}
	return sqlfrag.Concat(sqlfrag.SQL("jsonb_typeof("), f, sqlfrag.SQL(")"+op), sqlfrag.String(typ)), nil
}

// index compiles x[i]. JSON arrays are 0-based like Cypher lists; SQL arrays
// are 1-based.
func (c *compiler) index(x *cypher.IndexAccess, r resolver) (sqlfrag.Fragment, error) {
	if pa, ok := x.Object.(*cypher.PropertyAccess); ok {
		base, err := c.property(pa, r, false)
		if err != nil {
			return sqlfrag.Fragment{}, err
		}
		switch idx := x.Index.(type) {
		case *cypher.Literal:
			switch idx.LitKind {
			case cypher.LiteralInteger:
				f, err := c.literal(idx)
				if err != nil {
					return sqlfrag.Fragment{}, err
				}
				return sqlfrag.Concat(base, sqlfrag.SQL("->>"), f), nil
			case cypher.LiteralString:
				return sqlfrag.Concat(base, sqlfrag.SQL("->>"), sqlfrag.String(idx.Text)), nil
			}
		case *cypher.UnaryOperator:
			f, err := c.unary(idx, r)
			if err != nil {
				return sqlfrag.Fragment{}, err
			}
			return sqlfrag.Concat(base, sqlfrag.SQL("->>"), f), nil
		}
		return sqlfrag.Fragment{}, cypher.Unsupported("index access", "%s index on a property", x.Index.Kind())
	}

	if v, ok := x.Object.(*cypher.Variable); ok {
		if key, ok := x.Index.(*cypher.Literal); ok && key.LitKind == cypher.LiteralString {
			return c.property(&cypher.PropertyAccess{Object: v, Property: key.Text}, r, true)
		}
	}

	arr, err := c.expr(x.Object, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	if l, ok := x.Index.(*cypher.Literal); ok && l.LitKind == cypher.LiteralInteger {
		n, err := strconv.Atoi(l.Text)
		if err != nil {
			return sqlfrag.Fragment{}, cypher.Invariant("literal", "invalid integer %q", l.Text)
		}
		return sqlfrag.Concat(sqlfrag.Paren(arr), sqlfrag.SQL("["+strconv.Itoa(n+1)+"]")), nil
	}
	if u, ok := x.Index.(*cypher.UnaryOperator); ok && u.Op == "-" {
		if l, ok := u.Operand.(*cypher.Literal); ok && l.LitKind == cypher.LiteralInteger {
			n, err := strconv.Atoi(l.Text)
			if err != nil {
				return sqlfrag.Fragment{}, cypher.Invariant("literal", "invalid integer %q", l.Text)
			}
			// -1 is the last element.
			return sqlfrag.Concat(sqlfrag.Paren(arr), sqlfrag.SQL("[cardinality("), arr,
				sqlfrag.SQL(") - "+strconv.Itoa(n-1)+"]")), nil
		}
	}
	idx, err := c.expr(x.Index, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	return sqlfrag.Concat(sqlfrag.Paren(arr), sqlfrag.SQL("["), idx, sqlfrag.SQL(" + 1]")), nil
}

// slice compiles x[from..to] on arrays; bounds must be non-negative integer
// literals.
func (c *compiler) slice(x *cypher.RangeAccess, r resolver) (sqlfrag.Fragment, error) {
	if _, ok := x.Object.(*cypher.PropertyAccess); ok {
		return sqlfrag.Fragment{}, cypher.Unsupported("range access", "slicing a property value")
	}
	bound := func(e cypher.Expression) (int, error) {
		if e == nil {
			return -1, nil
		}
		l, ok := e.(*cypher.Literal)
		if !ok || l.LitKind != cypher.LiteralInteger {
			return 0, cypher.Unsupported("range access", "%s bound", e.Kind())
		}
		n, err := strconv.Atoi(l.Text)
		if err != nil || n < 0 {
			return 0, cypher.Unsupported("range access", "bound %s", l.Text)
		}
		return n, nil
	}
	from, err := bound(x.From)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	to, err := bound(x.To)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	arr, err := c.expr(x.Object, r)
	if err != nil {
		return sqlfrag.Fragment{}, err
	}
	spec := "[" + strconv.Itoa(max(from, 0)+1) + ":"
	if to >= 0 {
		spec += strconv.Itoa(to)
	}
	return sqlfrag.Concat(sqlfrag.Paren(arr), sqlfrag.SQL(spec+"]")), nil
}
