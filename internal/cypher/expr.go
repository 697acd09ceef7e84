package cypher

// Expression is the closed set of expression nodes. Only types in this file
// implement it.
type Expression interface {
	expression()
	// Kind names the variant for error messages.
	Kind() string
}

// LiteralKind tags the value carried by a Literal.
type LiteralKind int

const (
	LiteralUnknown LiteralKind = iota
	LiteralString
	LiteralInteger
	LiteralFloat
	LiteralBoolean
	LiteralNull
	LiteralMap
	LiteralKeyword
	LiteralList
)

var literalKindNames = [...]string{"unknown", "string", "integer", "float", "boolean", "null", "map", "keyword", "list"}

func (k LiteralKind) String() string {
	if int(k) < len(literalKindNames) {
		return literalKindNames[k]
	}
	return "unknown"
}

type (
	// Empty stands in for a missing expression.
	Empty struct{}

	// Literal is a constant. Text holds the source spelling for scalar kinds;
	// Items and Entries hold list and map contents.
	Literal struct {
		LitKind LiteralKind
		Text    string
		Items   []*Literal
		Entries []Property
	}

	Variable struct {
		Name string
	}

	// Parameter is a $name placeholder supplied by the caller.
	Parameter struct {
		Name string
	}

	UnaryOperator struct {
		Op      string // "-" or "+"
		Operand Expression
	}

	// Operator is a boolean connective: AND, OR, XOR take two or more
	// operands, NOT takes one.
	Operator struct {
		Op       string
		Operands []Expression
	}

	// Arithmetic holds len(Operands)-1 operators applied left to right.
	Arithmetic struct {
		Ops      []string
		Operands []Expression
	}

	// Comparison is either a chain (Operands with len(Ops) == len(Operands)-1)
	// or a single Left Op Right pair.
	Comparison struct {
		Ops      []string
		Left     Expression
		Right    Expression
		Operands []Expression
	}

	NullComparison struct {
		Op      string // "IS NULL" or "IS NOT NULL"
		Operand Expression
	}

	TypeComparison struct {
		Op           string // "IS" or "IS NOT"
		Operand      Expression
		ExpectedType string
	}

	Function struct {
		Name     string
		Distinct bool
		Star     bool // count(*)
		Args     []Expression
	}

	PropertyAccess struct {
		Object   Expression
		Property string
	}

	IndexAccess struct {
		Object Expression
		Index  Expression
	}

	RangeAccess struct {
		Object Expression
		From   Expression // nil when open
		To     Expression // nil when open
	}

	// Exists is an EXISTS { MATCH ... } sub-query or an existential pattern.
	Exists struct {
		Pattern *Pattern
		Match   *MatchClause
	}
)

func (*Empty) expression() {}
func (*Literal) expression() {}
func (*Variable) expression() {}
func (*Parameter) expression() {}
func (*UnaryOperator) expression() {}
func (*Operator) expression() {}
func (*Arithmetic) expression() {}
func (*Comparison) expression() {}
func (*NullComparison) expression() {}
func (*TypeComparison) expression() {}
func (*Function) expression() {}
func (*PropertyAccess) expression() {}
func (*IndexAccess) expression() {}
func (*RangeAccess) expression() {}
func (*Exists) expression() {}

func (*Empty) Kind() string { return "empty" }
func (*Literal) Kind() string { return "literal" }
func (*Variable) Kind() string { return "variable" }
func (*Parameter) Kind() string { return "parameter" }
func (*UnaryOperator) Kind() string { return "unary operator" }
func (*Operator) Kind() string { return "operator" }
func (*Arithmetic) Kind() string { return "arithmetic" }
func (*Comparison) Kind() string { return "comparison" }
func (*NullComparison) Kind() string { return "null comparison" }
func (*TypeComparison) Kind() string { return "type comparison" }
func (*Function) Kind() string { return "function" }
func (*PropertyAccess) Kind() string { return "property access" }
func (*IndexAccess) Kind() string { return "index access" }
func (*RangeAccess) Kind() string { return "range access" }
func (*Exists) Kind() string { return "exists" }

// Str, Int and Bool build literals; they keep tests and callers short.
func Str(s string) *Literal { return &Literal{LitKind: LiteralString, Text: s} }
func Int(s string) *Literal { return &Literal{LitKind: LiteralInteger, Text: s} }
func Bool(b bool) *Literal {
	if b {
		return &Literal{LitKind: LiteralBoolean, Text: "true"}
	}
	return &Literal{LitKind: LiteralBoolean, Text: "false"}
}

// Prop builds var.property.
func Prop(variable, property string) *PropertyAccess {
	return &PropertyAccess{Object: &Variable{Name: variable}, Property: property}
}

// Variables returns the variables referenced by e in first-seen order.
// Variables bound inside an EXISTS sub-pattern are reported too: the caller
// decides which of them are correlated.
func Variables(e Expression) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Expression)
	walk = func(e Expression) {
		switch x := e.(type) {
		case *Variable:
			if !seen[x.Name] {
				seen[x.Name] = true
				out = append(out, x.Name)
			}
		case *UnaryOperator:
			walk(x.Operand)
		case *Operator:
			for _, o := range x.Operands {
				walk(o)
			}
		case *Arithmetic:
			for _, o := range x.Operands {
				walk(o)
			}
		case *Comparison:
			if x.Left != nil {
				walk(x.Left)
			}
			if x.Right != nil {
				walk(x.Right)
			}
			for _, o := range x.Operands {
				walk(o)
			}
		case *NullComparison:
			walk(x.Operand)
		case *TypeComparison:
			walk(x.Operand)
		case *Function:
			for _, a := range x.Args {
				walk(a)
			}
		case *PropertyAccess:
			walk(x.Object)
		case *IndexAccess:
			walk(x.Object)
			walk(x.Index)
		case *RangeAccess:
			walk(x.Object)
			if x.From != nil {
				walk(x.From)
			}
			if x.To != nil {
				walk(x.To)
			}
		case *Exists:
			for _, p := range x.Patterns() {
				for _, el := range p.Elements {
					for _, v := range el.Variables() {
						walk(&Variable{Name: v})
					}
				}
			}
			if x.Match != nil && x.Match.Where != nil {
				walk(x.Match.Where)
			}
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

// Patterns returns every pattern the EXISTS body matches.
func (x *Exists) Patterns() []*Pattern {
	var out []*Pattern
	if x.Pattern != nil {
		out = append(out, x.Pattern)
	}
	if x.Match != nil {
		out = append(out, x.Match.Patterns...)
	}
	return out
}

// Conjuncts flattens nested AND operators into their operands.
func Conjuncts(e Expression) []Expression {
	if op, ok := e.(*Operator); ok && op.Op == "AND" {
		var out []Expression
		for _, o := range op.Operands {
			out = append(out, Conjuncts(o)...)
		}
		return out
	}
	return []Expression{e}
}
