package cypher

// Query is a parsed Cypher document. The translator only reads it.
type Query struct {
	Matches         []*MatchClause
	OptionalMatches []*MatchClause
	Where           []Expression // conjunctive: every entry is ANDed
	With            []*WithClause
	Return          *ReturnClause
	Union           *Union

	// Quantifiers and ParenthesizedPatterns collect every pattern-repetition
	// construct seen in the document. The element-level Groups carry the
	// same information positioned inside the chain.
	Quantifiers           []Quantifier
	ParenthesizedPatterns []*Pattern

	// Command holds the raw text of an administrative statement that is
	// recognized but never translated.
	Command string
}

// MatchPatterns returns the patterns of every non-optional MATCH clause in order.
func (q *Query) MatchPatterns() []*Pattern {
	var out []*Pattern
	for _, m := range q.Matches {
		out = append(out, m.Patterns...)
	}
	return out
}

// MatchClause is a MATCH or OPTIONAL MATCH clause.
type MatchClause struct {
	Optional bool
	Patterns []*Pattern
	// Where is only set on optional matches; the WHERE of a regular MATCH
	// lives in Query.Where.
	Where Expression
}

// WithClause is a WITH projection. Only pass-through projections are lowered.
type WithClause struct {
	Body  ReturnBody
	Where Expression
}

// ReturnClause is the final RETURN projection.
type ReturnClause struct {
	Body ReturnBody
}

// ReturnBody is shared by RETURN and WITH.
type ReturnBody struct {
	Distinct bool
	Star     bool
	Items    []ReturnItem
	OrderBy  []SortItem
	Skip     Expression
	Limit    Expression
}

// ReturnItem is one projected expression.
type ReturnItem struct {
	Expr  Expression
	Alias string
}

// SortItem is one ORDER BY entry.
type SortItem struct {
	Expr       Expression
	Descending bool
}

// Union chains further single queries onto the document.
type Union struct {
	All     bool
	Queries []*Query
}

// Selector marks special pattern semantics.
type Selector string

const (
	SelectorNone         Selector = ""
	SelectorShortestPath Selector = "SHORTEST_PATH"
	SelectorAllShortest  Selector = "ALL_SHORTEST_PATHS"
)

// Pattern is one comma-separated pattern of a MATCH clause.
type Pattern struct {
	Variable string
	Elements []*PatternElement
	Selector Selector
}

// IsShortestPath reports whether the pattern requests shortest-path search.
func (p *Pattern) IsShortestPath() bool {
	return p.Selector == SelectorShortestPath || p.Selector == SelectorAllShortest || p.Variable == string(SelectorShortestPath)
}

// PatternElement is an alternating chain: Relationships[i] connects Nodes[i]
// to Nodes[i+1].
type PatternElement struct {
	Nodes         []*NodePattern
	Relationships []*RelationshipPattern
	Groups        []Group
}

// Variables returns the named node and relationship variables of the element
// in chain order, without duplicates.
func (e *PatternElement) Variables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for i, n := range e.Nodes {
		add(n.Variable)
		if i < len(e.Relationships) {
			add(e.Relationships[i].Variable)
		}
	}
	return out
}

// Group is a parenthesized sub-path spanning Nodes[First..Last].
type Group struct {
	First, Last int
	Quantifier  *Quantifier
}

// Quantifier bounds a repetition. Nil bounds are open.
type Quantifier struct {
	Min *int
	Max *int
}

// Repeats reports whether the quantifier asks for anything other than exactly one pass.
func (q Quantifier) Repeats() bool {
	if q.Max == nil {
		return true
	}
	return *q.Max > 1 || (q.Min != nil && *q.Min > 1)
}

// NodePattern matches a node.
type NodePattern struct {
	Variable   string
	Labels     []string   // disjunctive (:A|B)
	AllLabels  []string   // conjunctive (:A:B)
	Properties []Property // equality constraints, in source order
	Where      Expression
}

// Property is one inline key/value constraint. Exactly one of Value and
// Param is set.
type Property struct {
	Key   string
	Value *Literal
	Param string
}

// Direction of a relationship pattern.
type Direction int

const (
	DirectionBoth Direction = iota
	DirectionOutgoing
	DirectionIncoming
)

func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	default:
		return "both"
	}
}

// RelationshipPattern matches one edge or, with Length set, a bounded path.
type RelationshipPattern struct {
	Variable   string
	Types      []string // alternatives
	Direction  Direction
	Length     *PathLength
	Properties []Property
	Where      Expression
}

// PathLength bounds a variable-length relationship. Nil bounds are open.
type PathLength struct {
	Min *int
	Max *int
}

// IntPtr is a small helper for building bounds.
func IntPtr(v int) *int { return &v }
