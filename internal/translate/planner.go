package translate

import (
	"github.com/DeusData/pgraf-cypher/internal/cypher"
)

// hop is one relationship of an element as it will be joined.
type hop struct {
	rel       *cypher.RelationshipPattern
	from, to  int // node indexes
	recursive bool
	min, max  int
}

// elementPlan is the strategy for one pattern element plus its hops.
type elementPlan struct {
	strategy Strategy
	hops     []hop
}

// planElement picks the SQL shape for el. First match wins: shortest path,
// recursive, parenthesized, simple.
func (c *compiler) planElement(pat *cypher.Pattern, el *cypher.PatternElement, doc *cypher.Query) (elementPlan, error) {
	if len(el.Nodes) == 0 {
		return elementPlan{}, cypher.Invariant("pattern element", "no nodes")
	}
	// A relationship needs a node on both sides; extras are skipped.
	rels := el.Relationships
	if len(rels) > len(el.Nodes)-1 {
		rels = rels[:len(el.Nodes)-1]
	}

	if pat.IsShortestPath() {
		return elementPlan{strategy: StrategyShortestPath}, nil
	}

	hops := make([]hop, len(rels))
	for i, rel := range rels {
		hops[i] = hop{rel: rel, from: i, to: i + 1, min: 1, max: 1}
		if rel.Length == nil {
			continue
		}
		lo, hi, err := c.bounds(rel.Length.Min, rel.Length.Max, "variable-length relationship")
		if err != nil {
			return elementPlan{}, err
		}
		hops[i].min, hops[i].max = lo, hi
		hops[i].recursive = lo != 1 || hi != 1
	}

	quantified := false
	for _, g := range el.Groups {
		if g.Quantifier == nil || !g.Quantifier.Repeats() {
			continue
		}
		if g.Last-g.First != 1 {
			return elementPlan{}, cypher.Unsupported("quantified pattern", "groups spanning %d relationships", g.Last-g.First)
		}
		if g.First >= len(hops) {
			continue
		}
		lo, hi, err := c.bounds(g.Quantifier.Min, g.Quantifier.Max, "quantified pattern")
		if err != nil {
			return elementPlan{}, err
		}
		h := &hops[g.First]
		if h.recursive {
			return elementPlan{}, cypher.Unsupported("quantified pattern", "quantifier on a variable-length relationship")
		}
		h.recursive, h.min, h.max = true, lo, hi
		quantified = true
	}

	// Documents built without positioned groups still carry their
	// quantifiers; they apply to the first relationship.
	if !quantified && !hasGroups(doc) && len(hops) > 0 && !hops[0].recursive {
		for _, q := range doc.Quantifiers {
			if !q.Repeats() {
				continue
			}
			lo, hi, err := c.bounds(q.Min, q.Max, "quantified pattern")
			if err != nil {
				return elementPlan{}, err
			}
			hops[0].recursive, hops[0].min, hops[0].max = true, lo, hi
			break
		}
	}

	for _, h := range hops {
		if h.recursive {
			return elementPlan{strategy: StrategyRecursive, hops: hops}, nil
		}
	}
	if isParenthesized(el, doc) {
		return elementPlan{strategy: StrategyParenthesized, hops: hops}, nil
	}
	return elementPlan{strategy: StrategySimple, hops: hops}, nil
}

// bounds resolves open repetition bounds. Zero-length repetitions have no
// join to lower to.
func (c *compiler) bounds(lower, upper *int, construct string) (int, int, error) {
	lo := 1
	if lower != nil {
		lo = *lower
	}
	if lo < 1 {
		return 0, 0, cypher.Unsupported(construct, "zero-length paths")
	}
	hi := c.cfg.DefaultMaxHops
	if upper != nil {
		hi = *upper
	} else if hi < lo {
		hi = lo
	}
	if hi < lo {
		return 0, 0, cypher.Invariant(construct, "lower bound %d exceeds upper bound %d", lo, hi)
	}
	return lo, hi, nil
}

func hasGroups(doc *cypher.Query) bool {
	for _, m := range append(append([]*cypher.MatchClause(nil), doc.Matches...), doc.OptionalMatches...) {
		for _, p := range m.Patterns {
			for _, el := range p.Elements {
				if len(el.Groups) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// isParenthesized reports whether el composes a wrapped sub-pattern with an
// outer relationship.
func isParenthesized(el *cypher.PatternElement, doc *cypher.Query) bool {
	for _, g := range el.Groups {
		if g.Quantifier != nil && g.Quantifier.Repeats() {
			continue
		}
		if g.First > 0 || g.Last < len(el.Nodes)-1 {
			return true
		}
	}
	if len(el.Groups) > 0 || hasGroups(doc) || len(el.Relationships) < 2 {
		return false
	}
	vars := make(map[string]bool)
	for _, v := range el.Variables() {
		vars[v] = true
	}
	for _, p := range doc.ParenthesizedPatterns {
		for _, sub := range p.Elements {
			for _, v := range sub.Variables() {
				if vars[v] {
					return true
				}
			}
		}
	}
	return false
}
