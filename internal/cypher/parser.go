package cypher

import (
	"strconv"
	"strings"
)

// Parser converts a token stream into a query document.
type Parser struct {
	tokens []Token
	pos    int
	doc    *Query // single query currently being built
}

// adminVerbs start statements that are recognized but never translated.
var adminVerbs = map[string]bool{
	"SHOW": true, "DROP": true, "GRANT": true, "REVOKE": true, "ALTER": true,
	"DENY": true, "CALL": true, "USE": true, "START": true, "STOP": true,
	"TERMINATE": true, "ENABLE": true, "RENAME": true,
}

// adminCreateTargets follow CREATE in DDL statements.
var adminCreateTargets = map[string]bool{
	"INDEX": true, "CONSTRAINT": true, "USER": true, "ROLE": true, "DATABASE": true,
	"ALIAS": true, "COMPOSITE": true, "OR": true, "TEXT": true, "RANGE": true,
	"POINT": true, "LOOKUP": true, "FULLTEXT": true, "VECTOR": true,
}

// writeClauses are rejected with a clear message rather than a syntax error.
var writeClauses = map[string]bool{
	"CREATE": true, "MERGE": true, "SET": true, "DELETE": true, "DETACH": true,
	"REMOVE": true, "UNWIND": true, "FOREACH": true, "LOAD": true, "FINISH": true,
}

// Parse tokenizes and parses query text into a document.
func Parse(input string) (*Query, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, &InputError{Pos: -1, Msg: "empty query"}
	}
	if len(text) >= len("SHORTEST_PATH(") && strings.EqualFold(text[:len("SHORTEST_PATH(")], "SHORTEST_PATH(") {
		text = "MATCH " + text
	}
	if isAdminCommand(text) {
		return &Query{Command: text}, nil
	}

	tokens, err := Lex(text)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	return p.parseQuery()
}

func isAdminCommand(text string) bool {
	words := strings.Fields(strings.ToUpper(text))
	if len(words) == 0 {
		return false
	}
	if adminVerbs[words[0]] {
		return true
	}
	return words[0] == "CREATE" && len(words) > 1 && adminCreateTargets[words[1]]
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: TokEOF, Pos: p.endPos()}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) endPos() int {
	if len(p.tokens) == 0 {
		return 0
	}
	return p.tokens[len(p.tokens)-1].Pos
}

func (p *Parser) advance() Token {
	t := p.peek()
	p.pos++
	return t
}

func (p *Parser) accept(typ TokenType) bool {
	if p.peek().Type == typ {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	t := p.advance()
	if t.Type != typ {
		return t, inputErrorf(t.Pos, "expected %s, got %s", what, describe(t))
	}
	return t, nil
}

func describe(t Token) string {
	if t.Type == TokEOF {
		return "end of input"
	}
	return strconv.Quote(t.Value)
}

// isWord reports whether t can serve as a name: identifiers and keywords both
// qualify for labels, property keys, map keys and aliases.
func isWord(t Token) bool {
	return t.Type == TokIdent || t.Type <= TokExists
}

func (p *Parser) expectWord(what string) (string, error) {
	t := p.advance()
	if !isWord(t) {
		return "", inputErrorf(t.Pos, "expected %s, got %s", what, describe(t))
	}
	return t.Value, nil
}

// peekWord reports whether the next token is the identifier w (case-insensitive).
func (p *Parser) peekWord(offset int, w string) bool {
	t := p.peekAt(offset)
	return t.Type == TokIdent && strings.EqualFold(t.Value, w)
}

func (p *Parser) parseQuery() (*Query, error) {
	q, err := p.parseSingleQuery()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == TokUnion {
		p.advance() // consume UNION
		all := p.accept(TokAll)
		next, err := p.parseSingleQuery()
		if err != nil {
			return nil, err
		}
		if q.Union == nil {
			q.Union = &Union{All: all}
		} else if q.Union.All != all {
			return nil, inputErrorf(-1, "cannot mix UNION and UNION ALL")
		}
		q.Union.Queries = append(q.Union.Queries, next)
	}

	p.accept(TokSemicolon)
	if t := p.peek(); t.Type != TokEOF {
		return nil, inputErrorf(t.Pos, "unexpected %s", describe(t))
	}
	return q, nil
}

func (p *Parser) parseSingleQuery() (*Query, error) {
	q := &Query{}
	p.doc = q

loop:
	for {
		t := p.peek()
		switch t.Type {
		case TokOptional:
			p.advance()
			if _, err := p.expect(TokMatch, "MATCH after OPTIONAL"); err != nil {
				return nil, err
			}
			m, err := p.parseMatch(true)
			if err != nil {
				return nil, err
			}
			q.OptionalMatches = append(q.OptionalMatches, m)
		case TokMatch:
			p.advance()
			m, err := p.parseMatch(false)
			if err != nil {
				return nil, err
			}
			q.Matches = append(q.Matches, m)
		case TokWith:
			p.advance()
			w, err := p.parseWith()
			if err != nil {
				return nil, err
			}
			q.With = append(q.With, w)
		case TokReturn:
			p.advance()
			body, err := p.parseReturnBody()
			if err != nil {
				return nil, err
			}
			q.Return = &ReturnClause{Body: body}
			break loop
		case TokIdent:
			if writeClauses[strings.ToUpper(t.Value)] {
				return nil, inputErrorf(t.Pos, "unsupported clause %s", strings.ToUpper(t.Value))
			}
			return nil, inputErrorf(t.Pos, "unexpected %s", describe(t))
		default:
			break loop
		}
	}

	if len(q.Matches) == 0 && len(q.OptionalMatches) == 0 && q.Return == nil {
		t := p.peek()
		return nil, inputErrorf(t.Pos, "expected MATCH or RETURN, got %s", describe(t))
	}
	return q, nil
}

// parseMatch parses the body of a MATCH clause. The WHERE of a regular MATCH
// joins the document's conjunctive list; an OPTIONAL MATCH keeps its own.
func (p *Parser) parseMatch(optional bool) (*MatchClause, error) {
	m := &MatchClause{Optional: optional}
	for {
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		m.Patterns = append(m.Patterns, pat)
		if !p.accept(TokComma) {
			break
		}
	}

	if p.accept(TokWhere) {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if optional {
			m.Where = w
		} else {
			p.doc.Where = append(p.doc.Where, w)
		}
	}
	return m, nil
}

func (p *Parser) parsePattern() (*Pattern, error) {
	pat := &Pattern{}

	// p = ...
	if p.peek().Type == TokIdent && p.peekAt(1).Type == TokEQ {
		pat.Variable = p.advance().Value
		p.advance() // consume =
	}

	// ANY SHORTEST / ALL SHORTEST / SHORTEST k selectors
	switch {
	case p.peekWord(0, "ANY") && p.peekWord(1, "SHORTEST"):
		p.pos += 2
		pat.Selector = SelectorShortestPath
	case p.peek().Type == TokAll && p.peekWord(1, "SHORTEST"):
		p.pos += 2
		pat.Selector = SelectorAllShortest
	case p.peekWord(0, "SHORTEST") && p.peekAt(1).Type == TokNumber:
		p.pos += 2
		pat.Selector = SelectorShortestPath
	}

	// shortestPath(...) / allShortestPaths(...) / SHORTEST_PATH(...)
	if t := p.peek(); t.Type == TokIdent && p.peekAt(1).Type == TokLParen && p.peekAt(2).Type == TokLParen {
		switch strings.ToUpper(t.Value) {
		case "SHORTESTPATH", "SHORTEST_PATH":
			pat.Selector = SelectorShortestPath
		case "ALLSHORTESTPATHS":
			pat.Selector = SelectorAllShortest
		default:
			return nil, inputErrorf(t.Pos, "unknown pattern function %s", t.Value)
		}
		p.pos += 2 // name and (
		el, err := p.parsePatternElement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')' to close "+t.Value); err != nil {
			return nil, err
		}
		pat.Elements = append(pat.Elements, el)
		return pat, nil
	}

	el, err := p.parsePatternElement()
	if err != nil {
		return nil, err
	}
	pat.Elements = append(pat.Elements, el)
	return pat, nil
}

func (p *Parser) parsePatternElement() (*PatternElement, error) {
	el := &PatternElement{}
	if err := p.parseChain(el); err != nil {
		return nil, err
	}
	return el, nil
}

// parseChain appends node (rel node)* to el, flattening parenthesized groups.
func (p *Parser) parseChain(el *PatternElement) error {
	if err := p.parseNodeOrGroup(el); err != nil {
		return err
	}
	for p.isRelStart() {
		rel, err := p.parseRel()
		if err != nil {
			return err
		}
		el.Relationships = append(el.Relationships, rel)
		if err := p.parseNodeOrGroup(el); err != nil {
			return err
		}
	}
	return nil
}

// isRelStart checks whether the next tokens begin a relationship pattern.
// Patterns: -[...]-> or <-[...]- or -[...]-
func (p *Parser) isRelStart() bool {
	t := p.peek()
	return t.Type == TokDash || (t.Type == TokLT && p.peekAt(1).Type == TokDash)
}

func (p *Parser) parseNodeOrGroup(el *PatternElement) error {
	if p.peek().Type != TokLParen || p.peekAt(1).Type != TokLParen {
		node, err := p.parseNodePattern()
		if err != nil {
			return err
		}
		el.Nodes = append(el.Nodes, node)
		return nil
	}

	open := p.advance() // consume outer (
	first := len(el.Nodes)
	firstRel := len(el.Relationships)
	if err := p.parseChain(el); err != nil {
		return err
	}
	if _, err := p.expect(TokRParen, "')' to close parenthesized pattern"); err != nil {
		return err
	}
	last := len(el.Nodes) - 1

	quant, err := p.parseQuantifier()
	if err != nil {
		return err
	}
	if quant != nil && quant.Min != nil && quant.Max != nil && *quant.Min > *quant.Max {
		return inputErrorf(open.Pos, "quantifier lower bound %d exceeds upper bound %d", *quant.Min, *quant.Max)
	}
	el.Groups = append(el.Groups, Group{First: first, Last: last, Quantifier: quant})

	sub := &PatternElement{
		Nodes:         append([]*NodePattern(nil), el.Nodes[first:]...),
		Relationships: append([]*RelationshipPattern(nil), el.Relationships[firstRel:]...),
	}
	p.doc.ParenthesizedPatterns = append(p.doc.ParenthesizedPatterns, &Pattern{Elements: []*PatternElement{sub}})
	if quant != nil {
		p.doc.Quantifiers = append(p.doc.Quantifiers, *quant)
	}
	return nil
}

// parseQuantifier parses {n,m} {n,} {,m} {n} + * after a parenthesized group.
func (p *Parser) parseQuantifier() (*Quantifier, error) {
	switch p.peek().Type {
	case TokPlus:
		p.advance()
		return &Quantifier{Min: IntPtr(1)}, nil
	case TokStar:
		p.advance()
		return &Quantifier{Min: IntPtr(0)}, nil
	case TokLBrace:
	default:
		return nil, nil
	}

	p.advance() // consume {
	q := &Quantifier{}
	if p.peek().Type == TokNumber {
		n, err := p.parseBound()
		if err != nil {
			return nil, err
		}
		q.Min = &n
	}
	if p.accept(TokComma) {
		if p.peek().Type == TokNumber {
			m, err := p.parseBound()
			if err != nil {
				return nil, err
			}
			q.Max = &m
		}
	} else {
		// {n} means exactly n
		if q.Min == nil {
			return nil, inputErrorf(p.peek().Pos, "empty quantifier")
		}
		q.Max = IntPtr(*q.Min)
	}
	if _, err := p.expect(TokRBrace, "'}' to close quantifier"); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *Parser) parseBound() (int, error) {
	t := p.advance()
	n, err := strconv.Atoi(t.Value)
	if err != nil || n < 0 {
		return 0, inputErrorf(t.Pos, "invalid bound %s", describe(t))
	}
	return n, nil
}

func (p *Parser) parseRel() (*RelationshipPattern, error) {
	rel := &RelationshipPattern{}

	// Possibilities:
	//   -[...]->   outgoing
	//   <-[...]-   incoming
	//   -[...]-    both
	//   <-[...]->  both
	leadingArrow := p.accept(TokLT)

	if _, err := p.expect(TokDash, "'-' in relationship"); err != nil {
		return nil, err
	}

	if p.peek().Type == TokLBracket {
		if err := p.parseRelBracket(rel); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokDash, "'-' after relationship"); err != nil {
		return nil, err
	}

	trailingArrow := p.accept(TokGT)

	switch {
	case !leadingArrow && trailingArrow:
		rel.Direction = DirectionOutgoing
	case leadingArrow && !trailingArrow:
		rel.Direction = DirectionIncoming
	default:
		rel.Direction = DirectionBoth
	}
	return rel, nil
}

func (p *Parser) parseRelBracket(rel *RelationshipPattern) error {
	p.advance() // consume [

	if p.peek().Type == TokIdent {
		rel.Variable = p.advance().Value
	}

	// :TYPE or :TYPE1|TYPE2 or :TYPE1|:TYPE2
	if p.accept(TokColon) {
		for {
			name, err := p.expectWord("relationship type")
			if err != nil {
				return err
			}
			rel.Types = append(rel.Types, name)
			if !p.accept(TokPipe) {
				break
			}
			p.accept(TokColon)
		}
	}

	if p.accept(TokStar) {
		length, err := p.parseHopRange()
		if err != nil {
			return err
		}
		rel.Length = length
	}

	if p.peek().Type == TokLBrace {
		props, err := p.parseInlineProps()
		if err != nil {
			return err
		}
		rel.Properties = props
	}

	if p.accept(TokWhere) {
		w, err := p.parseExpr()
		if err != nil {
			return err
		}
		rel.Where = w
	}

	if _, err := p.expect(TokRBracket, "']' to close relationship"); err != nil {
		return err
	}
	return nil
}

// parseHopRange parses what follows * in a relationship:
//
//	*1..3  min=1 max=3
//	*..3   max=3
//	*2..   min=2
//	*3     exactly 3
//	*      unbounded
func (p *Parser) parseHopRange() (*PathLength, error) {
	length := &PathLength{}
	if p.peek().Type == TokNumber {
		n, err := p.parseBound()
		if err != nil {
			return nil, err
		}
		length.Min = &n
		if !p.accept(TokDotDot) {
			length.Max = IntPtr(n)
			return length, nil
		}
	} else if !p.accept(TokDotDot) {
		return length, nil
	}
	if p.peek().Type == TokNumber {
		m, err := p.parseBound()
		if err != nil {
			return nil, err
		}
		length.Max = &m
	}
	if length.Min != nil && length.Max != nil && *length.Min > *length.Max {
		return nil, inputErrorf(p.peek().Pos, "hop range lower bound %d exceeds upper bound %d", *length.Min, *length.Max)
	}
	return length, nil
}

func (p *Parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(TokLParen, "'(' for node pattern"); err != nil {
		return nil, err
	}

	node := &NodePattern{}

	if p.peek().Type == TokIdent {
		node.Variable = p.advance().Value
	}

	if p.peek().Type == TokColon {
		if err := p.parseNodeLabels(node); err != nil {
			return nil, err
		}
	}

	if p.peek().Type == TokLBrace {
		props, err := p.parseInlineProps()
		if err != nil {
			return nil, err
		}
		node.Properties = props
	}

	if p.accept(TokWhere) {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Where = w
	}

	if _, err := p.expect(TokRParen, "')' to close node pattern"); err != nil {
		return nil, err
	}
	return node, nil
}

// parseNodeLabels handles :A (single), :A|B (any of) and :A:B (all of).
func (p *Parser) parseNodeLabels(node *NodePattern) error {
	var names []string
	sawPipe, sawColon := false, false
	p.advance() // consume :
	for {
		name, err := p.expectWord("label name")
		if err != nil {
			return err
		}
		names = append(names, name)
		switch {
		case p.accept(TokPipe):
			sawPipe = true
			p.accept(TokColon)
			continue
		case p.peek().Type == TokColon:
			sawColon = true
			p.advance()
			continue
		}
		break
	}
	if sawPipe && sawColon {
		return inputErrorf(p.peek().Pos, "mixed label expressions are not supported")
	}
	if sawColon {
		node.AllLabels = names
	} else {
		node.Labels = names
	}
	return nil
}

func (p *Parser) parseInlineProps() ([]Property, error) {
	p.advance() // consume {
	var props []Property

	for p.peek().Type != TokRBrace {
		if len(props) > 0 {
			if _, err := p.expect(TokComma, "',' between properties"); err != nil {
				return nil, err
			}
		}

		key, err := p.parseMapKey()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokColon, "':' after property key"); err != nil {
			return nil, err
		}

		if t := p.peek(); t.Type == TokParam {
			p.advance()
			props = append(props, Property{Key: key, Param: t.Value})
			continue
		}
		lit, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Key: key, Value: lit})
	}

	p.advance() // consume }
	return props, nil
}

func (p *Parser) parseMapKey() (string, error) {
	t := p.advance()
	if t.Type == TokString || isWord(t) {
		return t.Value, nil
	}
	return "", inputErrorf(t.Pos, "expected property key, got %s", describe(t))
}

// parseLiteralValue parses a constant: scalars, signed numbers, lists and maps.
func (p *Parser) parseLiteralValue() (*Literal, error) {
	t := p.peek()
	switch t.Type {
	case TokString:
		p.advance()
		return Str(t.Value), nil
	case TokNumber:
		p.advance()
		return numberLiteral(t.Value), nil
	case TokDash:
		if p.peekAt(1).Type == TokNumber {
			p.pos += 2
			return numberLiteral("-" + p.tokens[p.pos-1].Value), nil
		}
	case TokTrue:
		p.advance()
		return Bool(true), nil
	case TokFalse:
		p.advance()
		return Bool(false), nil
	case TokNull:
		p.advance()
		return &Literal{LitKind: LiteralNull, Text: "null"}, nil
	case TokLBracket:
		return p.parseListLiteral()
	case TokLBrace:
		entries, err := p.parseInlineProps()
		if err != nil {
			return nil, err
		}
		return &Literal{LitKind: LiteralMap, Entries: entries}, nil
	}
	return nil, inputErrorf(t.Pos, "expected literal value, got %s", describe(t))
}

func (p *Parser) parseListLiteral() (*Literal, error) {
	p.advance() // consume [
	lit := &Literal{LitKind: LiteralList}
	for p.peek().Type != TokRBracket {
		if len(lit.Items) > 0 {
			if _, err := p.expect(TokComma, "',' between list items"); err != nil {
				return nil, err
			}
		}
		item, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, item)
	}
	p.advance() // consume ]
	return lit, nil
}

func numberLiteral(text string) *Literal {
	if strings.ContainsAny(text, ".eE") {
		return &Literal{LitKind: LiteralFloat, Text: text}
	}
	return &Literal{LitKind: LiteralInteger, Text: text}
}

func (p *Parser) parseWith() (*WithClause, error) {
	body, err := p.parseReturnBody()
	if err != nil {
		return nil, err
	}
	w := &WithClause{Body: body}
	if p.accept(TokWhere) {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		w.Where = expr
	}
	return w, nil
}

func (p *Parser) parseReturnBody() (ReturnBody, error) {
	var body ReturnBody
	body.Distinct = p.accept(TokDistinct)

	if p.accept(TokStar) {
		body.Star = true
	} else {
		for {
			item, err := p.parseReturnItem()
			if err != nil {
				return body, err
			}
			body.Items = append(body.Items, item)
			if !p.accept(TokComma) {
				break
			}
		}
	}

	if p.accept(TokOrder) {
		if _, err := p.expect(TokBy, "BY after ORDER"); err != nil {
			return body, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return body, err
			}
			item := SortItem{Expr: expr}
			if p.accept(TokDesc) {
				item.Descending = true
			} else {
				p.accept(TokAsc)
			}
			body.OrderBy = append(body.OrderBy, item)
			if !p.accept(TokComma) {
				break
			}
		}
	}

	if p.accept(TokSkip) {
		expr, err := p.parseExpr()
		if err != nil {
			return body, err
		}
		body.Skip = expr
	}
	if p.accept(TokLimit) {
		expr, err := p.parseExpr()
		if err != nil {
			return body, err
		}
		body.Limit = expr
	}
	return body, nil
}

func (p *Parser) parseReturnItem() (ReturnItem, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return ReturnItem{}, err
	}
	item := ReturnItem{Expr: expr}
	if p.accept(TokAs) {
		alias, err := p.expectWord("alias after AS")
		if err != nil {
			return item, err
		}
		item.Alias = alias
	}
	return item, nil
}
