package cypher

import "strings"

// Expression precedence, loosest first:
//
//	OR, XOR, AND, NOT, comparison chain, string/list/null predicates,
//	+ - ||, * / %, ^, unary sign, postfix (.prop [i] [a..b]), atoms.

func (p *Parser) parseExpr() (Expression, error) {
	return p.parseBoolean(TokOr, "OR", p.parseXor)
}

func (p *Parser) parseXor() (Expression, error) {
	return p.parseBoolean(TokXor, "XOR", p.parseAnd)
}

func (p *Parser) parseAnd() (Expression, error) {
	return p.parseBoolean(TokAnd, "AND", p.parseNot)
}

func (p *Parser) parseBoolean(tok TokenType, op string, next func() (Expression, error)) (Expression, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != tok {
		return first, nil
	}
	operands := []Expression{first}
	for p.accept(tok) {
		e, err := next()
		if err != nil {
			return nil, err
		}
		operands = append(operands, e)
	}
	return &Operator{Op: op, Operands: operands}, nil
}

func (p *Parser) parseNot() (Expression, error) {
	if p.accept(TokNot) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Operator{Op: "NOT", Operands: []Expression{operand}}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenType]string{
	TokEQ:  "=",
	TokNEQ: "<>",
	TokLT:  "<",
	TokGT:  ">",
	TokLTE: "<=",
	TokGTE: ">=",
}

func (p *Parser) parseComparison() (Expression, error) {
	first, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	var ops []string
	operands := []Expression{first}
	for {
		op, ok := comparisonOps[p.peek().Type]
		if !ok {
			break
		}
		p.advance()
		e, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		operands = append(operands, e)
	}
	switch len(ops) {
	case 0:
		return first, nil
	case 1:
		return &Comparison{Ops: ops, Left: operands[0], Right: operands[1]}, nil
	default:
		return &Comparison{Ops: ops, Operands: operands}, nil
	}
}

// parsePredicate handles =~, STARTS WITH, ENDS WITH, CONTAINS, IN,
// IS [NOT] NULL and IS [NOT] :: TYPE.
func (p *Parser) parsePredicate() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch t := p.peek(); t.Type {
		case TokRegex:
			p.advance()
			op = "=~"
		case TokContains:
			p.advance()
			op = "CONTAINS"
		case TokIn:
			p.advance()
			op = "IN"
		case TokStarts, TokEnds:
			p.advance()
			if _, err := p.expect(TokWith, "WITH after "+strings.ToUpper(t.Value)); err != nil {
				return nil, err
			}
			op = strings.ToUpper(t.Value) + " WITH"
		case TokIs:
			p.advance()
			left, err = p.parseIsSuffix(left)
			if err != nil {
				return nil, err
			}
			continue
		default:
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Comparison{Ops: []string{op}, Left: left, Right: right}
	}
}

func (p *Parser) parseIsSuffix(operand Expression) (Expression, error) {
	negated := p.accept(TokNot)
	if p.accept(TokNull) {
		if negated {
			return &NullComparison{Op: "IS NOT NULL", Operand: operand}, nil
		}
		return &NullComparison{Op: "IS NULL", Operand: operand}, nil
	}

	switch {
	case p.accept(TokDoubleCol):
	case p.peekWord(0, "TYPED"):
		p.advance()
	default:
		t := p.peek()
		return nil, inputErrorf(t.Pos, "expected NULL or type after IS, got %s", describe(t))
	}
	name, err := p.expectWord("type name")
	if err != nil {
		return nil, err
	}
	op := "IS"
	if negated {
		op = "IS NOT"
	}
	return &TypeComparison{Op: op, Operand: operand, ExpectedType: strings.ToUpper(name)}, nil
}

func (p *Parser) parseAdditive() (Expression, error) {
	return p.parseArithmetic(map[TokenType]string{TokPlus: "+", TokDash: "-", TokConcat: "||"}, p.parseMultiplicative)
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	return p.parseArithmetic(map[TokenType]string{TokStar: "*", TokSlash: "/", TokPercent: "%"}, p.parsePower)
}

func (p *Parser) parsePower() (Expression, error) {
	return p.parseArithmetic(map[TokenType]string{TokCaret: "^"}, p.parseUnary)
}

func (p *Parser) parseArithmetic(ops map[TokenType]string, next func() (Expression, error)) (Expression, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	arith := &Arithmetic{Operands: []Expression{first}}
	for {
		op, ok := ops[p.peek().Type]
		if !ok {
			break
		}
		p.advance()
		e, err := next()
		if err != nil {
			return nil, err
		}
		arith.Ops = append(arith.Ops, op)
		arith.Operands = append(arith.Operands, e)
	}
	if len(arith.Ops) == 0 {
		return first, nil
	}
	return arith, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	switch p.peek().Type {
	case TokDash, TokPlus:
		op := p.advance().Value
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOperator{Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expression, error) {
	e, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case TokDot:
			p.advance()
			name, err := p.expectWord("property name after '.'")
			if err != nil {
				return nil, err
			}
			e = &PropertyAccess{Object: e, Property: name}
		case TokLBracket:
			p.advance()
			e, err = p.parseSubscript(e)
			if err != nil {
				return nil, err
			}
		default:
			return e, nil
		}
	}
}

// parseSubscript parses the inside of [...] after an expression: an index or
// a from..to slice with either bound optional.
func (p *Parser) parseSubscript(object Expression) (Expression, error) {
	var from Expression
	if p.peek().Type != TokDotDot {
		idx, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.accept(TokRBracket) {
			return &IndexAccess{Object: object, Index: idx}, nil
		}
		from = idx
	}
	if _, err := p.expect(TokDotDot, "'..' or ']'"); err != nil {
		return nil, err
	}
	r := &RangeAccess{Object: object, From: from}
	if p.peek().Type != TokRBracket {
		to, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		r.To = to
	}
	if _, err := p.expect(TokRBracket, "']' to close slice"); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Parser) parseAtom() (Expression, error) {
	t := p.peek()
	switch t.Type {
	case TokString, TokNumber, TokTrue, TokFalse, TokNull, TokLBracket, TokLBrace:
		return p.parseLiteralValue()
	case TokParam:
		p.advance()
		return &Parameter{Name: t.Value}, nil
	case TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case TokExists:
		p.advance()
		return p.parseExists()
	case TokIdent:
		p.advance()
		if p.peek().Type == TokLParen {
			return p.parseFunctionCall(t.Value)
		}
		if strings.EqualFold(t.Value, "CASE") {
			return nil, inputErrorf(t.Pos, "CASE expressions are not supported")
		}
		return &Variable{Name: t.Value}, nil
	}
	return nil, inputErrorf(t.Pos, "unexpected %s in expression", describe(t))
}

func (p *Parser) parseFunctionCall(name string) (Expression, error) {
	p.advance() // consume (
	fn := &Function{Name: name}
	if p.accept(TokStar) {
		fn.Star = true
		if _, err := p.expect(TokRParen, "')' after *"); err != nil {
			return nil, err
		}
		return fn, nil
	}
	fn.Distinct = p.accept(TokDistinct)
	for p.peek().Type != TokRParen {
		if len(fn.Args) > 0 {
			if _, err := p.expect(TokComma, "',' between arguments"); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
	}
	p.advance() // consume )
	return fn, nil
}

// parseExists handles EXISTS { [MATCH] pattern [WHERE expr] } and the older
// exists(expr) property test.
func (p *Parser) parseExists() (Expression, error) {
	if p.accept(TokLParen) {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')' to close exists"); err != nil {
			return nil, err
		}
		return &NullComparison{Op: "IS NOT NULL", Operand: operand}, nil
	}

	if _, err := p.expect(TokLBrace, "'{' after EXISTS"); err != nil {
		return nil, err
	}
	p.accept(TokMatch)
	m := &MatchClause{}
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
		m.Where = w
	}
	if _, err := p.expect(TokRBrace, "'}' to close EXISTS"); err != nil {
		return nil, err
	}
	return &Exists{Match: m}, nil
}
