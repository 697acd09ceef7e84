package cypher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType classifies a lexer token.
type TokenType int

const (
	// Keywords
	TokMatch    TokenType = iota // MATCH
	TokOptional                  // OPTIONAL
	TokWhere                     // WHERE
	TokReturn                    // RETURN
	TokWith                      // WITH
	TokOrder                     // ORDER
	TokBy                        // BY
	TokSkip                      // SKIP
	TokLimit                     // LIMIT
	TokAnd                       // AND
	TokOr                        // OR
	TokXor                       // XOR
	TokNot                       // NOT
	TokAs                        // AS
	TokDistinct                  // DISTINCT
	TokContains                  // CONTAINS
	TokStarts                    // STARTS
	TokEnds                      // ENDS
	TokIn                        // IN
	TokIs                        // IS
	TokNull                      // NULL
	TokTrue                      // TRUE
	TokFalse                     // FALSE
	TokAsc                       // ASC, ASCENDING
	TokDesc                      // DESC, DESCENDING
	TokUnion                     // UNION
	TokAll                       // ALL
	TokExists                    // EXISTS

	// Symbols
	TokLParen    // (
	TokRParen    // )
	TokLBracket  // [
	TokRBracket  // ]
	TokLBrace    // {
	TokRBrace    // }
	TokDash      // -
	TokPlus      // +
	TokSlash     // /
	TokPercent   // %
	TokCaret     // ^
	TokGT        // >
	TokLT        // <
	TokGTE       // >=
	TokLTE       // <=
	TokEQ        // =
	TokNEQ       // <> or !=
	TokRegex     // =~
	TokColon     // :
	TokDoubleCol // ::
	TokDot       // .
	TokDotDot    // ..
	TokStar      // *
	TokComma     // ,
	TokPipe      // |
	TokConcat    // ||
	TokSemicolon // ;

	// Literals
	TokIdent  // identifier or `quoted identifier`
	TokString // "..." or '...'
	TokNumber // integer or float
	TokParam  // $name

	TokEOF // end of input
)

// Token is a single lexer token.
type Token struct {
	Type  TokenType
	Value string // source spelling; unescaped for strings and quoted identifiers
	Pos   int    // byte offset in the input
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q, pos=%d)", t.Type, t.Value, t.Pos)
}

// keywords maps uppercase keyword strings to their token type.
var keywords = map[string]TokenType{
	"MATCH":      TokMatch,
	"OPTIONAL":   TokOptional,
	"WHERE":      TokWhere,
	"RETURN":     TokReturn,
	"WITH":       TokWith,
	"ORDER":      TokOrder,
	"BY":         TokBy,
	"SKIP":       TokSkip,
	"LIMIT":      TokLimit,
	"AND":        TokAnd,
	"OR":         TokOr,
	"XOR":        TokXor,
	"NOT":        TokNot,
	"AS":         TokAs,
	"DISTINCT":   TokDistinct,
	"CONTAINS":   TokContains,
	"STARTS":     TokStarts,
	"ENDS":       TokEnds,
	"IN":         TokIn,
	"IS":         TokIs,
	"NULL":       TokNull,
	"TRUE":       TokTrue,
	"FALSE":      TokFalse,
	"ASC":        TokAsc,
	"ASCENDING":  TokAsc,
	"DESC":       TokDesc,
	"DESCENDING": TokDesc,
	"UNION":      TokUnion,
	"ALL":        TokAll,
	"EXISTS":     TokExists,
}

// singleCharTokens maps single-character symbols to their token type.
var singleCharTokens = map[byte]TokenType{
	'(': TokLParen,
	')': TokRParen,
	'[': TokLBracket,
	']': TokRBracket,
	'{': TokLBrace,
	'}': TokRBrace,
	'*': TokStar,
	',': TokComma,
	'-': TokDash,
	'+': TokPlus,
	'%': TokPercent,
	'^': TokCaret,
	';': TokSemicolon,
}

// Lexer tokenizes a Cypher query string.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// Lex tokenizes the input string into a slice of tokens.
func Lex(input string) ([]Token, error) {
	l := &Lexer{input: input}
	if err := l.tokenize(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *Lexer) tokenize() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if l.skipWhitespaceAndComments(ch) {
			continue
		}

		if err := l.lexNextToken(ch); err != nil {
			return err
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokEOF, Value: "", Pos: l.pos})
	return nil
}

// skipWhitespaceAndComments skips whitespace and // or /* */ comments.
// Returns true if something was skipped (caller should continue the loop).
func (l *Lexer) skipWhitespaceAndComments(ch byte) bool {
	if unicode.IsSpace(rune(ch)) {
		l.pos++
		return true
	}
	if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.pos++
		}
		return true
	}
	if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*' {
		l.pos += 2
		for l.pos < len(l.input) {
			if l.input[l.pos] == '*' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
				l.pos += 2
				return true
			}
			l.pos++
		}
		return true
	}
	return false
}

// lexNextToken dispatches a single token starting at l.pos.
func (l *Lexer) lexNextToken(ch byte) error {
	if tok, ok := singleCharTokens[ch]; ok {
		l.emit(tok, string(ch))
		l.pos++
		return nil
	}

	switch {
	case ch == '.':
		l.lexTwoChar('.', TokDotDot, TokDot, ".")
	case ch == ':':
		l.lexTwoChar(':', TokDoubleCol, TokColon, ":")
	case ch == '|':
		l.lexTwoChar('|', TokConcat, TokPipe, "|")
	case ch == '/':
		l.emit(TokSlash, "/")
		l.pos++
	case ch == '>':
		l.lexTwoChar('=', TokGTE, TokGT, ">")
	case ch == '<':
		if l.peekByte(1) == '>' {
			l.emit(TokNEQ, "<>")
			l.pos += 2
			return nil
		}
		l.lexTwoChar('=', TokLTE, TokLT, "<")
	case ch == '!':
		if l.peekByte(1) != '=' {
			return inputErrorf(l.pos, "unexpected char %q", "!")
		}
		l.emit(TokNEQ, "!=")
		l.pos += 2
	case ch == '=':
		l.lexTwoChar('~', TokRegex, TokEQ, "=")
	case ch == '"' || ch == '\'':
		return l.lexString(ch)
	case ch == '`':
		return l.lexQuotedIdent()
	case ch == '$':
		return l.lexParam()
	case isDigit(ch):
		l.lexNumber()
	case isIdentStart(ch):
		l.lexIdent()
	default:
		r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
		if unicode.IsLetter(r) {
			l.lexIdent()
			return nil
		}
		return inputErrorf(l.pos, "unexpected char %q", string(r))
	}
	return nil
}

func (l *Lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

// lexTwoChar emits compoundTok when the next char is second, singleTok otherwise.
func (l *Lexer) lexTwoChar(second byte, compoundTok, singleTok TokenType, singleVal string) {
	if l.peekByte(1) == second {
		l.emit(compoundTok, singleVal+string(second))
		l.pos += 2
	} else {
		l.emit(singleTok, singleVal)
		l.pos++
	}
}

func (l *Lexer) emit(typ TokenType, val string) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: val, Pos: l.pos})
}

func (l *Lexer) lexString(quote byte) error {
	start := l.pos
	l.pos++ // skip opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			if err := l.lexEscape(&sb); err != nil {
				return err
			}
			continue
		}
		if ch == quote {
			l.tokens = append(l.tokens, Token{Type: TokString, Value: sb.String(), Pos: start})
			l.pos++ // skip closing quote
			return nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return inputErrorf(start, "unterminated string")
}

// lexEscape consumes a backslash escape starting at l.pos.
func (l *Lexer) lexEscape(sb *strings.Builder) error {
	esc := l.input[l.pos+1]
	l.pos += 2
	switch esc {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'u':
		if l.pos+4 > len(l.input) {
			return inputErrorf(l.pos-2, "truncated unicode escape")
		}
		code, err := strconv.ParseUint(l.input[l.pos:l.pos+4], 16, 32)
		if err != nil {
			return inputErrorf(l.pos-2, "invalid unicode escape")
		}
		sb.WriteRune(rune(code))
		l.pos += 4
	default:
		sb.WriteByte(esc)
	}
	return nil
}

func (l *Lexer) lexQuotedIdent() error {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '`' {
			// `` inside a quoted identifier is a literal backtick
			if l.peekByte(1) == '`' {
				sb.WriteByte('`')
				l.pos += 2
				continue
			}
			l.tokens = append(l.tokens, Token{Type: TokIdent, Value: sb.String(), Pos: start})
			l.pos++
			return nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return inputErrorf(start, "unterminated quoted identifier")
}

func (l *Lexer) lexParam() error {
	start := l.pos
	l.pos++ // skip $
	if l.pos < len(l.input) && l.input[l.pos] == '`' {
		if err := l.lexQuotedIdent(); err != nil {
			return err
		}
		last := &l.tokens[len(l.tokens)-1]
		last.Type = TokParam
		last.Pos = start
		return nil
	}
	begin := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	if begin == l.pos {
		return inputErrorf(start, "expected parameter name after '$'")
	}
	l.tokens = append(l.tokens, Token{Type: TokParam, Value: l.input[begin:l.pos], Pos: start})
	return nil
}

func (l *Lexer) lexNumber() {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	// Decimal point, but not the ".." range operator.
	if l.pos < len(l.input) && l.input[l.pos] == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		next := l.peekByte(1)
		if isDigit(next) || ((next == '-' || next == '+') && isDigit(l.peekByte(2))) {
			l.pos += 2
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	l.tokens = append(l.tokens, Token{Type: TokNumber, Value: l.input[start:l.pos], Pos: start})
}

func (l *Lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	word := l.input[start:l.pos]
	if tok, ok := keywords[strings.ToUpper(word)]; ok {
		l.tokens = append(l.tokens, Token{Type: tok, Value: word, Pos: start})
	} else {
		l.tokens = append(l.tokens, Token{Type: TokIdent, Value: word, Pos: start})
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
