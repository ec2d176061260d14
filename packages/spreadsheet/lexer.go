package spreadsheet

import "strings"

// TokenType is the kind of a lexed token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenError
)

const (
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charPercent    = '%'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charCaret      = '^'
	charUnderscore = '_'
)

// TokenState is what the lexer last saw, used to reject malformed sequences
// early and to tell unary from binary + and -
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterFunction
)

// tokenSet is a bitset of token types
type tokenSet uint16

func setOf(types ...TokenType) tokenSet {
	var s tokenSet
	for _, t := range types {
		s |= 1 << t
	}
	return s
}

func (s tokenSet) has(t TokenType) bool {
	return s&(1<<t) != 0
}

var (
	operandStart  = setOf(TokenNumber, TokenCell, TokenFunction, TokenLeftParen, TokenUnaryPrefixOp)
	argumentStart = operandStart | setOf(TokenRange)
	operandEnd    = setOf(TokenBinaryOp, TokenUnaryPostfixOp, TokenRightParen, TokenComma, TokenEOF)
)

// allowedNext lists, per state, which token may come next. ranges only start
// an argument, so they follow "(" or "," and nothing else. ")" right after
// "(" is an argument-less call.
var allowedNext = [...]tokenSet{
	StateStart:           operandStart,
	StateAfterValue:      operandEnd,
	StateAfterOperator:   operandStart,
	StateAfterLeftParen:  argumentStart | setOf(TokenRightParen),
	StateAfterRightParen: operandEnd,
	StateAfterComma:      argumentStart,
	StateAfterFunction:   setOf(TokenLeftParen),
}

// Token is one lexed token. Pos is the rune offset into the input.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer splits an expression (the text after the formula marker) into tokens
type Lexer struct {
	runes      []rune
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
}

func NewLexer(input string) *Lexer {
	return &Lexer{
		runes: []rune(input),
		state: StateStart,
	}
}

// Tokenize returns every token up to and including EOF, or the first error
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		tok := l.next()
		if tok.Type == TokenError {
			return nil, formulaParseError(tok.Value)
		}
		if !allowedNext[l.state].has(tok.Type) {
			if tok.Type == TokenEOF {
				return nil, formulaParseError("unexpected end of expression")
			}
			return nil, formulaParseError("unexpected token: " + tok.Value)
		}

		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		l.advanceState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, formulaParseError("unbalanced parentheses: missing closing parenthesis")
	}
	return l.tokens, nil
}

func (l *Lexer) advanceState(t TokenType) {
	switch t {
	case TokenNumber, TokenCell, TokenRange:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenFunction:
		l.state = StateAfterFunction
	}
	// postfix % leaves the state alone
}

func (l *Lexer) next() Token {
	for l.pos < len(l.runes) && isSpace(l.runes[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.runes[l.pos]

	switch {
	case isDigit(ch), ch == charPeriod && isDigit(l.at(l.pos+1)):
		return l.number()
	case isAlpha(ch), ch == charUnderscore:
		return l.identifier()
	}

	l.pos++
	switch ch {
	case charLParen:
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: start}
	case charRParen:
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unbalanced parentheses: too many closing parentheses", Pos: start}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: start}
	case charComma:
		return Token{Type: TokenComma, Value: ",", Pos: start}
	case charPlus, charMinus:
		switch l.state {
		case StateStart, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: start}
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: start}
	case charAsterisk, charSlash, charCaret:
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: start}
	case charPercent:
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: start}
	}
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: start}
}

// at returns the rune at i, or 0 past either end
func (l *Lexer) at(i int) rune {
	if i < 0 || i >= len(l.runes) {
		return 0
	}
	return l.runes[i]
}

func (l *Lexer) skipDigits() {
	for isDigit(l.at(l.pos)) {
		l.pos++
	}
}

// number scans digits, an optional fraction and an optional exponent. an "e"
// with no digits after it is left for the next token.
func (l *Lexer) number() Token {
	start := l.pos
	l.skipDigits()

	if l.at(l.pos) == charPeriod && isDigit(l.at(l.pos+1)) {
		l.pos++
		l.skipDigits()
	}

	if e := l.at(l.pos); e == 'e' || e == 'E' {
		mark := l.pos
		l.pos++
		if sign := l.at(l.pos); sign == charPlus || sign == charMinus {
			l.pos++
		}
		if isDigit(l.at(l.pos)) {
			l.skipDigits()
		} else {
			l.pos = mark
		}
	}

	return Token{Type: TokenNumber, Value: string(l.runes[start:l.pos]), Pos: start}
}

// word consumes letters, digits and underscores and returns them upper-cased
func (l *Lexer) word() string {
	start := l.pos
	for r := l.at(l.pos); isAlpha(r) || isDigit(r) || r == charUnderscore; r = l.at(l.pos) {
		l.pos++
	}
	return strings.ToUpper(string(l.runes[start:l.pos]))
}

// identifier scans a cell, a range or a function name. anything else is an
// error since the grammar has no named values.
func (l *Lexer) identifier() Token {
	start := l.pos
	name := l.word()

	if !isCell(name) {
		if l.at(l.pos) == charLParen {
			return Token{Type: TokenFunction, Value: name, Pos: start}
		}
		return Token{Type: TokenError, Value: "unknown name: " + name, Pos: start}
	}

	if l.at(l.pos) != charColon {
		return Token{Type: TokenCell, Value: name, Pos: start}
	}

	l.pos++
	end := l.word()
	if !isCell(end) {
		return Token{Type: TokenError, Value: "invalid range reference: " + name + ":" + end, Pos: start}
	}
	return Token{Type: TokenRange, Value: name + ":" + end, Pos: start}
}

func isSpace(r rune) bool {
	return r == charSpace || r == charTab || r == charNewline || r == charReturn
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isCell reports whether s is letters then digits. bounds are checked by
// ParsePosition later.
func isCell(s string) bool {
	letters := 0
	for letters < len(s) && isLetter(s[letters]) {
		letters++
	}
	if letters == 0 || letters == len(s) {
		return false
	}
	for i := letters; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
