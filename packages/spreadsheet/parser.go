package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxRangeCells caps how many cells a single range may cover, since every
// covered cell becomes a dependency edge
const MaxRangeCells = 4096

// rendering precedence, higher binds tighter
const (
	precAdd = iota + 1
	precMul
	precPow
	precUnary
	precPercent
	precPrimary
)

type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
)

// UnaryOp covers prefix plus and minus and postfix percent
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// Resolver yields the numeric value of a referenced cell. a returned error is
// always a FormulaError and propagates unchanged through the expression.
type Resolver func(pos Position) (float64, error)

// ASTNode is a node of a parsed expression. nodes are immutable once parsed.
type ASTNode interface {
	Eval(resolve Resolver) (float64, error)
	ToString() string
	precedence() int
	collectCells(dst []Position) []Position
}

// Parser parses tokens into an AST
type Parser struct {
	tokens    []Token
	pos       int
	functions *BuiltInFunctions
}

// NumberNode represents a numeric literal
type NumberNode struct {
	Value float64
}

func (n *NumberNode) Eval(Resolver) (float64, error) {
	return n.Value, nil
}

func (n *NumberNode) ToString() string {
	return formatNumber(n.Value)
}

func (n *NumberNode) precedence() int {
	return precPrimary
}

func (n *NumberNode) collectCells(dst []Position) []Position {
	return dst
}

// CellRefNode represents a reference to a single cell. Text keeps the
// reference as written (upper-cased) so out of range references still render.
type CellRefNode struct {
	Pos  Position
	Text string
}

func (n *CellRefNode) Eval(resolve Resolver) (float64, error) {
	if !n.Pos.IsValid() {
		return 0, NewFormulaError(ErrorCodeRef)
	}
	return resolve(n.Pos)
}

func (n *CellRefNode) ToString() string {
	if n.Pos.IsValid() {
		return n.Pos.String()
	}
	return n.Text
}

func (n *CellRefNode) precedence() int {
	return precPrimary
}

func (n *CellRefNode) collectCells(dst []Position) []Position {
	if n.Pos.IsValid() {
		dst = append(dst, n.Pos)
	}
	return dst
}

// RangeNode represents a rectangular block of cells. it only appears as a
// function argument.
type RangeNode struct {
	Start Position
	End   Position
	Text  string
}

func (n *RangeNode) valid() bool {
	return n.Start.IsValid() && n.End.IsValid()
}

// bounds returns the normalized corners so that start <= end on both axes
func (n *RangeNode) bounds() (Position, Position) {
	return Position{Row: min(n.Start.Row, n.End.Row), Col: min(n.Start.Col, n.End.Col)},
		Position{Row: max(n.Start.Row, n.End.Row), Col: max(n.Start.Col, n.End.Col)}
}

func (n *RangeNode) cellCount() int {
	lo, hi := n.bounds()
	return (hi.Row - lo.Row + 1) * (hi.Col - lo.Col + 1)
}

// cells lists the covered positions in row-major order
func (n *RangeNode) cells() []Position {
	if !n.valid() {
		return nil
	}
	lo, hi := n.bounds()
	result := make([]Position, 0, n.cellCount())
	for row := lo.Row; row <= hi.Row; row++ {
		for col := lo.Col; col <= hi.Col; col++ {
			result = append(result, Position{Row: row, Col: col})
		}
	}
	return result
}

// values resolves every covered cell, stopping at the first error
func (n *RangeNode) values(resolve Resolver) ([]float64, error) {
	if !n.valid() {
		return nil, NewFormulaError(ErrorCodeRef)
	}
	cells := n.cells()
	result := make([]float64, 0, len(cells))
	for _, pos := range cells {
		v, err := resolve(pos)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// Eval on a bare range is not meaningful, the parser never produces one
// outside a function call
func (n *RangeNode) Eval(Resolver) (float64, error) {
	return 0, NewFormulaError(ErrorCodeValue)
}

func (n *RangeNode) ToString() string {
	if n.valid() {
		return n.Start.String() + ":" + n.End.String()
	}
	return n.Text
}

func (n *RangeNode) precedence() int {
	return precPrimary
}

func (n *RangeNode) collectCells(dst []Position) []Position {
	return append(dst, n.cells()...)
}

// BinaryOpNode represents an arithmetic operation on two operands
type BinaryOpNode struct {
	Op    BinaryOp
	Left  ASTNode
	Right ASTNode
}

func (n *BinaryOpNode) Eval(resolve Resolver) (float64, error) {
	left, err := n.Left.Eval(resolve)
	if err != nil {
		return 0, err
	}
	right, err := n.Right.Eval(resolve)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case BinOpAdd:
		return checkFinite(left + right)
	case BinOpSubtract:
		return checkFinite(left - right)
	case BinOpMultiply:
		return checkFinite(left * right)
	case BinOpDivide:
		if right == 0 {
			return 0, NewFormulaError(ErrorCodeDiv0)
		}
		return checkFinite(left / right)
	case BinOpPower:
		return checkFinite(math.Pow(left, right))
	default:
		return 0, NewFormulaError(ErrorCodeValue)
	}
}

func (n *BinaryOpNode) symbol() string {
	switch n.Op {
	case BinOpAdd:
		return "+"
	case BinOpSubtract:
		return "-"
	case BinOpMultiply:
		return "*"
	case BinOpDivide:
		return "/"
	case BinOpPower:
		return "^"
	}
	return "?"
}

func (n *BinaryOpNode) precedence() int {
	switch n.Op {
	case BinOpAdd, BinOpSubtract:
		return precAdd
	case BinOpMultiply, BinOpDivide:
		return precMul
	default:
		return precPow
	}
}

// ToString renders with the fewest parentheses that preserve the tree shape
func (n *BinaryOpNode) ToString() string {
	prec := n.precedence()

	var leftParens, rightParens bool
	if n.Op == BinOpPower {
		// right associative: (a^b)^c needs them, a^(b^c) does not
		leftParens = n.Left.precedence() <= prec
		rightParens = n.Right.precedence() < prec
	} else {
		leftParens = n.Left.precedence() < prec
		rightParens = n.Right.precedence() < prec ||
			(n.Right.precedence() == prec && (n.Op == BinOpSubtract || n.Op == BinOpDivide))
	}

	var sb strings.Builder
	writeOperand(&sb, n.Left, leftParens)
	sb.WriteString(n.symbol())
	writeOperand(&sb, n.Right, rightParens)
	return sb.String()
}

func (n *BinaryOpNode) collectCells(dst []Position) []Position {
	dst = n.Left.collectCells(dst)
	return n.Right.collectCells(dst)
}

// UnaryOpNode represents prefix plus/minus and postfix percent
type UnaryOpNode struct {
	Op      UnaryOp
	Operand ASTNode
}

func (n *UnaryOpNode) Eval(resolve Resolver) (float64, error) {
	v, err := n.Operand.Eval(resolve)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case UnaryOpMinus:
		return -v, nil
	case UnaryOpPercent:
		return v / 100, nil
	default:
		return v, nil
	}
}

func (n *UnaryOpNode) precedence() int {
	if n.Op == UnaryOpPercent {
		return precPercent
	}
	return precUnary
}

func (n *UnaryOpNode) ToString() string {
	var sb strings.Builder
	parens := n.Operand.precedence() < n.precedence()
	switch n.Op {
	case UnaryOpPercent:
		writeOperand(&sb, n.Operand, parens)
		sb.WriteByte(charPercent)
	case UnaryOpMinus:
		sb.WriteByte(charMinus)
		writeOperand(&sb, n.Operand, parens)
	default:
		sb.WriteByte(charPlus)
		writeOperand(&sb, n.Operand, parens)
	}
	return sb.String()
}

func (n *UnaryOpNode) collectCells(dst []Position) []Position {
	return n.Operand.collectCells(dst)
}

// FunctionCallNode represents a call to one of the built-in functions
type FunctionCallNode struct {
	Name      string
	Args      []ASTNode
	functions *BuiltInFunctions
}

func (n *FunctionCallNode) Eval(resolve Resolver) (float64, error) {
	args := make([]float64, 0, len(n.Args))
	for _, argNode := range n.Args {
		if rangeNode, ok := argNode.(*RangeNode); ok {
			values, err := rangeNode.values(resolve)
			if err != nil {
				return 0, err
			}
			args = append(args, values...)
			continue
		}

		v, err := argNode.Eval(resolve)
		if err != nil {
			return 0, err
		}
		args = append(args, v)
	}

	return n.functions.Call(n.Name, args...)
}

func (n *FunctionCallNode) ToString() string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.ToString()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ","))
}

func (n *FunctionCallNode) precedence() int {
	return precPrimary
}

func (n *FunctionCallNode) collectCells(dst []Position) []Position {
	for _, arg := range n.Args {
		dst = arg.collectCells(dst)
	}
	return dst
}

func writeOperand(sb *strings.Builder, node ASTNode, parens bool) {
	if parens {
		sb.WriteByte(charLParen)
	}
	sb.WriteString(node.ToString())
	if parens {
		sb.WriteByte(charRParen)
	}
}

// formatNumber prints the shortest text that parses back to the same float
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NewParser creates a new parser with the given tokens
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:    tokens,
		pos:       0,
		functions: NewDefaultBuiltInFunctions(),
	}
}

// ParseExpression tokenizes and parses an expression in one step
func ParseExpression(expression string) (ASTNode, error) {
	tokens, err := NewLexer(expression).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (ASTNode, error) {
	if len(p.tokens) == 0 {
		return nil, formulaParseError("no tokens to parse")
	}

	node, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	// ensure we've consumed all tokens except EOF
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, formulaParseError(fmt.Sprintf("unexpected token after expression at %d: %s", tok.Pos, tok.Value))
	}

	return node, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// parseAddition handles + and - (lowest precedence)
func (p *Parser) parseAddition() (ASTNode, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "+":
			op = BinOpAdd
		case "-":
			op = BinOpSubtract
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parseMultiplication handles * and /
func (p *Parser) parseMultiplication() (ASTNode, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		if tok.Type != TokenBinaryOp {
			break
		}

		var op BinaryOp
		switch tok.Value {
		case "*":
			op = BinOpMultiply
		case "/":
			op = BinOpDivide
		default:
			return left, nil
		}

		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}

	return left, nil
}

// parsePower handles ^, which is right-associative
func (p *Parser) parsePower() (ASTNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.Type == TokenBinaryOp && tok.Value == "^" {
		p.pos++
		right, err := p.parsePower() // recursive for right-associativity
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right}, nil
	}

	return left, nil
}

// parseUnary handles prefix + and -
func (p *Parser) parseUnary() (ASTNode, error) {
	tok := p.current()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}

	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}

	p.pos++
	operand, err := p.parseUnary() // recurse for chained unary operators
	if err != nil {
		return nil, err
	}
	return &UnaryOpNode{Op: op, Operand: operand}, nil
}

// parsePostfix handles postfix percent, possibly repeated
func (p *Parser) parsePostfix() (ASTNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenUnaryPostfixOp {
		p.pos++
		node = &UnaryOpNode{Op: UnaryOpPercent, Operand: node}
	}

	return node, nil
}

// parsePrimary handles literals, references, function calls and
// parenthesized expressions
func (p *Parser) parsePrimary() (ASTNode, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, formulaParseError(fmt.Sprintf("invalid number: %s", tok.Value))
		}
		return &NumberNode{Value: val}, nil

	case TokenCell:
		p.pos++
		return &CellRefNode{Pos: ParsePosition(tok.Value), Text: tok.Value}, nil

	case TokenRange:
		return nil, formulaParseError(fmt.Sprintf("range %s is only allowed as a function argument", tok.Value))

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRightParen {
			return nil, formulaParseError("expected closing parenthesis")
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, formulaParseError("unexpected end of expression")

	default:
		return nil, formulaParseError(fmt.Sprintf("unexpected token: %s", tok.Value))
	}
}

// parseFunctionCall parses NAME(arg, ...) and checks the name and arity
func (p *Parser) parseFunctionCall() (ASTNode, error) {
	funcTok := p.current()
	arity, known := builtinArity[funcTok.Value]
	if !known {
		return nil, formulaParseError(fmt.Sprintf("unknown function: %s", funcTok.Value))
	}
	p.pos++

	// expect opening parenthesis
	if p.current().Type != TokenLeftParen {
		return nil, formulaParseError("expected '(' after function name")
	}
	p.pos++

	args := []ASTNode{}
	if p.current().Type == TokenRightParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseArgument(arity)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			tok := p.current()
			if tok.Type == TokenRightParen {
				p.pos++
				break
			}
			if tok.Type != TokenComma {
				return nil, formulaParseError("expected ',' or ')' in function arguments")
			}
			p.pos++
		}
	}

	if !arity.accepts(len(args)) {
		return nil, formulaParseError(fmt.Sprintf("wrong number of arguments to %s: %d", funcTok.Value, len(args)))
	}

	return &FunctionCallNode{Name: funcTok.Value, Args: args, functions: p.functions}, nil
}

// parseArgument parses one function argument. a range is accepted when it
// makes up the whole argument of a variadic function.
func (p *Parser) parseArgument(arity functionArity) (ASTNode, error) {
	tok := p.current()
	if tok.Type != TokenRange {
		return p.parseAddition()
	}

	if next := p.peekType(1); next != TokenComma && next != TokenRightParen {
		return nil, formulaParseError(fmt.Sprintf("range %s cannot be used in an expression", tok.Value))
	}
	if !arity.variadic() {
		return nil, formulaParseError(fmt.Sprintf("range %s is not allowed here", tok.Value))
	}
	p.pos++
	return p.parseRange(tok)
}

func (p *Parser) peekType(offset int) TokenType {
	if p.pos+offset >= len(p.tokens) {
		return TokenEOF
	}
	return p.tokens[p.pos+offset].Type
}

// parseRange builds a RangeNode. out of range corners are kept and evaluate
// to a reference error, oversized ranges are rejected here.
func (p *Parser) parseRange(tok Token) (ASTNode, error) {
	first, second, ok := strings.Cut(tok.Value, ":")
	if !ok {
		return nil, formulaParseError(fmt.Sprintf("invalid range format: %s", tok.Value))
	}

	node := &RangeNode{Start: ParsePosition(first), End: ParsePosition(second), Text: tok.Value}
	if node.valid() && node.cellCount() > MaxRangeCells {
		return nil, formulaParseError(fmt.Sprintf("range %s covers more than %d cells", tok.Value, MaxRangeCells))
	}
	return node, nil
}
