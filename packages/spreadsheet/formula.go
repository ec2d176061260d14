package spreadsheet

import (
	"slices"
	"strconv"
	"strings"
)

// CellSource is what a formula reads referenced cells from
type CellSource interface {
	GetCell(pos Position) (*Cell, error)
}

// Formula is a parsed expression together with its canonical text and the
// cells it references
type Formula struct {
	ast        ASTNode
	expression string
	referenced []Position
}

// ParseFormula parses expression text (without the leading "="). errors wrap
// ErrFormulaParse.
func ParseFormula(expression string) (*Formula, error) {
	ast, err := ParseExpression(expression)
	if err != nil {
		return nil, err
	}

	return &Formula{
		ast:        ast,
		expression: ast.ToString(),
		referenced: uniquePositions(ast.collectCells(nil)),
	}, nil
}

// Evaluate computes the formula against sheet. the result is a float64 or a
// FormulaError, never a Go error.
func (f *Formula) Evaluate(sheet CellSource) Value {
	v, err := f.ast.Eval(func(pos Position) (float64, error) {
		return resolveCell(sheet, pos)
	})
	if err != nil {
		if fe, ok := err.(FormulaError); ok {
			return fe
		}
		return NewFormulaError(ErrorCodeValue)
	}
	return v
}

// Expression returns the canonical expression text without the "=" marker
func (f *Formula) Expression() string {
	return f.expression
}

// ReferencedCells returns the valid positions the formula reads, without
// duplicates, in the order they first appear
func (f *Formula) ReferencedCells() []Position {
	return slices.Clone(f.referenced)
}

// resolveCell turns the value of a referenced cell into a number
func resolveCell(sheet CellSource, pos Position) (float64, error) {
	if !pos.IsValid() {
		return 0, NewFormulaError(ErrorCodeRef)
	}

	cell, err := sheet.GetCell(pos)
	if err != nil {
		return 0, NewFormulaError(ErrorCodeRef)
	}
	if cell == nil {
		return 0, nil
	}

	switch v := cell.GetValue().(type) {
	case float64:
		return v, nil
	case string:
		return parseNumericText(v)
	case FormulaError:
		return 0, v
	default:
		return 0, NewFormulaError(ErrorCodeValue)
	}
}

// parseNumericText converts cell text to a number. empty text counts as zero.
// leading whitespace is skipped, and the rest must be entirely a decimal
// literal or it is a value error.
func parseNumericText(text string) (float64, error) {
	if text == "" {
		return 0, nil
	}
	text = strings.TrimLeft(text, " \t\n\r\v\f")
	if text == "" {
		return 0, NewFormulaError(ErrorCodeValue)
	}

	// strconv also accepts inf, nan, hex and underscores, which cell text
	// should not
	if strings.IndexFunc(text, func(r rune) bool {
		return !(r >= '0' && r <= '9') && !strings.ContainsRune("+-.eE", r)
	}) >= 0 {
		return 0, NewFormulaError(ErrorCodeValue)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, NewFormulaError(ErrorCodeValue)
	}
	return v, nil
}

func uniquePositions(positions []Position) []Position {
	seen := make(map[Position]struct{}, len(positions))
	result := make([]Position, 0, len(positions))
	for _, pos := range positions {
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		result = append(result, pos)
	}
	return result
}
