package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource serves cells from a plain sheet so formulas can be evaluated
// without going through SetCell
type mapSource struct {
	sheet *Sheet
}

func newMapSource(t *testing.T, texts map[string]string) *mapSource {
	t.Helper()
	sheet := NewSheet()
	for addr, text := range texts {
		content, err := newCellContent(text)
		require.NoError(t, err)
		pos := ParsePosition(addr)
		cell := sheet.materialize(pos)
		cell.content = content
	}
	return &mapSource{sheet: sheet}
}

func (m *mapSource) GetCell(pos Position) (*Cell, error) {
	return m.sheet.GetCell(pos)
}

func TestFormulaEvaluateResolvesReferences(t *testing.T) {
	source := newMapSource(t, map[string]string{
		"A1": "3",
		"A2": "'4",
		"A3": "",
		"A4": "hello",
		"A5": "=1/0",
		"A6": "=2*3",
		"A7": " 1",
		"A8": "1e2",
		"A9": "inf",
	})

	tests := []struct {
		expression string
		want       Value
	}{
		{"A1+1", 4.0},
		{"A2+1", 5.0},
		{"A3+1", 1.0},
		{"Z99+1", 1.0},
		{"A4+1", NewFormulaError(ErrorCodeValue)},
		{"A5+1", NewFormulaError(ErrorCodeDiv0)},
		{"A6+1", 7.0},
		{"A7+1", 2.0},
		{"A8+1", 101.0},
		{"A9+1", NewFormulaError(ErrorCodeValue)},
		{"ZZZZ1", NewFormulaError(ErrorCodeRef)},
		{"SUM(A1:A3)", 7.0},
		{"SUM(A1:A4)", NewFormulaError(ErrorCodeValue)},
		{"A5+A4", NewFormulaError(ErrorCodeDiv0)},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			formula, err := ParseFormula(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.want, formula.Evaluate(source))
		})
	}
}

func TestFormulaReferencedCells(t *testing.T) {
	formula, err := ParseFormula("B2+A1+B2+ZZZZ1+SUM(A1:B1)")
	require.NoError(t, err)

	assert.Equal(t, []Position{
		ParsePosition("B2"), ParsePosition("A1"), ParsePosition("B1"),
	}, formula.ReferencedCells())

	// callers get their own copy
	refs := formula.ReferencedCells()
	refs[0] = NonePosition
	assert.Equal(t, ParsePosition("B2"), formula.ReferencedCells()[0])
}

func TestFormulaReferencedCellsEmpty(t *testing.T) {
	formula, err := ParseFormula("1+2")
	require.NoError(t, err)
	assert.Empty(t, formula.ReferencedCells())
}

func TestFormulaExpression(t *testing.T) {
	formula, err := ParseFormula(" (a1 + 2) * 3 ")
	require.NoError(t, err)
	assert.Equal(t, "(A1+2)*3", formula.Expression())
}

func TestParseFormulaError(t *testing.T) {
	formula, err := ParseFormula("1+*2")
	assert.Nil(t, formula)
	assert.ErrorIs(t, err, ErrFormulaParse)
}

func TestParseNumericText(t *testing.T) {
	numeric := map[string]float64{
		"":      0,
		"0":     0,
		"12":    12,
		"-3.5":  -3.5,
		"+2":    2,
		".5":    0.5,
		"1e3":   1000,
		"1.5E2": 150,
		" 1":    1,
		"\t-2":   -2,
	}
	for text, want := range numeric {
		got, err := parseNumericText(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
	}

	for _, text := range []string{"abc", "1a", "0x10", "1_000", "NaN", "Inf", "1 ", " 1 ", "   ", "--1", "1e", "."} {
		_, err := parseNumericText(text)
		assert.Equal(t, NewFormulaError(ErrorCodeValue), err, text)
	}
}
