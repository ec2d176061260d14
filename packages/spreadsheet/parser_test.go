package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFormula(formula string) bool {
	_, err := ParseExpression(formula)
	return err == nil
}

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"1+2",
		"A1",
		"a1",
		"SUM(A1:A10)",
		"sum(a1:a10)",
		"SUM(B2:A1)",
		"SUM(A1:A1)",
		"SUM(A1,B1,3)",
		"SUM(A1:B2,C3)",
		"MIN(1,2)",
		"MAX(A1:C3)",
		"AVERAGE(1,2,3)",
		"ABS(-1)",
		"ROUND(1.25)",
		"ROUND(1.25,1)",
		"SQRT(4)",
		"POWER(2,3)",
		"MOD(7,3)",
		"1e3",
		".5",
		"1.5E-2",
		"-1",
		"+1",
		"--1",
		"1--1",
		"2^-1",
		"50%",
		"(1+2)%",
		"1%%",
		"((1))",
		"ZZZZ1",
		"A0",
		"SUM(A1:ZZZZ1)",
		"  1 +\t2 ",
		"ABS(SUM(A1:A3))",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if !parseFormula(formula) {
				t.Errorf("expected formula %q to be valid", formula)
			}
		})
	}

	invalidFormulas := []string{
		"",
		"1+",
		"+",
		"*1",
		"1 2",
		"(1",
		"1)",
		"()",
		"A1:B2",
		"(A1:B2)",
		"A1:B2+1",
		"SUM(A1:B2+1)",
		"ABS(A1:A2)",
		"FOO(1)",
		"FOO",
		"SUM()",
		"ABS(1,2)",
		"POWER(1)",
		"ROUND(1,2,3)",
		"SUM(1,)",
		"SUM(,1)",
		"\"text\"",
		"1=1",
		"A1&B1",
		"Sheet1!A1",
		"$A$1",
		"1e400",
		"SUM(A1:Z1000)",
		"1#",
	}

	for _, formula := range invalidFormulas {
		t.Run("invalid "+formula, func(t *testing.T) {
			if parseFormula(formula) {
				t.Errorf("expected formula %q to be invalid", formula)
			}
		})
	}
}

func TestParseErrorsWrapSentinel(t *testing.T) {
	for _, formula := range []string{"1+", "FOO(1)", "(1", "A1:B2"} {
		_, err := ParseExpression(formula)
		require.Error(t, err, formula)
		assert.ErrorIs(t, err, ErrFormulaParse, formula)

		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, InvalidArgument, appErr.Code)
	}
}

func TestCanonicalRendering(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1+2", "1+2"},
		{" 1 + 2 ", "1+2"},
		{"((1))", "1"},
		{"(1+2)*3", "(1+2)*3"},
		{"1+(2*3)", "1+2*3"},
		{"(1+2)+3", "1+2+3"},
		{"1+(2+3)", "1+2+3"},
		{"1-(2-3)", "1-(2-3)"},
		{"1-(2+3)", "1-(2+3)"},
		{"(1-2)-3", "1-2-3"},
		{"1/(2*3)", "1/(2*3)"},
		{"1*(2/3)", "1*2/3"},
		{"(1/2)/3", "1/2/3"},
		{"2^3^2", "2^3^2"},
		{"(2^3)^2", "(2^3)^2"},
		{"-2^2", "-2^2"},
		{"-(2^2)", "-(2^2)"},
		{"-(1+2)", "-(1+2)"},
		{"--1", "--1"},
		{"1--1", "1--1"},
		{"(-2)%", "(-2)%"},
		{"-2%", "-2%"},
		{"(1+2)%", "(1+2)%"},
		{"2^(1+1)", "2^(1+1)"},
		{"1.50", "1.5"},
		{"1e3", "1000"},
		{"1e21", "1e+21"},
		{".5", "0.5"},
		{"a1+b2", "A1+B2"},
		{"A01", "A1"},
		{"zzzz1", "ZZZZ1"},
		{"sum(a1:b2, 3)", "SUM(A1:B2,3)"},
		{"SUM(a1:zzzz9)", "SUM(A1:ZZZZ9)"},
		{"ROUND((1+2)*3,1)", "ROUND((1+2)*3,1)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ast, err := ParseExpression(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.ToString())

			// canonical text is a fixed point
			again, err := ParseExpression(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.want, again.ToString())
		})
	}
}

func TestExpressionEvaluation(t *testing.T) {
	noCells := func(Position) (float64, error) { return 0, nil }

	tests := []struct {
		input string
		want  float64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"2^3^2", 512},
		{"-2^2", 4},
		{"-(2^2)", -4},
		{"10-4-3", 3},
		{"12/4/3", 1},
		{"50%", 0.5},
		{"200%%", 0.02},
		{"SUM(1,2,3)", 6},
		{"MIN(4,2,8)", 2},
		{"MAX(4,2,8)", 8},
		{"AVERAGE(1,2,3,4)", 2.5},
		{"ABS(-3)", 3},
		{"ROUND(2.5)", 3},
		{"ROUND(-2.5)", -3},
		{"ROUND(1.2345,2)", 1.23},
		{"ROUND(1234,-2)", 1200},
		{"ROUND(123,-400)", 0},
		{"ROUND(1.5,400)", 1.5},
		{"SQRT(16)", 4},
		{"POWER(2,10)", 1024},
		{"MOD(7,3)", 1},
		{"MOD(-7,3)", 2},
		{"MOD(7,-3)", -2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ast, err := ParseExpression(tt.input)
			require.NoError(t, err)
			got, err := ast.Eval(noCells)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExpressionEvaluationErrors(t *testing.T) {
	noCells := func(Position) (float64, error) { return 0, nil }

	tests := []struct {
		input string
		want  ErrorCode
	}{
		{"1/0", ErrorCodeDiv0},
		{"1/(1-1)", ErrorCodeDiv0},
		{"10^400", ErrorCodeDiv0},
		{"1e300*1e300", ErrorCodeDiv0},
		{"POWER(0,-1)", ErrorCodeDiv0},
		{"MOD(1,0)", ErrorCodeDiv0},
		{"SQRT(-1)", ErrorCodeValue},
		{"ZZZZ1", ErrorCodeRef},
		{"A0+1", ErrorCodeRef},
		{"SUM(A1:ZZZZ1)", ErrorCodeRef},
		{"1/0+ZZZZ1", ErrorCodeDiv0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ast, err := ParseExpression(tt.input)
			require.NoError(t, err)
			_, err = ast.Eval(noCells)
			assert.Equal(t, NewFormulaError(tt.want), err)
		})
	}
}

func TestRangeEvaluationUsesResolver(t *testing.T) {
	values := map[Position]float64{
		ParsePosition("A1"): 1,
		ParsePosition("B1"): 2,
		ParsePosition("A2"): 3,
		ParsePosition("B2"): 4,
	}
	var order []Position
	resolve := func(pos Position) (float64, error) {
		order = append(order, pos)
		return values[pos], nil
	}

	ast, err := ParseExpression("SUM(B2:A1)")
	require.NoError(t, err)
	got, err := ast.Eval(resolve)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
	assert.Equal(t, []Position{
		ParsePosition("A1"), ParsePosition("B1"), ParsePosition("A2"), ParsePosition("B2"),
	}, order)
}

func TestRangeSizeLimit(t *testing.T) {
	// 64x64 is exactly the cap
	_, err := ParseExpression("SUM(A1:BL64)")
	require.NoError(t, err)

	_, err = ParseExpression("SUM(A1:BL65)")
	assert.ErrorIs(t, err, ErrFormulaParse)
}

func TestLexerTokens(t *testing.T) {
	tokens, err := NewLexer("sum(a1:b2) + 1.5e2%").Tokenize()
	require.NoError(t, err)

	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenFunction, TokenLeftParen, TokenRange, TokenRightParen,
		TokenBinaryOp, TokenNumber, TokenUnaryPostfixOp, TokenEOF,
	}, types)
	assert.Equal(t, "SUM", tokens[0].Value)
	assert.Equal(t, "A1:B2", tokens[2].Value)
	assert.Equal(t, "1.5e2", tokens[5].Value)
}
