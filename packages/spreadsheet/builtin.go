package spreadsheet

import (
	"math"
)

// functionArity describes how many arguments a built-in accepts. maxArgs of
// -1 means variadic. only variadic functions take ranges.
type functionArity struct {
	minArgs int
	maxArgs int
}

// builtinArity is the closed set of functions the parser accepts
var builtinArity = map[string]functionArity{
	"SUM":     {minArgs: 1, maxArgs: -1},
	"MIN":     {minArgs: 1, maxArgs: -1},
	"MAX":     {minArgs: 1, maxArgs: -1},
	"AVERAGE": {minArgs: 1, maxArgs: -1},
	"ABS":     {minArgs: 1, maxArgs: 1},
	"SQRT":    {minArgs: 1, maxArgs: 1},
	"ROUND":   {minArgs: 1, maxArgs: 2},
	"POWER":   {minArgs: 2, maxArgs: 2},
	"MOD":     {minArgs: 2, maxArgs: 2},
}

func (a functionArity) variadic() bool {
	return a.maxArgs < 0
}

func (a functionArity) accepts(n int) bool {
	if n < a.minArgs {
		return false
	}
	return a.variadic() || n <= a.maxArgs
}

// BuiltInFunctions contains all spreadsheet built-in functions. arguments
// arrive already evaluated, with ranges flattened in row-major order.
type BuiltInFunctions struct{}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{}
}

// Call invokes a built-in function by name with the given arguments
func (bf *BuiltInFunctions) Call(name string, args ...float64) (float64, error) {
	switch name {
	case "SUM":
		return bf.SUM(args...)
	case "MIN":
		return bf.MIN(args...)
	case "MAX":
		return bf.MAX(args...)
	case "AVERAGE":
		return bf.AVERAGE(args...)
	case "ABS":
		return bf.ABS(args...)
	case "SQRT":
		return bf.SQRT(args...)
	case "ROUND":
		return bf.ROUND(args...)
	case "POWER":
		return bf.POWER(args...)
	case "MOD":
		return bf.MOD(args...)
	default:
		// the parser rejects unknown names, so reaching this is a bug
		return 0, NewFormulaError(ErrorCodeValue)
	}
}

// SUM adds all arguments
func (bf *BuiltInFunctions) SUM(args ...float64) (float64, error) {
	sum := 0.0
	for _, arg := range args {
		sum += arg
	}
	return checkFinite(sum)
}

// MIN returns the smallest argument
func (bf *BuiltInFunctions) MIN(args ...float64) (float64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	result := args[0]
	for _, arg := range args[1:] {
		result = math.Min(result, arg)
	}
	return result, nil
}

// MAX returns the largest argument
func (bf *BuiltInFunctions) MAX(args ...float64) (float64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	result := args[0]
	for _, arg := range args[1:] {
		result = math.Max(result, arg)
	}
	return result, nil
}

// AVERAGE returns the arithmetic mean of the arguments
func (bf *BuiltInFunctions) AVERAGE(args ...float64) (float64, error) {
	if len(args) == 0 {
		return 0, NewFormulaError(ErrorCodeDiv0)
	}
	sum, err := bf.SUM(args...)
	if err != nil {
		return 0, err
	}
	return checkFinite(sum / float64(len(args)))
}

// ABS returns the absolute value
func (bf *BuiltInFunctions) ABS(args ...float64) (float64, error) {
	return math.Abs(args[0]), nil
}

// SQRT returns the square root. negative input is a value error.
func (bf *BuiltInFunctions) SQRT(args ...float64) (float64, error) {
	if args[0] < 0 {
		return 0, NewFormulaError(ErrorCodeValue)
	}
	return math.Sqrt(args[0]), nil
}

// ROUND rounds half away from zero to the given number of digits (0 when
// omitted). negative digit counts round to the left of the decimal point.
func (bf *BuiltInFunctions) ROUND(args ...float64) (float64, error) {
	digits := 0.0
	if len(args) > 1 {
		digits = math.Trunc(args[1])
	}
	scale := math.Pow(10, digits)
	if scale == 0 {
		// rounding to a place far left of any representable digit
		return 0, nil
	}
	scaled := args[0] * scale
	if math.IsInf(scaled, 0) {
		// rounding past float64 precision is a no-op
		return args[0], nil
	}
	return checkFinite(math.Round(scaled) / scale)
}

// POWER raises the first argument to the second
func (bf *BuiltInFunctions) POWER(args ...float64) (float64, error) {
	return checkFinite(math.Pow(args[0], args[1]))
}

// MOD returns the remainder with the sign of the divisor
func (bf *BuiltInFunctions) MOD(args ...float64) (float64, error) {
	n, d := args[0], args[1]
	if d == 0 {
		return 0, NewFormulaError(ErrorCodeDiv0)
	}
	return checkFinite(n - d*math.Floor(n/d))
}

// checkFinite maps infinities and NaN to a division error, which is how
// non-finite arithmetic surfaces in cell values
func checkFinite(v float64) (float64, error) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, NewFormulaError(ErrorCodeDiv0)
	}
	return v, nil
}
