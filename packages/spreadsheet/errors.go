package spreadsheet

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a value-level formula error. these are results, not
// failures: they are stored as a cell's value and propagate unchanged through
// any formula that reads them.
type ErrorCode uint8

const (
	ErrorCodeRef   ErrorCode = 1 // #REF! - invalid cell reference
	ErrorCodeValue ErrorCode = 2 // #VALUE! - operand is not a number
	ErrorCodeDiv0  ErrorCode = 3 // #DIV/0! - division by zero or non-finite result
)

// ErrorMapper maps error codes to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeRef:   "#REF!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeDiv0:  "#DIV/0!",
}

// FormulaError is the value a formula produces when it cannot compute a
// number. it is comparable, so tests and callers can use ==.
type FormulaError struct {
	Code ErrorCode
}

// NewFormulaError creates a formula error value for the code
func NewFormulaError(code ErrorCode) FormulaError {
	return FormulaError{Code: code}
}

func (e FormulaError) Error() string {
	if s, ok := ErrorMapper[e.Code]; ok {
		return s
	}
	return "#ERROR!"
}

func (e FormulaError) String() string {
	return e.Error()
}

// AppErrorCode represents gRPC-style error codes for application-level errors
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// InvalidArgument indicates client specified an invalid argument, such as
	// an out of range position or formula text that does not parse.
	InvalidArgument AppErrorCode = 3

	// FailedPrecondition indicates the operation was rejected because the
	// sheet is not in a state that allows it, e.g. the edit would close a
	// reference cycle.
	FailedPrecondition AppErrorCode = 9

	// Internal errors. means some invariants expected by the sheet have been
	// broken.
	Internal AppErrorCode = 13
)

var (
	ErrInvalidPosition    = errors.New("invalid position")
	ErrCircularDependency = errors.New("circular dependency")
	ErrFormulaParse       = errors.New("formula parse error")
	ErrInvariantViolation = errors.New("invariant violation")
)

// AppError represents errors at the application level (not formula errors).
// it wraps one of the sentinel errors above so callers can use errors.Is.
type AppError struct {
	Code    AppErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func invalidPositionError(pos Position) *AppError {
	return NewApplicationError(InvalidArgument, ErrInvalidPosition, fmt.Sprintf("(%d, %d)", pos.Row, pos.Col))
}

func circularDependencyError(pos Position) *AppError {
	return NewApplicationError(FailedPrecondition, ErrCircularDependency, "cell "+pos.String())
}

func formulaParseError(message string) *AppError {
	return NewApplicationError(InvalidArgument, ErrFormulaParse, message)
}
