package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// ScriptError points at the script line that failed
type ScriptError struct {
	Line int
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Runner applies a line script to a sheet. one command per line:
//
//	SET <cell> <text>
//	CLEAR <cell>
//	GET <cell>
//	SIZE
//	PRINT values|texts
//
// blank lines and lines starting with # are skipped.
type Runner struct {
	Sheet  *spreadsheet.Sheet
	Out    io.Writer
	Strict bool
	Logger *slog.Logger

	failures int
}

func NewRunner(sheet *spreadsheet.Sheet, out io.Writer, strict bool, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{Sheet: sheet, Out: out, Strict: strict, Logger: logger}
}

// Failures returns how many lines failed in non-strict mode
func (r *Runner) Failures() int {
	return r.failures
}

// Run executes every line of the script. in strict mode the first failing
// line stops the run; otherwise failures are reported inline and skipped.
func (r *Runner) Run(script io.Reader) error {
	scanner := bufio.NewScanner(script)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if trimmed := strings.TrimSpace(text); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if err := r.exec(text); err != nil {
			scriptErr := &ScriptError{Line: line, Err: err}
			if r.Strict {
				return scriptErr
			}
			r.failures++
			r.Logger.Warn("script line failed", slog.Int("line", line), slog.String("error", err.Error()))
			if _, err := fmt.Fprintf(r.Out, "error: %v\n", scriptErr); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return nil
}

func (r *Runner) exec(line string) error {
	command, rest, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	switch strings.ToUpper(command) {
	case "SET":
		address, text, _ := strings.Cut(rest, " ")
		pos, err := r.position(address)
		if err != nil {
			return err
		}
		return r.Sheet.SetCell(pos, text)

	case "CLEAR":
		pos, err := r.position(rest)
		if err != nil {
			return err
		}
		return r.Sheet.ClearCell(pos)

	case "GET":
		pos, err := r.position(rest)
		if err != nil {
			return err
		}
		cell, err := r.Sheet.GetCell(pos)
		if err != nil {
			return err
		}
		value := ""
		if cell != nil {
			value = spreadsheet.FormatValue(cell.GetValue())
		}
		_, err = fmt.Fprintf(r.Out, "%s\t%s\n", pos, value)
		return err

	case "SIZE":
		size := r.Sheet.GetPrintableSize()
		_, err := fmt.Fprintf(r.Out, "%d %d\n", size.Rows, size.Cols)
		return err

	case "PRINT":
		switch strings.ToLower(strings.TrimSpace(rest)) {
		case "values":
			return r.Sheet.PrintValues(r.Out)
		case "texts":
			return r.Sheet.PrintTexts(r.Out)
		default:
			return fmt.Errorf("PRINT expects values or texts, got %q", rest)
		}

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (r *Runner) position(address string) (spreadsheet.Position, error) {
	address = strings.TrimSpace(address)
	pos := spreadsheet.ParsePosition(strings.ToUpper(address))
	if !pos.IsValid() {
		return pos, fmt.Errorf("%w: %q", spreadsheet.ErrInvalidPosition, address)
	}
	return pos, nil
}
