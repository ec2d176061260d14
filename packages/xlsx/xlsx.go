// Package xlsx moves sheets in and out of Excel workbooks.
package xlsx

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// DefaultSheetName is used when no worksheet name is given
const DefaultSheetName = "Sheet1"

// ErrSheetMissing indicates the workbook has no worksheet with the name.
var ErrSheetMissing = errors.New("worksheet not found in workbook")

// CellError represents a failure to move a single cell.
type CellError struct {
	SheetName string
	Cell      string
	Err       error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %s in sheet %q: %v", e.Cell, e.SheetName, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// NewCellError creates a new CellError.
func NewCellError(sheetName, cell string, err error) *CellError {
	return &CellError{
		SheetName: sheetName,
		Cell:      cell,
		Err:       err,
	}
}

// Export writes sheet as a single-worksheet workbook. formulas are written
// as formulas with their current value cached, everything else as text.
func Export(sheet *spreadsheet.Sheet, w io.Writer, sheetName string) error {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if sheetName != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheetName); err != nil {
			return fmt.Errorf("name worksheet %q: %w", sheetName, err)
		}
	}

	for pos, cell := range sheet.All() {
		name, err := excelize.CoordinatesToCellName(pos.Col+1, pos.Row+1)
		if err != nil {
			return NewCellError(sheetName, pos.String(), err)
		}

		switch cell.Kind() {
		case spreadsheet.CellKindEmpty:
			continue
		case spreadsheet.CellKindFormula:
			err = writeFormula(f, sheetName, name, cell)
		default:
			err = f.SetCellStr(sheetName, name, cell.GetText())
		}
		if err != nil {
			return NewCellError(sheetName, name, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeFormula(f *excelize.File, sheetName, name string, cell *spreadsheet.Cell) error {
	switch v := cell.GetValue().(type) {
	case float64:
		if err := f.SetCellFloat(sheetName, name, v, -1, 64); err != nil {
			return err
		}
	case spreadsheet.FormulaError:
		if err := f.SetCellStr(sheetName, name, v.String()); err != nil {
			return err
		}
	}
	return f.SetCellFormula(sheetName, name, strings.TrimPrefix(cell.GetText(), "="))
}

// Import reads one worksheet into a new sheet. an empty sheetName picks the
// first worksheet. opts are passed to NewSheet.
func Import(r io.Reader, sheetName string, opts ...spreadsheet.Option) (*spreadsheet.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if index, err := f.GetSheetIndex(sheetName); err != nil || index < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetMissing, sheetName)
	}

	rows, cols, err := extent(f, sheetName)
	if err != nil {
		return nil, err
	}

	sheet := spreadsheet.NewSheet(opts...)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			name, err := excelize.CoordinatesToCellName(col+1, row+1)
			if err != nil {
				return nil, NewCellError(sheetName, fmt.Sprintf("R%dC%d", row+1, col+1), err)
			}

			text, err := readCell(f, sheetName, name)
			if err != nil {
				return nil, NewCellError(sheetName, name, err)
			}
			if text == "" {
				continue
			}

			if err := sheet.SetCell(spreadsheet.Position{Row: row, Col: col}, text); err != nil {
				return nil, NewCellError(sheetName, name, err)
			}
		}
	}

	return sheet, nil
}

// readCell returns the text a cell should get in the sheet
func readCell(f *excelize.File, sheetName, name string) (string, error) {
	formula, err := f.GetCellFormula(sheetName, name)
	if err != nil {
		return "", err
	}
	if formula != "" {
		return "=" + strings.TrimPrefix(formula, "="), nil
	}

	value, err := f.GetCellValue(sheetName, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", err
	}
	if len(value) > 1 && value[0] == spreadsheet.FormulaSign {
		// literal text that would otherwise parse as a formula
		return string(spreadsheet.EscapeSign) + value, nil
	}
	return value, nil
}

// extent finds how many rows and columns to scan, from both the cell data and
// the declared dimension, clamped to the sheet bounds
func extent(f *excelize.File, sheetName string) (int, int, error) {
	data, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, 0, fmt.Errorf("read rows of %q: %w", sheetName, err)
	}

	rows, cols := len(data), 0
	for _, row := range data {
		cols = max(cols, len(row))
	}

	if dimension, err := f.GetSheetDimension(sheetName); err == nil && dimension != "" {
		_, corner, found := strings.Cut(dimension, ":")
		if !found {
			corner = dimension
		}
		if col, row, err := excelize.CellNameToCoordinates(corner); err == nil {
			rows = max(rows, row)
			cols = max(cols, col)
		}
	}

	return min(rows, spreadsheet.MaxRows), min(cols, spreadsheet.MaxCols), nil
}
