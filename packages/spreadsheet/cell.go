package spreadsheet

// Value is what a cell shows. types:
//   - float64: result of a formula
//   - string: text of a text cell, "" for an empty cell
//   - FormulaError: a formula that could not produce a number
type Value any

const (
	FormulaSign = '='
	EscapeSign  = '\''
)

// CellKind tells which content variant a cell holds
type CellKind uint8

const (
	CellKindEmpty   CellKind = 0
	CellKindText    CellKind = 1
	CellKindFormula CellKind = 2
)

func (k CellKind) String() string {
	switch k {
	case CellKindText:
		return "text"
	case CellKindFormula:
		return "formula"
	default:
		return "empty"
	}
}

// cellContent is the closed set of things a cell can hold
type cellContent interface {
	kind() CellKind
	text() string
	referencedCells() []Position
}

type emptyContent struct{}

func (emptyContent) kind() CellKind              { return CellKindEmpty }
func (emptyContent) text() string                { return "" }
func (emptyContent) referencedCells() []Position { return nil }

type textContent struct {
	raw string
}

func (c *textContent) kind() CellKind              { return CellKindText }
func (c *textContent) text() string                { return c.raw }
func (c *textContent) referencedCells() []Position { return nil }

// value drops a single leading escape sign
func (c *textContent) value() string {
	if len(c.raw) > 0 && c.raw[0] == EscapeSign {
		return c.raw[1:]
	}
	return c.raw
}

type formulaContent struct {
	formula *Formula

	// memoized result of the last evaluation, cleared by invalidation
	cache  Value
	cached bool
}

func (c *formulaContent) kind() CellKind              { return CellKindFormula }
func (c *formulaContent) text() string                { return string(FormulaSign) + c.formula.Expression() }
func (c *formulaContent) referencedCells() []Position { return c.formula.ReferencedCells() }

// newCellContent classifies raw cell text
func newCellContent(text string) (cellContent, error) {
	switch {
	case text == "":
		return emptyContent{}, nil
	case len(text) > 1 && text[0] == FormulaSign:
		formula, err := ParseFormula(text[1:])
		if err != nil {
			return nil, err
		}
		return &formulaContent{formula: formula}, nil
	default:
		return &textContent{raw: text}, nil
	}
}

// Cell is one populated slot of a sheet. cells are owned by their sheet and
// only change through it.
type Cell struct {
	sheet   *Sheet
	pos     Position
	content cellContent
}

func newEmptyCell(sheet *Sheet, pos Position) *Cell {
	return &Cell{sheet: sheet, pos: pos, content: emptyContent{}}
}

// GetValue returns the visible value. formulas are evaluated on first use
// and memoized until something they read changes.
func (c *Cell) GetValue() Value {
	switch content := c.content.(type) {
	case *textContent:
		return content.value()
	case *formulaContent:
		if !content.cached {
			content.cache = content.formula.Evaluate(c.sheet)
			content.cached = true
		}
		return content.cache
	default:
		return ""
	}
}

// GetText returns the text as it would be edited: raw text for text cells,
// "=" plus the canonical expression for formulas
func (c *Cell) GetText() string {
	return c.content.text()
}

// GetReferencedCells returns the valid positions a formula cell reads
func (c *Cell) GetReferencedCells() []Position {
	return c.content.referencedCells()
}

// Kind returns the content variant
func (c *Cell) Kind() CellKind {
	return c.content.kind()
}

// Position returns where the cell lives
func (c *Cell) Position() Position {
	return c.pos
}

// IsReferenced reports whether some formula depends on this cell
func (c *Cell) IsReferenced() bool {
	return c.sheet.graph.HasDependents(c.pos)
}

func (c *Cell) hasCache() bool {
	content, ok := c.content.(*formulaContent)
	return ok && content.cached
}

func (c *Cell) invalidateCache() {
	if content, ok := c.content.(*formulaContent); ok {
		content.cache = nil
		content.cached = false
	}
}
