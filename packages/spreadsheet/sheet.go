package spreadsheet

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Sheet is a sparse grid of cells with dependency tracking between formula
// cells. it is not safe for concurrent use; callers serialize access.
type Sheet struct {
	cells map[Position]*Cell
	graph *DependencyGraph
	size  Size

	logger          *slog.Logger
	checkInvariants bool
}

// Option configures a Sheet
type Option func(*Sheet)

// WithLogger sets the logger used for mutation events. the default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sheet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvariantChecks runs CheckInvariants after every mutation and reports
// a violation as the mutation's error
func WithInvariantChecks(enabled bool) Option {
	return func(s *Sheet) {
		s.checkInvariants = enabled
	}
}

// NewSheet creates an empty sheet
func NewSheet(opts ...Option) *Sheet {
	s := &Sheet{
		cells:  make(map[Position]*Cell),
		graph:  NewDependencyGraph(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCell sets the content of the cell at pos from raw text. on error the
// sheet is left exactly as it was.
func (s *Sheet) SetCell(pos Position, text string) error {
	if !pos.IsValid() {
		return invalidPositionError(pos)
	}

	content, err := newCellContent(text)
	if err != nil {
		s.logger.Debug("rejected formula", "cell", pos.String(), "error", err)
		return err
	}

	refs := content.referencedCells()
	if s.graph.WouldCreateCycle(pos, refs) {
		s.logger.Info("rejected circular reference", "cell", pos.String(), "text", text)
		return circularDependencyError(pos)
	}

	// nothing below can fail
	cell := s.materialize(pos)
	cell.content = content
	s.graph.SetPrecedents(pos, refs)
	for _, ref := range refs {
		s.materialize(ref)
	}
	s.invalidate(pos)

	s.logger.Debug("cell set", "cell", pos.String(), "kind", content.kind().String(), "refs", len(refs))
	return s.verify()
}

// GetCell returns the cell at pos, or nil if the slot is unpopulated
func (s *Sheet) GetCell(pos Position) (*Cell, error) {
	if !pos.IsValid() {
		return nil, invalidPositionError(pos)
	}
	return s.cells[pos], nil
}

// ClearCell removes the cell at pos. formulas that read pos keep their
// reference and see it as empty until it is set again.
func (s *Sheet) ClearCell(pos Position) error {
	if !pos.IsValid() {
		return invalidPositionError(pos)
	}

	if _, exists := s.cells[pos]; !exists {
		return nil
	}

	s.graph.ClearDependencies(pos)
	s.invalidate(pos)
	delete(s.cells, pos)
	s.shrink(pos)

	s.logger.Debug("cell cleared", "cell", pos.String())
	return s.verify()
}

// GetPrintableSize returns the smallest box anchored at A1 that holds every
// populated cell
func (s *Sheet) GetPrintableSize() Size {
	return s.size
}

// Len returns the number of populated cells
func (s *Sheet) Len() int {
	return len(s.cells)
}

// PrintValues writes cell values as tab separated rows
func (s *Sheet) PrintValues(w io.Writer) error {
	return s.print(w, func(c *Cell) string {
		return FormatValue(c.GetValue())
	})
}

// PrintTexts writes cell texts as tab separated rows
func (s *Sheet) PrintTexts(w io.Writer) error {
	return s.print(w, func(c *Cell) string {
		return c.GetText()
	})
}

func (s *Sheet) print(w io.Writer, render func(*Cell) string) error {
	var sb strings.Builder
	for row := 0; row < s.size.Rows; row++ {
		sb.Reset()
		for col := 0; col < s.size.Cols; col++ {
			if col > 0 {
				sb.WriteByte('\t')
			}
			if cell, exists := s.cells[Position{Row: row, Col: col}]; exists {
				sb.WriteString(render(cell))
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("failed to print row %d: %w", row+1, err)
		}
	}
	return nil
}

// All iterates populated cells in row-major order
func (s *Sheet) All() iter.Seq2[Position, *Cell] {
	return func(yield func(Position, *Cell) bool) {
		positions := slices.SortedFunc(maps.Keys(s.cells), comparePositions)
		for _, pos := range positions {
			cell, exists := s.cells[pos]
			if !exists {
				// removed by the consumer mid-iteration
				continue
			}
			if !yield(pos, cell) {
				return
			}
		}
	}
}

// FormatValue renders a cell value the way PrintValues does
func FormatValue(v Value) string {
	switch v := v.(type) {
	case float64:
		return formatNumber(v)
	case string:
		return v
	case FormulaError:
		return v.String()
	default:
		return ""
	}
}

// materialize returns the cell at pos, creating an empty one if needed
func (s *Sheet) materialize(pos Position) *Cell {
	if cell, exists := s.cells[pos]; exists {
		return cell
	}
	cell := newEmptyCell(s, pos)
	s.cells[pos] = cell
	s.size.Rows = max(s.size.Rows, pos.Row+1)
	s.size.Cols = max(s.size.Cols, pos.Col+1)
	return cell
}

// shrink recomputes the size after pos was removed. only an edge the removed
// cell sat on can move.
func (s *Sheet) shrink(pos Position) {
	onRowEdge := pos.Row+1 == s.size.Rows
	onColEdge := pos.Col+1 == s.size.Cols
	if !onRowEdge && !onColEdge {
		return
	}

	rows, cols := 0, 0
	for p := range s.cells {
		rows = max(rows, p.Row+1)
		cols = max(cols, p.Col+1)
	}
	if onRowEdge {
		s.size.Rows = rows
	}
	if onColEdge {
		s.size.Cols = cols
	}
}

// invalidate clears the memoized value at pos and floods forward through its
// dependents. the flood stops at formula cells without a memoized value,
// since nothing downstream of them can be memoized either.
func (s *Sheet) invalidate(pos Position) {
	if cell, exists := s.cells[pos]; exists {
		cell.invalidateCache()
	}

	visited := map[Position]struct{}{pos: {}}
	stack := s.graph.GetDirectDependents(pos)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		cell, exists := s.cells[current]
		if !exists {
			continue
		}
		if cell.Kind() == CellKindFormula && !cell.hasCache() {
			continue
		}
		cell.invalidateCache()
		stack = append(stack, s.graph.GetDirectDependents(current)...)
	}
}

func (s *Sheet) verify() error {
	if !s.checkInvariants {
		return nil
	}
	if err := s.CheckInvariants(); err != nil {
		s.logger.Error("sheet invariant violated", "error", err)
		return err
	}
	return nil
}

// CheckInvariants verifies the dependency graph against the cells. it is
// meant for tests and debugging and walks the whole sheet.
func (s *Sheet) CheckInvariants() error {
	violation := func(format string, args ...any) error {
		return NewApplicationError(Internal, ErrInvariantViolation, fmt.Sprintf(format, args...))
	}

	for _, pos := range s.graph.positions() {
		node, _ := s.graph.GetNode(pos)
		if len(node.CellPrecedents) == 0 && len(node.CellDependents) == 0 {
			return violation("%s has no edges but is still in the graph", pos)
		}
		for precedent := range node.CellPrecedents {
			other, exists := s.graph.GetNode(precedent)
			if !exists {
				return violation("%s depends on %s which has no node", pos, precedent)
			}
			if _, back := other.CellDependents[pos]; !back {
				return violation("%s depends on %s without a reverse edge", pos, precedent)
			}
		}
		for dependent := range node.CellDependents {
			other, exists := s.graph.GetNode(dependent)
			if !exists {
				return violation("%s is read by %s which has no node", pos, dependent)
			}
			if _, back := other.CellPrecedents[pos]; !back {
				return violation("%s is read by %s without a forward edge", pos, dependent)
			}
			cell, exists := s.cells[dependent]
			if !exists || cell.Kind() != CellKindFormula {
				return violation("%s is read by %s which is not a formula", pos, dependent)
			}
		}
	}

	rows, cols := 0, 0
	for pos, cell := range s.cells {
		if cell.pos != pos {
			return violation("cell stored at %s thinks it is at %s", pos, cell.pos)
		}
		rows = max(rows, pos.Row+1)
		cols = max(cols, pos.Col+1)

		refs := cell.GetReferencedCells()
		precedents := s.graph.GetDirectPrecedents(pos)
		if len(refs) != len(precedents) {
			return violation("%s references %d cells but has %d edges", pos, len(refs), len(precedents))
		}
		for _, ref := range refs {
			if !slices.Contains(precedents, ref) {
				return violation("%s references %s without an edge", pos, ref)
			}
		}
	}
	if rows != s.size.Rows || cols != s.size.Cols {
		return violation("size is %dx%d but cells span %dx%d", s.size.Rows, s.size.Cols, rows, cols)
	}

	if s.graph.HasCycle() {
		return violation("dependency graph has a cycle")
	}
	return nil
}
