package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/storage"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrCellNotFound  = errors.New("cell not found")
)

// CellView is the JSON shape of a cell
type CellView struct {
	Cell  string `json:"cell"`
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// SheetView is the JSON shape of a whole sheet
type SheetView struct {
	Sheet string     `json:"sheet"`
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells []CellView `json:"cells"`
}

func newCellView(pos spreadsheet.Position, cell *spreadsheet.Cell) CellView {
	view := CellView{
		Cell: pos.String(),
		Kind: cell.Kind().String(),
		Text: cell.GetText(),
	}
	switch v := cell.GetValue().(type) {
	case spreadsheet.FormulaError:
		view.Value = v.String()
		view.Error = v.String()
	default:
		view.Value = v
	}
	return view
}

// Workbook is a set of named sheets. sheets are not safe for concurrent use,
// so every access goes through one lock.
type Workbook struct {
	mu     sync.Mutex
	sheets map[string]*spreadsheet.Sheet

	store     *storage.SheetStore
	metrics   *Metrics
	logger    *slog.Logger
	sheetOpts []spreadsheet.Option
}

// NewWorkbook creates an empty workbook. store may be nil for a purely
// in-memory workbook.
func NewWorkbook(store *storage.SheetStore, metrics *Metrics, logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workbook{
		sheets:    make(map[string]*spreadsheet.Sheet),
		store:     store,
		metrics:   metrics,
		logger:    logger,
		sheetOpts: []spreadsheet.Option{spreadsheet.WithLogger(logger)},
	}
}

func normalizeSheetID(sheetID string) string {
	return strings.ToLower(sheetID)
}

func parseCellID(cellID string) (spreadsheet.Position, error) {
	pos := spreadsheet.ParsePosition(strings.ToUpper(cellID))
	if !pos.IsValid() {
		return pos, fmt.Errorf("%w: %q", spreadsheet.ErrInvalidPosition, cellID)
	}
	return pos, nil
}

// sheet finds a sheet in memory or in the store. with create set, a missing
// sheet is created empty. callers hold the lock.
func (w *Workbook) sheet(ctx context.Context, sheetID string, create bool) (*spreadsheet.Sheet, error) {
	if sheet, ok := w.sheets[sheetID]; ok {
		return sheet, nil
	}

	if w.store != nil {
		sheet, err := w.store.Load(ctx, sheetID, w.sheetOpts...)
		switch {
		case err == nil:
			w.track(sheetID, sheet)
			return sheet, nil
		case !errors.Is(err, storage.ErrSheetNotFound):
			return nil, err
		}
	}

	if !create {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetID)
	}
	sheet := spreadsheet.NewSheet(w.sheetOpts...)
	w.track(sheetID, sheet)
	return sheet, nil
}

func (w *Workbook) track(sheetID string, sheet *spreadsheet.Sheet) {
	w.sheets[sheetID] = sheet
	if w.metrics != nil {
		w.metrics.sheets.Set(float64(len(w.sheets)))
	}
}

func (w *Workbook) persist(ctx context.Context, sheetID string, sheet *spreadsheet.Sheet) error {
	if w.store == nil {
		return nil
	}
	if err := w.store.Save(ctx, sheetID, sheet); err != nil {
		w.logger.Error("failed to persist sheet", slog.String("sheet", sheetID), slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (w *Workbook) observe(start time.Time, err error) {
	if w.metrics == nil {
		return
	}
	w.metrics.cellUpdates.WithLabelValues(resultLabel(err)).Inc()
	w.metrics.updateDuration.Observe(time.Since(start).Seconds())
}

// SetCell sets a cell, creating the sheet if needed
func (w *Workbook) SetCell(ctx context.Context, sheetID, cellID, text string) (view CellView, err error) {
	start := time.Now()
	defer func() { w.observe(start, err) }()

	pos, err := parseCellID(cellID)
	if err != nil {
		return CellView{}, err
	}
	sheetID = normalizeSheetID(sheetID)

	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.sheet(ctx, sheetID, true)
	if err != nil {
		return CellView{}, err
	}
	if err := sheet.SetCell(pos, text); err != nil {
		return CellView{}, err
	}
	// a failed save keeps the in-memory change; the next successful save of
	// this sheet writes it out
	if err := w.persist(ctx, sheetID, sheet); err != nil {
		return CellView{}, err
	}

	cell, err := sheet.GetCell(pos)
	if err != nil {
		return CellView{}, err
	}
	return newCellView(pos, cell), nil
}

// GetCell returns a populated cell
func (w *Workbook) GetCell(ctx context.Context, sheetID, cellID string) (CellView, error) {
	pos, err := parseCellID(cellID)
	if err != nil {
		return CellView{}, err
	}
	sheetID = normalizeSheetID(sheetID)

	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.sheet(ctx, sheetID, false)
	if err != nil {
		return CellView{}, err
	}
	cell, err := sheet.GetCell(pos)
	if err != nil {
		return CellView{}, err
	}
	if cell == nil {
		return CellView{}, fmt.Errorf("%w: %s", ErrCellNotFound, pos)
	}
	return newCellView(pos, cell), nil
}

// ClearCell removes a cell from an existing sheet
func (w *Workbook) ClearCell(ctx context.Context, sheetID, cellID string) (err error) {
	start := time.Now()
	defer func() { w.observe(start, err) }()

	pos, err := parseCellID(cellID)
	if err != nil {
		return err
	}
	sheetID = normalizeSheetID(sheetID)

	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.sheet(ctx, sheetID, false)
	if err != nil {
		return err
	}
	if err := sheet.ClearCell(pos); err != nil {
		return err
	}
	// same as SetCell, the clear stays in memory if the save fails
	return w.persist(ctx, sheetID, sheet)
}

// GetSheet returns every populated cell of a sheet
func (w *Workbook) GetSheet(ctx context.Context, sheetID string) (SheetView, error) {
	sheetID = normalizeSheetID(sheetID)

	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.sheet(ctx, sheetID, false)
	if err != nil {
		return SheetView{}, err
	}

	size := sheet.GetPrintableSize()
	view := SheetView{
		Sheet: sheetID,
		Rows:  size.Rows,
		Cols:  size.Cols,
		Cells: make([]CellView, 0, sheet.Len()),
	}
	for pos, cell := range sheet.All() {
		view.Cells = append(view.Cells, newCellView(pos, cell))
	}
	return view, nil
}
