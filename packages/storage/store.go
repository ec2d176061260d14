package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

var (
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrInvalidSheetName = errors.New("invalid sheet name")
)

// key layout:
//
//	meta/<name>        -> sheetRecord
//	sheet/<name>/<A1>  -> cellRecord
const (
	metaPrefix  = "meta/"
	sheetPrefix = "sheet/"
)

type sheetRecord struct {
	Cells   int       `json:"cells"`
	SavedAt time.Time `json:"saved_at"`
}

type cellRecord struct {
	Text string `json:"text"`
}

// SheetStore saves and loads whole sheets by name
type SheetStore struct {
	db     *DB
	logger *slog.Logger
}

// NewSheetStore creates a store on top of an open database
func NewSheetStore(db *DB, logger *slog.Logger) *SheetStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SheetStore{db: db, logger: logger}
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidSheetName, name)
	}
	return nil
}

func metaKey(name string) []byte {
	return []byte(metaPrefix + name)
}

func cellPrefix(name string) []byte {
	return []byte(sheetPrefix + name + "/")
}

func cellKey(name string, pos spreadsheet.Position) []byte {
	return append(cellPrefix(name), pos.String()...)
}

// Save replaces whatever is stored under name with the sheet's cells, in a
// single transaction
func (s *SheetStore) Save(ctx context.Context, name string, sheet *spreadsheet.Sheet) error {
	if err := validateName(name); err != nil {
		return err
	}

	count := 0
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := deletePrefix(txn, cellPrefix(name)); err != nil {
			return err
		}

		for pos, cell := range sheet.All() {
			value, err := json.Marshal(cellRecord{Text: cell.GetText()})
			if err != nil {
				return fmt.Errorf("encode cell %s: %w", pos, err)
			}
			if err := txn.Set(cellKey(name, pos), value); err != nil {
				return fmt.Errorf("write cell %s: %w", pos, err)
			}
			count++
		}

		meta, err := json.Marshal(sheetRecord{Cells: count, SavedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("encode sheet record: %w", err)
		}
		return txn.Set(metaKey(name), meta)
	})
	if err != nil {
		return fmt.Errorf("save sheet %s: %w", name, err)
	}

	s.logger.Debug("sheet saved", slog.String("sheet", name), slog.Int("cells", count))
	return nil
}

// Load rebuilds the sheet stored under name. opts are passed to NewSheet.
func (s *SheetStore) Load(ctx context.Context, name string, opts ...spreadsheet.Option) (*spreadsheet.Sheet, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	sheet := spreadsheet.NewSheet(opts...)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSheetNotFound, name)
			}
			return err
		}

		prefix := cellPrefix(name)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			address := string(bytes.TrimPrefix(item.Key(), prefix))
			pos := spreadsheet.ParsePosition(address)
			if !pos.IsValid() {
				return fmt.Errorf("corrupt key %q", item.Key())
			}

			var record cellRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return fmt.Errorf("decode cell %s: %w", address, err)
			}

			if err := sheet.SetCell(pos, record.Text); err != nil {
				return fmt.Errorf("restore cell %s: %w", address, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load sheet %s: %w", name, err)
	}

	s.logger.Debug("sheet loaded", slog.String("sheet", name), slog.Int("cells", sheet.Len()))
	return sheet, nil
}

// Delete removes the sheet stored under name
func (s *SheetStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSheetNotFound, name)
			}
			return err
		}
		if err := deletePrefix(txn, cellPrefix(name)); err != nil {
			return err
		}
		return txn.Delete(metaKey(name))
	})
	if err != nil {
		return fmt.Errorf("delete sheet %s: %w", name, err)
	}

	s.logger.Debug("sheet deleted", slog.String("sheet", name))
	return nil
}

// List returns the names of all stored sheets in lexical order
func (s *SheetStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	return names, nil
}

// deletePrefix removes every key under prefix. keys are collected first
// since the iterator must be closed before the transaction writes.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}
