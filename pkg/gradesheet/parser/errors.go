package parser

import (
	"errors"
	"fmt"
)

// ErrSheetParse indicates worksheet contents that do not match the expected
// grading sheet structure. Such sheets must be fixed by hand or by adjusting
// the configuration; the library never repairs them.
var ErrSheetParse = errors.New("worksheet does not match expected grading sheet structure")

// SheetParseError reports a structural mismatch, naming the offending cell in
// spreadsheet notation when one is known.
type SheetParseError struct {
	Sheet string // worksheet title
	Cell  string // offending cell or row, spreadsheet notation, may be empty
	Msg   string // what was found and what was expected
}

func (e *SheetParseError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("sheet %q, %s: %s", e.Sheet, e.Cell, e.Msg)
	}
	return fmt.Sprintf("sheet %q: %s", e.Sheet, e.Msg)
}

func (e *SheetParseError) Unwrap() error {
	return ErrSheetParse
}

func parseErrf(sheet, cell, format string, args ...any) *SheetParseError {
	return &SheetParseError{Sheet: sheet, Cell: cell, Msg: fmt.Sprintf(format, args...)}
}
