// Package gradesheet maintains grading sheets for course labs inside one
// Google spreadsheet document: one worksheet per lab, one row per student
// group, one column triple per submission attempt. The package recovers the
// sheet structure from user-edited contents, then produces idempotent batches
// of update requests that never clobber newer data or hand-applied
// formatting.
package gradesheet

import (
	"errors"
	"fmt"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/parser"
)

// ErrSheetParse is re-exported from the parser package; every structural
// mismatch unwraps to it.
var ErrSheetParse = parser.ErrSheetParse

// ErrSheetMissing indicates a worksheet that was required to exist does not.
var ErrSheetMissing = errors.New("worksheet not found")

// ErrSheetExists indicates a worksheet that was required not to exist does.
var ErrSheetExists = errors.New("worksheet already exists")

// SheetMissingError reports an absent worksheet. It is a specialization of
// the parse failure taxonomy: errors.Is matches both ErrSheetMissing and
// ErrSheetParse.
type SheetMissingError struct {
	Spreadsheet string
	Title       string
}

func (e *SheetMissingError) Error() string {
	return fmt.Sprintf("spreadsheet %s has no worksheet titled %q", e.Spreadsheet, e.Title)
}

func (e *SheetMissingError) Unwrap() []error {
	return []error{ErrSheetMissing, ErrSheetParse}
}
