// Package parser recovers the structure of a grading worksheet (header row,
// column layout, group rows) from raw grid contents. The sheets are edited by
// humans, so structure is probed cell by cell and mismatches fail with the
// offending coordinate spelled out.
package parser

import (
	"github.com/sirupsen/logrus"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/printparse"
)

// SheetConfig describes how one lab's worksheet is laid out. All header
// matching and group-id coding is supplied by the caller; nothing is
// hard-coded in the parser.
type SheetConfig struct {
	// GroupCoding codes a group id to the display text of its group-column
	// cell (the GDPR coding).
	GroupCoding printparse.PrinterParser[string, string]
	// SortKey maps a group id to its sort key. Nil means the id itself.
	SortKey func(id string) string
	// GroupHeader is the exact group-column header text; the unique row
	// carrying it is the header row.
	GroupHeader string
	// QueryHeader codes a zero-based query column group index to the
	// submission column header, e.g. 0 -> "Query #1".
	QueryHeader printparse.PrinterParser[int, string]
	// GraderHeader and ScoreHeader are the exact texts of the second and
	// third column of every query column group.
	GraderHeader string
	ScoreHeader  string
	// LastSubmissionHeader, when non-empty, is the exact header of the last
	// submission date column, which is then required to exist.
	LastSubmissionHeader string
	// IgnoreRows are zero-based row indices exempt from header and group
	// parsing.
	IgnoreRows map[int]bool
	// Logger receives unrecognized-header notices. Nil means the standard
	// logger.
	Logger logrus.FieldLogger
}

func (c SheetConfig) sortKey(id string) string {
	if c.SortKey == nil {
		return id
	}
	return c.SortKey(id)
}

func (c SheetConfig) ignored(row int) bool {
	return c.IgnoreRows[row]
}

func (c SheetConfig) log() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

func logrusFields(sheet string, row, col int, text string) logrus.Fields {
	return logrus.Fields{
		"sheet":  sheet,
		"cell":   models.CellName(row, col),
		"header": text,
	}
}
