package models

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"
)

// Grid is a rectangular view over one worksheet's cell data as returned by
// the backend. Row and column indices are zero-based throughout.
type Grid struct {
	Rows []*sheets.RowData
}

// GridFrom builds a Grid from backend grid data. A nil argument yields an
// empty grid.
func GridFrom(gd *sheets.GridData) Grid {
	if gd == nil {
		return Grid{}
	}
	return Grid{Rows: gd.RowData}
}

func (g Grid) NumRows() int {
	return len(g.Rows)
}

// NumColumns is the width of the widest row.
func (g Grid) NumColumns() int {
	n := 0
	for _, row := range g.Rows {
		if row != nil && len(row.Values) > n {
			n = len(row.Values)
		}
	}
	return n
}

// Cell returns the cell at (row, col), or nil when out of bounds or absent.
func (g Grid) Cell(row, col int) *sheets.CellData {
	if row < 0 || row >= len(g.Rows) || g.Rows[row] == nil {
		return nil
	}
	if col < 0 || col >= len(g.Rows[row].Values) {
		return nil
	}
	return g.Rows[row].Values[col]
}

// Text returns the displayed text of the cell at (row, col), or "" when the
// cell is absent or empty.
func (g Grid) Text(row, col int) string {
	cd := g.Cell(row, col)
	if cd == nil {
		return ""
	}
	if cd.FormattedValue != "" {
		return cd.FormattedValue
	}
	if v := cd.UserEnteredValue; v != nil && v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

// HasValue reports whether the cell at (row, col) holds any user-entered or
// displayed value. Formatting alone does not count.
func (g Grid) HasValue(row, col int) bool {
	cd := g.Cell(row, col)
	if cd == nil {
		return false
	}
	return cd.UserEnteredValue != nil || cd.FormattedValue != ""
}

// RowEmpty reports whether the row holds no value in any of the given
// columns.
func (g Grid) RowEmpty(row int, cols []int) bool {
	for _, c := range cols {
		if g.HasValue(row, c) {
			return false
		}
	}
	return true
}

// CellName returns the spreadsheet-style name of a zero-based (row, col)
// coordinate, e.g. CellName(0, 1) == "B1". Parse errors report cells in this
// notation so an operator can locate them directly.
func CellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return name
}

// RowName returns the spreadsheet-style name of a zero-based row index.
func RowName(row int) string {
	return fmt.Sprintf("row %d", row+1)
}
