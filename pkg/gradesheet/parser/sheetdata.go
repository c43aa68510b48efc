package parser

import (
	"sort"

	"github.com/tiendc/go-deepcopy"
	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/printparse"
)

// QueryColumns are the column indices of one query column group: the fixed
// (submission, grader, score) triple for one submission attempt.
type QueryColumns struct {
	Submission int
	Grader     int
	Score      int
}

// Columns is the recovered column layout of a grading worksheet.
type Columns struct {
	// Group is the group id column. Always 0.
	Group int
	// LastSubmission is the last submission date column, or -1 when not
	// configured.
	LastSubmission int
	// QueryGroups are the query column groups in index order. Group k's
	// submission header codes k under the configured query header template.
	QueryGroups []QueryColumns
}

// Relevant returns every column the layout assigns meaning to. A row is
// considered empty when none of these columns holds a value.
func (c Columns) Relevant() []int {
	cols := []int{c.Group}
	if c.LastSubmission >= 0 {
		cols = append(cols, c.LastSubmission)
	}
	for _, q := range c.QueryGroups {
		cols = append(cols, q.Submission, q.Grader, q.Score)
	}
	return cols
}

// GroupRow is one parsed group row.
type GroupRow struct {
	Row int
	ID  string
}

// SheetData is the parsed structure of one grading worksheet. It is built
// from a single backend read and discarded whenever the underlying sheet may
// have changed.
type SheetData struct {
	Title   string
	Grid    models.Grid
	Header  int // header row index
	Columns Columns
	// GroupRows maps a row index to the group id parsed from its group
	// column. Ids are unique; duplicates fail parsing.
	GroupRows map[int]string
	// GroupRange is the half-open row span holding the group rows or, when
	// none exist, the placeholder span of empty rows used as insertion point.
	GroupRange [2]int
	// Placeholder reports whether GroupRange denotes empty placeholder rows
	// rather than actual group rows.
	Placeholder bool

	cfg SheetConfig
}

// Parse recovers the structure of a worksheet from its raw grid.
func Parse(title string, grid models.Grid, cfg SheetConfig) (*SheetData, error) {
	d := &SheetData{Title: title, Grid: grid, cfg: cfg}
	if err := d.parseHeaderRow(); err != nil {
		return nil, err
	}
	if err := d.parseColumns(); err != nil {
		return nil, err
	}
	if err := d.parseGroupRows(); err != nil {
		return nil, err
	}
	if err := d.parseGroupRange(); err != nil {
		return nil, err
	}
	return d, nil
}

// parseHeaderRow locates the unique non-ignored row whose group-column cell
// carries the configured group header.
func (d *SheetData) parseHeaderRow() error {
	found := -1
	for r := 0; r < d.Grid.NumRows(); r++ {
		if d.cfg.ignored(r) {
			continue
		}
		if d.Grid.Text(r, 0) != d.cfg.GroupHeader {
			continue
		}
		if found >= 0 {
			return parseErrf(d.Title, "",
				"ambiguous header row: group header %q appears in cells %s and %s",
				d.cfg.GroupHeader, models.CellName(found, 0), models.CellName(r, 0))
		}
		found = r
	}
	if found < 0 {
		return parseErrf(d.Title, models.CellName(0, 0),
			"no header row: no cell in the first column carries the group header %q",
			d.cfg.GroupHeader)
	}
	d.Header = found
	return nil
}

// parseColumns walks the header row left to right. The group column is column
// 0 by construction; unique headers may each appear at most once; query
// column groups must appear as complete triples with consecutive indices
// starting at 0. Unrecognized headers are logged and skipped.
func (d *SheetData) parseColumns() error {
	cols := Columns{Group: 0, LastSubmission: -1}
	width := d.Grid.NumColumns()
	c := 1
	for c < width {
		text := d.Grid.Text(d.Header, c)

		if d.cfg.LastSubmissionHeader != "" && text == d.cfg.LastSubmissionHeader {
			if cols.LastSubmission >= 0 {
				return parseErrf(d.Title, models.CellName(d.Header, c),
					"duplicate header %q, first seen at %s",
					text, models.CellName(d.Header, cols.LastSubmission))
			}
			cols.LastSubmission = c
			c++
			continue
		}

		if index, ok := printparse.Attempt(d.cfg.QueryHeader, text); ok {
			want := len(cols.QueryGroups)
			if index != want {
				return parseErrf(d.Title, models.CellName(d.Header, c),
					"query column group out of order: got %q, expected %q",
					text, d.cfg.QueryHeader.Print(want))
			}
			if got := d.Grid.Text(d.Header, c+1); got != d.cfg.GraderHeader {
				return parseErrf(d.Title, models.CellName(d.Header, c+1),
					"got %q, expected grader header %q after %q",
					got, d.cfg.GraderHeader, text)
			}
			if got := d.Grid.Text(d.Header, c+2); got != d.cfg.ScoreHeader {
				return parseErrf(d.Title, models.CellName(d.Header, c+2),
					"got %q, expected score header %q after %q",
					got, d.cfg.ScoreHeader, text)
			}
			cols.QueryGroups = append(cols.QueryGroups, QueryColumns{
				Submission: c,
				Grader:     c + 1,
				Score:      c + 2,
			})
			c += 3
			continue
		}

		if text == d.cfg.GroupHeader {
			return parseErrf(d.Title, models.CellName(d.Header, c),
				"duplicate header %q, first seen at %s",
				text, models.CellName(d.Header, 0))
		}
		if text != "" {
			d.cfg.log().WithFields(logrusFields(d.Title, d.Header, c, text)).
				Info("ignoring unrecognized header")
		}
		c++
	}

	if d.cfg.LastSubmissionHeader != "" && cols.LastSubmission < 0 {
		return parseErrf(d.Title, "",
			"header row %d has no last submission date header %q",
			d.Header+1, d.cfg.LastSubmissionHeader)
	}
	if len(cols.QueryGroups) == 0 {
		return parseErrf(d.Title, "",
			"header row %d has no query column group; expected submission header %q",
			d.Header+1, d.cfg.QueryHeader.Print(0))
	}
	d.Columns = cols
	return nil
}

// parseGroupRows collects rows after the header whose group-column cell
// parses under the group coding. Non-parsing cells are skipped; a group id
// appearing twice fails parsing.
func (d *SheetData) parseGroupRows() error {
	rows := make(map[int]string)
	byID := make(map[string]int)
	for r := d.Header + 1; r < d.Grid.NumRows(); r++ {
		if d.cfg.ignored(r) {
			continue
		}
		text := d.Grid.Text(r, d.Columns.Group)
		if text == "" {
			continue
		}
		id, ok := printparse.Attempt(d.cfg.GroupCoding, text)
		if !ok {
			continue
		}
		if prev, dup := byID[id]; dup {
			return parseErrf(d.Title, models.CellName(r, d.Columns.Group),
				"group %q already appears at %s",
				id, models.CellName(prev, d.Columns.Group))
		}
		rows[r] = id
		byID[id] = r
	}
	d.GroupRows = rows
	return nil
}

// parseGroupRange computes the span of group rows, or, when none exist, the
// first run of empty non-ignored rows after the header, which must be at
// least one row. Rows inside the group span that are neither group rows nor
// ignored fail parsing: silently treating them as groups would hand them
// neighbouring formatting and shift every later insertion.
func (d *SheetData) parseGroupRange() error {
	if len(d.GroupRows) > 0 {
		lo, hi := -1, -1
		for r := range d.GroupRows {
			if lo < 0 || r < lo {
				lo = r
			}
			if r > hi {
				hi = r
			}
		}
		for r := lo; r <= hi; r++ {
			if _, ok := d.GroupRows[r]; ok || d.cfg.ignored(r) {
				continue
			}
			return parseErrf(d.Title, models.RowName(r),
				"row inside the group range %d-%d is neither a group row nor ignored",
				lo+1, hi+1)
		}
		d.GroupRange = [2]int{lo, hi + 1}
		d.Placeholder = false
		return nil
	}

	relevant := d.Columns.Relevant()
	start := -1
	end := -1
	for r := d.Header + 1; r < d.Grid.NumRows(); r++ {
		if !d.cfg.ignored(r) && d.Grid.RowEmpty(r, relevant) {
			if start < 0 {
				start = r
			}
			end = r + 1
			continue
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return parseErrf(d.Title, "",
			"no empty row after header row %d to hold future group rows", d.Header+1)
	}
	d.GroupRange = [2]int{start, end}
	d.Placeholder = true
	return nil
}

// GroupRowsInOrder returns the group rows ordered by row index.
func (d *SheetData) GroupRowsInOrder() []GroupRow {
	out := make([]GroupRow, 0, len(d.GroupRows))
	for r, id := range d.GroupRows {
		out = append(out, GroupRow{Row: r, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// RowOf returns the row of the given group id.
func (d *SheetData) RowOf(id string) (int, bool) {
	for r, g := range d.GroupRows {
		if g == id {
			return r, true
		}
	}
	return 0, false
}

// HasGroup reports whether the sheet has a row for the given group id.
func (d *SheetData) HasGroup(id string) bool {
	_, ok := d.RowOf(id)
	return ok
}

// SortKey exposes the configured group sort key.
func (d *SheetData) SortKey(id string) string {
	return d.cfg.sortKey(id)
}

// MockDeleteGroups rewrites the cached structure to reflect a just-issued
// deletion of all group rows, leaving a single empty placeholder row at the
// old range start. This keeps the in-memory model consistent for writes
// queued in the same batch without a backend round trip.
func (d *SheetData) MockDeleteGroups() {
	start := d.GroupRange[0]

	var rows []*sheets.RowData
	// The grid rows may alias backend response structures shared with other
	// cached views, so the retained rows are deep-copied before splicing.
	if err := deepcopy.Copy(&rows, d.Grid.Rows); err != nil {
		rows = append([]*sheets.RowData(nil), d.Grid.Rows...)
	}
	spliced := append(rows[:start:start], &sheets.RowData{})
	spliced = append(spliced, rows[d.GroupRange[1]:]...)
	d.Grid = models.Grid{Rows: spliced}

	d.GroupRows = map[int]string{}
	d.GroupRange = [2]int{start, start + 1}
	d.Placeholder = true
}
