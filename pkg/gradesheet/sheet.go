package gradesheet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/parser"
)

// Sheet is a lightweight handle on one lab's grading worksheet. It owns no
// durable state beyond a lazily parsed view of the sheet contents, discarded
// whenever a dispatched batch may have changed the layout.
type Sheet struct {
	ss    *Spreadsheet
	lab   int
	cfg   LabConfig
	props *sheets.SheetProperties

	data *parser.SheetData // nil until fetched
	// mocked marks cached data already rewritten to match queued requests
	// (see MockDeleteGroups); a flush then keeps it instead of discarding.
	mocked bool
}

func (s *Sheet) Lab() int { return s.lab }

func (s *Sheet) Title() string { return s.props.Title }

func (s *Sheet) SheetID() int64 { return s.props.SheetId }

// Data returns the parsed view of the worksheet, reading it from the backend
// on first access.
func (s *Sheet) Data(ctx context.Context) (*parser.SheetData, error) {
	if s.data != nil {
		return s.data, nil
	}
	grid, err := s.ss.backend.Grid(ctx, s.ss.cfg.SpreadsheetID, s.Title())
	if err != nil {
		return nil, err
	}
	data, err := parser.Parse(s.Title(), grid, s.cfg.SheetConfig)
	if err != nil {
		return nil, err
	}
	s.data = data
	s.mocked = false
	return data, nil
}

// InvalidateData discards the parsed view. The next access re-reads the
// sheet.
func (s *Sheet) InvalidateData() {
	s.data = nil
	s.mocked = false
}

// RequestsWriteCell builds the requests for writing value at (row, col),
// zero-based. Without force the write is skipped entirely when the new
// representation is subdata of the current cell, so repeated writes of the
// same logical value leave externally applied formatting alone; a non-empty
// cell holding something else is overwritten with a warning. With force
// exactly one request is emitted unconditionally.
func (s *Sheet) RequestsWriteCell(ctx context.Context, row, col int, value models.CellValue, force bool) ([]*sheets.Request, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}
	newData := value.Data()
	if !force {
		old := data.Grid.Cell(row, col)
		if models.Subdata(newData, old) {
			return nil, nil
		}
		if oldText := data.Grid.Text(row, col); oldText != "" {
			s.ss.cfg.log().WithFields(logrus.Fields{
				"sheet": s.Title(),
				"cell":  models.CellName(row, col),
				"old":   oldText,
			}).Warn("overwriting non-empty cell")
		}
	}
	return []*sheets.Request{{
		UpdateCells: &sheets.UpdateCellsRequest{
			Start: &sheets.GridCoordinate{
				SheetId:     s.SheetID(),
				RowIndex:    int64(row),
				ColumnIndex: int64(col),
			},
			Rows:   []*sheets.RowData{{Values: []*sheets.CellData{newData}}},
			Fields: value.FieldMask(),
		},
	}}, nil
}

// insertion is one contiguous multi-row insert: all ids going to the same
// pre-insertion row with the same formatting inheritance, in sort order.
type insertion struct {
	row           int
	inheritBefore bool
	ids           []string
}

// RequestsInsertGroups ensures a row exists for each of the given group ids,
// ignoring ids that already have one. New rows are placed by bisecting the
// existing groups' sort keys so newly inserted ids end up sorted relative to
// each other; existing row order is preserved as is. Each row inherits
// formatting from its neighbour and gets its group id cell written, with a
// hyperlink when link returns one. The parsed view is stale once the batch is
// flushed.
func (s *Sheet) RequestsInsertGroups(ctx context.Context, ids []string, link func(id string) string) ([]*sheets.Request, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}

	var fresh []string
	for _, id := range ids {
		if !data.HasGroup(id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	sort.Slice(fresh, func(i, j int) bool {
		return data.SortKey(fresh[i]) < data.SortKey(fresh[j])
	})

	var inserts []*insertion
	placeholder := data.Placeholder
	if placeholder {
		// No group rows yet: everything goes to the placeholder start,
		// inheriting the placeholder rows' formatting from below.
		inserts = []*insertion{{row: data.GroupRange[0], inheritBefore: false, ids: fresh}}
	} else {
		existing := data.GroupRowsInOrder()
		keys := make([]string, len(existing))
		for i, g := range existing {
			keys[i] = data.SortKey(g.ID)
		}
		byTarget := make(map[int]*insertion)
		for _, id := range fresh {
			key := data.SortKey(id)
			i := sort.Search(len(keys), func(i int) bool { return keys[i] > key })
			var row int
			var inheritBefore bool
			if i < len(existing) {
				row, inheritBefore = existing[i].Row, false
			} else {
				row, inheritBefore = data.GroupRange[1], true
			}
			ins, ok := byTarget[row]
			if !ok {
				ins = &insertion{row: row, inheritBefore: inheritBefore}
				byTarget[row] = ins
				inserts = append(inserts, ins)
			}
			// fresh is in sort order, so ids stay sorted per insertion
			ins.ids = append(ins.ids, id)
		}
		sort.Slice(inserts, func(i, j int) bool { return inserts[i].row < inserts[j].row })
	}

	// Fold over the insertions in target order, carrying the count of rows
	// already scheduled before each one.
	var reqs []*sheets.Request
	offset := 0
	for _, ins := range inserts {
		start := ins.row + offset
		reqs = append(reqs, requestInsertRows(s.SheetID(), start, len(ins.ids), ins.inheritBefore))
		for j, id := range ins.ids {
			value := models.String(s.cfg.GroupCoding.Print(id))
			if link != nil {
				if uri := link(id); uri != "" {
					value = value.WithLink(uri)
				}
			}
			reqs = append(reqs, &sheets.Request{
				UpdateCells: &sheets.UpdateCellsRequest{
					Start: &sheets.GridCoordinate{
						SheetId:     s.SheetID(),
						RowIndex:    int64(start + j),
						ColumnIndex: int64(data.Columns.Group),
					},
					Rows:   []*sheets.RowData{{Values: []*sheets.CellData{value.Data()}}},
					Fields: value.FieldMask(),
				},
			})
		}
		offset += len(ins.ids)
	}

	if placeholder {
		// The placeholder rows only existed to park formatting; once real
		// group rows are in, drop them. They sit right below the insertion.
		start := data.GroupRange[0] + len(fresh)
		end := start + (data.GroupRange[1] - data.GroupRange[0])
		reqs = append(reqs, requestDeleteRows(s.SheetID(), start, end))
	}
	return reqs, nil
}

// RequestsDeleteGroups deletes the whole group range. Unless the range is
// already a single empty placeholder row, a fresh empty row is inserted
// first so future insertions still find formatting to inherit, then the
// original range, shifted by that row, is deleted. The cached view is
// rewritten locally instead of re-read.
func (s *Sheet) RequestsDeleteGroups(ctx context.Context) ([]*sheets.Request, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}
	r0, r1 := data.GroupRange[0], data.GroupRange[1]
	var reqs []*sheets.Request
	if !(data.Placeholder && r1-r0 == 1) {
		reqs = append(reqs,
			requestInsertRows(s.SheetID(), r0, 1, false),
			requestDeleteRows(s.SheetID(), r0+1, r1+1),
		)
	}
	data.MockDeleteGroups()
	s.mocked = true
	return reqs, nil
}

// RequestsAddQueryColumnGroup appends a new query column group by duplicating
// the columns of the last existing one right after it (carrying formatting
// over), writing the next index's headers, and clearing the duplicated group
// rows so the new columns start without data.
func (s *Sheet) RequestsAddQueryColumnGroup(ctx context.Context) ([]*sheets.Request, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}
	groups := data.Columns.QueryGroups
	last := groups[len(groups)-1]
	src := last.Submission // triple occupies [src, src+3)
	dst := src + 3
	index := len(groups)

	reqs := []*sheets.Request{
		requestInsertColumns(s.SheetID(), dst, 3, true),
		{CopyPaste: &sheets.CopyPasteRequest{
			Source: &sheets.GridRange{
				SheetId:          s.SheetID(),
				StartColumnIndex: int64(src),
				EndColumnIndex:   int64(dst),
			},
			Destination: &sheets.GridRange{
				SheetId:          s.SheetID(),
				StartColumnIndex: int64(dst),
				EndColumnIndex:   int64(dst + 3),
			},
			PasteType:        "PASTE_NORMAL",
			PasteOrientation: "NORMAL",
		}},
	}
	headers := []models.CellValue{
		models.String(s.cfg.QueryHeader.Print(index)),
		models.String(s.cfg.GraderHeader),
		models.String(s.cfg.ScoreHeader),
	}
	for i, h := range headers {
		reqs = append(reqs, &sheets.Request{
			UpdateCells: &sheets.UpdateCellsRequest{
				Start: &sheets.GridCoordinate{
					SheetId:     s.SheetID(),
					RowIndex:    int64(data.Header),
					ColumnIndex: int64(dst + i),
				},
				Rows:   []*sheets.RowData{{Values: []*sheets.CellData{h.Data()}}},
				Fields: h.FieldMask(),
			},
		})
	}
	// An UpdateCells over a range with no rows clears the masked fields,
	// leaving the pasted formatting in place.
	reqs = append(reqs, &sheets.Request{
		UpdateCells: &sheets.UpdateCellsRequest{
			Range: &sheets.GridRange{
				SheetId:          s.SheetID(),
				StartRowIndex:    int64(data.GroupRange[0]),
				EndRowIndex:      int64(data.GroupRange[1]),
				StartColumnIndex: int64(dst),
				EndColumnIndex:   int64(dst + 3),
			},
			Fields: "userEnteredValue",
		},
	})
	return reqs, nil
}

// EnsureNumQueries adds query column groups until the sheet has at least n of
// them. Each addition is committed on its own: the new columns shift the
// indices the next addition starts from, so the steps cannot share a batch.
func (s *Sheet) EnsureNumQueries(ctx context.Context, n int) error {
	for {
		data, err := s.Data(ctx)
		if err != nil {
			return err
		}
		if len(data.Columns.QueryGroups) >= n {
			return nil
		}
		reqs, err := s.RequestsAddQueryColumnGroup(ctx)
		if err != nil {
			return err
		}
		batch := s.ss.NewBatch()
		batch.Add(s, reqs...)
		if _, err := batch.Flush(ctx); err != nil {
			return err
		}
	}
}

// RequestWriteLastSubmissionDate writes the group's last submission date
// cell.
func (s *Sheet) RequestWriteLastSubmissionDate(ctx context.Context, groupID string, date time.Time) ([]*sheets.Request, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}
	if data.Columns.LastSubmission < 0 {
		return nil, fmt.Errorf("sheet %q has no last submission date column configured", s.Title())
	}
	row, ok := data.RowOf(groupID)
	if !ok {
		return nil, fmt.Errorf("sheet %q has no row for group %q", s.Title(), groupID)
	}
	value := models.String(date.Format("2006-01-02"))
	return s.RequestsWriteCell(ctx, row, data.Columns.LastSubmission, value, false)
}

func requestInsertRows(sheetID int64, start, count int, inheritBefore bool) *sheets.Request {
	return &sheets.Request{
		InsertDimension: &sheets.InsertDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(start),
				EndIndex:   int64(start + count),
			},
			InheritFromBefore: inheritBefore,
		},
	}
}

func requestDeleteRows(sheetID int64, start, end int) *sheets.Request {
	return &sheets.Request{
		DeleteDimension: &sheets.DeleteDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(start),
				EndIndex:   int64(end),
			},
		},
	}
}

func requestInsertColumns(sheetID int64, start, count int, inheritBefore bool) *sheets.Request {
	return &sheets.Request{
		InsertDimension: &sheets.InsertDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: int64(start),
				EndIndex:   int64(start + count),
			},
			InheritFromBefore: inheritBefore,
		},
	}
}
