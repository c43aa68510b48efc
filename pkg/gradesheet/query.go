package gradesheet

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/parser"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/printparse"
)

// Query is a transient view of one (group row, query column group) pair. It
// reads through the sheet's parsed data and emits at most one update request
// per write, skipping writes that would not change anything meaningful.
type Query struct {
	sheet *Sheet
	row   int
	cols  parser.QueryColumns
}

// Query returns the view for the given group and query column group index.
func (s *Sheet) Query(ctx context.Context, groupID string, index int) (*Query, error) {
	data, err := s.Data(ctx)
	if err != nil {
		return nil, err
	}
	row, ok := data.RowOf(groupID)
	if !ok {
		return nil, fmt.Errorf("sheet %q has no row for group %q", s.Title(), groupID)
	}
	if index < 0 || index >= len(data.Columns.QueryGroups) {
		return nil, fmt.Errorf("sheet %q has %d query column groups, no index %d",
			s.Title(), len(data.Columns.QueryGroups), index)
	}
	return &Query{sheet: s, row: row, cols: data.Columns.QueryGroups[index]}, nil
}

// Submission returns the submission cell text.
func (q *Query) Submission(ctx context.Context) (string, error) {
	return q.text(ctx, q.cols.Submission)
}

// Grader returns the grader cell text.
func (q *Query) Grader(ctx context.Context) (string, error) {
	return q.text(ctx, q.cols.Grader)
}

// Outcome parses the score cell under the configured outcome coding. The
// second result is false when the cell is empty; a non-empty cell that does
// not parse is an error.
func (q *Query) Outcome(ctx context.Context) (int, bool, error) {
	text, err := q.text(ctx, q.cols.Score)
	if err != nil || text == "" {
		return 0, false, err
	}
	if q.sheet.cfg.OutcomeCoding == nil {
		return 0, false, fmt.Errorf("sheet %q has no outcome coding configured", q.sheet.Title())
	}
	outcome, ok := printparse.Attempt(q.sheet.cfg.OutcomeCoding, text)
	if !ok {
		return 0, false, fmt.Errorf("sheet %q, cell %s: %q is not a valid outcome",
			q.sheet.Title(), models.CellName(q.row, q.cols.Score), text)
	}
	return outcome, true, nil
}

// RequestsWriteSubmission writes the submission cell, linking it when link is
// non-empty.
func (q *Query) RequestsWriteSubmission(ctx context.Context, text, link string) ([]*sheets.Request, error) {
	return q.write(ctx, q.cols.Submission, text, link)
}

// RequestsWriteGrader writes the grader cell.
func (q *Query) RequestsWriteGrader(ctx context.Context, name, link string) ([]*sheets.Request, error) {
	return q.write(ctx, q.cols.Grader, name, link)
}

// RequestsWriteOutcome writes the score cell under the configured outcome
// coding.
func (q *Query) RequestsWriteOutcome(ctx context.Context, outcome int, link string) ([]*sheets.Request, error) {
	if q.sheet.cfg.OutcomeCoding == nil {
		return nil, fmt.Errorf("sheet %q has no outcome coding configured", q.sheet.Title())
	}
	return q.write(ctx, q.cols.Score, q.sheet.cfg.OutcomeCoding.Print(outcome), link)
}

func (q *Query) text(ctx context.Context, col int) (string, error) {
	data, err := q.sheet.Data(ctx)
	if err != nil {
		return "", err
	}
	return data.Grid.Text(q.row, col), nil
}

func (q *Query) write(ctx context.Context, col int, text, link string) ([]*sheets.Request, error) {
	value := models.String(text)
	if link != "" {
		value = value.WithLink(link)
	}
	return q.sheet.RequestsWriteCell(ctx, q.row, col, value, false)
}
