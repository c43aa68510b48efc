package gradesheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
)

// fakeBackend interprets the request subset the library emits against
// in-memory grids, close enough to the real backend for the batch semantics
// under test: atomic in-order application, formatting inheritance on
// dimension inserts, field-mask writes.
type fakeBackend struct {
	docs   map[string][]*fakeSheet
	nextID int64

	batches int // BatchUpdate calls served
}

type fakeSheet struct {
	id    int64
	title string
	rows  []*sheets.RowData
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: map[string][]*fakeSheet{}, nextID: 1000}
}

func (f *fakeBackend) addSheet(doc, title string, rows []*sheets.RowData) *fakeSheet {
	f.nextID++
	s := &fakeSheet{id: f.nextID, title: title, rows: rows}
	f.docs[doc] = append(f.docs[doc], s)
	return s
}

func (f *fakeBackend) sheetByID(doc string, id int64) (*fakeSheet, error) {
	for _, s := range f.docs[doc] {
		if s.id == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("fake: document %s has no sheet id %d", doc, id)
}

func (f *fakeBackend) SheetProperties(_ context.Context, doc string) ([]*sheets.SheetProperties, error) {
	var props []*sheets.SheetProperties
	for i, s := range f.docs[doc] {
		props = append(props, &sheets.SheetProperties{SheetId: s.id, Title: s.title, Index: int64(i)})
	}
	return props, nil
}

func (f *fakeBackend) Grid(_ context.Context, doc, title string) (models.Grid, error) {
	for _, s := range f.docs[doc] {
		if s.title == title {
			var rows []*sheets.RowData
			if err := deepcopy.Copy(&rows, s.rows); err != nil {
				return models.Grid{}, err
			}
			return models.Grid{Rows: rows}, nil
		}
	}
	return models.Grid{}, &SheetMissingError{Spreadsheet: doc, Title: title}
}

func (f *fakeBackend) BatchUpdate(_ context.Context, doc string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	f.batches++
	resp := &sheets.BatchUpdateSpreadsheetResponse{}
	for _, req := range requests {
		reply, err := f.apply(doc, req)
		if err != nil {
			return nil, err
		}
		resp.Replies = append(resp.Replies, reply)
	}
	return resp, nil
}

func (f *fakeBackend) CopySheetTo(_ context.Context, doc string, sheetID int64, dstDoc string) (*sheets.SheetProperties, error) {
	src, err := f.sheetByID(doc, sheetID)
	if err != nil {
		return nil, err
	}
	var rows []*sheets.RowData
	if err := deepcopy.Copy(&rows, src.rows); err != nil {
		return nil, err
	}
	copied := f.addSheet(dstDoc, "Copy of "+src.title, rows)
	return &sheets.SheetProperties{SheetId: copied.id, Title: copied.title, Index: int64(len(f.docs[dstDoc]) - 1)}, nil
}

func (f *fakeBackend) apply(doc string, req *sheets.Request) (*sheets.Response, error) {
	switch {
	case req.InsertDimension != nil:
		return &sheets.Response{}, f.insertDimension(doc, req.InsertDimension)
	case req.DeleteDimension != nil:
		return &sheets.Response{}, f.deleteDimension(doc, req.DeleteDimension)
	case req.UpdateCells != nil:
		return &sheets.Response{}, f.updateCells(doc, req.UpdateCells)
	case req.CopyPaste != nil:
		return &sheets.Response{}, f.copyPaste(doc, req.CopyPaste)
	case req.DuplicateSheet != nil:
		return f.duplicateSheet(doc, req.DuplicateSheet)
	case req.DeleteSheet != nil:
		return &sheets.Response{}, f.deleteSheet(doc, req.DeleteSheet)
	case req.UpdateSheetProperties != nil:
		return &sheets.Response{}, f.updateSheetProperties(doc, req.UpdateSheetProperties)
	}
	return nil, fmt.Errorf("fake: unsupported request %+v", req)
}

func formatOf(row *sheets.RowData, col int) *sheets.CellFormat {
	if row == nil || col < 0 || col >= len(row.Values) || row.Values[col] == nil ||
		row.Values[col].UserEnteredFormat == nil {
		return nil
	}
	var format *sheets.CellFormat
	if err := deepcopy.Copy(&format, row.Values[col].UserEnteredFormat); err != nil {
		return nil
	}
	return format
}

func (f *fakeBackend) insertDimension(doc string, req *sheets.InsertDimensionRequest) error {
	s, err := f.sheetByID(doc, req.Range.SheetId)
	if err != nil {
		return err
	}
	start, end := int(req.Range.StartIndex), int(req.Range.EndIndex)
	count := end - start

	if req.Range.Dimension == "ROWS" {
		tmplRow := start // inherit from the row currently at the insert point
		if req.InheritFromBefore {
			tmplRow = start - 1
		}
		var tmpl *sheets.RowData
		if tmplRow >= 0 && tmplRow < len(s.rows) {
			tmpl = s.rows[tmplRow]
		}
		width := 0
		if tmpl != nil {
			width = len(tmpl.Values)
		}
		fresh := make([]*sheets.RowData, count)
		for i := range fresh {
			rd := &sheets.RowData{}
			for c := 0; c < width; c++ {
				rd.Values = append(rd.Values, &sheets.CellData{UserEnteredFormat: formatOf(tmpl, c)})
			}
			fresh[i] = rd
		}
		s.rows = append(s.rows[:start:start], append(fresh, s.rows[start:]...)...)
		return nil
	}

	// COLUMNS
	tmplCol := start
	if req.InheritFromBefore {
		tmplCol = start - 1
	}
	for _, row := range s.rows {
		if row == nil || start > len(row.Values) {
			continue
		}
		fresh := make([]*sheets.CellData, count)
		for i := range fresh {
			fresh[i] = &sheets.CellData{UserEnteredFormat: formatOf(row, tmplCol)}
		}
		row.Values = append(row.Values[:start:start], append(fresh, row.Values[start:]...)...)
	}
	return nil
}

func (f *fakeBackend) deleteDimension(doc string, req *sheets.DeleteDimensionRequest) error {
	s, err := f.sheetByID(doc, req.Range.SheetId)
	if err != nil {
		return err
	}
	if req.Range.Dimension != "ROWS" {
		return fmt.Errorf("fake: delete dimension %q not supported", req.Range.Dimension)
	}
	start, end := int(req.Range.StartIndex), int(req.Range.EndIndex)
	if end > len(s.rows) {
		end = len(s.rows)
	}
	if start >= end {
		return nil
	}
	s.rows = append(s.rows[:start:start], s.rows[end:]...)
	return nil
}

func (s *fakeSheet) cellAt(row, col int) *sheets.CellData {
	for len(s.rows) <= row {
		s.rows = append(s.rows, &sheets.RowData{})
	}
	if s.rows[row] == nil {
		s.rows[row] = &sheets.RowData{}
	}
	rd := s.rows[row]
	for len(rd.Values) <= col {
		rd.Values = append(rd.Values, &sheets.CellData{})
	}
	if rd.Values[col] == nil {
		rd.Values[col] = &sheets.CellData{}
	}
	return rd.Values[col]
}

func maskHas(fields, field string) bool {
	if fields == "*" {
		return true
	}
	for _, f := range strings.Split(fields, ",") {
		f = strings.TrimSpace(f)
		if f == field || strings.HasPrefix(field, f+".") {
			return true
		}
	}
	return false
}

func applyMasked(dst, src *sheets.CellData, fields string) {
	if maskHas(fields, "userEnteredValue") {
		var v *sheets.ExtendedValue
		if src != nil && src.UserEnteredValue != nil {
			deepcopy.Copy(&v, src.UserEnteredValue)
		}
		dst.UserEnteredValue = v
		dst.FormattedValue = ""
		if v != nil && v.StringValue != nil {
			dst.FormattedValue = *v.StringValue
		}
	}
	if maskHas(fields, "userEnteredFormat.textFormat.link") {
		var link *sheets.Link
		if src != nil && src.UserEnteredFormat != nil && src.UserEnteredFormat.TextFormat != nil &&
			src.UserEnteredFormat.TextFormat.Link != nil {
			deepcopy.Copy(&link, src.UserEnteredFormat.TextFormat.Link)
		}
		if dst.UserEnteredFormat == nil {
			dst.UserEnteredFormat = &sheets.CellFormat{}
		}
		if dst.UserEnteredFormat.TextFormat == nil {
			dst.UserEnteredFormat.TextFormat = &sheets.TextFormat{}
		}
		dst.UserEnteredFormat.TextFormat.Link = link
	}
}

func (f *fakeBackend) updateCells(doc string, req *sheets.UpdateCellsRequest) error {
	switch {
	case req.Start != nil:
		s, err := f.sheetByID(doc, req.Start.SheetId)
		if err != nil {
			return err
		}
		for r, rd := range req.Rows {
			for c, cd := range rd.Values {
				dst := s.cellAt(int(req.Start.RowIndex)+r, int(req.Start.ColumnIndex)+c)
				applyMasked(dst, cd, req.Fields)
			}
		}
		return nil
	case req.Range != nil:
		s, err := f.sheetByID(doc, req.Range.SheetId)
		if err != nil {
			return err
		}
		if len(req.Rows) > 0 {
			return fmt.Errorf("fake: range-form update with rows not supported")
		}
		// No rows: clear the masked fields across the range.
		for r := int(req.Range.StartRowIndex); r < int(req.Range.EndRowIndex); r++ {
			for c := int(req.Range.StartColumnIndex); c < int(req.Range.EndColumnIndex); c++ {
				applyMasked(s.cellAt(r, c), nil, req.Fields)
			}
		}
		return nil
	}
	return fmt.Errorf("fake: update cells without start or range")
}

func (f *fakeBackend) copyPaste(doc string, req *sheets.CopyPasteRequest) error {
	s, err := f.sheetByID(doc, req.Source.SheetId)
	if err != nil {
		return err
	}
	if req.Source.EndRowIndex != 0 || req.Source.StartRowIndex != 0 {
		return fmt.Errorf("fake: only whole-column copy paste supported")
	}
	srcStart := int(req.Source.StartColumnIndex)
	srcEnd := int(req.Source.EndColumnIndex)
	dstStart := int(req.Destination.StartColumnIndex)
	for r := range s.rows {
		for c := srcStart; c < srcEnd; c++ {
			var src *sheets.CellData
			if s.rows[r] != nil && c < len(s.rows[r].Values) {
				src = s.rows[r].Values[c]
			}
			clone := &sheets.CellData{}
			if src != nil {
				if err := deepcopy.Copy(clone, src); err != nil {
					return err
				}
			}
			dst := s.cellAt(r, dstStart+(c-srcStart))
			*dst = *clone
		}
	}
	return nil
}

func (f *fakeBackend) duplicateSheet(doc string, req *sheets.DuplicateSheetRequest) (*sheets.Response, error) {
	src, err := f.sheetByID(doc, req.SourceSheetId)
	if err != nil {
		return nil, err
	}
	var rows []*sheets.RowData
	if err := deepcopy.Copy(&rows, src.rows); err != nil {
		return nil, err
	}
	f.nextID++
	dup := &fakeSheet{id: f.nextID, title: req.NewSheetName, rows: rows}
	idx := int(req.InsertSheetIndex)
	all := f.docs[doc]
	if idx > len(all) {
		idx = len(all)
	}
	f.docs[doc] = append(all[:idx:idx], append([]*fakeSheet{dup}, all[idx:]...)...)
	return &sheets.Response{
		DuplicateSheet: &sheets.DuplicateSheetResponse{
			Properties: &sheets.SheetProperties{SheetId: dup.id, Title: dup.title, Index: int64(idx)},
		},
	}, nil
}

func (f *fakeBackend) deleteSheet(doc string, req *sheets.DeleteSheetRequest) error {
	all := f.docs[doc]
	for i, s := range all {
		if s.id == req.SheetId {
			f.docs[doc] = append(all[:i:i], all[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake: document %s has no sheet id %d", doc, req.SheetId)
}

func (f *fakeBackend) updateSheetProperties(doc string, req *sheets.UpdateSheetPropertiesRequest) error {
	s, err := f.sheetByID(doc, req.Properties.SheetId)
	if err != nil {
		return err
	}
	if maskHas(req.Fields, "title") {
		s.title = req.Properties.Title
	}
	if maskHas(req.Fields, "index") {
		all := f.docs[doc]
		for i, cand := range all {
			if cand.id == s.id {
				all = append(all[:i:i], all[i+1:]...)
				break
			}
		}
		idx := int(req.Properties.Index)
		if idx > len(all) {
			idx = len(all)
		}
		f.docs[doc] = append(all[:idx:idx], append([]*fakeSheet{s}, all[idx:]...)...)
	}
	return nil
}
