package gradesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/models"
)

// Backend is the spreadsheet service surface the grading sheets consume. The
// production implementation talks to the Google Sheets API; tests supply an
// in-memory one. Batches are assumed to apply transactionally and in order.
type Backend interface {
	// SheetProperties lists the properties of every worksheet in the
	// document, in document order.
	SheetProperties(ctx context.Context, spreadsheetID string) ([]*sheets.SheetProperties, error)
	// Grid returns the cell data of the worksheet with the given title, or a
	// *SheetMissingError when no such worksheet exists.
	Grid(ctx context.Context, spreadsheetID, title string) (models.Grid, error)
	// BatchUpdate applies the requests as one atomic batch and returns the
	// per-request replies.
	BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error)
	// CopySheetTo copies a worksheet into another spreadsheet document and
	// returns the properties of the copy.
	CopySheetTo(ctx context.Context, spreadsheetID string, sheetID int64, dstSpreadsheetID string) (*sheets.SheetProperties, error)
}

// gridFields restricts worksheet reads to what the parser and the subdata
// check consume. userEnteredFormat is needed so repeated writes of linked
// values stay no-ops.
const gridFields = "sheets(properties(sheetId,title,index)," +
	"data(rowData(values(userEnteredValue,formattedValue,userEnteredFormat))))"

// GoogleBackend implements Backend on the Google Sheets API v4.
type GoogleBackend struct {
	svc *sheets.Service
}

// NewGoogleBackend builds a backend from client options. Without options,
// application default credentials with the spreadsheets scope are used.
func NewGoogleBackend(ctx context.Context, opts ...option.ClientOption) (*GoogleBackend, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise Sheets service: %w", err)
	}
	return &GoogleBackend{svc: svc}, nil
}

func (g *GoogleBackend) SheetProperties(ctx context.Context, spreadsheetID string) ([]*sheets.SheetProperties, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Fields(googleapi.Field("sheets(properties(sheetId,title,index))")).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	props := make([]*sheets.SheetProperties, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		props = append(props, s.Properties)
	}
	return props, nil
}

func (g *GoogleBackend) Grid(ctx context.Context, spreadsheetID, title string) (models.Grid, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Ranges(rangeForSheet(title)).
		Fields(googleapi.Field(gridFields)).
		Context(ctx).Do()
	if err != nil {
		var gErr *googleapi.Error
		// The API rejects a range naming an absent worksheet as a bad
		// request rather than a not-found, but a bad request can also mean
		// a genuinely malformed range. Probe the worksheet listing: only
		// when the title is really absent is this a missing worksheet.
		if errors.As(err, &gErr) && gErr.Code == 400 && !g.sheetExists(ctx, spreadsheetID, title) {
			return models.Grid{}, &SheetMissingError{Spreadsheet: spreadsheetID, Title: title}
		}
		return models.Grid{}, err
	}
	if len(resp.Sheets) == 0 {
		return models.Grid{}, &SheetMissingError{Spreadsheet: spreadsheetID, Title: title}
	}
	sheet := resp.Sheets[0]
	if len(sheet.Data) == 0 {
		return models.Grid{}, nil
	}
	return models.GridFrom(sheet.Data[0]), nil
}

func (g *GoogleBackend) BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return g.svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
}

func (g *GoogleBackend) CopySheetTo(ctx context.Context, spreadsheetID string, sheetID int64, dstSpreadsheetID string) (*sheets.SheetProperties, error) {
	return g.svc.Spreadsheets.Sheets.CopyTo(spreadsheetID, sheetID, &sheets.CopySheetToAnotherSpreadsheetRequest{
		DestinationSpreadsheetId: dstSpreadsheetID,
	}).Context(ctx).Do()
}

// sheetExists reports whether the document's worksheet listing carries the
// title. A failing probe counts as existing so the caller surfaces the
// original error instead of a fabricated absence.
func (g *GoogleBackend) sheetExists(ctx context.Context, spreadsheetID, title string) bool {
	props, err := g.SheetProperties(ctx, spreadsheetID)
	if err != nil {
		return true
	}
	for _, p := range props {
		if p.Title == title {
			return true
		}
	}
	return false
}

// rangeForSheet names a whole worksheet in A1 notation. The title is always
// quoted: an unquoted title like "A1" or "2024" would read as a cell
// reference in the range grammar, and ':' would read as a range separator.
func rangeForSheet(title string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(title, "'", "''"))
}
