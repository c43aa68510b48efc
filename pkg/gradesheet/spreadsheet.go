package gradesheet

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"google.golang.org/api/sheets/v4"

	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/parser"
	"github.com/ukaji3/gradesheet-go/pkg/gradesheet/printparse"
)

// Spreadsheet coordinates the grading worksheets of one course document: it
// maps lab numbers to worksheets, hands out Sheet handles, and creates new
// lab worksheets from a template.
type Spreadsheet struct {
	cfg     Config
	backend Backend

	data *SpreadsheetData // nil until listed
}

// SpreadsheetData is the cached lab-to-worksheet mapping, rebuilt from one
// worksheet listing.
type SpreadsheetData struct {
	// Sheets holds every worksheet in the document, in document order.
	Sheets []*sheets.SheetProperties
	// ByLab maps a lab number to its worksheet. Titles that do not parse
	// under the lab title coding belong to unrelated sheets and are absent.
	ByLab map[int]*sheets.SheetProperties
}

// New builds a coordinator for the configured course spreadsheet.
func New(backend Backend, cfg Config) *Spreadsheet {
	return &Spreadsheet{cfg: cfg, backend: backend}
}

// Config returns the course configuration.
func (ss *Spreadsheet) Config() Config { return ss.cfg }

// Data returns the lab-to-worksheet mapping, listing the document on first
// access. Two worksheets parsing to the same lab is a fatal error.
func (ss *Spreadsheet) Data(ctx context.Context) (*SpreadsheetData, error) {
	if ss.data != nil {
		return ss.data, nil
	}
	props, err := ss.backend.SheetProperties(ctx, ss.cfg.SpreadsheetID)
	if err != nil {
		return nil, err
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Index < props[j].Index })
	byLab := make(map[int]*sheets.SheetProperties)
	for _, p := range props {
		lab, ok := printparse.Attempt(ss.cfg.LabTitle, p.Title)
		if !ok {
			continue
		}
		if prev, dup := byLab[lab]; dup {
			return nil, fmt.Errorf("worksheets %q and %q both parse as lab %d", prev.Title, p.Title, lab)
		}
		byLab[lab] = p
	}
	ss.data = &SpreadsheetData{Sheets: props, ByLab: byLab}
	return ss.data, nil
}

// Invalidate discards the cached worksheet mapping.
func (ss *Spreadsheet) Invalidate() {
	ss.data = nil
}

// Sheet returns the handle for the given lab's worksheet, or a
// *SheetMissingError when it does not exist.
func (ss *Spreadsheet) Sheet(ctx context.Context, lab int) (*Sheet, error) {
	data, err := ss.Data(ctx)
	if err != nil {
		return nil, err
	}
	props, ok := data.ByLab[lab]
	if !ok {
		return nil, &SheetMissingError{
			Spreadsheet: ss.cfg.SpreadsheetID,
			Title:       ss.cfg.LabTitle.Print(lab),
		}
	}
	return &Sheet{ss: ss, lab: lab, cfg: ss.cfg.labConfig(lab), props: props}, nil
}

// precedingLab returns the nearest existing lab below lab, if any.
func (d *SpreadsheetData) precedingLab(lab int) (int, *sheets.SheetProperties, bool) {
	best := 0
	var props *sheets.SheetProperties
	for l, p := range d.ByLab {
		if l < lab && (props == nil || l > best) {
			best, props = l, p
		}
	}
	return best, props, props != nil
}

// CreateAndSetupGroups creates the lab's worksheet from a template and
// inserts the initial group rows, all set up in one batch. With no explicit
// template configured the preceding lab's worksheet is duplicated, and its
// old group rows are cleared under the preceding lab's configuration before
// the new groups go in under the new one. On any failure the half-created
// worksheet is deleted and the error re-raised.
func (ss *Spreadsheet) CreateAndSetupGroups(ctx context.Context, lab int, groupIDs []string, link func(id string) string) (*Sheet, error) {
	data, err := ss.Data(ctx)
	if err != nil {
		return nil, err
	}
	title := ss.cfg.LabTitle.Print(lab)
	if _, ok := data.ByLab[lab]; ok {
		return nil, fmt.Errorf("%w: %q already holds lab %d", ErrSheetExists, title, lab)
	}

	prevLab, prevProps, havePrev := data.precedingLab(lab)
	index := 0
	if havePrev {
		index = int(prevProps.Index) + 1
	}

	tmplSpreadsheet, tmplSheet, err := ss.resolveTemplate(ctx, data, prevProps)
	if err != nil {
		return nil, err
	}
	usePrevConfig := ss.cfg.Template == nil

	newProps, err := ss.createFromTemplate(ctx, tmplSpreadsheet, tmplSheet, title, index)
	if err != nil {
		// A non-nil newProps alongside the error means the worksheet was
		// materialised but not fully set up, e.g. a cross-document copy
		// whose rename failed.
		if newProps != nil {
			ss.rollbackCreated(ctx, newProps.SheetId)
		}
		return nil, err
	}
	ss.Invalidate()

	sheet, err := ss.setupNewSheet(ctx, lab, prevLab, usePrevConfig, newProps, groupIDs, link)
	if err != nil {
		// Leave no partially initialised worksheet behind.
		ss.rollbackCreated(ctx, newProps.SheetId)
		return nil, err
	}
	return sheet, nil
}

// rollbackCreated deletes a worksheet left behind by a failed creation and
// discards the cached worksheet mapping.
func (ss *Spreadsheet) rollbackCreated(ctx context.Context, sheetID int64) {
	if _, err := ss.backend.BatchUpdate(ctx, ss.cfg.SpreadsheetID, []*sheets.Request{{
		DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheetID},
	}}); err != nil {
		ss.cfg.log().WithError(err).Error("rollback of half-created worksheet failed")
	}
	ss.Invalidate()
}

// resolveTemplate picks the template worksheet: the configured one, or the
// preceding lab's worksheet when none is configured.
func (ss *Spreadsheet) resolveTemplate(ctx context.Context, data *SpreadsheetData, prevProps *sheets.SheetProperties) (string, *sheets.SheetProperties, error) {
	if ss.cfg.Template == nil {
		if prevProps == nil {
			return "", nil, fmt.Errorf("no template worksheet: no template configured and no preceding lab worksheet to copy")
		}
		return ss.cfg.SpreadsheetID, prevProps, nil
	}

	tmpl := ss.cfg.Template
	doc := tmpl.SpreadsheetID
	if doc == "" || doc == ss.cfg.SpreadsheetID {
		for _, p := range data.Sheets {
			if p.Title == tmpl.Title {
				return ss.cfg.SpreadsheetID, p, nil
			}
		}
		return "", nil, &SheetMissingError{Spreadsheet: ss.cfg.SpreadsheetID, Title: tmpl.Title}
	}
	props, err := ss.backend.SheetProperties(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	for _, p := range props {
		if p.Title == tmpl.Title {
			return doc, p, nil
		}
	}
	return "", nil, &SheetMissingError{Spreadsheet: doc, Title: tmpl.Title}
}

// createFromTemplate materialises the new worksheet: a same-document
// duplicate in one request, or a cross-document copy followed by a separate
// move and rename.
func (ss *Spreadsheet) createFromTemplate(ctx context.Context, tmplSpreadsheet string, tmplSheet *sheets.SheetProperties, title string, index int) (*sheets.SheetProperties, error) {
	if tmplSpreadsheet == ss.cfg.SpreadsheetID {
		resp, err := ss.backend.BatchUpdate(ctx, ss.cfg.SpreadsheetID, []*sheets.Request{{
			DuplicateSheet: &sheets.DuplicateSheetRequest{
				SourceSheetId:    tmplSheet.SheetId,
				InsertSheetIndex: int64(index),
				NewSheetName:     title,
			},
		}})
		if err != nil {
			return nil, fmt.Errorf("duplicate template worksheet %q: %w", tmplSheet.Title, err)
		}
		if len(resp.Replies) == 0 || resp.Replies[0].DuplicateSheet == nil {
			return nil, fmt.Errorf("duplicate template worksheet %q: backend returned no new sheet", tmplSheet.Title)
		}
		return resp.Replies[0].DuplicateSheet.Properties, nil
	}

	copied, err := ss.backend.CopySheetTo(ctx, tmplSpreadsheet, tmplSheet.SheetId, ss.cfg.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("copy template worksheet %q: %w", tmplSheet.Title, err)
	}
	props := &sheets.SheetProperties{
		SheetId: copied.SheetId,
		Title:   title,
		Index:   int64(index),
	}
	if _, err := ss.backend.BatchUpdate(ctx, ss.cfg.SpreadsheetID, []*sheets.Request{{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: props,
			Fields:     "title,index",
		},
	}}); err != nil {
		// Returning the copy's properties with the error lets the caller
		// delete the stray copy.
		return props, fmt.Errorf("rename copied worksheet: %w", err)
	}
	return props, nil
}

// setupNewSheet queues group-range cleanup (when the template was a previous
// lab's sheet) and initial group insertion as one atomic batch.
func (ss *Spreadsheet) setupNewSheet(ctx context.Context, lab, prevLab int, usePrevConfig bool, props *sheets.SheetProperties, groupIDs []string, link func(id string) string) (*Sheet, error) {
	sheetProps := &sheets.SheetProperties{
		SheetId: props.SheetId,
		Title:   ss.cfg.LabTitle.Print(lab),
		Index:   props.Index,
	}
	sheet := &Sheet{ss: ss, lab: lab, cfg: ss.cfg.labConfig(lab), props: sheetProps}
	batch := ss.NewBatch()

	if usePrevConfig {
		// The duplicate still carries the previous lab's group rows, coded
		// under that lab's configuration; clear them before the new lab's
		// groups go in.
		prevView := &Sheet{ss: ss, lab: prevLab, cfg: ss.cfg.labConfig(prevLab), props: sheetProps}
		reqs, err := prevView.RequestsDeleteGroups(ctx)
		if err != nil {
			return nil, err
		}
		batch.Add(prevView, reqs...)
		// Hand the mocked post-deletion grid to the new handle so group
		// insertion in the same batch sees the cleared sheet.
		reparsed, err := parser.Parse(sheet.Title(), prevView.data.Grid, sheet.cfg.SheetConfig)
		if err != nil {
			return nil, err
		}
		sheet.data = reparsed
	}

	if len(groupIDs) > 0 {
		reqs, err := sheet.RequestsInsertGroups(ctx, groupIDs, link)
		if err != nil {
			return nil, err
		}
		batch.Add(sheet, reqs...)
	}
	if _, err := batch.Flush(ctx); err != nil {
		return nil, err
	}
	sheet.InvalidateData()
	return sheet, nil
}

// EnsureAndSetupGroups returns the lab's sheet with rows for all the given
// groups, creating the worksheet when absent. The call converges under
// retries: groups already present are left alone.
func (ss *Spreadsheet) EnsureAndSetupGroups(ctx context.Context, lab int, groupIDs []string, link func(id string) string, existOK bool) (*Sheet, error) {
	sheet, err := ss.Sheet(ctx, lab)
	if errors.Is(err, ErrSheetMissing) {
		return ss.CreateAndSetupGroups(ctx, lab, groupIDs, link)
	}
	if err != nil {
		return nil, err
	}
	if !existOK {
		return nil, fmt.Errorf("%w: %q already holds lab %d", ErrSheetExists, sheet.Title(), lab)
	}
	reqs, err := sheet.RequestsInsertGroups(ctx, groupIDs, link)
	if err != nil {
		return nil, err
	}
	batch := ss.NewBatch()
	batch.Add(sheet, reqs...)
	if _, err := batch.Flush(ctx); err != nil {
		return nil, err
	}
	return sheet, nil
}

// Delete removes the lab's worksheet. A missing worksheet is an error unless
// missingOK.
func (ss *Spreadsheet) Delete(ctx context.Context, lab int, missingOK bool) error {
	sheet, err := ss.Sheet(ctx, lab)
	if errors.Is(err, ErrSheetMissing) && missingOK {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := ss.backend.BatchUpdate(ctx, ss.cfg.SpreadsheetID, []*sheets.Request{{
		DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheet.SheetID()},
	}}); err != nil {
		return err
	}
	ss.Invalidate()
	return nil
}
