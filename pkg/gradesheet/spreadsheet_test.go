package gradesheet

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/api/sheets/v4"
)

func groupIDs(t *testing.T, s *Sheet) []string {
	t.Helper()
	data, err := s.Data(context.Background())
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	var ids []string
	for _, g := range data.GroupRowsInOrder() {
		ids = append(ids, g.ID)
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSheetMissing(t *testing.T) {
	ctx := context.Background()
	_, ss, _ := newTestSheet(t, labHeader(), []string{""})

	_, err := ss.Sheet(ctx, 2)
	if !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("err = %v, want ErrSheetMissing", err)
	}
	if !errors.Is(err, ErrSheetParse) {
		t.Fatalf("err = %v, want to also match ErrSheetParse", err)
	}
}

func TestDataRejectsDuplicateLabTitles(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("course", "Lab 1", rowsOf(labHeader(), []string{""}))
	f.addSheet("course", "Lab 01", rowsOf(labHeader(), []string{""}))
	ss := New(f, testCourseConfig(t, "course"))

	if _, err := ss.Data(ctx); err == nil {
		t.Fatal("expected error for two worksheets parsing as the same lab")
	}
}

func TestCreateAndSetupGroupsFromTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("course", "Template", rowsOf(labHeader(), []string{""}))
	cfg := testCourseConfig(t, "course")
	cfg.Template = &TemplateRef{Title: "Template"}
	ss := New(f, cfg)

	sheet, err := ss.CreateAndSetupGroups(ctx, 1, []string{"B", "C", "A"}, nil)
	if err != nil {
		t.Fatalf("CreateAndSetupGroups: %v", err)
	}
	if sheet.Title() != "Lab 1" {
		t.Fatalf("title = %q, want Lab 1", sheet.Title())
	}
	if got := groupIDs(t, sheet); !sameIDs(got, []string{"A", "B", "C"}) {
		t.Fatalf("groups = %v, want [A B C]", got)
	}

	// The template itself stays an empty placeholder sheet.
	for _, s := range f.docs["course"] {
		if s.title == "Template" && len(s.rows) != 2 {
			t.Fatalf("template has %d rows, want untouched 2", len(s.rows))
		}
	}

	// Creating the same lab again is refused.
	if _, err := ss.CreateAndSetupGroups(ctx, 1, nil, nil); !errors.Is(err, ErrSheetExists) {
		t.Fatalf("err = %v, want ErrSheetExists", err)
	}
}

func TestCreateFromPrecedingLab(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("course", "Lab 1", rowsOf(labHeader(), []string{"A"}, []string{"B"}))
	ss := New(f, testCourseConfig(t, "course"))

	sheet, err := ss.CreateAndSetupGroups(ctx, 2, []string{"D", "C"}, nil)
	if err != nil {
		t.Fatalf("CreateAndSetupGroups: %v", err)
	}
	if got := groupIDs(t, sheet); !sameIDs(got, []string{"C", "D"}) {
		t.Fatalf("lab 2 groups = %v, want [C D]", got)
	}

	prev, err := ss.Sheet(ctx, 1)
	if err != nil {
		t.Fatalf("Sheet(1): %v", err)
	}
	if got := groupIDs(t, prev); !sameIDs(got, []string{"A", "B"}) {
		t.Fatalf("lab 1 groups = %v, want untouched [A B]", got)
	}

	// The new worksheet sits right after the one it was copied from.
	data, err := ss.Data(ctx)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if data.ByLab[2].Index != data.ByLab[1].Index+1 {
		t.Fatalf("lab 2 at index %d, lab 1 at %d, want adjacent",
			data.ByLab[2].Index, data.ByLab[1].Index)
	}
}

func TestCreateFromCrossDocumentTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("templates", "Master", rowsOf(labHeader(), []string{""}))
	cfg := testCourseConfig(t, "course")
	cfg.Template = &TemplateRef{SpreadsheetID: "templates", Title: "Master"}
	ss := New(f, cfg)

	sheet, err := ss.CreateAndSetupGroups(ctx, 1, []string{"A", "B"}, nil)
	if err != nil {
		t.Fatalf("CreateAndSetupGroups: %v", err)
	}
	if sheet.Title() != "Lab 1" {
		t.Fatalf("title = %q, want Lab 1 (copy renamed)", sheet.Title())
	}
	if got := groupIDs(t, sheet); !sameIDs(got, []string{"A", "B"}) {
		t.Fatalf("groups = %v, want [A B]", got)
	}
	if n := len(f.docs["templates"]); n != 1 {
		t.Fatalf("template document has %d sheets, want untouched 1", n)
	}
}

func TestCreateRollsBackOnSetupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	// The template is missing its grader column, so the duplicate cannot be
	// parsed when the initial groups go in.
	f.addSheet("course", "Template", rowsOf(
		[]string{"Group", "Query #1", "0/1"},
		[]string{""},
	))
	cfg := testCourseConfig(t, "course")
	cfg.Template = &TemplateRef{Title: "Template"}
	ss := New(f, cfg)

	if _, err := ss.CreateAndSetupGroups(ctx, 1, []string{"A"}, nil); !errors.Is(err, ErrSheetParse) {
		t.Fatalf("err = %v, want a parse error", err)
	}
	// The half-created worksheet is gone again.
	if n := len(f.docs["course"]); n != 1 {
		t.Fatalf("document has %d sheets after rollback, want 1", n)
	}
	if _, err := ss.Sheet(ctx, 1); !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("err = %v, want ErrSheetMissing after rollback", err)
	}
}

// renameRejectingBackend fails any batch carrying a sheet-properties update,
// which is the second step of a cross-document worksheet creation.
type renameRejectingBackend struct {
	*fakeBackend
}

func (b renameRejectingBackend) BatchUpdate(ctx context.Context, doc string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	for _, req := range requests {
		if req.UpdateSheetProperties != nil {
			return nil, errors.New("rename rejected")
		}
	}
	return b.fakeBackend.BatchUpdate(ctx, doc, requests)
}

func TestCreateRollsBackFailedRename(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("templates", "Master", rowsOf(labHeader(), []string{""}))
	cfg := testCourseConfig(t, "course")
	cfg.Template = &TemplateRef{SpreadsheetID: "templates", Title: "Master"}
	ss := New(renameRejectingBackend{f}, cfg)

	if _, err := ss.CreateAndSetupGroups(ctx, 1, []string{"A"}, nil); err == nil {
		t.Fatal("expected error when the copied worksheet cannot be renamed")
	}
	// The unrenamed copy must not linger in the course document.
	if n := len(f.docs["course"]); n != 0 {
		var titles []string
		for _, s := range f.docs["course"] {
			titles = append(titles, s.title)
		}
		t.Fatalf("document holds %d sheets %v after failed creation, want 0", n, titles)
	}
	if _, err := ss.Sheet(ctx, 1); !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("err = %v, want ErrSheetMissing after rollback", err)
	}
}

func TestEnsureAndSetupGroupsConverges(t *testing.T) {
	ctx := context.Background()
	f := newFakeBackend()
	f.addSheet("course", "Template", rowsOf(labHeader(), []string{""}))
	cfg := testCourseConfig(t, "course")
	cfg.Template = &TemplateRef{Title: "Template"}
	ss := New(f, cfg)

	sheet, err := ss.EnsureAndSetupGroups(ctx, 1, []string{"A", "B"}, nil, true)
	if err != nil {
		t.Fatalf("EnsureAndSetupGroups: %v", err)
	}
	if got := groupIDs(t, sheet); !sameIDs(got, []string{"A", "B"}) {
		t.Fatalf("groups = %v, want [A B]", got)
	}

	// Re-run with one more group: only the missing row is added.
	sheet, err = ss.EnsureAndSetupGroups(ctx, 1, []string{"A", "B", "C"}, nil, true)
	if err != nil {
		t.Fatalf("EnsureAndSetupGroups again: %v", err)
	}
	sheet.InvalidateData()
	if got := groupIDs(t, sheet); !sameIDs(got, []string{"A", "B", "C"}) {
		t.Fatalf("groups = %v, want [A B C]", got)
	}

	// Without existOK the second call is refused.
	if _, err := ss.EnsureAndSetupGroups(ctx, 1, nil, nil, false); !errors.Is(err, ErrSheetExists) {
		t.Fatalf("err = %v, want ErrSheetExists", err)
	}
}

func TestDeleteLab(t *testing.T) {
	ctx := context.Background()
	_, ss, _ := newTestSheet(t, labHeader(), []string{""})

	if err := ss.Delete(ctx, 1, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ss.Sheet(ctx, 1); !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("err = %v, want ErrSheetMissing after delete", err)
	}
	if err := ss.Delete(ctx, 1, false); !errors.Is(err, ErrSheetMissing) {
		t.Fatalf("err = %v, want ErrSheetMissing", err)
	}
	if err := ss.Delete(ctx, 1, true); err != nil {
		t.Fatalf("Delete with missingOK: %v", err)
	}
}
