package gradesheet

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Export writes an offline xlsx snapshot of the lab's grading sheet. Only
// displayed cell texts are carried over; the snapshot is a human-readable
// backup of grading state, not a round-trippable copy.
func (ss *Spreadsheet) Export(ctx context.Context, lab int, path string) error {
	sheet, err := ss.Sheet(ctx, lab)
	if err != nil {
		return err
	}
	data, err := sheet.Data(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	name := sheet.Title()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return fmt.Errorf("name export sheet: %w", err)
	}

	for r := 0; r < data.Grid.NumRows(); r++ {
		for c := 0; c < data.Grid.NumColumns(); c++ {
			text := data.Grid.Text(r, c)
			if text == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, text); err != nil {
				return err
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
