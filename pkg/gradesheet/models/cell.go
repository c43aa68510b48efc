// Package models defines the cell-level data model shared by the grading
// sheet parser and writer. The backend wire representation is the Google
// Sheets API v4 schema; CellValue is the small tagged variant the rest of the
// code works with, lowered to *sheets.CellData only at the write boundary.
package models

import (
	"encoding/json"
	"reflect"

	"google.golang.org/api/sheets/v4"
)

// CellKind discriminates the CellValue variant.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellNumber
	CellString
	CellBool
	CellFormula
)

// CellValue is the user-entered content of one cell, plus an optional
// hyperlink applied through the cell's text format.
type CellValue struct {
	Kind   CellKind
	Number float64
	Text   string // string content, or formula text for CellFormula
	Bool   bool
	Link   string // hyperlink URI, empty if none
}

func Empty() CellValue             { return CellValue{Kind: CellEmpty} }
func Number(v float64) CellValue   { return CellValue{Kind: CellNumber, Number: v} }
func String(s string) CellValue    { return CellValue{Kind: CellString, Text: s} }
func Bool(b bool) CellValue        { return CellValue{Kind: CellBool, Bool: b} }
func Formula(expr string) CellValue { return CellValue{Kind: CellFormula, Text: expr} }

// WithLink returns a copy of v carrying a hyperlink.
func (v CellValue) WithLink(uri string) CellValue {
	v.Link = uri
	return v
}

// Data lowers v to the backend cell representation.
func (v CellValue) Data() *sheets.CellData {
	cd := &sheets.CellData{}
	switch v.Kind {
	case CellEmpty:
		// no user-entered value
	case CellNumber:
		n := v.Number
		cd.UserEnteredValue = &sheets.ExtendedValue{NumberValue: &n}
	case CellString:
		s := v.Text
		cd.UserEnteredValue = &sheets.ExtendedValue{StringValue: &s}
	case CellBool:
		b := v.Bool
		cd.UserEnteredValue = &sheets.ExtendedValue{BoolValue: &b}
	case CellFormula:
		f := v.Text
		cd.UserEnteredValue = &sheets.ExtendedValue{FormulaValue: &f}
	}
	if v.Link != "" {
		cd.UserEnteredFormat = &sheets.CellFormat{
			TextFormat: &sheets.TextFormat{
				Link: &sheets.Link{Uri: v.Link},
			},
		}
	}
	return cd
}

// FieldMask is the update mask covering exactly the fields Data sets. Writes
// always carry an explicit mask so untouched formatting survives.
func (v CellValue) FieldMask() string {
	if v.Link != "" {
		return "userEnteredValue,userEnteredFormat.textFormat.link"
	}
	return "userEnteredValue"
}

// Subdata reports whether a's representation is structurally contained in
// b's: every key a defines appears in b with an equal value, while b may
// carry extra keys such as formatting. The relation is reflexive and
// transitive; it is the no-clobber check for cell writes.
func Subdata(a, b *sheets.CellData) bool {
	return contains(cellTree(a), cellTree(b))
}

// cellTree decodes a cell into the generic form of its wire encoding. The
// containment relation is defined over the backend's JSON document, so the
// comparison has to happen there rather than on the Go structs.
func cellTree(cd *sheets.CellData) any {
	if cd == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(cd)
	if err != nil {
		return map[string]any{}
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return map[string]any{}
	}
	if tree == nil {
		return map[string]any{}
	}
	return tree
}

func contains(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !contains(av, bv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
