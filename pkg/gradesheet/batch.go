package gradesheet

import (
	"context"

	"google.golang.org/api/sheets/v4"
)

// Batch accumulates update requests from any number of sheet operations and
// submits them as one atomic backend call. Callers collect all writes of one
// update cycle and flush once.
type Batch struct {
	ss       *Spreadsheet
	requests []*sheets.Request
	touched  map[*Sheet]bool
}

// NewBatch starts an empty batch against the spreadsheet.
func (ss *Spreadsheet) NewBatch() *Batch {
	return &Batch{ss: ss, touched: make(map[*Sheet]bool)}
}

// Add appends requests produced for the given sheet. The sheet's parsed view
// is invalidated on flush; pass a nil sheet for document-level requests.
func (b *Batch) Add(s *Sheet, requests ...*sheets.Request) {
	b.requests = append(b.requests, requests...)
	if s != nil {
		b.touched[s] = true
	}
}

// Empty reports whether the batch holds no requests.
func (b *Batch) Empty() bool {
	return len(b.requests) == 0
}

// Flush submits the accumulated requests in one atomic batch and discards
// every touched sheet's parsed view, except views already rewritten locally
// to match the queued requests. Flushing an empty batch is a no-op.
func (b *Batch) Flush(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	if len(b.requests) == 0 {
		return nil, nil
	}
	resp, err := b.ss.backend.BatchUpdate(ctx, b.ss.cfg.SpreadsheetID, b.requests)
	if err != nil {
		return nil, err
	}
	for s := range b.touched {
		if s.mocked {
			s.mocked = false
			continue
		}
		s.InvalidateData()
	}
	b.requests = nil
	b.touched = make(map[*Sheet]bool)
	return resp, nil
}
