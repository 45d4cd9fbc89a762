package core

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetInfo describes one worksheet of a workbook.
type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"` // data rows, header excluded
	Columns int    `json:"columns"`
}

// PreviewSummary contains the counts a clean would produce.
type PreviewSummary struct {
	TotalRows      int `json:"total_rows"`
	Columns        int `json:"columns"`
	ChangedCells   int `json:"changed_cells"`
	ChangedColumns int `json:"changed_columns"`
}

// PreviewResponse is the result of a read-only upload analysis.
type PreviewResponse struct {
	FileName         string          `json:"file_name"`
	Format           Format          `json:"format"`
	Sheet            string          `json:"sheet,omitempty"`
	Sheets           []SheetInfo     `json:"sheets,omitempty"`
	Columns          []string        `json:"columns"`
	Summary          PreviewSummary  `json:"summary"`
	Samples          []ColumnChanges `json:"samples"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

// maxChangeSamples caps the changes shown per column.
const maxChangeSamples = 5

// Preview analyzes an upload without caching a result or recording history.
// It reports the workbook's sheets and how many cells the selected sheet
// would have cleaned, with a few sample changes per column.
func (s *Service) Preview(ctx context.Context, req CleanRequest) (*PreviewResponse, error) {
	if req.Reader == nil {
		return nil, ErrNoFile
	}

	format, err := DetectFormat(req.FileName)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := s.now()

	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	resp := &PreviewResponse{FileName: req.FileName, Format: format}

	sheet := req.Sheet
	if sheet == "" {
		sheet = s.cfg.Clean.Sheet
	}
	if format == FormatXLSX {
		if resp.Sheets, err = ListSheets(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		if sheet == "" && len(resp.Sheets) > 0 {
			sheet = resp.Sheets[0].Name
		}
		resp.Sheet = sheet
	}

	table, err := LoadTable(bytes.NewReader(data), req.FileName, LoadOptions{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, ledger := Normalize(table)

	resp.Columns = table.ColumnNames()
	resp.Summary = PreviewSummary{
		TotalRows:      table.RowCount(),
		Columns:        len(table.Columns),
		ChangedCells:   ledger.Len(),
		ChangedColumns: len(ledger.Columns()),
	}
	resp.Samples = sampleChanges(ledger, maxChangeSamples)
	resp.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	return resp, nil
}

// sampleChanges keeps the first n changes of each column.
func sampleChanges(ledger ChangeLedger, n int) []ColumnChanges {
	entries := ledger.Entries()
	for i := range entries {
		if len(entries[i].Changes) > n {
			entries[i].Changes = entries[i].Changes[:n]
		}
	}
	return entries
}

// ListSheets returns every worksheet of a workbook in tab order with its
// data row and column counts.
func ListSheets(r io.Reader) ([]SheetInfo, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]SheetInfo, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("invalid spreadsheet: read sheet %q: %w", name, err)
		}

		// Counted the way LoadTable shapes the sheet.
		info := SheetInfo{Name: name}
		if rows = skipBlankRows(rows); len(rows) > 0 {
			info.Rows = len(rows) - 1
			for _, row := range rows {
				info.Columns = max(info.Columns, len(row))
			}
		}
		sheets = append(sheets, info)
	}
	return sheets, nil
}
