package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestListSheets(t *testing.T) {
	data := workbookBytes(t, []string{"Summary", "Data", "Blank", "Ragged"}, [][][]any{
		{{"Total"}, {10}},
		{{"A", "B", "C"}, {1, 2, 3}, {4, 5, 6}},
		{},
		{{}, {"A"}, {1, 2}},
	})

	sheets, err := ListSheets(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ListSheets: %v", err)
	}

	want := []SheetInfo{
		{Name: "Summary", Rows: 1, Columns: 1},
		{Name: "Data", Rows: 2, Columns: 3},
		{Name: "Blank"},
		{Name: "Ragged", Rows: 1, Columns: 2},
	}
	if len(sheets) != len(want) {
		t.Fatalf("got %d sheets, want %d", len(sheets), len(want))
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Errorf("sheet %d = %+v, want %+v", i, sheets[i], want[i])
		}
	}
}

func TestListSheets_Invalid(t *testing.T) {
	_, err := ListSheets(strings.NewReader("not a workbook"))
	if err == nil || !strings.Contains(err.Error(), "invalid spreadsheet") {
		t.Errorf("err = %v, want invalid spreadsheet", err)
	}
}

func TestService_Preview(t *testing.T) {
	history := &memHistory{}
	svc := NewService(testConfig(), history)

	resp, err := svc.Preview(context.Background(), CleanRequest{FileName: "people.csv", Reader: strings.NewReader(messyCSV)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if resp.Format != FormatCSV || resp.Sheets != nil {
		t.Errorf("Format = %q, Sheets = %v", resp.Format, resp.Sheets)
	}
	want := PreviewSummary{TotalRows: 2, Columns: 3, ChangedCells: 2, ChangedColumns: 2}
	if resp.Summary != want {
		t.Errorf("Summary = %+v, want %+v", resp.Summary, want)
	}
	if len(resp.Samples) != 2 || resp.Samples[0].Column != "Name" {
		t.Errorf("Samples = %+v", resp.Samples)
	}

	if svc.ResultCount() != 0 {
		t.Errorf("preview cached %d results", svc.ResultCount())
	}
	if len(history.runs) != 0 {
		t.Errorf("preview recorded %d runs", len(history.runs))
	}
}

func TestService_PreviewWorkbook(t *testing.T) {
	svc := NewService(testConfig(), nil)
	data := workbookBytes(t, []string{"Cover", "Items"}, [][][]any{
		{{"Report"}},
		{{"SKU", "Label"}, {"A1", " widget "}, {"A2", "gear\nbox"}},
	})

	resp, err := svc.Preview(context.Background(), CleanRequest{FileName: "stock.xlsx", Reader: bytes.NewReader(data), Sheet: "Items"})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if resp.Sheet != "Items" || len(resp.Sheets) != 2 {
		t.Errorf("Sheet = %q, Sheets = %+v", resp.Sheet, resp.Sheets)
	}
	if resp.Summary.ChangedCells != 2 || resp.Summary.ChangedColumns != 1 {
		t.Errorf("Summary = %+v", resp.Summary)
	}

	// Default sheet is the first one.
	resp, err = svc.Preview(context.Background(), CleanRequest{FileName: "stock.xlsx", Reader: bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if resp.Sheet != "Cover" || resp.Summary.TotalRows != 0 {
		t.Errorf("Sheet = %q, TotalRows = %d", resp.Sheet, resp.Summary.TotalRows)
	}
}

func TestService_PreviewErrors(t *testing.T) {
	svc := NewService(testConfig(), nil)

	tests := []struct {
		name string
		req  CleanRequest
		want error
	}{
		{"no reader", CleanRequest{FileName: "a.csv"}, ErrNoFile},
		{"unsupported", CleanRequest{FileName: "a.pdf", Reader: strings.NewReader("x")}, ErrUnsupportedFormat},
		{"empty", CleanRequest{FileName: "a.csv", Reader: strings.NewReader("")}, ErrEmptyFile},
		{"missing sheet", CleanRequest{FileName: "a.xlsx", Reader: bytes.NewReader(workbookBytes(t, []string{"Only"}, [][][]any{{{"x"}}})), Sheet: "Nope"}, ErrSheetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Preview(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSampleChanges(t *testing.T) {
	header := []string{"A"}
	rows := make([][]string, 8)
	for i := range rows {
		rows[i] = []string{" x "}
	}
	_, ledger := Normalize(NewTable(header, rows))

	samples := sampleChanges(ledger, 3)
	if len(samples) != 1 || len(samples[0].Changes) != 3 {
		t.Fatalf("samples = %+v", samples)
	}
	if samples[0].Changes[2].Row != 4 {
		t.Errorf("third sample row = %d, want 4", samples[0].Changes[2].Row)
	}
	if ledger.Len() != 8 {
		t.Errorf("ledger mutated: Len = %d", ledger.Len())
	}
}
