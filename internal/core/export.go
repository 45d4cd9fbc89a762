package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the worksheet excelize.NewFile creates.
const defaultSheet = "Sheet1"

// WriteWorkbook writes t as a single-sheet .xlsx: header row first, then every
// row in order. Cells are written as text so values round-trip exactly; empty
// cells are left blank.
func WriteWorkbook(w io.Writer, t Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col.Name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows() {
		values := make([]any, len(row))
		for j, v := range row {
			if v != "" {
				values[j] = v
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+HeaderRowOffset, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// changesHeader is the header row of the change report.
var changesHeader = []string{"Row", "Column", "Original", "Cleaned"}

// WriteChangesCSV writes every ledger record, grouped by column in ledger
// order, as CSV.
func WriteChangesCSV(w io.Writer, l ChangeLedger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(changesHeader); err != nil {
		return err
	}
	for _, rec := range l.All() {
		if err := cw.Write([]string{strconv.Itoa(rec.Row), rec.Column, rec.Original, rec.Cleaned}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
