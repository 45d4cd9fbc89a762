package core

// loader.go turns an uploaded spreadsheet into a Table.
//
// The first non-blank row of the selected sheet is the header; every
// following row is data. All cells are read as the text a spreadsheet viewer would display, so
// the cleaner never has to reason about cell types.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sentinel errors returned by LoadTable. Their messages match the
// patterns in error_messages.go.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("empty file")
	ErrSheetNotFound     = errors.New("sheet not found")
)

// Format identifies how an upload is parsed.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// LoadOptions controls LoadTable.
type LoadOptions struct {
	// Sheet selects a worksheet by name. Empty means the first sheet.
	// Ignored for CSV.
	Sheet string
}

// DetectFormat maps a file name to a Format by extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// LoadTable parses r according to the extension of fileName.
func LoadTable(r io.Reader, fileName string, opts LoadOptions) (Table, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return Table{}, err
	}

	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readWorkbook(r, opts.Sheet)
	case FormatCSV:
		records, err = readCSV(r)
	}
	if err != nil {
		return Table{}, err
	}

	records = skipBlankRows(records)
	if len(records) == 0 {
		return Table{}, ErrEmptyFile
	}

	// Trailing blank header cells are missing from the first record, so the
	// header is widened to the widest row and the extra columns get
	// positional names.
	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	header := make([]string, width)
	copy(header, records[0])

	return NewTable(headerNames(header), records[1:]), nil
}

// skipBlankRows drops leading records whose cells are all empty.
func skipBlankRows(records [][]string) [][]string {
	for len(records) > 0 && isBlankRow(records[0]) {
		records = records[1:]
	}
	return records
}

func isBlankRow(rec []string) bool {
	for _, cell := range rec {
		if cell != "" {
			return false
		}
	}
	return true
}

// readWorkbook returns the displayed cell text of one worksheet.
func readWorkbook(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// readCSV parses delimited text after normalizing its encoding.
func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(DecodeText(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	return records, nil
}

// headerNames trims header cells, names blank ones "Unnamed: N" and
// suffixes repeats with ".1", ".2", ... so every column name is unique.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	next := make(map[string]int)

	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}

		if used[name] {
			base := name
			for n := max(next[base], 1); ; n++ {
				name = base + "." + strconv.Itoa(n)
				if !used[name] {
					next[base] = n + 1
					break
				}
			}
		}

		used[name] = true
		names[i] = name
	}

	return names
}
