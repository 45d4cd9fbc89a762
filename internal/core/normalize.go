package core

import (
	"encoding/json"
	"strings"
)

// HeaderRowOffset converts a zero-based data row position to the row number a
// spreadsheet viewer shows: one for the header row, one for 1-based numbering.
const HeaderRowOffset = 2

// lineBreaks replaces each line feed and carriage return with a single space.
var lineBreaks = strings.NewReplacer("\n", " ", "\r", " ")

// CleanText applies the cell cleaning rule: line breaks become spaces, then
// leading and trailing whitespace is trimmed. Interior runs of spaces are kept.
func CleanText(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}

// ChangeRecord describes one cell whose cleaned text differs from its original.
type ChangeRecord struct {
	Row      int    `json:"row"`
	Column   string `json:"column"`
	Original string `json:"original"`
	Cleaned  string `json:"cleaned"`
}

// ChangeLedger groups change records by column. Columns keep the order in
// which their first change was found; records within a column are in row
// order. A column without changes has no entry.
//
// The zero value is an empty ledger.
type ChangeLedger struct {
	columns []string
	records map[string][]ChangeRecord
}

func (l *ChangeLedger) add(rec ChangeRecord) {
	if l.records == nil {
		l.records = make(map[string][]ChangeRecord)
	}
	if _, ok := l.records[rec.Column]; !ok {
		l.columns = append(l.columns, rec.Column)
	}
	l.records[rec.Column] = append(l.records[rec.Column], rec)
}

// Columns returns the names of columns that have at least one change.
func (l ChangeLedger) Columns() []string {
	out := make([]string, len(l.columns))
	copy(out, l.columns)
	return out
}

// Records returns the changes recorded for a column.
// ok is false when the column had no changes.
func (l ChangeLedger) Records(column string) (records []ChangeRecord, ok bool) {
	recs, ok := l.records[column]
	if !ok {
		return nil, false
	}
	out := make([]ChangeRecord, len(recs))
	copy(out, recs)
	return out, true
}

// All returns every change record, grouped by column in ledger order.
func (l ChangeLedger) All() []ChangeRecord {
	out := make([]ChangeRecord, 0, l.Len())
	for _, col := range l.columns {
		out = append(out, l.records[col]...)
	}
	return out
}

// Len returns the total number of changed cells.
func (l ChangeLedger) Len() int {
	n := 0
	for _, recs := range l.records {
		n += len(recs)
	}
	return n
}

// Empty reports whether nothing needed cleaning.
func (l ChangeLedger) Empty() bool {
	return len(l.columns) == 0
}

// ColumnChanges is the serialized form of one ledger entry.
type ColumnChanges struct {
	Column  string         `json:"column"`
	Changes []ChangeRecord `json:"changes"`
}

// Entries returns the ledger as an ordered slice.
func (l ChangeLedger) Entries() []ColumnChanges {
	out := make([]ColumnChanges, len(l.columns))
	for i, col := range l.columns {
		out[i] = ColumnChanges{Column: col, Changes: l.records[col]}
	}
	return out
}

// MarshalJSON encodes the ledger as an ordered array of column entries.
func (l ChangeLedger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// UnmarshalJSON rebuilds a ledger from its MarshalJSON form.
func (l *ChangeLedger) UnmarshalJSON(data []byte) error {
	var entries []ColumnChanges
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	*l = ChangeLedger{}
	for _, e := range entries {
		for _, rec := range e.Changes {
			rec.Column = e.Column
			l.add(rec)
		}
	}
	return nil
}

// Normalize cleans every cell of t and records which cells changed.
//
// The input table is not modified; the returned table is a fresh copy with
// the same columns and row count. Normalize performs no I/O and keeps no
// state, so it is safe to call concurrently on independent tables.
func Normalize(t Table) (Table, ChangeLedger) {
	var ledger ChangeLedger
	cleaned := Table{Columns: make([]Column, len(t.Columns))}

	for c, col := range t.Columns {
		out := Column{Name: col.Name, Cells: make([]string, len(col.Cells))}
		for row, original := range col.Cells {
			value := CleanText(original)
			out.Cells[row] = value
			if value != original {
				ledger.add(ChangeRecord{
					Row:      row + HeaderRowOffset,
					Column:   col.Name,
					Original: original,
					Cleaned:  value,
				})
			}
		}
		cleaned.Columns[c] = out
	}

	return cleaned, ledger
}
