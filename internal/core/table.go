package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Column is a named, ordered sequence of text cells.
type Column struct {
	Name  string
	Cells []string
}

// Table is a column-oriented sheet where every cell is text.
// Cells in the same position across columns form a row; row positions are
// zero-based and stable across cleaning.
type Table struct {
	Columns []Column
}

// NewTable builds a Table from a header row and data rows as produced by a
// spreadsheet reader. Column names are trimmed, and cells missing from short
// rows are treated as empty. Cells beyond the header width are dropped;
// LoadTable widens the header first so uploads never lose cells.
func NewTable(header []string, rows [][]string) Table {
	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{
			Name:  strings.TrimSpace(name),
			Cells: make([]string, len(rows)),
		}
	}

	for r, row := range rows {
		for c := range cols {
			if c < len(row) {
				cols[c].Cells[r] = row[c]
			}
		}
	}

	return Table{Columns: cols}
}

// TextOf coerces an arbitrary cell value to its canonical text form.
// nil becomes the empty string.
func TextOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// NewTableFromValues is NewTable for loosely typed rows; every value goes
// through TextOf exactly once.
func NewTableFromValues(header []string, rows [][]any) Table {
	text := make([][]string, len(rows))
	for r, row := range rows {
		text[r] = make([]string, len(row))
		for c, v := range row {
			text[r][c] = TextOf(v)
		}
	}
	return NewTable(header, text)
}

// RowCount returns the number of data rows.
func (t Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the first column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Cell returns the value at (row, column name).
func (t Table) Cell(row int, name string) (string, bool) {
	col, ok := t.Column(name)
	if !ok || row < 0 || row >= len(col.Cells) {
		return "", false
	}
	return col.Cells[row], true
}

// Row returns the cells of a single row in column order.
func (t Table) Row(i int) []string {
	row := make([]string, len(t.Columns))
	for c, col := range t.Columns {
		if i < len(col.Cells) {
			row[c] = col.Cells[i]
		}
	}
	return row
}

// Rows returns the table in row-major form.
func (t Table) Rows() [][]string {
	n := t.RowCount()
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}
	return rows
}

// Head returns the first n rows in row-major form.
func (t Table) Head(n int) [][]string {
	if count := t.RowCount(); n > count {
		n = count
	}
	if n < 0 {
		n = 0
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = t.Row(i)
	}
	return rows
}

// Equal reports whether two tables have the same columns, in the same
// order, with the same cells.
func (t Table) Equal(other Table) bool {
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i, col := range t.Columns {
		oc := other.Columns[i]
		if col.Name != oc.Name || len(col.Cells) != len(oc.Cells) {
			return false
		}
		for r := range col.Cells {
			if col.Cells[r] != oc.Cells[r] {
				return false
			}
		}
	}
	return true
}
