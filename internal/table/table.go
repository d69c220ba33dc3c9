// internal/table/table.go
package table

import (
	"sync"
	"unicode/utf8"

	"gitsheets/internal/errors"
)

// Table is an immutable grid of string cells with named columns and an
// optional primary key. Positional identity of a column is its index.
type Table struct {
	headers    []string
	rows       [][]string
	primaryKey []int

	indexOnce sync.Once
	index     map[string][]int
}

// New validates and copies the given data into a Table. Every header and
// cell must be valid UTF-8 so the table survives its persisted form.
func New(headers []string, rows [][]string, primaryKey []int) (*Table, error) {
	width := len(headers)

	if col := invalidText(headers); col >= 0 {
		return nil, errors.InvalidText(-1, col)
	}

	t := &Table{
		headers: append([]string(nil), headers...),
		rows:    make([][]string, len(rows)),
	}

	for i, row := range rows {
		if len(row) != width {
			return nil, errors.RowWidth(i, width, len(row))
		}
		if col := invalidText(row); col >= 0 {
			return nil, errors.InvalidText(i, col)
		}
		t.rows[i] = append([]string(nil), row...)
	}

	seen := make(map[int]bool, len(primaryKey))
	for _, col := range primaryKey {
		switch {
		case col < 0 || col >= width:
			return nil, errors.KeyColumn(col, width, "is out of range")
		case seen[col]:
			return nil, errors.KeyColumn(col, width, "is listed twice")
		}
		seen[col] = true
	}
	if len(primaryKey) > 0 {
		t.primaryKey = append([]int(nil), primaryKey...)
	}

	return t, nil
}

func invalidText(values []string) int {
	for i, v := range values {
		if !utf8.ValidString(v) {
			return i
		}
	}
	return -1
}

// FromRecords treats the first record as the header row.
func FromRecords(records [][]string, primaryKey []int) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.Schema("no header row", nil)
	}
	return New(records[0], records[1:], primaryKey)
}

// WithPrimaryKey returns a copy of t keyed on the given columns.
func (t *Table) WithPrimaryKey(primaryKey []int) (*Table, error) {
	return New(t.headers, t.rows, primaryKey)
}

func (t *Table) Headers() []string { return append([]string(nil), t.headers...) }
func (t *Table) PrimaryKey() []int { return append([]int(nil), t.primaryKey...) }
func (t *Table) RowCount() int     { return len(t.rows) }
func (t *Table) ColumnCount() int  { return len(t.headers) }
func (t *Table) HasPrimaryKey() bool {
	return len(t.primaryKey) > 0
}

// Header returns the name of column col.
func (t *Table) Header(col int) string {
	return t.headers[col]
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Rows returns a deep copy of all rows.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Cell returns the value at (row, col).
func (t *Table) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.headers) {
		return "", false
	}
	return t.rows[row][col], true
}

// ColumnIndex returns every position carrying the header name, in order.
func (t *Table) ColumnIndex(name string) []int {
	var idx []int
	for i, h := range t.headers {
		if h == name {
			idx = append(idx, i)
		}
	}
	return idx
}

// Column returns the values of column col in row order.
func (t *Table) Column(col int) []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[col]
	}
	return out
}

// KeyColumns returns the header names of the primary key columns.
func (t *Table) KeyColumns() []string {
	names := make([]string, len(t.primaryKey))
	for i, col := range t.primaryKey {
		names[i] = t.headers[col]
	}
	return names
}

// RowKey returns the primary key tuple of row i, or nil without a key.
func (t *Table) RowKey(i int) Key {
	if len(t.primaryKey) == 0 {
		return nil
	}
	k := make(Key, len(t.primaryKey))
	for j, col := range t.primaryKey {
		k[j] = t.rows[i][col]
	}
	return k
}

// KeyIndex maps the encoded key of every row to the rows carrying it.
// Built on first use. Duplicate keys keep every row index.
func (t *Table) KeyIndex() map[string][]int {
	t.indexOnce.Do(func() {
		if len(t.primaryKey) == 0 {
			return
		}
		t.index = make(map[string][]int, len(t.rows))
		for i := range t.rows {
			enc := t.RowKey(i).Encode()
			t.index[enc] = append(t.index[enc], i)
		}
	})
	return t.index
}
