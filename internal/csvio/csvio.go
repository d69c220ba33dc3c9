// Package csvio reads tracked CSV files into tables.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gitsheets/internal/errors"
	"gitsheets/internal/table"
)

// Read parses r as CSV. The first record is the header row and every cell
// is trimmed of surrounding whitespace. Rows of the wrong width and cells
// that are not UTF-8 are reported by the table model as schema errors.
func Read(r io.Reader, primaryKey []int) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Schema(fmt.Sprintf("parsing csv: %v", err), nil)
	}
	if len(records) == 0 {
		return nil, errors.Schema("csv has no header row", nil)
	}

	for _, rec := range records {
		for i, cell := range rec {
			rec[i] = strings.TrimSpace(cell)
		}
	}
	// A leading byte-order mark belongs to the file, not the first header.
	records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")

	return table.FromRecords(records, primaryKey)
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, primaryKey []int) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f, primaryKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// ReadKeyed reads path and applies a primary-key spec resolved against the
// file's own header row.
func ReadKeyed(path, keySpec string) (*table.Table, error) {
	t, err := ReadFile(path, nil)
	if err != nil || keySpec == "" {
		return t, err
	}
	pk, err := ParsePrimaryKey(keySpec, t.Headers())
	if err != nil {
		return nil, err
	}
	return t.WithPrimaryKey(pk)
}

// ParsePrimaryKey turns a comma-separated list of column indices or header
// names into column indices. A name must identify exactly one column.
func ParsePrimaryKey(spec string, headers []string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var pk []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if n, err := strconv.Atoi(part); err == nil {
			pk = append(pk, n)
			continue
		}

		col := -1
		for i, h := range headers {
			if h != part {
				continue
			}
			if col >= 0 {
				return nil, errors.Schema(fmt.Sprintf("key column %q is not unique", part), nil)
			}
			col = i
		}
		if col < 0 {
			return nil, errors.Schema(fmt.Sprintf("key column %q not found", part), nil)
		}
		pk = append(pk, col)
	}
	return pk, nil
}
