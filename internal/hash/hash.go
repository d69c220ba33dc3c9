// internal/hash/hash.go
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"gitsheets/internal/table"
)

// Domain tags keep table and column digests from ever sharing an input.
const (
	tableDomain  = "gitsheets/table/v1"
	columnDomain = "gitsheets/column/v1"
	rowDomain    = "gitsheets/row/v1"
)

// TableKey is the name under which the whole-table digest is reported.
const TableKey = "table"

// Digest is a hex-encoded SHA-256 sum.
type Digest string

func (d Digest) Short() string {
	if len(d) < 8 {
		return string(d)
	}
	return string(d[:8])
}

// Hashes holds the digests stored alongside a snapshot. RowHashes has one
// entry per row in row order and is absent from records written before
// rows were hashed.
type Hashes struct {
	TableHash    string            `json:"table_hash"`
	HeaderHashes map[string]string `json:"header_hashes"`
	RowHashes    []string          `json:"row_hashes,omitempty"`
}

// encoder writes length-prefixed fields so the byte stream is injective.
type encoder struct {
	h   hash.Hash
	buf [binary.MaxVarintLen64]byte
}

func newEncoder(domain string) *encoder {
	e := &encoder{h: sha256.New()}
	e.str(domain)
	return e
}

func (e *encoder) uint(v uint64) {
	n := binary.PutUvarint(e.buf[:], v)
	e.h.Write(e.buf[:n])
}

func (e *encoder) str(s string) {
	e.uint(uint64(len(s)))
	e.h.Write([]byte(s))
}

func (e *encoder) sum() Digest {
	return Digest(hex.EncodeToString(e.h.Sum(nil)))
}

// TableHash digests headers, primary key and every cell in order.
func TableHash(t *table.Table) Digest {
	e := newEncoder(tableDomain)

	headers := t.Headers()
	e.uint(uint64(len(headers)))
	for _, h := range headers {
		e.str(h)
	}

	pk := t.PrimaryKey()
	e.uint(uint64(len(pk)))
	for _, col := range pk {
		e.uint(uint64(col))
	}

	e.uint(uint64(t.RowCount()))
	for i := 0; i < t.RowCount(); i++ {
		for col := 0; col < t.ColumnCount(); col++ {
			v, _ := t.Cell(i, col)
			e.str(v)
		}
	}

	return e.sum()
}

// HeaderHash digests the header name and the values of column col.
func HeaderHash(t *table.Table, col int) Digest {
	return columnsHash(t, t.Header(col), []int{col})
}

// NamedHash digests every column carrying name, in column order. For a
// header that appears once it equals HeaderHash of that column.
func NamedHash(t *table.Table, name string) Digest {
	return columnsHash(t, name, t.ColumnIndex(name))
}

func columnsHash(t *table.Table, name string, cols []int) Digest {
	e := newEncoder(columnDomain)
	e.str(name)
	e.uint(uint64(t.RowCount()))
	for n, col := range cols {
		if n > 0 {
			// Separator between same-named columns.
			e.uint(uint64(t.RowCount()))
		}
		for _, v := range t.Column(col) {
			e.str(v)
		}
	}
	return e.sum()
}

// RowHash digests the cells of row i. Position is not part of the input,
// so identical rows share a digest.
func RowHash(t *table.Table, i int) Digest {
	e := newEncoder(rowDomain)
	row := t.Row(i)
	e.uint(uint64(len(row)))
	for _, v := range row {
		e.str(v)
	}
	return e.sum()
}

// File returns the plain SHA-256 of the file at path, as sha256sum prints it.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Compute returns the table digest, one digest per distinct header name
// and one per row.
func Compute(t *table.Table) Hashes {
	out := Hashes{
		TableHash:    string(TableHash(t)),
		HeaderHashes: make(map[string]string, t.ColumnCount()),
	}
	for _, name := range t.Headers() {
		if _, done := out.HeaderHashes[name]; done {
			continue
		}
		out.HeaderHashes[name] = string(NamedHash(t, name))
	}
	for i := 0; i < t.RowCount(); i++ {
		out.RowHashes = append(out.RowHashes, string(RowHash(t, i)))
	}
	return out
}
