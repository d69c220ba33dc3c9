// internal/snapshot/snapshot.go
package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gitsheets/internal/hash"
	"gitsheets/internal/table"
)

// Snapshot is the immutable capture of a table at a point in time.
// Corrections are made by creating a new snapshot, never by editing one.
type Snapshot struct {
	ID           string
	Source       string
	Timestamp    time.Time
	Message      string
	Table        *table.Table
	Hashes       hash.Hashes
	Dependencies []Dependency
}

// Dependency pins a file the table refers to, such as a lookup table or
// rate sheet, by the SHA-256 of its content at snapshot time. Path is
// relative to the repository root unless the file lives outside it.
type Dependency struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Summary is the index entry kept for every stored snapshot.
type Summary struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Source    string    `json:"source"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Rows      int       `json:"rows"`
	Depends   int       `json:"depends,omitempty"`
	Columns   int       `json:"columns"`
	TableHash string    `json:"table_hash"`
}

func (s *Summary) GetID() string { return s.ID }

// New computes hashes and id for t. Timestamps are kept at second precision
// so the stored RFC3339 form round-trips exactly.
func New(source string, t *table.Table, message string, now time.Time) *Snapshot {
	ts := now.UTC().Truncate(time.Second)
	hashes := hash.Compute(t)
	return &Snapshot{
		ID:        NewID(ts, hashes.TableHash),
		Source:    SourceName(source),
		Timestamp: ts,
		Message:   message,
		Table:     t,
		Hashes:    hashes,
	}
}

// NewID joins the creation time with a short token of the content hash.
func NewID(ts time.Time, tableHash string) string {
	return fmt.Sprintf("%d-%s", ts.Unix(), hash.Digest(tableHash).Short())
}

func (s *Snapshot) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Source:    s.Source,
		Key:       Key(s.Source, s.ID),
		Timestamp: s.Timestamp,
		Message:   s.Message,
		Rows:      s.Table.RowCount(),
		Depends:   len(s.Dependencies),
		Columns:   s.Table.ColumnCount(),
		TableHash: s.Hashes.TableHash,
	}
}

const recordExt = ".toml"

// Key maps a source name and snapshot id to a storage key. Storage layout
// decisions live here and nowhere else.
func Key(source, id string) string {
	return SourceName(source) + "_" + id + recordExt
}

// SourceName reduces a source file path to the stem used in storage keys.
func SourceName(source string) string {
	base := filepath.Base(source)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "table"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
