package snapshot

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"gitsheets/internal/errors"
	"gitsheets/internal/hash"
	"gitsheets/internal/table"

	"github.com/BurntSushi/toml"
)

// record is the persisted TOML form of a snapshot.
type record struct {
	ID           string             `toml:"id"`
	Timestamp    string             `toml:"timestamp"`
	Message      string             `toml:"message"`
	Source       string             `toml:"source"`
	Table        tableRecord        `toml:"table"`
	Hashes       hashRecord         `toml:"hashes"`
	Dependencies []dependencyRecord `toml:"dependencies,omitempty"`
}

type tableRecord struct {
	Headers    []string   `toml:"headers"`
	PrimaryKey []int      `toml:"primary_key"`
	Rows       [][]string `toml:"rows"`
}

type hashRecord struct {
	TableHash    string            `toml:"table_hash"`
	HeaderHashes map[string]string `toml:"header_hashes"`
	RowHashes    []string          `toml:"row_hashes,omitempty"`
}

type dependencyRecord struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
	Hash string `toml:"hash"`
}

// Encode renders s in its persisted form.
func Encode(s *Snapshot) ([]byte, error) {
	rec := record{
		ID:        s.ID,
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		Message:   s.Message,
		Source:    s.Source,
		Table: tableRecord{
			Headers:    s.Table.Headers(),
			PrimaryKey: s.Table.PrimaryKey(),
			Rows:       s.Table.Rows(),
		},
		Hashes: hashRecord{
			TableHash:    s.Hashes.TableHash,
			HeaderHashes: s.Hashes.HeaderHashes,
			RowHashes:    s.Hashes.RowHashes,
		},
	}
	for _, d := range s.Dependencies {
		rec.Dependencies = append(rec.Dependencies, dependencyRecord(d))
	}
	if rec.Table.Headers == nil {
		rec.Table.Headers = []string{}
	}
	if rec.Table.PrimaryKey == nil {
		rec.Table.PrimaryKey = []int{}
	}
	if rec.Hashes.HeaderHashes == nil {
		rec.Hashes.HeaderHashes = map[string]string{}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("encoding snapshot %s: %w", s.ID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a persisted record. Any structural problem is reported as a
// CorruptSnapshot error naming ref. Hash mismatches are not structural and
// are left for verification.
func Decode(data []byte, ref string) (*Snapshot, error) {
	var rec record
	if _, err := toml.Decode(string(data), &rec); err != nil {
		return nil, errors.CorruptSnapshot(ref, err)
	}

	if rec.ID == "" {
		return nil, errors.CorruptSnapshot(ref, fmt.Errorf("missing id"))
	}

	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return nil, errors.CorruptSnapshot(ref, fmt.Errorf("timestamp: %w", err))
	}

	if !validDigest(rec.Hashes.TableHash) {
		return nil, errors.CorruptSnapshot(ref, fmt.Errorf("invalid table_hash %q", rec.Hashes.TableHash))
	}
	for name, h := range rec.Hashes.HeaderHashes {
		if !validDigest(h) {
			return nil, errors.CorruptSnapshot(ref, fmt.Errorf("invalid header hash for %q", name))
		}
	}
	for i, h := range rec.Hashes.RowHashes {
		if !validDigest(h) {
			return nil, errors.CorruptSnapshot(ref, fmt.Errorf("invalid hash for row %d", i))
		}
	}

	var deps []Dependency
	for i, d := range rec.Dependencies {
		if d.Path == "" || !validDigest(d.Hash) {
			return nil, errors.CorruptSnapshot(ref, fmt.Errorf("invalid dependency %d", i))
		}
		deps = append(deps, Dependency(d))
	}

	t, err := table.New(rec.Table.Headers, rec.Table.Rows, rec.Table.PrimaryKey)
	if err != nil {
		return nil, errors.CorruptSnapshot(ref, err)
	}

	headerHashes := rec.Hashes.HeaderHashes
	if headerHashes == nil {
		headerHashes = map[string]string{}
	}

	return &Snapshot{
		ID:        rec.ID,
		Source:    rec.Source,
		Timestamp: ts.UTC(),
		Message:   rec.Message,
		Table:     t,
		Hashes: hash.Hashes{
			TableHash:    rec.Hashes.TableHash,
			HeaderHashes: headerHashes,
			RowHashes:    rec.Hashes.RowHashes,
		},
		Dependencies: deps,
	}, nil
}

func validDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
