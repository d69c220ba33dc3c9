// Package verify recomputes snapshot hashes and reports which of them no
// longer match the stored values. It never modifies a snapshot.
package verify

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sort"

	"gitsheets/internal/errors"
	"gitsheets/internal/hash"
	"gitsheets/internal/snapshot"
)

type Status string

const (
	Intact   Status = "intact"
	Tampered Status = "tampered"
	// Stale means the snapshot itself is intact but a file it pins changed.
	Stale Status = "stale"
)

// Result is the outcome of verifying one snapshot. Mismatched lists
// hash.TableKey first when the whole-table hash disagrees, then header
// names in column order, then stored header hashes naming no column.
// MismatchedRows holds stored row positions whose digest disagrees,
// including stored rows that no longer exist.
type Result struct {
	SnapshotID        string   `json:"snapshot_id"`
	Status            Status   `json:"status"`
	Mismatched        []string `json:"mismatched,omitempty"`
	MismatchedRows    []int    `json:"mismatched_rows,omitempty"`
	StaleDependencies []string `json:"stale_dependencies,omitempty"`
}

func (r Result) Intact() bool { return r.Status == Intact }

// Err returns a Tampered or StaleDependency error for a failed result and
// nil otherwise.
func (r Result) Err() error {
	switch r.Status {
	case Tampered:
		return errors.Tampered(r.SnapshotID, r.Mismatched, r.MismatchedRows)
	case Stale:
		return errors.StaleDependency(r.SnapshotID, r.StaleDependencies)
	}
	return nil
}

// Verify recomputes every hash from the stored table and compares.
func Verify(s *snapshot.Snapshot) Result {
	computed := hash.Compute(s.Table)

	var mismatched []string
	if computed.TableHash != s.Hashes.TableHash {
		mismatched = append(mismatched, hash.TableKey)
	}

	seen := make(map[string]bool, len(computed.HeaderHashes))
	for _, name := range s.Table.Headers() {
		if seen[name] {
			continue
		}
		seen[name] = true
		if stored, ok := s.Hashes.HeaderHashes[name]; !ok || stored != computed.HeaderHashes[name] {
			mismatched = append(mismatched, name)
		}
	}

	var orphans []string
	for name := range s.Hashes.HeaderHashes {
		if !seen[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	mismatched = append(mismatched, orphans...)

	r := Result{SnapshotID: s.ID, Status: Intact}
	if len(mismatched) > 0 {
		r.Mismatched = mismatched
	}
	r.MismatchedRows = mismatchedRows(s.Hashes.RowHashes, computed.RowHashes)
	if len(r.Mismatched) > 0 || len(r.MismatchedRows) > 0 {
		r.Status = Tampered
	}
	return r
}

// mismatchedRows compares row digests position by position. Records
// without stored row digests are not checked.
func mismatchedRows(stored, computed []string) []int {
	if stored == nil {
		return nil
	}
	n := max(len(stored), len(computed))
	var rows []int
	for i := 0; i < n; i++ {
		if i >= len(stored) || i >= len(computed) || stored[i] != computed[i] {
			rows = append(rows, i)
		}
	}
	return rows
}

// StaleDependencies returns the paths of the files s pins whose current
// content no longer matches, in stored order. A missing file is stale.
// Relative paths are resolved against root.
func StaleDependencies(s *snapshot.Snapshot, root string) []string {
	var stale []string
	for _, d := range s.Dependencies {
		path := d.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if got, err := hash.File(path); err != nil || string(got) != d.Hash {
			stale = append(stale, d.Path)
		}
	}
	return stale
}

// Check verifies s and the files it depends on. A tampered snapshot stays
// Tampered whatever its dependencies say.
func Check(s *snapshot.Snapshot, root string) Result {
	r := Verify(s)
	r.StaleDependencies = StaleDependencies(s, root)
	if r.Status == Intact && len(r.StaleDependencies) > 0 {
		r.Status = Stale
	}
	return r
}

// Report is one entry of a store-wide verification.
type Report struct {
	Summary snapshot.Summary `json:"summary"`
	Result  *Result          `json:"result,omitempty"`
	Err     error            `json:"-"`
}

// Failed reports whether the snapshot was unreadable or did not verify.
func (r Report) Failed() bool {
	return r.Err != nil || r.Result == nil || !r.Result.Intact()
}

// Failures joins the error of every failed report, so callers can match
// ErrTampered, ErrStaleDependency or a load error with errors.Is.
func Failures(reports []Report) error {
	var errs []error
	for _, r := range reports {
		switch {
		case r.Err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", r.Summary.ID, r.Err))
		case r.Result != nil:
			if err := r.Result.Err(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}

// All checks every snapshot of source (all sources when empty) in creation
// order, resolving dependency paths against root. Snapshots that cannot be
// loaded are reported with Err set.
func All(store snapshot.Box, source, root string) ([]Report, error) {
	summaries, err := store.List(source)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	reports := make([]Report, 0, len(summaries))
	for _, sum := range summaries {
		rep := Report{Summary: sum}
		snap, err := store.Load(sum.ID)
		if err != nil {
			rep.Err = err
		} else {
			r := Check(snap, root)
			rep.Result = &r
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
