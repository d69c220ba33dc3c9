// internal/diff/diff.go
package diff

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"gitsheets/internal/errors"
	"gitsheets/internal/snapshot"
	"gitsheets/internal/table"

	"go.uber.org/zap"
)

// Summary holds aggregate counts. It is always derived from a change list.
type Summary struct {
	RowsAdded      int `json:"rows_added"`
	RowsRemoved    int `json:"rows_removed"`
	RowsModified   int `json:"rows_modified"`
	ColumnsAdded   int `json:"columns_added"`
	ColumnsRemoved int `json:"columns_removed"`
}

func (s Summary) IsZero() bool {
	return s == Summary{}
}

// Diff is the structured, ordered difference between two tables.
type Diff struct {
	FromID  string   `json:"from_id"`
	ToID    string   `json:"to_id"`
	Summary Summary  `json:"summary"`
	Changes []Change `json:"changes"`
}

// Empty reports whether the two tables were identical on shared columns
// and had the same columns.
func (d *Diff) Empty() bool {
	return len(d.Changes) == 0
}

func (d *Diff) UnmarshalJSON(data []byte) error {
	var raw struct {
		FromID  string            `json:"from_id"`
		ToID    string            `json:"to_id"`
		Summary Summary           `json:"summary"`
		Changes []json.RawMessage `json:"changes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	changes := make([]Change, 0, len(raw.Changes))
	for i, r := range raw.Changes {
		c, err := decodeChange(r)
		if err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
		changes = append(changes, c)
	}

	d.FromID, d.ToID, d.Changes = raw.FromID, raw.ToID, changes
	d.Summary = Summarize(changes)
	if d.Summary != raw.Summary {
		return fmt.Errorf("summary %+v does not match changes %+v", raw.Summary, d.Summary)
	}
	return nil
}

// Summarize counts changes. A row with several changed cells counts once.
func Summarize(changes []Change) Summary {
	var s Summary
	modified := make(map[string]bool)
	for _, c := range changes {
		switch c := c.(type) {
		case ColumnAdded:
			s.ColumnsAdded++
		case ColumnRemoved:
			s.ColumnsRemoved++
		case RowAdded:
			s.RowsAdded++
		case RowRemoved:
			s.RowsRemoved++
		case CellChanged:
			if id := c.Row.id(); !modified[id] {
				modified[id] = true
				s.RowsModified++
			}
		default:
			panic(fmt.Sprintf("diff: unhandled change type %T", c))
		}
	}
	return s
}

// Engine compares tables. It holds no state between calls.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a diff engine; a nil logger disables logging.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Compute diffs two tables with a default engine.
func Compute(from, to *table.Table) (*Diff, error) {
	return NewEngine(nil).Diff(from, to)
}

// Snapshots diffs the tables of two snapshots and records their ids.
func (e *Engine) Snapshots(from, to *snapshot.Snapshot) (*Diff, error) {
	d, err := e.Diff(from.Table, to.Table)
	if err != nil {
		return nil, fmt.Errorf("diffing %s against %s: %w", from.ID, to.ID, err)
	}
	d.FromID, d.ToID = from.ID, to.ID
	return d, nil
}

// columnPair is a column present in both tables.
type columnPair struct {
	name     string
	from, to int
}

// Diff compares from against to. Column changes come first, then row
// changes in ascending key (or position) order, cells in column order.
func (e *Engine) Diff(from, to *table.Table) (*Diff, error) {
	changes, shared := alignColumns(from, to)

	var (
		rowChanges []Change
		err        error
	)
	switch {
	case !from.HasPrimaryKey() && !to.HasPrimaryKey():
		rowChanges = diffPositional(from, to, shared)
	default:
		rowChanges, err = diffKeyed(from, to, shared)
		if err != nil {
			return nil, err
		}
	}
	changes = append(changes, rowChanges...)
	if changes == nil {
		changes = []Change{}
	}

	d := &Diff{
		Summary: Summarize(changes),
		Changes: changes,
	}

	e.logger.Debug("tables compared",
		zap.Bool("keyed", from.HasPrimaryKey()),
		zap.Int("changes", len(changes)),
		zap.Int("rows_added", d.Summary.RowsAdded),
		zap.Int("rows_removed", d.Summary.RowsRemoved),
		zap.Int("rows_modified", d.Summary.RowsModified))

	return d, nil
}

// alignColumns pairs headers by name. Repeated names pair by occurrence:
// the n-th "X" in from with the n-th "X" in to.
func alignColumns(from, to *table.Table) ([]Change, []columnPair) {
	var changes []Change
	var shared []columnPair

	toSeen := make(map[string]int)
	for j := 0; j < to.ColumnCount(); j++ {
		name := to.Header(j)
		occ := toSeen[name]
		toSeen[name]++
		if occ >= len(from.ColumnIndex(name)) {
			changes = append(changes, ColumnAdded{Header: name, Index: j})
		}
	}

	fromSeen := make(map[string]int)
	for i := 0; i < from.ColumnCount(); i++ {
		name := from.Header(i)
		occ := fromSeen[name]
		fromSeen[name]++
		toIdx := to.ColumnIndex(name)
		if occ >= len(toIdx) {
			changes = append(changes, ColumnRemoved{Header: name, Index: i})
			continue
		}
		shared = append(shared, columnPair{name: name, from: i, to: toIdx[occ]})
	}

	return changes, shared
}

func compareRow(ref RowRef, from *table.Table, fi int, to *table.Table, ti int, shared []columnPair) []Change {
	var changes []Change
	for _, p := range shared {
		oldV, _ := from.Cell(fi, p.from)
		newV, _ := to.Cell(ti, p.to)
		if oldV != newV {
			changes = append(changes, CellChanged{
				Row:         ref,
				Column:      p.name,
				ColumnIndex: p.from,
				Old:         oldV,
				New:         newV,
			})
		}
	}
	return changes
}

// diffPositional matches row i against row i. An insertion shifts every
// later row, so prefer a primary key when row identity matters.
func diffPositional(from, to *table.Table, shared []columnPair) []Change {
	var changes []Change
	n := max(from.RowCount(), to.RowCount())
	for i := 0; i < n; i++ {
		switch {
		case i >= from.RowCount():
			changes = append(changes, RowAdded{Row: RowRef{Index: i}, Values: to.Row(i)})
		case i >= to.RowCount():
			changes = append(changes, RowRemoved{Row: RowRef{Index: i}, Values: from.Row(i)})
		default:
			changes = append(changes, compareRow(RowRef{Index: i}, from, i, to, i, shared)...)
		}
	}
	return changes
}

// checkKeys requires both tables to be keyed on the same named columns and
// those columns to be shared.
func checkKeys(from, to *table.Table, shared []columnPair) error {
	fromKey, toKey := from.KeyColumns(), to.KeyColumns()
	if !from.HasPrimaryKey() || !to.HasPrimaryKey() || !slices.Equal(fromKey, toKey) {
		return errors.KeyMismatch(fromKey, toKey)
	}

	fromPK, toPK := from.PrimaryKey(), to.PrimaryKey()
	for k := range fromPK {
		paired := false
		for _, p := range shared {
			if p.from == fromPK[k] && p.to == toPK[k] {
				paired = true
				break
			}
		}
		if !paired {
			return errors.KeyMismatch(fromKey, toKey)
		}
	}
	return nil
}

// uniqueKeys fails on the first key (in row order) carried by several rows.
func uniqueKeys(t *table.Table, side string) error {
	index := t.KeyIndex()
	for i := 0; i < t.RowCount(); i++ {
		if rows := index[t.RowKey(i).Encode()]; len(rows) > 1 {
			return errors.AmbiguousKey(t.RowKey(i), side, rows)
		}
	}
	return nil
}

type keyedEntry struct {
	key     table.Key
	changes []Change
}

func diffKeyed(from, to *table.Table, shared []columnPair) ([]Change, error) {
	if err := checkKeys(from, to, shared); err != nil {
		return nil, err
	}
	if err := uniqueKeys(from, "from"); err != nil {
		return nil, err
	}
	if err := uniqueKeys(to, "to"); err != nil {
		return nil, err
	}

	fromIndex, toIndex := from.KeyIndex(), to.KeyIndex()
	var entries []keyedEntry

	for i := 0; i < from.RowCount(); i++ {
		key := from.RowKey(i)
		match, ok := toIndex[key.Encode()]
		if !ok {
			entries = append(entries, keyedEntry{key, []Change{
				RowRemoved{Row: RowRef{Key: key, Index: i}, Values: from.Row(i)},
			}})
			continue
		}
		if cells := compareRow(RowRef{Key: key, Index: i}, from, i, to, match[0], shared); len(cells) > 0 {
			entries = append(entries, keyedEntry{key, cells})
		}
	}

	for j := 0; j < to.RowCount(); j++ {
		key := to.RowKey(j)
		if _, ok := fromIndex[key.Encode()]; !ok {
			entries = append(entries, keyedEntry{key, []Change{
				RowAdded{Row: RowRef{Key: key, Index: j}, Values: to.Row(j)},
			}})
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].key.Compare(entries[b].key) < 0
	})

	var changes []Change
	for _, e := range entries {
		changes = append(changes, e.changes...)
	}
	return changes, nil
}
