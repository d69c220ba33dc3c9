// Package tabletest generates random tables for property-based tests.
package tabletest

import (
	"fmt"
	"math/rand"

	"gitsheets/internal/table"

	"github.com/leanovate/gopter"
)

var cellAlphabet = []string{"", "a", "b", "ab", "1", "2", "10", "x,y", "\"q\"", " ", "José", "€5", "日本", "a\tb"}

// GenRandomTable builds a table with unique headers. When keyed, column 0
// holds unique integer ids and is the primary key.
func GenRandomTable(rng *rand.Rand, keyed bool) *table.Table {
	cols := 1 + rng.Intn(4)
	rows := rng.Intn(8)

	headers := make([]string, cols)
	for i := range headers {
		headers[i] = fmt.Sprintf("c%d", rng.Intn(6)*10+i)
	}

	ids := rng.Perm(rows * 2)
	data := make([][]string, rows)
	for i := range data {
		row := make([]string, cols)
		for j := range row {
			row[j] = cellAlphabet[rng.Intn(len(cellAlphabet))]
		}
		if keyed {
			row[0] = fmt.Sprint(ids[i])
		}
		data[i] = row
	}

	var pk []int
	if keyed {
		pk = []int{0}
	}
	t, err := table.New(headers, data, pk)
	if err != nil {
		panic(err)
	}
	return t
}

// GenTable wraps GenRandomTable for gopter.
func GenTable(keyed bool) gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		return gopter.NewGenResult(GenRandomTable(genParams.Rng, keyed), gopter.NoShrinker)
	}
}

// MutateCell returns a copy of t with one cell replaced by a value not
// present before, plus the changed position. ok is false for empty tables.
func MutateCell(rng *rand.Rand, t *table.Table) (out *table.Table, row, col int, ok bool) {
	if t.RowCount() == 0 {
		return t, 0, 0, false
	}
	rows := t.Rows()
	row = rng.Intn(len(rows))
	col = rng.Intn(t.ColumnCount())
	rows[row][col] += "#mutated"

	out, err := table.New(t.Headers(), rows, t.PrimaryKey())
	if err != nil {
		panic(err)
	}
	return out, row, col, true
}

// Pair is two versions of the same table.
type Pair struct {
	From, To *table.Table
}

// GenRandomEdit derives a new version of t by dropping, editing and
// appending rows. Keys of appended rows never collide with existing ones.
func GenRandomEdit(rng *rand.Rand, t *table.Table) *table.Table {
	var rows [][]string
	for _, row := range t.Rows() {
		switch rng.Intn(4) {
		case 0:
			continue
		case 1:
			col := rng.Intn(len(row))
			if t.HasPrimaryKey() && col == 0 {
				col = len(row) - 1
			}
			if !t.HasPrimaryKey() || col != 0 {
				row[col] = cellAlphabet[rng.Intn(len(cellAlphabet))]
			}
		}
		rows = append(rows, row)
	}

	for n := rng.Intn(3); n > 0; n-- {
		row := make([]string, t.ColumnCount())
		for j := range row {
			row[j] = cellAlphabet[rng.Intn(len(cellAlphabet))]
		}
		if t.HasPrimaryKey() {
			row[0] = fmt.Sprintf("new-%d", len(rows))
		}
		rows = append(rows, row)
	}

	out, err := table.New(t.Headers(), rows, t.PrimaryKey())
	if err != nil {
		panic(err)
	}
	return out
}

// GenPair generates a table and an edited version of it.
func GenPair(keyed bool) gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		from := GenRandomTable(genParams.Rng, keyed)
		return gopter.NewGenResult(Pair{From: from, To: GenRandomEdit(genParams.Rng, from)}, gopter.NoShrinker)
	}
}
