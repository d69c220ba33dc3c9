package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"gitsheets/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTable(t *testing.T, headers []string, rows [][]string, pk []int) *table.Table {
	t.Helper()
	tbl, err := table.New(headers, rows, pk)
	require.NoError(t, err)
	return tbl
}

func TestTableHash(t *testing.T) {
	base := mustTable(t, []string{"A", "B"}, [][]string{{"1", "2"}}, nil)

	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, TableHash(base), TableHash(base))
		assert.Len(t, string(TableHash(base)), 64)
	})

	t.Run("KnownValueIsStable", func(t *testing.T) {
		again := mustTable(t, []string{"A", "B"}, [][]string{{"1", "2"}}, nil)
		assert.Equal(t, TableHash(base), TableHash(again))
	})

	t.Run("DelimiterInjection", func(t *testing.T) {
		a := mustTable(t, []string{"A", "B"}, [][]string{{"ab", "c"}}, nil)
		b := mustTable(t, []string{"A", "B"}, [][]string{{"a", "bc"}}, nil)
		assert.NotEqual(t, TableHash(a), TableHash(b))

		c := mustTable(t, []string{"AB"}, [][]string{{"x"}}, nil)
		d := mustTable(t, []string{"A"}, [][]string{{"Bx"}}, nil)
		assert.NotEqual(t, TableHash(c), TableHash(d))
	})

	t.Run("HeaderRowBoundary", func(t *testing.T) {
		a := mustTable(t, []string{"A"}, [][]string{{"B"}}, nil)
		b := mustTable(t, []string{"A"}, nil, nil)
		assert.NotEqual(t, TableHash(a), TableHash(b))
	})

	t.Run("PrimaryKeyIncluded", func(t *testing.T) {
		keyed := mustTable(t, []string{"A", "B"}, [][]string{{"1", "2"}}, []int{0})
		assert.NotEqual(t, TableHash(base), TableHash(keyed))
	})

	t.Run("RowOrderMatters", func(t *testing.T) {
		a := mustTable(t, []string{"A"}, [][]string{{"1"}, {"2"}}, nil)
		b := mustTable(t, []string{"A"}, [][]string{{"2"}, {"1"}}, nil)
		assert.NotEqual(t, TableHash(a), TableHash(b))
	})
}

func TestCompute(t *testing.T) {
	tbl := mustTable(t,
		[]string{"ID", "Name", "Amount"},
		[][]string{{"1", "Alice", "100"}, {"2", "Bob", "200"}},
		[]int{0},
	)

	h := Compute(tbl)
	assert.Equal(t, string(TableHash(tbl)), h.TableHash)
	require.Len(t, h.HeaderHashes, 3)
	assert.Equal(t, string(HeaderHash(tbl, 2)), h.HeaderHashes["Amount"])

	t.Run("SingleCellChange", func(t *testing.T) {
		changed := mustTable(t,
			[]string{"ID", "Name", "Amount"},
			[][]string{{"1", "Alice", "999"}, {"2", "Bob", "200"}},
			[]int{0},
		)
		c := Compute(changed)
		assert.NotEqual(t, h.TableHash, c.TableHash)
		assert.NotEqual(t, h.HeaderHashes["Amount"], c.HeaderHashes["Amount"])
		assert.Equal(t, h.HeaderHashes["ID"], c.HeaderHashes["ID"])
		assert.Equal(t, h.HeaderHashes["Name"], c.HeaderHashes["Name"])
	})

	t.Run("SameValuesDifferentHeader", func(t *testing.T) {
		a := mustTable(t, []string{"X"}, [][]string{{"1"}}, nil)
		b := mustTable(t, []string{"Y"}, [][]string{{"1"}}, nil)
		assert.NotEqual(t, HeaderHash(a, 0), HeaderHash(b, 0))
	})

	t.Run("DuplicateHeaders", func(t *testing.T) {
		dup := mustTable(t, []string{"X", "X"}, [][]string{{"1", "2"}}, nil)
		swapped := mustTable(t, []string{"X", "X"}, [][]string{{"2", "1"}}, nil)
		assert.Len(t, Compute(dup).HeaderHashes, 1)
		assert.NotEqual(t, Compute(dup).HeaderHashes["X"], Compute(swapped).HeaderHashes["X"])
	})

	t.Run("EmptyTable", func(t *testing.T) {
		empty := mustTable(t, nil, nil, nil)
		e := Compute(empty)
		assert.NotEmpty(t, e.TableHash)
		assert.Empty(t, e.HeaderHashes)
		assert.Nil(t, e.RowHashes)
	})

	t.Run("RowHashes", func(t *testing.T) {
		require.Len(t, h.RowHashes, 2)
		assert.Equal(t, string(RowHash(tbl, 1)), h.RowHashes[1])
		assert.NotEqual(t, h.RowHashes[0], h.RowHashes[1])

		changed := mustTable(t,
			[]string{"ID", "Name", "Amount"},
			[][]string{{"1", "Alice", "100"}, {"2", "Bob", "201"}},
			[]int{0},
		)
		c := Compute(changed)
		assert.Equal(t, h.RowHashes[0], c.RowHashes[0])
		assert.NotEqual(t, h.RowHashes[1], c.RowHashes[1])
	})

	t.Run("RowCellBoundary", func(t *testing.T) {
		a := mustTable(t, []string{"A", "B"}, [][]string{{"ab", "c"}}, nil)
		b := mustTable(t, []string{"A", "B"}, [][]string{{"a", "bc"}}, nil)
		assert.NotEqual(t, RowHash(a, 0), RowHash(b, 0))
	})
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	content := []byte("currency,rate\nEUR,1.08\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	got, err := File(path)
	require.NoError(t, err)
	sum := sha256.Sum256(content)
	assert.Equal(t, Digest(hex.EncodeToString(sum[:])), got)

	_, err = File(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, os.IsNotExist(err))
}
