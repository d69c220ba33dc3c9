package table

import (
	"testing"

	"gitsheets/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T, pk []int) *Table {
	t.Helper()
	tbl, err := New(
		[]string{"ID", "Name", "Amount"},
		[][]string{{"1", "Alice", "100"}, {"2", "Bob", "200"}},
		pk,
	)
	require.NoError(t, err)
	return tbl
}

func TestNew(t *testing.T) {
	t.Run("Accessors", func(t *testing.T) {
		tbl := sample(t, []int{0})

		assert.Equal(t, 2, tbl.RowCount())
		assert.Equal(t, 3, tbl.ColumnCount())
		assert.True(t, tbl.HasPrimaryKey())
		assert.Equal(t, []string{"ID"}, tbl.KeyColumns())

		v, ok := tbl.Cell(1, 2)
		assert.True(t, ok)
		assert.Equal(t, "200", v)

		_, ok = tbl.Cell(2, 0)
		assert.False(t, ok)
		_, ok = tbl.Cell(0, -1)
		assert.False(t, ok)
	})

	t.Run("RowWidthMismatch", func(t *testing.T) {
		_, err := New([]string{"A", "B"}, [][]string{{"1", "2"}, {"3"}}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrSchema)

		var e *errors.Error
		require.ErrorAs(t, err, &e)
		details := e.Details.(errors.SchemaDetails)
		assert.Equal(t, 1, details.Row)
		assert.Equal(t, 2, details.Expected)
		assert.Equal(t, 1, details.Actual)
	})

	t.Run("LongRowIsNotTruncated", func(t *testing.T) {
		_, err := New([]string{"A"}, [][]string{{"1", "2"}}, nil)
		assert.ErrorIs(t, err, errors.ErrSchema)
	})

	t.Run("PrimaryKeyOutOfRange", func(t *testing.T) {
		_, err := New([]string{"A", "B"}, nil, []int{2})
		assert.ErrorIs(t, err, errors.ErrSchema)

		_, err = New([]string{"A", "B"}, nil, []int{-1})
		assert.ErrorIs(t, err, errors.ErrSchema)
	})

	t.Run("PrimaryKeyRepeated", func(t *testing.T) {
		_, err := New([]string{"A", "B"}, nil, []int{0, 0})
		assert.ErrorIs(t, err, errors.ErrSchema)
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		_, err := New([]string{"ID", "Name"}, [][]string{{"1", "Jos\xe9"}}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrSchema)

		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, errors.SchemaDetails{Row: 0, Column: 1}, e.Details)

		_, err = New([]string{"ID", "Pre\xe7o"}, nil, nil)
		require.ErrorAs(t, err, &e)
		assert.Equal(t, errors.SchemaDetails{Row: -1, Column: 1}, e.Details)
		assert.Contains(t, err.Error(), "header 1")
	})

	t.Run("NonASCIIAccepted", func(t *testing.T) {
		tbl, err := New([]string{"Preço"}, [][]string{{"José"}, {"日本"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"José", "日本"}, tbl.Column(0))
	})

	t.Run("InputIsCopied", func(t *testing.T) {
		headers := []string{"A"}
		rows := [][]string{{"x"}}
		tbl, err := New(headers, rows, nil)
		require.NoError(t, err)

		headers[0] = "changed"
		rows[0][0] = "changed"
		assert.Equal(t, "A", tbl.Header(0))
		v, _ := tbl.Cell(0, 0)
		assert.Equal(t, "x", v)

		got := tbl.Rows()
		got[0][0] = "mutated"
		v, _ = tbl.Cell(0, 0)
		assert.Equal(t, "x", v)
	})
}

func TestFromRecords(t *testing.T) {
	tbl, err := FromRecords([][]string{{"A", "B"}, {"1", "2"}}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tbl.Headers())
	assert.Equal(t, 1, tbl.RowCount())
	assert.Equal(t, []int{1}, tbl.PrimaryKey())

	_, err = FromRecords(nil, nil)
	assert.ErrorIs(t, err, errors.ErrSchema)
}

func TestKeyIndex(t *testing.T) {
	t.Run("NoPrimaryKey", func(t *testing.T) {
		assert.Nil(t, sample(t, nil).KeyIndex())
		assert.Nil(t, sample(t, nil).RowKey(0))
	})

	t.Run("Unique", func(t *testing.T) {
		tbl := sample(t, []int{0})
		idx := tbl.KeyIndex()
		assert.Len(t, idx, 2)
		assert.Equal(t, []int{1}, idx[Key{"2"}.Encode()])
	})

	t.Run("DuplicatesKept", func(t *testing.T) {
		tbl, err := New([]string{"ID"}, [][]string{{"1"}, {"1"}, {"2"}}, []int{0})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, tbl.KeyIndex()[Key{"1"}.Encode()])
	})

	t.Run("CompositeKey", func(t *testing.T) {
		tbl, err := New([]string{"A", "B"}, [][]string{{"a", "bc"}, {"ab", "c"}}, []int{0, 1})
		require.NoError(t, err)
		assert.Len(t, tbl.KeyIndex(), 2)
		assert.Equal(t, Key{"ab", "c"}, tbl.RowKey(1))
	})
}

func TestKeyCompare(t *testing.T) {
	assert.Equal(t, -1, Key{"2"}.Compare(Key{"10"}))
	assert.Equal(t, 1, Key{"b"}.Compare(Key{"a"}))
	assert.Equal(t, -1, Key{"9"}.Compare(Key{"a"}))
	assert.Equal(t, 0, Key{"x", "1"}.Compare(Key{"x", "1"}))
	assert.Equal(t, -1, Key{"x"}.Compare(Key{"x", "1"}))
	assert.NotEqual(t, 0, Key{"1.0"}.Compare(Key{"1"}))
	assert.NotEqual(t, Key{"a", "bc"}.Encode(), Key{"ab", "c"}.Encode())
}
