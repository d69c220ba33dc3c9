package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func (r *record) GetID() string { return r.ID }

func setupTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "rec")

	t.Run("Create", func(t *testing.T) {
		r := &record{ID: uuid.New().String(), Value: 1}
		require.NoError(t, store.Create(r))

		var got record
		require.NoError(t, store.Get(r.ID, &got))
		assert.Equal(t, *r, got)

		exists, err := store.Exists(r.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("NoOverwrite", func(t *testing.T) {
		r := &record{ID: "fixed", Value: 1}
		require.NoError(t, store.Create(r))
		err := store.Create(&record{ID: "fixed", Value: 2})
		assert.ErrorIs(t, err, ErrExists)

		var got record
		require.NoError(t, store.Get("fixed", &got))
		assert.Equal(t, 1, got.Value)
	})

	t.Run("EmptyID", func(t *testing.T) {
		assert.Error(t, store.Create(&record{}))
	})

	t.Run("Missing", func(t *testing.T) {
		var got record
		assert.ErrorIs(t, store.Get("missing", &got), ErrNotFound)
		exists, err := store.Exists("missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Create(&record{ID: "gone"}))
		require.NoError(t, store.Delete("gone"))
		exists, err := store.Exists("gone")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestBadgerStoreListIsolatesPrefix(t *testing.T) {
	db := setupTestDB(t)
	a := NewBadgerStore(db, "a")
	b := NewBadgerStore(db, "ab")

	require.NoError(t, a.Create(&record{ID: "2", Value: 2}))
	require.NoError(t, a.Create(&record{ID: "1", Value: 1}))
	require.NoError(t, b.Create(&record{ID: "x", Value: 9}))

	var got []record
	require.NoError(t, a.List(&got))
	assert.Equal(t, []record{{ID: "1", Value: 1}, {ID: "2", Value: 2}}, got)

	ids, err := a.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	require.NoError(t, a.DeleteAll())
	got = nil
	require.NoError(t, a.List(&got))
	assert.Empty(t, got)

	ids, err = b.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
}

func TestSequence(t *testing.T) {
	db := setupTestDB(t)
	seq, err := NewSequence(db, "test")
	require.NoError(t, err)
	defer seq.Release()

	var last uint64
	for i := 0; i < 40; i++ {
		n, err := seq.Next()
		require.NoError(t, err)
		assert.Greater(t, n, last)
		last = n
	}
	other, err := NewSequence(db, "other")
	require.NoError(t, err)
	n, err := other.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	other.Release()
}
