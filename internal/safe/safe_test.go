package safe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gitsheets/internal/diff"
	"gitsheets/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigDiff(t *testing.T) *diff.Diff {
	t.Helper()
	var from, to [][]string
	for i := 0; i < 200; i++ {
		from = append(from, []string{string(rune('a'+i%26)) + "-row", "old value"})
		to = append(to, []string{string(rune('a'+i%26)) + "-row", "new value"})
	}
	a, err := table.New([]string{"K", "V"}, from, nil)
	require.NoError(t, err)
	b, err := table.New([]string{"K", "V"}, to, nil)
	require.NoError(t, err)

	d, err := diff.Compute(a, b)
	require.NoError(t, err)
	d.FromID, d.ToID = "100-aaaaaaaa", "200-bbbbbbbb"
	return d
}

func TestSafe(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "Plain"
		if compress {
			name = "Compressed"
		}
		t.Run(name, func(t *testing.T) {
			s, err := New(Options{Root: filepath.Join(t.TempDir(), "diffs"), Compress: compress})
			require.NoError(t, err)

			d := bigDiff(t)
			path, err := s.Store(d)
			require.NoError(t, err)
			assert.Equal(t, Name(d.FromID, d.ToID, compress), filepath.Base(path))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, compress, bytes.HasPrefix(raw, zstdMagic))

			back, err := s.Get(filepath.Base(path))
			require.NoError(t, err)
			assert.Equal(t, d, back)

			names, err := s.List()
			require.NoError(t, err)
			assert.Equal(t, []string{filepath.Base(path)}, names)
		})
	}

	t.Run("SmallStaysPlain", func(t *testing.T) {
		s, err := New(Options{Root: t.TempDir(), Compress: true})
		require.NoError(t, err)
		d := &diff.Diff{FromID: "1-a", ToID: "2-b", Changes: []diff.Change{}}
		path, err := s.Store(d)
		require.NoError(t, err)
		assert.Equal(t, "1-a_to_2-b.json", filepath.Base(path))
	})

	t.Run("Missing", func(t *testing.T) {
		s, err := New(Options{Root: t.TempDir()})
		require.NoError(t, err)
		_, err = s.Get("nope.json")
		assert.ErrorIs(t, err, ErrArtifactNotFound)
	})

	t.Run("NeedsIDs", func(t *testing.T) {
		s, err := New(Options{Root: t.TempDir()})
		require.NoError(t, err)
		_, err = s.Store(&diff.Diff{})
		assert.Error(t, err)
	})
}

func TestCompressionSmallContentUntouched(t *testing.T) {
	cm, err := newCompressionManager(DefaultCompressionOptions())
	require.NoError(t, err)

	small := []byte(`{"a":1}`)
	assert.Equal(t, small, cm.compress(small))

	big := bytes.Repeat([]byte("abc"), 1000)
	packed := cm.compress(big)
	assert.Less(t, len(packed), len(big))

	out, err := cm.decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, big, out)
}
