package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gitsheets/internal/hash"
	"gitsheets/internal/table"
	"gitsheets/internal/table/tabletest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestStoreProperties(t *testing.T) {
	ctx := context.Background()
	n := 0
	store, err := NewStore(setupTestDB(t), Options{
		Dir: filepath.Join(t.TempDir(), "snapshots"),
		Clock: func() time.Time {
			n++
			return t0.Add(time.Duration(n) * time.Second)
		},
	})
	require.NoError(t, err)
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("created snapshots load back with matching hashes", prop.ForAll(
		func(tbl *table.Table) bool {
			snap, err := store.Create(ctx, fmt.Sprintf("t%d", n), tbl, "")
			if err != nil {
				return false
			}
			loaded, err := store.Load(snap.ID)
			if err != nil {
				return false
			}
			computed := hash.Compute(loaded.Table)
			return computed.TableHash == loaded.Hashes.TableHash &&
				fmt.Sprint(computed.HeaderHashes) == fmt.Sprint(loaded.Hashes.HeaderHashes) &&
				fmt.Sprint(computed.RowHashes) == fmt.Sprint(loaded.Hashes.RowHashes)
		},
		tabletest.GenTable(false),
	))

	properties.TestingRun(t)
}
