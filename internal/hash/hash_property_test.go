package hash

import (
	"math/rand"
	"testing"

	"gitsheets/internal/table"
	"gitsheets/internal/table/tabletest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

func TestHashProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("table hash is deterministic", prop.ForAll(
		func(tbl *table.Table) bool {
			rebuilt, err := table.New(tbl.Headers(), tbl.Rows(), tbl.PrimaryKey())
			if err != nil {
				return false
			}
			return TableHash(tbl) == TableHash(tbl) && TableHash(tbl) == TableHash(rebuilt)
		},
		tabletest.GenTable(false),
	))

	properties.Property("single cell change moves table hash and only that column's hash", prop.ForAll(
		func(tbl *table.Table, seed int64) bool {
			mutated, _, col, ok := tabletest.MutateCell(rand.New(rand.NewSource(seed)), tbl)
			if !ok {
				return true
			}
			before, after := Compute(tbl), Compute(mutated)
			if before.TableHash == after.TableHash {
				return false
			}
			changed := tbl.Header(col)
			for name, h := range before.HeaderHashes {
				if (name == changed) == (h == after.HeaderHashes[name]) {
					return false
				}
			}
			return true
		},
		tabletest.GenTable(true),
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			return gopter.NewGenResult(genParams.Rng.Int63(), gopter.NoShrinker)
		}),
	))

	properties.TestingRun(t)
}
