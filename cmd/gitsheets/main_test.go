package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitsheets/internal/diff"
	"gitsheets/internal/errors"
	"gitsheets/internal/snapshot"
	"gitsheets/internal/verify"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	_, err := run(t, "init", dir, "--no-git")
	require.NoError(t, err)
	return dir, filepath.Join(dir, "sales.csv")
}

func snapshotID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(strings.TrimSpace(line), "ID:"); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no snapshot id in output:\n%s", out)
	return ""
}

func TestCLI(t *testing.T) {
	dir, src := setup(t)

	require.NoError(t, os.WriteFile(src, []byte("ID,Name,Amount\n1,Alice,100\n2,Bob,200\n"), 0644))
	out, err := run(t, "-C", dir, "snapshot", src, "-m", "first", "-k", "ID")
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshot saved")
	first := snapshotID(t, out)

	require.NoError(t, os.WriteFile(src, []byte("ID,Name,Amount\n1,Alice,150\n3,Carol,300\n"), 0644))
	out, err = run(t, "-C", dir, "status", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Snapshots: 1")
	assert.Contains(t, out, "~ row 1 Amount: 100 -> 150")

	out, err = run(t, "-C", dir, "snapshot", src, "-m", "second", "-k", "ID")
	require.NoError(t, err)
	second := snapshotID(t, out)

	out, err = run(t, "-C", dir, "diff", first, second, "--format", "json", "--save")
	require.NoError(t, err)
	jsonPart := out[:strings.LastIndex(out, "Saved diff to")]
	var d diff.Diff
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &d))
	assert.Equal(t, diff.Summary{RowsAdded: 1, RowsRemoved: 1, RowsModified: 1}, d.Summary)

	entries, err := os.ReadDir(filepath.Join(dir, "diffs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err = run(t, "-C", dir, "diffs")
	require.NoError(t, err)
	assert.Equal(t, entries[0].Name()+"\n", out)

	out, err = run(t, "-C", dir, "diffs", entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, out, "~ row 1 Amount: 100 -> 150")

	_, err = run(t, "-C", dir, "diffs", "missing.json")
	assert.Error(t, err)

	out, err = run(t, "-C", dir, "diff", first, second, "-f", "git")
	require.NoError(t, err)
	assert.Contains(t, out, "@@ row 1 @@")

	out, err = run(t, "-C", dir, "verify", "--all")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "intact"))

	out, err = run(t, "-C", dir, "log", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, second)
	assert.NotContains(t, out, first)

	out, err = run(t, "-C", dir, "reindex")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 snapshots")
}

func TestCLIVerifyTampered(t *testing.T) {
	dir, src := setup(t)
	require.NoError(t, os.WriteFile(src, []byte("ID,Amount\n1,100\n"), 0644))
	out, err := run(t, "-C", dir, "snapshot", src, "-k", "0")
	require.NoError(t, err)
	id := snapshotID(t, out)

	path := filepath.Join(dir, "snapshots", "sales_"+id+".toml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), `"100"`, `"999"`, 1)), 0644))

	out, err = run(t, "-C", dir, "verify", id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTampered)
	assert.Contains(t, out, "tampered (table, Amount, rows 0)")

	out, err = run(t, "-C", dir, "verify", id, "--all")
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(out, id))
	assert.Contains(t, err.Error(), "1 of 1 snapshots failed")
}

func TestCLIDepends(t *testing.T) {
	dir, src := setup(t)
	rates := filepath.Join(dir, "rates.csv")
	require.NoError(t, os.WriteFile(src, []byte("ID,Amount\n1,100\n"), 0644))
	require.NoError(t, os.WriteFile(rates, []byte("EUR,1.08\n"), 0644))

	out, err := run(t, "-C", dir, "snapshot", src, "-k", "ID", "--depends", rates)
	require.NoError(t, err)
	assert.Contains(t, out, "Depends:    rates.csv")
	id := snapshotID(t, out)

	_, err = run(t, "-C", dir, "verify", id)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(rates, []byte("EUR,1.10\n"), 0644))
	out, err = run(t, "-C", dir, "verify", id)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleDependency)
	assert.Contains(t, out, "dependency changed (rates.csv)")
}

func TestMergeReports(t *testing.T) {
	named := []verify.Report{{Summary: snapshot.Summary{ID: "1-a"}}}
	all := []verify.Report{{Summary: snapshot.Summary{ID: "1-a"}}, {Summary: snapshot.Summary{ID: "2-b"}}}

	merged := mergeReports(named, all)
	require.Len(t, merged, 2)
	assert.Equal(t, "2-b", merged[1].Summary.ID)
}

func TestCLIErrors(t *testing.T) {
	_, err := run(t, "-C", t.TempDir(), "log")
	assert.Error(t, err)

	dir, _ := setup(t)
	_, err = run(t, "-C", dir, "verify")
	assert.Error(t, err)

	_, err = run(t, "-C", dir, "diff", "a", "b", "-f", "xml")
	assert.Error(t, err)

	out, err := run(t, "-C", dir, "log")
	require.NoError(t, err)
	assert.Equal(t, "no snapshots\n", out)
}
