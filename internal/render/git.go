package render

import (
	"fmt"
	"io"
	"strings"

	"gitsheets/internal/diff"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Git writes d in a unified-diff-like layout: column changes first, then
// one hunk per row. Modified cells carry an inline character diff.
func Git(w io.Writer, d *diff.Diff) error {
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("diff --sheets a/%s b/%s", d.FromID, d.ToID)))
	fmt.Fprintf(w, "%s\n%s\n", bold("--- a/"+d.FromID), bold("+++ b/"+d.ToID))

	var columns []string
	for _, c := range d.Changes {
		switch c := c.(type) {
		case diff.ColumnAdded:
			columns = append(columns, green("+"+c.Header))
		case diff.ColumnRemoved:
			columns = append(columns, red("-"+c.Header))
		}
	}
	if len(columns) > 0 {
		fmt.Fprintln(w, cyan("@@ columns @@"))
		for _, l := range columns {
			fmt.Fprintln(w, l)
		}
	}

	var current *diff.RowRef
	hunk := func(ref diff.RowRef) {
		if current != nil && sameRow(*current, ref) {
			return
		}
		r := ref
		current = &r
		fmt.Fprintln(w, cyan(fmt.Sprintf("@@ row %s @@", ref)))
	}

	for _, c := range d.Changes {
		switch c := c.(type) {
		case diff.RowAdded:
			hunk(c.Row)
			fmt.Fprintln(w, green("+"+strings.Join(c.Values, ",")))
		case diff.RowRemoved:
			hunk(c.Row)
			fmt.Fprintln(w, red("-"+strings.Join(c.Values, ",")))
		case diff.CellChanged:
			hunk(c.Row)
			fmt.Fprintln(w, red(fmt.Sprintf("-%s: %s", c.Column, c.Old)))
			fmt.Fprintln(w, green(fmt.Sprintf("+%s: %s", c.Column, c.New)))
			fmt.Fprintln(w, faint(" ~ ")+InlineDiff(c.Old, c.New))
		}
	}
	return nil
}

func sameRow(a, b diff.RowRef) bool {
	if a.Index != b.Index || len(a.Key) != len(b.Key) {
		return false
	}
	for i := range a.Key {
		if a.Key[i] != b.Key[i] {
			return false
		}
	}
	return true
}

// InlineDiff marks the characters deleted from old and inserted into new.
// Without color the markers are [-deleted-] and {+inserted+}.
func InlineDiff(old, new string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(old, new, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			if color.NoColor {
				b.WriteString("[-" + d.Text + "-]")
			} else {
				b.WriteString(color.New(color.FgRed, color.CrossedOut).Sprint(d.Text))
			}
		case diffmatchpatch.DiffInsert:
			if color.NoColor {
				b.WriteString("{+" + d.Text + "+}")
			} else {
				b.WriteString(color.New(color.FgGreen, color.Underline).Sprint(d.Text))
			}
		}
	}
	return b.String()
}
