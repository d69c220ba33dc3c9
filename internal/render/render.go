// Package render formats diffs, logs and verification results for people
// and for machines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gitsheets/internal/diff"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatGit  Format = "git"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatGit:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or git)", s)
	}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// Diff writes d to w in the given format.
func Diff(w io.Writer, d *diff.Diff, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, d)
	case FormatGit:
		return Git(w, d)
	default:
		return Text(w, d)
	}
}

// JSON writes v as indented JSON followed by a newline.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SummaryLine describes the counts of d in one line.
func SummaryLine(s diff.Summary) string {
	if s.IsZero() {
		return "no changes"
	}
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(s.RowsAdded, "rows added")
	add(s.RowsRemoved, "rows removed")
	add(s.RowsModified, "rows modified")
	add(s.ColumnsAdded, "columns added")
	add(s.ColumnsRemoved, "columns removed")
	return strings.Join(parts, ", ")
}

// Text writes a summary followed by one line per change.
func Text(w io.Writer, d *diff.Diff) error {
	if d.FromID != "" || d.ToID != "" {
		fmt.Fprintf(w, "%s %s -> %s\n", bold("diff"), d.FromID, d.ToID)
	}
	fmt.Fprintln(w, SummaryLine(d.Summary))
	if d.Empty() {
		return nil
	}
	fmt.Fprintln(w)

	for _, c := range d.Changes {
		var line string
		switch c := c.(type) {
		case diff.ColumnAdded:
			line = fmt.Sprintf("%s column %s", green("+"), c.Header)
		case diff.ColumnRemoved:
			line = fmt.Sprintf("%s column %s", red("-"), c.Header)
		case diff.RowAdded:
			line = fmt.Sprintf("%s row %s: %s", green("+"), c.Row, strings.Join(c.Values, ", "))
		case diff.RowRemoved:
			line = fmt.Sprintf("%s row %s: %s", red("-"), c.Row, strings.Join(c.Values, ", "))
		case diff.CellChanged:
			line = fmt.Sprintf("%s row %s %s: %s -> %s", yellow("~"), c.Row, cyan(c.Column), quote(c.Old), quote(c.New))
		}
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}
	return nil
}

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return s
}

// TermWidth returns the width of the terminal attached to f, or 80.
func TermWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// truncate shortens s to at most width runes, marking the cut with an
// ellipsis. A non-positive width leaves s alone.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
