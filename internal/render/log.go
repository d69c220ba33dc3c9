package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gitsheets/internal/snapshot"
	"gitsheets/internal/verify"
)

// Log writes one line per snapshot, newest first, cut to width runes.
func Log(w io.Writer, summaries []snapshot.Summary, width int) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "no snapshots")
		return err
	}
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		line := fmt.Sprintf("%s  %s  %s  %dx%d  %s",
			s.ID,
			s.Timestamp.UTC().Format(time.DateTime),
			s.Source,
			s.Rows, s.Columns,
			s.Message)
		if _, err := fmt.Fprintln(w, truncate(line, width)); err != nil {
			return err
		}
	}
	return nil
}

// Verification writes one line per report and returns the number of
// snapshots that failed.
func Verification(w io.Writer, reports []verify.Report) int {
	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", red("✗"), r.Summary.ID, r.Err)
		case r.Result.Intact():
			fmt.Fprintf(w, "%s %s: intact\n", green("✓"), r.Summary.ID)
		case r.Result.Status == verify.Stale:
			fmt.Fprintf(w, "%s %s: dependency changed (%s)\n", yellow("!"), r.Summary.ID, strings.Join(r.Result.StaleDependencies, ", "))
		default:
			fmt.Fprintf(w, "%s %s: tampered (%s)\n", red("✗"), r.Summary.ID, tamperedParts(r.Result))
		}
	}
	return failed
}

func tamperedParts(r *verify.Result) string {
	parts := append([]string(nil), r.Mismatched...)
	if len(r.MismatchedRows) > 0 {
		rows := make([]string, len(r.MismatchedRows))
		for i, row := range r.MismatchedRows {
			rows[i] = strconv.Itoa(row)
		}
		parts = append(parts, "rows "+strings.Join(rows, " "))
	}
	return strings.Join(parts, ", ")
}
