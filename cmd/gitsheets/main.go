// cmd/gitsheets/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gitsheets/internal/config"
	"gitsheets/internal/git"
	"gitsheets/internal/logging"
	"gitsheets/internal/render"
	"gitsheets/internal/repo"
	"gitsheets/internal/verify"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	repoDir string
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "gitsheets",
		Short: "gitsheets keeps verifiable snapshots of CSV tables",
		Long: `gitsheets snapshots CSV tables into hashed, immutable records, diffs
snapshots cell by cell and detects records edited after the fact.
Snapshots are plain files meant to be committed to git.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.repoDir, "repo", "C", ".", "Repository directory")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newInitCmd(opts),
		newSnapshotCmd(opts),
		newDiffCmd(opts),
		newDiffsCmd(opts),
		newVerifyCmd(opts),
		newStatusCmd(opts),
		newLogCmd(opts),
		newReindexCmd(opts),
	)
	return rootCmd
}

// openRepo finds the repository containing opts.repoDir and opens it with
// a logger at the configured level.
func openRepo(opts *options) (*repo.Repo, error) {
	root, err := repo.FindRoot(opts.repoDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Path(root))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	opts.logger = logger.Logger

	r, err := repo.Open(root, cfg, opts.logger)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return r, nil
}

func newInitCmd(opts *options) *cobra.Command {
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Initialize a gitsheets repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.repoDir
			if len(args) == 1 {
				dir = args[0]
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("getting absolute path: %w", err)
			}

			created, err := repo.Initialize(dir, !noGit)
			if err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Initialized gitsheets repository in", dir)
			green := color.New(color.FgGreen).SprintFunc()
			for _, path := range created {
				rel, err := filepath.Rel(dir, path)
				if err != nil {
					rel = path
				}
				fmt.Fprintf(out, "%s Created %s\n", green("✓"), rel)
			}
			fmt.Fprintln(out, "\nTry:\n  gitsheets snapshot <file.csv> -m \"First snapshot\"")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noGit, "no-git", false, "Do not run git init")
	return cmd
}

func newSnapshotCmd(opts *options) *cobra.Command {
	var message, key string
	var commit bool
	var depends []string

	cmd := &cobra.Command{
		Use:   "snapshot <file.csv>",
		Short: "Record a snapshot of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.Snapshot(cmd.Context(), args[0], message, key, commit, depends...)
			if res == nil {
				return err
			}

			out := cmd.OutOrStdout()
			snap := res.Snapshot
			fmt.Fprintf(out, "%s Snapshot saved: %s\n", color.GreenString("✓"), res.Path)
			fmt.Fprintf(out, "  ID:         %s\n", snap.ID)
			fmt.Fprintf(out, "  Rows:       %d\n", snap.Table.RowCount())
			fmt.Fprintf(out, "  Columns:    %d\n", snap.Table.ColumnCount())
			if snap.Table.HasPrimaryKey() {
				fmt.Fprintf(out, "  Key:        %v\n", snap.Table.KeyColumns())
			}
			for _, dep := range snap.Dependencies {
				fmt.Fprintf(out, "  Depends:    %s %s...\n", dep.Path, dep.Hash[:16])
			}
			fmt.Fprintf(out, "  Table hash: %s...\n", snap.Hashes.TableHash[:16])
			if err != nil {
				return err
			}

			if res.Committed {
				fmt.Fprintf(out, "%s Committed to git\n", color.GreenString("✓"))
			} else {
				rel, relErr := filepath.Rel(r.Root, res.Path)
				if relErr != nil {
					rel = res.Path
				}
				fmt.Fprintf(out, "\nTo commit to git:\n  git add %s\n  git commit -m %q\n", rel, commitHint(message))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Snapshot message")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Primary key columns, by index or name (e.g. 0,2 or ID)")
	cmd.Flags().BoolVarP(&commit, "commit", "c", false, "Commit the snapshot to git")
	cmd.Flags().StringArrayVarP(&depends, "depends", "d", nil, "File the table depends on; its hash is pinned (repeatable)")
	return cmd
}

func commitHint(message string) string {
	if message == "" {
		return "Snapshot"
	}
	return message
}

func newDiffCmd(opts *options) *cobra.Command {
	var format string
	var save bool

	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show the differences between two snapshots",
		Long: `Compare two snapshots given by id, unique id prefix, file name or path.
Rows are matched by primary key when both snapshots have one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			d, path, err := r.Diff(args[0], args[1], save)
			if err != nil {
				return err
			}
			if err := render.Diff(cmd.OutOrStdout(), d, f); err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved diff to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, git)")
	cmd.Flags().BoolVarP(&save, "save", "s", false, "Save the diff under the diffs directory")
	return cmd
}

func newDiffsCmd(opts *options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "diffs [artifact]",
		Short: "List saved diffs, or show one",
		Long: `Without arguments, list the diffs saved with "diff --save". With an
artifact name or path, render that diff.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				d, err := r.SavedDiff(args[0])
				if err != nil {
					return err
				}
				return render.Diff(out, d, f)
			}

			names, err := r.SavedDiffs()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "no saved diffs")
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, git)")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	var all bool
	var source string

	cmd := &cobra.Command{
		Use:   "verify [snapshot...]",
		Short: "Check snapshots against their stored hashes",
		Long: `Recompute the hashes of each snapshot and compare them with the stored
values. Exits non-zero when any snapshot is tampered or unreadable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one snapshot or pass --all")
			}

			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			reports := r.Verify(args...)
			if all {
				more, err := r.VerifyAll(source)
				if err != nil {
					return err
				}
				reports = mergeReports(reports, more)
			}

			failed := render.Verification(cmd.OutOrStdout(), reports)
			if failed > 0 {
				return fmt.Errorf("%d of %d snapshots failed verification: %w", failed, len(reports), verify.Failures(reports))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Verify every snapshot")
	cmd.Flags().StringVar(&source, "source", "", "With --all, only snapshots of this source")
	return cmd
}

// mergeReports appends the reports of more whose snapshot is not already
// in reports.
func mergeReports(reports, more []verify.Report) []verify.Report {
	seen := make(map[string]bool, len(reports))
	for _, r := range reports {
		seen[r.Summary.ID] = true
	}
	for _, r := range more {
		if !seen[r.Summary.ID] {
			seen[r.Summary.ID] = true
			reports = append(reports, r)
		}
	}
	return reports
}

func newStatusCmd(opts *options) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "status <file.csv>",
		Short: "Compare a CSV file with its latest snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			if git.IsRepo(r.Root) {
				if lines, err := git.StatusShort(r.Root); err == nil && len(lines) > 0 {
					fmt.Fprintln(out, "Uncommitted changes:")
					for _, l := range lines {
						fmt.Fprintln(out, "  "+l)
					}
					fmt.Fprintln(out)
				}
			}

			report, err := repo.Status(cmd.Context(), r.Context(args[0]), r.Engine, key)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Source:    %s\n", report.Source)
			fmt.Fprintf(out, "Snapshots: %d\n", report.Snapshots)
			if report.Latest == nil {
				fmt.Fprintf(out, "\nno snapshots yet; create one with:\n  gitsheets snapshot %s -m \"message\"\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "Latest:    %s (%s)\n\n", report.Latest.ID, report.Latest.Timestamp.Format("2006-01-02 15:04:05"))
			if report.Clean() {
				fmt.Fprintln(out, "working table matches the latest snapshot")
				return nil
			}
			return render.Text(out, report.Diff)
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Primary key columns of the live file (default: as in the latest snapshot)")
	return cmd
}

func newLogCmd(opts *options) *cobra.Command {
	var source string
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			summaries, err := repo.Log(r.Context(source), limit)
			if err != nil {
				return err
			}
			return render.Log(cmd.OutOrStdout(), summaries, render.TermWidth(os.Stdout))
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Only snapshots of this source file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many snapshots")
	return cmd
}

func newReindexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the snapshot index from the snapshot files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo(opts)
			if err != nil {
				return err
			}
			defer r.Close()

			indexed, skipped, err := r.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d snapshots\n", indexed)
			for _, name := range skipped {
				fmt.Fprintf(out, "%s skipped %s\n", color.YellowString("!"), name)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
