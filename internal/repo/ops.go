package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gitsheets/internal/csvio"
	"gitsheets/internal/diff"
	"gitsheets/internal/git"
	"gitsheets/internal/hash"
	"gitsheets/internal/snapshot"
	"gitsheets/internal/table"
	"gitsheets/internal/verify"

	"go.uber.org/zap"
)

// Context names the tracked source a read-only operation works on and the
// store holding its history.
type Context struct {
	Store  snapshot.Box
	Source string
}

func (r *Repo) Context(source string) Context {
	return Context{Store: r.Store, Source: source}
}

// SnapshotResult describes a snapshot written by Repo.Snapshot.
type SnapshotResult struct {
	Snapshot  *snapshot.Snapshot
	Path      string
	Committed bool
}

// Snapshot reads the CSV at source, keys it by keySpec and stores it,
// pinning the current content of every file in depends. With commit set
// the new record is added and committed to git.
func (r *Repo) Snapshot(ctx context.Context, source, message, keySpec string, commit bool, depends ...string) (*SnapshotResult, error) {
	t, err := csvio.ReadKeyed(source, keySpec)
	if err != nil {
		return nil, err
	}

	deps := make([]snapshot.Dependency, 0, len(depends))
	for _, path := range depends {
		dep, err := r.dependency(path)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}

	snap, err := r.Store.Create(ctx, source, t, message, deps...)
	if err != nil {
		return nil, err
	}
	res := &SnapshotResult{Snapshot: snap, Path: r.Store.Path(snap.Source, snap.ID)}

	if commit || r.Config.Git.AutoCommit {
		if err := r.commit(res.Path, commitMessage(snap)); err != nil {
			return res, fmt.Errorf("snapshot %s saved but not committed: %w", snap.ID, err)
		}
		res.Committed = true
	}
	return res, nil
}

// dependency hashes the file at path. Files inside the repository are
// recorded relative to its root so the record survives a clone elsewhere.
func (r *Repo) dependency(path string) (snapshot.Dependency, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return snapshot.Dependency{}, err
	}
	sum, err := hash.File(abs)
	if err != nil {
		return snapshot.Dependency{}, fmt.Errorf("dependency %s: %w", path, err)
	}

	stored := abs
	if rel, err := filepath.Rel(r.Root, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		stored = filepath.ToSlash(rel)
	}
	return snapshot.Dependency{Name: filepath.Base(abs), Path: stored, Hash: string(sum)}, nil
}

func commitMessage(s *snapshot.Snapshot) string {
	if s.Message != "" {
		return s.Message
	}
	return "Snapshot: " + snapshot.Key(s.Source, s.ID)
}

func (r *Repo) commit(path, message string) error {
	if !git.IsRepo(r.Root) {
		return fmt.Errorf("%s is not a git repository", r.Root)
	}
	rel, err := filepath.Rel(r.Root, path)
	if err != nil {
		return err
	}
	if err := git.Add(r.Root, rel); err != nil {
		return err
	}
	if err := git.Commit(r.Root, message); err != nil {
		return err
	}
	r.Logger.Info("snapshot committed", zap.String("path", rel))
	return nil
}

// Diff compares two stored snapshots. With save set the diff is also
// written to the diff safe and its path returned.
func (r *Repo) Diff(fromRef, toRef string, save bool) (*diff.Diff, string, error) {
	from, err := r.Store.Load(fromRef)
	if err != nil {
		return nil, "", err
	}
	to, err := r.Store.Load(toRef)
	if err != nil {
		return nil, "", err
	}

	d, err := r.Engine.Snapshots(from, to)
	if err != nil {
		return nil, "", err
	}
	if !save {
		return d, "", nil
	}
	path, err := r.Safe.Store(d)
	if err != nil {
		return d, "", err
	}
	return d, path, nil
}

// SavedDiffs lists the diff artifacts written by Diff.
func (r *Repo) SavedDiffs() ([]string, error) {
	return r.Safe.List()
}

// SavedDiff reads a diff artifact by file name or path.
func (r *Repo) SavedDiff(ref string) (*diff.Diff, error) {
	return r.Safe.Get(ref)
}

// Verify checks each referenced snapshot and the files it depends on.
// Snapshots that cannot be loaded are reported with Err set.
func (r *Repo) Verify(refs ...string) []verify.Report {
	reports := make([]verify.Report, 0, len(refs))
	for _, ref := range refs {
		snap, err := r.Store.Load(ref)
		if err != nil {
			reports = append(reports, verify.Report{Summary: snapshot.Summary{ID: ref}, Err: err})
			continue
		}
		res := verify.Check(snap, r.Root)
		switch res.Status {
		case verify.Tampered:
			r.Logger.Warn("snapshot tampered",
				zap.String("id", snap.ID),
				zap.Strings("mismatched", res.Mismatched),
				zap.Ints("rows", res.MismatchedRows))
		case verify.Stale:
			r.Logger.Warn("snapshot dependency changed",
				zap.String("id", snap.ID),
				zap.Strings("paths", res.StaleDependencies))
		}
		reports = append(reports, verify.Report{Summary: snap.Summary(), Result: &res})
	}
	return reports
}

// VerifyAll checks every snapshot of source, or of all sources when empty.
func (r *Repo) VerifyAll(source string) ([]verify.Report, error) {
	return verify.All(r.Store, source, r.Root)
}

// Reindex rebuilds the snapshot index from the records on disk.
func (r *Repo) Reindex(ctx context.Context) (int, []string, error) {
	return r.Store.Reindex(ctx)
}

// Log returns up to limit of the most recent snapshots of c.Source in
// creation order. A non-positive limit returns all of them.
func Log(c Context, limit int) ([]snapshot.Summary, error) {
	summaries, err := c.Store.List(c.Source)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[len(summaries)-limit:]
	}
	return summaries, nil
}

// StatusReport compares the live source with its latest snapshot. Latest
// and Diff are nil when the source has no snapshots yet.
type StatusReport struct {
	Source    string            `json:"source"`
	Snapshots int               `json:"snapshots"`
	Latest    *snapshot.Summary `json:"latest,omitempty"`
	Diff      *diff.Diff        `json:"diff,omitempty"`
}

// Clean reports whether the live table matches the latest snapshot.
func (s *StatusReport) Clean() bool {
	return s.Diff != nil && s.Diff.Empty()
}

// Status reads the live CSV at c.Source and diffs it against the latest
// snapshot. The live table is keyed like the snapshot unless keySpec
// says otherwise.
func Status(ctx context.Context, c Context, engine *diff.Engine, keySpec string) (*StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries, err := c.Store.List(c.Source)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{Source: snapshot.SourceName(c.Source), Snapshots: len(summaries)}
	if len(summaries) == 0 {
		return report, nil
	}

	latest, err := c.Store.Latest(c.Source)
	if err != nil {
		return nil, err
	}
	sum := latest.Summary()
	report.Latest = &sum

	if keySpec == "" {
		keySpec = keySpecOf(latest.Table)
	}
	live, err := csvio.ReadKeyed(c.Source, keySpec)
	if err != nil {
		return nil, err
	}

	if engine == nil {
		engine = diff.NewEngine(nil)
	}
	d, err := engine.Diff(latest.Table, live)
	if err != nil {
		return nil, err
	}
	d.FromID = latest.ID
	d.ToID = "working"
	report.Diff = d
	return report, nil
}

// keySpecOf names the key columns of t so they can be found again in a
// live file whose columns may have moved. Names that are not unique, look
// like indices or cannot survive the comma-separated form fall back to the
// stored positions.
func keySpecOf(t *table.Table) string {
	names := t.KeyColumns()
	for _, name := range names {
		_, numeric := strconv.Atoi(strings.TrimSpace(name))
		if len(t.ColumnIndex(name)) != 1 || numeric == nil ||
			strings.Contains(name, ",") || name != strings.TrimSpace(name) || name == "" {
			positions := make([]string, 0, len(names))
			for _, col := range t.PrimaryKey() {
				positions = append(positions, strconv.Itoa(col))
			}
			return strings.Join(positions, ",")
		}
	}
	return strings.Join(names, ",")
}
