// internal/snapshot/store.go
package snapshot

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gitsheets/internal/errors"
	"gitsheets/internal/storage"
	"gitsheets/internal/table"
	"gitsheets/shared/utils"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const indexPrefix = "snapshot"

// Box defines the snapshot storage operations the rest of the tool uses.
type Box interface {
	Create(ctx context.Context, source string, t *table.Table, message string, deps ...Dependency) (*Snapshot, error)
	Load(ref string) (*Snapshot, error)
	List(source string) ([]Summary, error)
	Latest(source string) (*Snapshot, error)
}

// Options configures a Store.
type Options struct {
	Dir       string           // Directory holding snapshot records
	CacheSize int              // Number of decoded snapshots to keep
	Logger    *zap.Logger      // Optional
	Clock     func() time.Time // Optional, defaults to time.Now
}

// Store persists snapshot records as files under Dir and keeps a badger
// index of them in creation order.
type Store struct {
	dir    string
	index  *storage.BadgerStore
	seq    *storage.Sequence
	cache  *lru.Cache[string, *Snapshot]
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex // Serializes Create and Reindex
}

var _ Box = (*Store)(nil)

func NewStore(db *badger.DB, opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	cache, err := lru.New[string, *Snapshot](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	seq, err := storage.NewSequence(db, indexPrefix)
	if err != nil {
		return nil, err
	}

	return &Store{
		dir:    opts.Dir,
		index:  storage.NewBadgerStore(db, indexPrefix),
		seq:    seq,
		cache:  cache,
		logger: opts.Logger,
		now:    opts.Clock,
	}, nil
}

// Close releases the creation sequence. The badger DB stays open.
func (s *Store) Close() error {
	return s.seq.Release()
}

// Path returns the file a snapshot id of source is stored at.
func (s *Store) Path(source, id string) string {
	return filepath.Join(s.dir, Key(source, id))
}

// Create snapshots t and persists it. An id that already exists, in the
// index or on disk, fails with IDCollision; nothing is ever overwritten.
func (s *Store) Create(ctx context.Context, source string, t *table.Table, message string, deps ...Dependency) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utf8.ValidString(message) {
		return nil, errors.Schema("snapshot message is not valid UTF-8", nil)
	}
	if !utf8.ValidString(SourceName(source)) {
		return nil, errors.Schema("source name is not valid UTF-8", nil)
	}
	for _, d := range deps {
		if !utf8.ValidString(d.Path) || !utf8.ValidString(d.Name) {
			return nil, errors.Schema("dependency path is not valid UTF-8", nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := New(source, t, message, s.now())
	snap.Dependencies = append([]Dependency(nil), deps...)
	summary := snap.Summary()
	path := filepath.Join(s.dir, summary.Key)

	data, err := Encode(snap)
	if err != nil {
		return nil, err
	}

	// Checked first so a collision does not use up a sequence number.
	if exists, err := s.index.Exists(snap.ID); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	} else if exists {
		return nil, s.collision(snap.ID, path)
	}

	seq, err := s.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("allocating sequence: %w", err)
	}
	summary.Seq = seq

	if err := s.index.Create(&summary); err != nil {
		if stderrors.Is(err, storage.ErrExists) {
			return nil, s.collision(snap.ID, path)
		}
		return nil, fmt.Errorf("indexing snapshot: %w", err)
	}

	if err := utils.WriteFileExclusive(path, data, 0644); err != nil {
		s.rollback(snap.ID)
		if stderrors.Is(err, fs.ErrExist) {
			return nil, errors.IDCollision(snap.ID, path)
		}
		return nil, fmt.Errorf("writing snapshot %s: %w", snap.ID, err)
	}

	s.logger.Info("snapshot created",
		zap.String("id", snap.ID),
		zap.String("source", snap.Source),
		zap.String("path", path),
		zap.Uint64("seq", seq),
		zap.Int("rows", t.RowCount()),
		zap.Int("columns", t.ColumnCount()))

	return snap, nil
}

// collision names the file already holding id, preferring the indexed one.
func (s *Store) collision(id, path string) error {
	var existing Summary
	if err := s.index.Get(id, &existing); err == nil {
		path = filepath.Join(s.dir, existing.Key)
	}
	return errors.IDCollision(id, path)
}

func (s *Store) rollback(id string) {
	if err := s.index.Delete(id); err != nil {
		s.logger.Warn("failed to roll back index entry", zap.String("id", id), zap.Error(err))
	}
}

// Load reads a snapshot by id, unique id prefix, storage key or file path.
func (s *Store) Load(ref string) (*Snapshot, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.loadPath(path)
}

func (s *Store) resolve(ref string) (string, error) {
	if ref == "" {
		return "", errors.NotFound("empty snapshot reference")
	}

	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}

	var summary Summary
	if err := s.index.Get(ref, &summary); err == nil {
		return filepath.Join(s.dir, summary.Key), nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("reading index: %w", err)
	}

	for _, candidate := range []string{ref, ref + recordExt} {
		p := filepath.Join(s.dir, filepath.Base(candidate))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	ids, err := s.index.IDs()
	if err != nil {
		return "", err
	}
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.NotFound(fmt.Sprintf("snapshot %s not found", ref))
	case 1:
		if err := s.index.Get(matches[0], &summary); err != nil {
			return "", fmt.Errorf("reading index: %w", err)
		}
		return filepath.Join(s.dir, summary.Key), nil
	}
	return "", errors.NotFound(fmt.Sprintf("snapshot reference %s is ambiguous: %s", ref, strings.Join(matches, ", ")))
}

// loadPath decodes the record at path. The cache key includes size and
// modification time so an edit made outside the tool is always re-read.
func (s *Store) loadPath(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("snapshot file %s not found", path))
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cacheKey := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if snap, ok := s.cache.Get(cacheKey); ok {
		return snap, nil
	}

	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	s.cache.Add(cacheKey, snap)
	return snap, nil
}

// LoadFile decodes a snapshot record without consulting any index.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("snapshot file %s not found", path))
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return Decode(data, path)
}

// List returns snapshot summaries in creation order, optionally restricted
// to one source.
func (s *Store) List(source string) ([]Summary, error) {
	var all []Summary
	if err := s.index.List(&all); err != nil {
		return nil, err
	}

	name := ""
	if source != "" {
		name = SourceName(source)
	}

	out := all[:0]
	for _, sum := range all {
		if name == "" || sum.Source == name {
			out = append(out, sum)
		}
	}
	SortSummaries(out)
	return out, nil
}

// SortSummaries orders by creation sequence, then timestamp, then id.
func SortSummaries(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}

// Latest returns the most recently created snapshot of source.
func (s *Store) Latest(source string) (*Snapshot, error) {
	summaries, err := s.List(source)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("no snapshots for %s", SourceName(source)))
	}
	last := summaries[len(summaries)-1]
	return s.loadPath(filepath.Join(s.dir, last.Key))
}

// Reindex rebuilds the index from the records on disk, ordering them by
// timestamp then id. Records that fail to decode are skipped and returned.
func (s *Store) Reindex(ctx context.Context) (indexed int, skipped []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var found []Summary
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != recordExt || utils.IsTemp(name) {
			continue
		}
		snap, err := LoadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", zap.String("file", name), zap.Error(err))
			skipped = append(skipped, name)
			continue
		}
		sum := snap.Summary()
		sum.Key = name
		found = append(found, sum)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].Timestamp.Equal(found[j].Timestamp) {
			return found[i].Timestamp.Before(found[j].Timestamp)
		}
		return found[i].ID < found[j].ID
	})

	if err := s.index.DeleteAll(); err != nil {
		return 0, nil, err
	}
	for i := range found {
		seq, err := s.seq.Next()
		if err != nil {
			return indexed, skipped, fmt.Errorf("allocating sequence: %w", err)
		}
		found[i].Seq = seq
		if err := s.index.Create(&found[i]); err != nil {
			if stderrors.Is(err, storage.ErrExists) {
				s.logger.Warn("duplicate snapshot id on disk", zap.String("id", found[i].ID), zap.String("file", found[i].Key))
				skipped = append(skipped, found[i].Key)
				continue
			}
			return indexed, skipped, fmt.Errorf("indexing %s: %w", found[i].ID, err)
		}
		indexed++
	}

	s.logger.Info("index rebuilt", zap.Int("indexed", indexed), zap.Int("skipped", len(skipped)))
	return indexed, skipped, nil
}
