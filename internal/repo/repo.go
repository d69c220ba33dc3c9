// internal/repo/repo.go
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gitsheets/internal/config"
	"gitsheets/internal/diff"
	"gitsheets/internal/git"
	"gitsheets/internal/safe"
	"gitsheets/internal/snapshot"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

var ErrNoRepository = errors.New("not a gitsheets repository (run gitsheets init)")

const gitignore = `# gitsheets
*.csv
*.xlsx
*.xls
*.tmp

# The index is rebuilt with gitsheets reindex
.sheets/index/

# Keep snapshots and diffs
!snapshots/
!diffs/
`

const readme = `# gitsheets repository

This directory is managed by gitsheets, which keeps verifiable snapshots of
CSV tables.

## Layout

- ` + "`snapshots/`" + ` snapshot records (.toml)
- ` + "`diffs/`" + ` saved diffs (.json, .json.zst)
- ` + "`.sheets/`" + ` configuration and the local snapshot index

## Usage

` + "```" + `bash
gitsheets snapshot data.csv -m "Initial import" -k ID
gitsheets diff <from-id> <to-id> --format git
gitsheets verify --all
gitsheets status data.csv
gitsheets log
` + "```" + `
`

// Repo bundles the stores of one repository root.
type Repo struct {
	Root   string
	Config *config.Config
	DB     *badger.DB
	Store  *snapshot.Store
	Safe   *safe.Safe
	Engine *diff.Engine
	Logger *zap.Logger
}

// Initialize lays out a repository under root and returns the paths it
// created. Existing files are left alone, so running it twice is harmless.
// When initGit is set and root is not yet a git work tree, git init runs too.
func Initialize(root string, initGit bool) ([]string, error) {
	var created []string

	cfg := config.Default()
	dirs := []string{
		config.Resolve(root, cfg.Storage.SnapshotsDir),
		config.Resolve(root, cfg.Storage.DiffsDir),
		filepath.Join(root, config.Dir),
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return created, fmt.Errorf("creating directory %s: %w", dir, err)
		}
		created = append(created, dir)
	}

	cfgPath := config.Path(root)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := cfg.Save(cfgPath); err != nil {
			return created, fmt.Errorf("writing config: %w", err)
		}
		created = append(created, cfgPath)
	}

	files := []struct{ path, content string }{
		{filepath.Join(root, ".gitignore"), gitignore},
		{filepath.Join(root, "README.md"), readme},
	}
	for _, file := range files {
		path := file.path
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("creating %s: %w", path, err)
		}
		_, err = f.WriteString(file.content)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return created, fmt.Errorf("writing %s: %w", path, err)
		}
		created = append(created, path)
	}

	if initGit && !git.IsRepo(root) && git.Available() {
		if err := git.Init(root); err != nil {
			return created, err
		}
		created = append(created, filepath.Join(root, ".git"))
	}

	return created, nil
}

// FindRoot searches startDir and its parents for a repository.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, config.Dir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNoRepository
}

// InitDB opens the badger index at path, logging through logger.
func InitDB(path string, logger *zap.Logger) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithLogger(newBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}

// Open opens an initialized repository. A nil cfg is loaded from the
// repository's config file.
func Open(root string, cfg *config.Config, logger *zap.Logger) (*Repo, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}
	if info, err := os.Stat(filepath.Join(absPath, config.Dir)); err != nil || !info.IsDir() {
		return nil, ErrNoRepository
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		if cfg, err = config.Load(config.Path(absPath)); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	db, err := InitDB(config.Resolve(absPath, cfg.Storage.IndexDir), logger)
	if err != nil {
		return nil, err
	}

	store, err := snapshot.NewStore(db, snapshot.Options{
		Dir:       config.Resolve(absPath, cfg.Storage.SnapshotsDir),
		CacheSize: cfg.Storage.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}

	artifacts, err := safe.New(safe.Options{
		Root:     config.Resolve(absPath, cfg.Storage.DiffsDir),
		Compress: cfg.Diffs.Compress,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		db.Close()
		return nil, fmt.Errorf("opening diff safe: %w", err)
	}

	return &Repo{
		Root:   absPath,
		Config: cfg,
		DB:     db,
		Store:  store,
		Safe:   artifacts,
		Engine: diff.NewEngine(logger),
		Logger: logger,
	}, nil
}

func (r *Repo) Close() error {
	serr := r.Store.Close()
	if err := r.DB.Close(); err != nil {
		return err
	}
	return serr
}

// badgerLogger routes badger's own messages into zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) badgerLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return badgerLogger{logger.Named("badger").Sugar()}
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
