// internal/safe/safe.go
package safe

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitsheets/internal/diff"
	"gitsheets/shared/utils"

	"go.uber.org/zap"
)

var ErrArtifactNotFound = errors.New("diff artifact not found")

const (
	jsonExt = ".json"
	zstdExt = ".zst"
)

// Safe keeps diff artifacts on disk. Artifacts are derived data: saving
// the same pair again replaces the previous file.
type Safe struct {
	root     string
	compress bool
	cm       *compressionManager
	logger   *zap.Logger
}

// Options configures Safe behavior
type Options struct {
	Root        string // Root directory for artifacts
	Compress    bool   // Write .json.zst instead of .json
	Compression CompressionOptions
	Logger      *zap.Logger
}

// New creates a new Safe instance
func New(opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	if opts.Compression == (CompressionOptions{}) {
		opts.Compression = DefaultCompressionOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cm, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Safe{
		root:     opts.Root,
		compress: opts.Compress,
		cm:       cm,
		logger:   opts.Logger,
	}, nil
}

// Name returns the artifact file name for a diff between two snapshots.
// Compressed artifacts carry an extra .zst suffix.
func Name(fromID, toID string, compressed bool) string {
	name := fromID + "_to_" + toID + jsonExt
	if compressed {
		name += zstdExt
	}
	return name
}

// Store writes d and returns the artifact path.
func (s *Safe) Store(d *diff.Diff) (string, error) {
	if d.FromID == "" || d.ToID == "" {
		return "", fmt.Errorf("diff artifact needs both snapshot ids")
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling diff: %w", err)
	}
	if s.compress {
		data = s.cm.compress(data)
	}

	path := filepath.Join(s.root, Name(d.FromID, d.ToID, isCompressed(data)))
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing diff artifact: %w", err)
	}

	s.logger.Info("diff artifact stored",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Bool("compressed", isCompressed(data)))
	return path, nil
}

// Get reads an artifact by file name or path, compressed or not.
func (s *Safe) Get(ref string) (*diff.Diff, error) {
	path := ref
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(s.root, filepath.Base(ref))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	data, err = s.cm.decompress(data)
	if err != nil {
		return nil, err
	}

	var d diff.Diff
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding artifact %s: %w", ref, err)
	}
	return &d, nil
}

// List returns artifact file names in lexical order.
func (s *Safe) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading artifact directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || utils.IsTemp(name) {
			continue
		}
		if strings.HasSuffix(name, jsonExt) || strings.HasSuffix(name, jsonExt+zstdExt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
