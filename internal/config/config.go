// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the repository-local directory holding the index and config.
const Dir = ".sheets"

type Config struct {
	Storage struct {
		SnapshotsDir string `json:"snapshots_dir" yaml:"snapshots_dir"`
		DiffsDir     string `json:"diffs_dir" yaml:"diffs_dir"`
		IndexDir     string `json:"index_dir" yaml:"index_dir"`
		CacheSize    int    `json:"cache_size" yaml:"cache_size"`
	} `json:"storage" yaml:"storage"`

	Diffs struct {
		Compress bool `json:"compress" yaml:"compress"` // store artifacts as .json.zst
	} `json:"diffs" yaml:"diffs"`

	Git struct {
		AutoCommit bool `json:"auto_commit" yaml:"auto_commit"`
	} `json:"git" yaml:"git"`

	LogLevel string `json:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var c Config
	c.Storage.SnapshotsDir = "snapshots"
	c.Storage.DiffsDir = "diffs"
	c.Storage.IndexDir = filepath.Join(Dir, "index")
	c.Storage.CacheSize = 64
	c.LogLevel = "warn"
	return &c
}

// Path returns the config file location inside root: config.yaml when
// present, config.json otherwise.
func Path(root string) string {
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(root, Dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(root, Dir, "config.json")
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// Load reads path over the defaults, as YAML or JSON by extension. A
// missing file yields the defaults. SHEETS_LOG_LEVEL overrides the
// configured level.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	case isYAML(path):
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	if level := os.Getenv("SHEETS_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Storage.SnapshotsDir == "" || c.Storage.DiffsDir == "" || c.Storage.IndexDir == "" {
		return fmt.Errorf("storage directories must not be empty")
	}
	if c.Storage.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}

// Save writes c as YAML or indented JSON, by extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve joins a configured directory to root unless it is absolute.
func Resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
