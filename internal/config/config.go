// Package config loads and persists repoindex configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the per-repository config file name.
const DefaultFileName = ".repoindex.yaml"

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// Config represents the complete repoindex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig identifies the index and the repository it represents.
type IndexConfig struct {
	// ID is the index context id. Generated when empty.
	ID string `yaml:"id" json:"id"`

	// RepositoryID is the id of the repository this index represents.
	// Required when creating a new index.
	RepositoryID string `yaml:"repository_id" json:"repository_id"`

	// RepositoryRoot is the local root path of the repository, if any.
	RepositoryRoot string `yaml:"repository_root" json:"repository_root"`

	// RepositoryURL is the public URL of the repository, if any.
	RepositoryURL string `yaml:"repository_url" json:"repository_url"`

	// IndexUpdateURL is where published index snapshots live.
	// Derived from RepositoryURL when empty.
	IndexUpdateURL string `yaml:"index_update_url" json:"index_update_url"`

	// Dir is the index root directory. Defaults to <cwd>/.repoindex/index.
	Dir string `yaml:"dir" json:"dir"`

	// DecodeCacheSize is the coordinate-decode cache size used during
	// group rebuilds (default: 4096 entries).
	DecodeCacheSize int `yaml:"decode_cache_size" json:"decode_cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Index: IndexConfig{
			DecodeCacheSize: 4096,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path. A missing file yields
// defaults; a malformed file is an error. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads the config file from a repository root directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, DefaultFileName))
}

// Save writes the configuration to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks structural validity. Identity requirements (such as a
// repository id being present when a new index is created) are enforced
// at open time, not here.
func (c *Config) Validate() error {
	if c.Version <= 0 {
		return fmt.Errorf("invalid config version: %d", c.Version)
	}
	if c.Index.DecodeCacheSize < 0 {
		return fmt.Errorf("decode_cache_size must be >= 0, got %d", c.Index.DecodeCacheSize)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Index.DecodeCacheSize == 0 {
		c.Index.DecodeCacheSize = 4096
	}
	if c.Index.Dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Index.Dir = filepath.Join(cwd, ".repoindex", "index")
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPOINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REPOINDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
}
