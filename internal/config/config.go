// Package config holds the harvester configuration and its validation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileSizeLimit is the default blame size ceiling: 10 MiB.
const DefaultFileSizeLimit = 10 * 1024 * 1024

// Config is the full harvester configuration. Values come from an optional
// YAML file overlaid by CLI flags; flags win.
type Config struct {
	Repo    RepoConfig    `yaml:"repo"`
	Harvest HarvestConfig `yaml:"harvest"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Publish PublishConfig `yaml:"publish"`
}

// RepoConfig locates the repository and the revision sequence to follow.
type RepoConfig struct {
	// Path is the repository to analyze.
	Path string `yaml:"path"`

	// Branch is the branch whose history is enumerated.
	Branch string `yaml:"branch"`
}

// HarvestConfig tunes the extraction workers.
type HarvestConfig struct {
	// NumberOfWorkers overrides the worker pool heuristic (NumCPU/3,
	// floored to 1) when positive.
	NumberOfWorkers int `yaml:"number_of_workers"`

	// FileSizeLimit is the blame size ceiling in bytes. Files larger than
	// this are skipped entirely. Zero disables the limit.
	FileSizeLimit int64 `yaml:"file_size_limit"`

	// BlameOnlyForHead restricts blame to changed files for every revision
	// except the branch head.
	BlameOnlyForHead bool `yaml:"blame_only_for_head"`

	// RAMDiskDir is the backing directory for worker workspaces. A RAM
	// disk (e.g. /dev/shm) speeds up checkout-heavy runs; empty means the
	// process temp dir.
	RAMDiskDir string `yaml:"ram_disk_dir"`

	// Verbose enables per-file progress logging.
	Verbose bool `yaml:"verbose"`
}

// OutputConfig describes the dataset destination.
type OutputConfig struct {
	// Dir is the dataset directory.
	Dir string `yaml:"dir"`

	// Compression selects the parquet codec: "snappy", "zstd" or "none".
	Compression string `yaml:"compression"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the listener
}

// PublishConfig configures the optional post-run dataset upload.
type PublishConfig struct {
	// URL is a blob bucket URL (file://, gs://, s3://). Empty disables
	// publishing.
	URL string `yaml:"url"`
}

// Default returns the configuration defaults applied before file and flag
// overrides.
func Default() Config {
	return Config{
		Repo: RepoConfig{
			Branch: "main",
		},
		Harvest: HarvestConfig{
			FileSizeLimit: DefaultFileSizeLimit,
		},
		Output: OutputConfig{
			Dir:         "./git-metadata",
			Compression: "snappy",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadFile overlays cfg with values from a YAML file.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate fails fast on configuration errors, before any worker is
// spawned.
func (c *Config) Validate() error {
	if c.Repo.Path == "" {
		return fmt.Errorf("repository path is required")
	}
	info, err := os.Stat(c.Repo.Path)
	if err != nil {
		return fmt.Errorf("repository path %s: %w", c.Repo.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository path %s is not a directory", c.Repo.Path)
	}
	if c.Repo.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	if c.Harvest.NumberOfWorkers < 0 {
		return fmt.Errorf("number of workers must not be negative")
	}
	if c.Harvest.FileSizeLimit < 0 {
		return fmt.Errorf("file size limit must not be negative")
	}
	if c.Harvest.RAMDiskDir != "" {
		if info, err := os.Stat(c.Harvest.RAMDiskDir); err != nil || !info.IsDir() {
			return fmt.Errorf("ram disk dir %s is not a usable directory", c.Harvest.RAMDiskDir)
		}
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	switch c.Output.Compression {
	case "", "snappy", "zstd", "none", "uncompressed":
	default:
		return fmt.Errorf("unknown compression %q", c.Output.Compression)
	}
	return nil
}
