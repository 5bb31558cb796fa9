package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.Repo.Path = t.TempDir()
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "main", cfg.Repo.Branch)
	assert.Equal(t, int64(10*1024*1024), cfg.Harvest.FileSizeLimit)
	assert.Equal(t, 0, cfg.Harvest.NumberOfWorkers, "worker heuristic applies when unset")
	assert.Equal(t, "snappy", cfg.Output.Compression)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repo:
  branch: develop
harvest:
  number_of_workers: 3
  blame_only_for_head: true
  file_size_limit: 1048576
output:
  compression: zstd
log:
  level: debug
`), 0644))

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))

	assert.Equal(t, "develop", cfg.Repo.Branch)
	assert.Equal(t, 3, cfg.Harvest.NumberOfWorkers)
	assert.True(t, cfg.Harvest.BlameOnlyForHead)
	assert.Equal(t, int64(1048576), cfg.Harvest.FileSizeLimit)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched defaults survive the overlay.
	assert.Equal(t, "./git-metadata", cfg.Output.Dir)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	require.Error(t, LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("repo: [not a mapping"), 0644))
	require.Error(t, LoadFile(bad, &cfg))
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig(t)
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing repo path", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Repo.Path = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("repo path not a directory", func(t *testing.T) {
		cfg := validConfig(t)
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		cfg.Repo.Path = file
		require.Error(t, cfg.Validate())
	})

	t.Run("missing branch", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Repo.Branch = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("negative workers", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Harvest.NumberOfWorkers = -1
		require.Error(t, cfg.Validate())
	})

	t.Run("negative size limit", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Harvest.FileSizeLimit = -1
		require.Error(t, cfg.Validate())
	})

	t.Run("unusable ram disk dir", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Harvest.RAMDiskDir = filepath.Join(t.TempDir(), "missing")
		require.Error(t, cfg.Validate())
	})

	t.Run("missing output dir", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Output.Dir = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown compression", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Output.Compression = "brotli"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown compression")
	})
}
