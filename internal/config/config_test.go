package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/dupfind/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "scan:\n  root: /tmp/test\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test", cfg.Scan.Root)
	assert.Equal(t, "**", cfg.Scan.Pattern)
	assert.EqualValues(t, 1, cfg.Scan.MinFileSize)
	assert.Equal(t, 4096, cfg.Scan.ChunkSize)
	assert.Equal(t, "md5", cfg.Scan.Hash)
	assert.True(t, cfg.Scan.SkipUniqueSizes)
	assert.Equal(t, config.GroupingPairs, cfg.Grouping)
	assert.Equal(t, config.ModeScreenAndFile, cfg.MessageLog.Mode)
	assert.Equal(t, 100, cfg.MessageLog.FlushThreshold)
	assert.True(t, cfg.MessageLog.Enabled)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *cfg)
}

func TestLoad_OverridesMeaningfulZeros(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
scan:
  min_file_size: 0
  skip_unique_sizes: false
  read_timeout: 5s
  exclude_dirs: [node_modules, .git]
message_log:
  enabled: false
`))
	require.NoError(t, err)
	assert.Zero(t, cfg.Scan.MinFileSize)
	assert.False(t, cfg.Scan.SkipUniqueSizes)
	assert.Equal(t, 5*time.Second, cfg.Scan.ReadTimeout)
	assert.Equal(t, []string{"node_modules", ".git"}, cfg.Scan.ExcludeDirs)
	assert.False(t, cfg.MessageLog.Enabled)
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := config.Load(writeConfig(t, "scan_paths:\n  - /tmp\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"chunk size":   func(c *config.Config) { c.Scan.ChunkSize = -1 },
		"min size":     func(c *config.Config) { c.Scan.MinFileSize = -5 },
		"hash":         func(c *config.Config) { c.Scan.Hash = "crc32" },
		"pattern":      func(c *config.Config) { c.Scan.Pattern = "[abc" },
		"workers":      func(c *config.Config) { c.Scan.Workers = -1 },
		"grouping":     func(c *config.Config) { c.Grouping = "clusters" },
		"log format":   func(c *config.Config) { c.LogFormat = "xml" },
		"mode":         func(c *config.Config) { c.MessageLog.Mode = "printer" },
		"schedule":     func(c *config.Config) { c.Schedule = "every tuesday" },
		"read timeout": func(c *config.Config) { c.Scan.ReadTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := config.Default()
	cfg.Schedule = "0 2 * * 0"
	assert.NoError(t, cfg.Validate())
}

func TestScanOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Scan.Root = "relative/dir"
	cfg.Scan.ExcludeDirs = []string{"tmp"}

	opts, err := cfg.ScanOptions()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(opts.Root))
	assert.Equal(t, "relative/dir", filepath.ToSlash(opts.Root[len(opts.Root)-len("relative/dir"):]))
	assert.Equal(t, []string{"tmp"}, opts.ExcludeDirs)
	assert.Equal(t, "md5", opts.Hash)
	assert.EqualValues(t, 1, opts.MinFileSize)

	cfg.Scan.ExcludeDirs[0] = "changed"
	assert.Equal(t, []string{"tmp"}, opts.ExcludeDirs, "options do not alias config")
}
