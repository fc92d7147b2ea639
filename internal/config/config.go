package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/eargollo/dupfind/internal/scan"
)

// Grouping values.
const (
	GroupingPairs  = "pairs"
	GroupingGroups = "groups"
)

// Message log modes.
const (
	ModeScreenAndFile = "screen_and_file"
	ModeScreen        = "screen"
	ModeFile          = "file"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	Scan       ScanConfig       `yaml:"scan"        json:"scan"`
	Grouping   string           `yaml:"grouping"    json:"grouping"`
	LogLevel   string           `yaml:"log_level"   json:"log_level"`
	LogFormat  string           `yaml:"log_format"  json:"log_format"`
	MessageLog MessageLogConfig `yaml:"message_log" json:"message_log"`
	DBPath     string           `yaml:"db_path"     json:"-"`
	HTTPAddr   string           `yaml:"http_addr"   json:"-"`
	Schedule   string           `yaml:"schedule"    json:"schedule"`
}

// ScanConfig holds the scan section.
type ScanConfig struct {
	Root            string        `yaml:"root"              json:"root"`
	Pattern         string        `yaml:"pattern"           json:"pattern"`
	MinFileSize     int64         `yaml:"min_file_size"     json:"min_file_size"`
	ChunkSize       int           `yaml:"chunk_size"        json:"chunk_size"`
	ExcludeDirs     []string      `yaml:"exclude_dirs"      json:"exclude_dirs"`
	Hash            string        `yaml:"hash"              json:"hash"`
	Walkers         int           `yaml:"walkers"           json:"walkers"`
	Workers         int           `yaml:"workers"           json:"workers"`
	Verifiers       int           `yaml:"verifiers"         json:"verifiers"`
	ReadTimeout     time.Duration `yaml:"read_timeout"      json:"read_timeout"`
	SkipSymlinks    bool          `yaml:"skip_symlinks"     json:"skip_symlinks"`
	SkipUniqueSizes bool          `yaml:"skip_unique_sizes" json:"skip_unique_sizes"`
}

// MessageLogConfig controls the human-readable run transcript.
type MessageLogConfig struct {
	Enabled        bool   `yaml:"enabled"         json:"enabled"`
	Dir            string `yaml:"dir"             json:"dir"`
	Prefix         string `yaml:"prefix"          json:"prefix"`
	Mode           string `yaml:"mode"            json:"mode"`
	FlushThreshold int    `yaml:"flush_threshold" json:"flush_threshold"`
}

// Default returns the configuration used when no file is present. Values
// whose zero is meaningful (min_file_size: 0, skip_unique_sizes: false) are
// set here so a file can override them.
func Default() Config {
	o := scan.DefaultOptions()
	cfg := Config{
		Scan: ScanConfig{
			Root:            o.Root,
			Pattern:         o.Pattern,
			MinFileSize:     o.MinFileSize,
			ChunkSize:       o.ChunkSize,
			Hash:            o.Hash,
			Walkers:         o.Walkers,
			Workers:         o.Workers,
			Verifiers:       o.Verifiers,
			ReadTimeout:     o.ReadTimeout,
			SkipUniqueSizes: o.SkipUniqueSizes,
		},
		MessageLog: MessageLogConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Scan.Root == "" {
		c.Scan.Root = "."
	}
	if c.Scan.Pattern == "" {
		c.Scan.Pattern = "**"
	}
	if c.Scan.ChunkSize == 0 {
		c.Scan.ChunkSize = 4096
	}
	if c.Scan.Hash == "" {
		c.Scan.Hash = "md5"
	}
	if c.Scan.Walkers == 0 {
		c.Scan.Walkers = 1
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 4
	}
	if c.Scan.Verifiers == 0 {
		c.Scan.Verifiers = 2
	}
	if c.Grouping == "" {
		c.Grouping = GroupingPairs
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.MessageLog.Dir == "" {
		c.MessageLog.Dir = "."
	}
	if c.MessageLog.Prefix == "" {
		c.MessageLog.Prefix = "dupfind"
	}
	if c.MessageLog.Mode == "" {
		c.MessageLog.Mode = ModeScreenAndFile
	}
	if c.MessageLog.FlushThreshold == 0 {
		c.MessageLog.FlushThreshold = 100
	}
	if c.DBPath == "" {
		c.DBPath = "dupfind.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns the default Config so the tool
// runs without one.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	s := c.Scan
	if s.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("scan.chunk_size must be positive, got %d", s.ChunkSize))
	}
	if s.MinFileSize < 0 {
		errs = append(errs, fmt.Errorf("scan.min_file_size must not be negative, got %d", s.MinFileSize))
	}
	if _, err := scan.HashFunc(s.Hash); err != nil {
		errs = append(errs, fmt.Errorf("scan.hash: %w", err))
	}
	if _, err := scan.NewMatcher(s.Pattern); err != nil {
		errs = append(errs, fmt.Errorf("scan.pattern: %w", err))
	}
	if s.Walkers < 1 || s.Workers < 1 || s.Verifiers < 1 {
		errs = append(errs, errors.New("scan.walkers, scan.workers and scan.verifiers must be at least 1"))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("scan.read_timeout must not be negative, got %s", s.ReadTimeout))
	}
	if !slices.Contains([]string{GroupingPairs, GroupingGroups}, c.Grouping) {
		errs = append(errs, fmt.Errorf("grouping must be %q or %q, got %q", GroupingPairs, GroupingGroups, c.Grouping))
	}
	if !slices.Contains([]string{"console", "json"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if !slices.Contains([]string{ModeScreenAndFile, ModeScreen, ModeFile}, c.MessageLog.Mode) {
		errs = append(errs, fmt.Errorf("message_log.mode %q is not one of %s, %s, %s",
			c.MessageLog.Mode, ModeScreenAndFile, ModeScreen, ModeFile))
	}
	if c.MessageLog.FlushThreshold < 1 {
		errs = append(errs, fmt.Errorf("message_log.flush_threshold must be at least 1, got %d", c.MessageLog.FlushThreshold))
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", c.Schedule, err))
		}
	}
	return errors.Join(errs...)
}

// ScanOptions builds the immutable scan.Options, resolving the root to an
// absolute path.
func (c *Config) ScanOptions() (scan.Options, error) {
	root, err := filepath.Abs(c.Scan.Root)
	if err != nil {
		return scan.Options{}, fmt.Errorf("resolve root %q: %w", c.Scan.Root, err)
	}
	return scan.Options{
		Root:            root,
		Pattern:         c.Scan.Pattern,
		MinFileSize:     c.Scan.MinFileSize,
		ChunkSize:       c.Scan.ChunkSize,
		ExcludeDirs:     slices.Clone(c.Scan.ExcludeDirs),
		Hash:            c.Scan.Hash,
		Walkers:         c.Scan.Walkers,
		Workers:         c.Scan.Workers,
		Verifiers:       c.Scan.Verifiers,
		ReadTimeout:     c.Scan.ReadTimeout,
		SkipSymlinks:    c.Scan.SkipSymlinks,
		SkipUniqueSizes: c.Scan.SkipUniqueSizes,
	}, nil
}
