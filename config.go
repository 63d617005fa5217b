package tablekv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable of the durability pipeline and acceleration
// layer. A nil *Config passed to NewDB is replaced with DefaultConfig().
type Config struct {
	WorkingDir string

	WorkingLogPath string
	ArchiveLogPath string

	IndexPath string
	BloomPath string
	BloomSize int

	SaveThreshold int

	BatchInterval time.Duration
	BatchSize     int

	LogEngineInterval   time.Duration
	IndexEngineInterval time.Duration

	// CompactionCron, when non-empty, is a seconds-enabled crontab
	// expression (github.com/robfig/cron/v3, cron.WithSeconds()) on which
	// every resident table is fully re-saved. Empty disables the job.
	CompactionCron string

	// DisableAsyncWriter, when true, skips attaching a wal.Writer: every
	// mutation instead appends to the facade's in-memory fallback log,
	// relying on the Log Engine's own persist step to reach disk.
	DisableAsyncWriter bool
}

// configYAML mirrors Config on the wire, with intervals spelled as
// time.ParseDuration strings ("500ms", "10s") rather than nanosecond
// integers.
type configYAML struct {
	WorkingDir          string `yaml:"working_dir"`
	WorkingLogPath      string `yaml:"working_log_path"`
	ArchiveLogPath      string `yaml:"archive_log_path"`
	IndexPath           string `yaml:"index_path"`
	BloomPath           string `yaml:"bloom_path"`
	BloomSize           int    `yaml:"bloom_size"`
	SaveThreshold       int    `yaml:"save_threshold"`
	BatchInterval       string `yaml:"batch_interval"`
	BatchSize           int    `yaml:"batch_size"`
	LogEngineInterval   string `yaml:"log_engine_interval"`
	IndexEngineInterval string `yaml:"index_engine_interval"`
	CompactionCron      string `yaml:"compaction_cron"`
	DisableAsyncWriter  bool   `yaml:"disable_async_writer"`
}

// UnmarshalYAML overlays the decoded file onto whatever values c already
// holds, so fields absent from the file keep their current (default) value.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw configYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.WorkingDir != "" {
		c.WorkingDir = raw.WorkingDir
	}
	if raw.WorkingLogPath != "" {
		c.WorkingLogPath = raw.WorkingLogPath
	}
	if raw.ArchiveLogPath != "" {
		c.ArchiveLogPath = raw.ArchiveLogPath
	}
	if raw.IndexPath != "" {
		c.IndexPath = raw.IndexPath
	}
	if raw.BloomPath != "" {
		c.BloomPath = raw.BloomPath
	}
	if raw.BloomSize != 0 {
		c.BloomSize = raw.BloomSize
	}
	if raw.SaveThreshold != 0 {
		c.SaveThreshold = raw.SaveThreshold
	}
	if raw.BatchSize != 0 {
		c.BatchSize = raw.BatchSize
	}
	if raw.CompactionCron != "" {
		c.CompactionCron = raw.CompactionCron
	}
	if raw.DisableAsyncWriter {
		c.DisableAsyncWriter = true
	}

	for _, d := range []struct {
		field *time.Duration
		text  string
		key   string
	}{
		{&c.BatchInterval, raw.BatchInterval, "batch_interval"},
		{&c.LogEngineInterval, raw.LogEngineInterval, "log_engine_interval"},
		{&c.IndexEngineInterval, raw.IndexEngineInterval, "index_engine_interval"},
	} {
		if d.text == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.text)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", d.key, d.text, err)
		}
		*d.field = parsed
	}
	return nil
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkingDir:          ".",
		WorkingLogPath:      "wal.log",
		ArchiveLogPath:      "wal_archive.log",
		IndexPath:           "indexer.json",
		BloomPath:           "bloom_filter.json",
		BloomSize:           1000,
		SaveThreshold:       5,
		BatchInterval:       2 * time.Second,
		BatchSize:           10,
		LogEngineInterval:   10 * time.Second,
		IndexEngineInterval: 15 * time.Second,
		CompactionCron:      "",
	}
}

// LoadConfig reads a YAML file at path and overlays it onto DefaultConfig.
// Unset fields in the file keep their default value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.WorkingDir == "" {
		c.WorkingDir = "."
	}
	if c.SaveThreshold <= 0 {
		c.SaveThreshold = 5
	}
	if c.BloomSize <= 0 {
		c.BloomSize = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 2 * time.Second
	}
	if c.LogEngineInterval <= 0 {
		c.LogEngineInterval = 10 * time.Second
	}
	if c.IndexEngineInterval <= 0 {
		c.IndexEngineInterval = 15 * time.Second
	}
	return nil
}

// path resolves name against the config's working directory.
func (c *Config) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.WorkingDir, name)
}

func (c *Config) workingLogPath() string { return c.path(c.WorkingLogPath) }
func (c *Config) archiveLogPath() string { return c.path(c.ArchiveLogPath) }
func (c *Config) indexPath() string      { return c.path(c.IndexPath) }
func (c *Config) bloomPath() string      { return c.path(c.BloomPath) }
func (c *Config) snapshotPath(table string) string {
	return c.path(table + ".csv")
}
