// Package config loads pmemctl settings from a TOML file and merges them
// with command-line flags. Flags set explicitly always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/joshuapare/pmemkit/internal/format"
	"github.com/joshuapare/pmemkit/pool"
	"github.com/joshuapare/pmemkit/pool/dirty"
)

// Config holds the settings pmemctl passes to pool.Create and pool.Open.
type Config struct {
	Layout    string
	Size      uint64
	LogSize   uint64
	FlushMode dirty.FlushMode
	PreFault  bool
	LogLevel  string
}

// Default returns the settings used when neither flags nor file set them.
func Default() Config {
	d := pool.DefaultOptions()
	return Config{
		Layout:    "pmemctl-vector",
		Size:      d.Size,
		LogSize:   d.LogSize,
		FlushMode: d.FlushMode,
		LogLevel:  "warn",
	}
}

// PoolOptions converts c for the pool package.
func (c Config) PoolOptions() pool.Options {
	return pool.Options{
		Layout:    c.Layout,
		Size:      c.Size,
		LogSize:   c.LogSize,
		FlushMode: c.FlushMode,
		PreFault:  c.PreFault,
	}
}

// FileConfig is the TOML form of Config. Sizes are strings such as "64MiB".
type FileConfig struct {
	Layout    string `toml:"layout"`
	Size      string `toml:"size"`
	LogSize   string `toml:"log_size"`
	FlushMode string `toml:"flush_mode"`
	PreFault  *bool  `toml:"prefault"`
	LogLevel  string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.pmemkit/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pmemkit", "config.toml")
	}
	return ""
}

// FileExists reports whether p exists.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig copies values from fc into cfg, skipping flags named in
// changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := setter{changed: changed}

	s.setString("layout", fc.Layout, &cfg.Layout)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("prefault", fc.PreFault, &cfg.PreFault)

	if err := s.setSize("size", fc.Size, &cfg.Size); err != nil {
		return err
	}
	if err := s.setSize("log-size", fc.LogSize, &cfg.LogSize); err != nil {
		return err
	}
	return s.setFlushMode("flush-mode", fc.FlushMode, &cfg.FlushMode)
}

// ParseSize parses a byte count such as "8MiB" or "65536".
func ParseSize(flag, value string) (uint64, error) {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", flag, err)
	}
	if n < format.PageSize {
		return 0, fmt.Errorf("parse %s: %d bytes is less than one page", flag, n)
	}
	return n, nil
}

type setter struct {
	changed map[string]bool
}

func (s setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s setter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s setter) setSize(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := ParseSize(flag, value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func (s setter) setFlushMode(flag, value string, dst *dirty.FlushMode) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	m, ok := dirty.ParseFlushMode(value)
	if !ok {
		return fmt.Errorf("parse %s: unknown mode %q", flag, value)
	}
	*dst = m
	return nil
}
