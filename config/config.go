// Package config loads the volume's settings. Values come from, in increasing
// order of precedence: built-in defaults, a YAML file, and SHADOWFS_*
// environment variables. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dargueta/shadowfs"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const EnvVarPrefix = "SHADOWFS"

type Config struct {
	// Root is the host directory holding the files' real contents.
	Root            string `yaml:"root" split_words:"true"`
	JournalPath     string `yaml:"journal_path" split_words:"true"`
	CheckpointPath  string `yaml:"checkpoint_path" split_words:"true"`
	BlockSize       uint   `yaml:"block_size" split_words:"true"`
	NumBlocks       uint   `yaml:"num_blocks" split_words:"true"`
	InodeTableSize  uint   `yaml:"inode_table_size" split_words:"true"`
	MaxFiles        uint   `yaml:"max_files" split_words:"true"`
	JournalCapacity uint   `yaml:"journal_capacity" split_words:"true"`
	// UserID and GroupID identify the requester. New files are owned by them.
	UserID   int32  `yaml:"user_id" split_words:"true"`
	GroupID  int32  `yaml:"group_id" split_words:"true"`
	LogLevel string `yaml:"log_level" split_words:"true"`
}

func Defaults() Config {
	return Config{
		Root:            "shadowfs",
		JournalPath:     "journal.log",
		CheckpointPath:  "file_system_state.dat",
		BlockSize:       4096,
		NumBlocks:       1024,
		InodeTableSize:  128,
		MaxFiles:        128,
		JournalCapacity: 1024,
		UserID:          11,
		GroupID:         10,
		LogLevel:        "info",
	}
}

// Load builds the configuration. If `path` is non-empty and there's no file
// there, the defaults are written to it so they can be edited later.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			if err := writeDefaults(path, cfg); err != nil {
				return cfg, err
			}
		} else if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, shadowfs.ErrInvalidArgument.Wrap(
				fmt.Errorf("unmarshaling config file %s: %w", path, err),
			)
		}
	}

	if err := envconfig.Process(EnvVarPrefix, &cfg); err != nil {
		return cfg, shadowfs.ErrInvalidArgument.Wrap(
			fmt.Errorf("parsing environment variables: %w", err),
		)
	}

	return cfg, cfg.Validate()
}

func writeDefaults(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// Validate checks every setting, returning an error matching
// [shadowfs.ErrInvalidArgument] naming the first bad one.
func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		switch {
		case c.Root == "":
			return "root", "ROOT"
		case c.JournalPath == "":
			return "journal_path", "JOURNAL_PATH"
		case c.CheckpointPath == "":
			return "checkpoint_path", "CHECKPOINT_PATH"
		case c.BlockSize == 0:
			return "block_size", "BLOCK_SIZE"
		case c.NumBlocks == 0:
			return "num_blocks", "NUM_BLOCKS"
		case c.InodeTableSize == 0:
			return "inode_table_size", "INODE_TABLE_SIZE"
		case c.MaxFiles == 0:
			return "max_files", "MAX_FILES"
		case c.JournalCapacity == 0:
			return "journal_capacity", "JOURNAL_CAPACITY"
		}
		return "", ""
	}(); y != "" {
		return shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("missing or zero configuration: %s / %s_%s", y, EnvVarPrefix, e),
		)
	}

	limits := []struct {
		name  string
		value uint
		max   uint
	}{
		{"num_blocks", c.NumBlocks, shadowfs.MaxBlocks},
		{"inode_table_size", c.InodeTableSize, shadowfs.MaxInodes},
		{"max_files", c.MaxFiles, shadowfs.MaxFiles},
	}
	for _, limit := range limits {
		if limit.value > limit.max {
			return shadowfs.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("%s is %d, max is %d", limit.name, limit.value, limit.max),
			)
		}
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, shadowfs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("bad log level %q", c.LogLevel),
		)
	}
	return level, nil
}
