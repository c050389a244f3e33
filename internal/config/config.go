package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mantra-hq/mantra-releases-sub000/internal/compress"
	"github.com/mantra-hq/mantra-releases-sub000/internal/tokens"
)

const fileName = "mantra-tui.yaml"

// Config holds mantra-tui settings.
type Config struct {
	// DataDir is the OpenClaw state root (default ~/.openclaw).
	DataDir   string `yaml:"data_dir"`
	AgentsDir string `yaml:"agents_dir"`
	LCMDBPath string `yaml:"lcm_db_path"`

	Compression CompressionConfig `yaml:"compression"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type CompressionConfig struct {
	// HistoryLimit caps undo depth; 0 keeps the editor default, -1 is unbounded.
	HistoryLimit  int     `yaml:"history_limit"`
	CharsPerToken float64 `yaml:"chars_per_token"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // off, debug, info, warn, error
	File  string `yaml:"file"`
}

// Default returns the configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		DataDir:   dataDir,
		AgentsDir: filepath.Join(dataDir, "agents"),
		LCMDBPath: filepath.Join(dataDir, "lcm.db"),
		Compression: CompressionConfig{
			HistoryLimit:  compress.DefaultHistoryLimit,
			CharsPerToken: tokens.DefaultCharsPerToken,
		},
		Logging: LoggingConfig{
			Level: "off",
			File:  filepath.Join(dataDir, "logs", "mantra-tui.log"),
		},
	}
}

// DefaultDataDir returns ~/.openclaw.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".openclaw"), nil
}

// Path returns the config file location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, fileName)
}

// Load reads the config file under dataDir over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(dataDir string) (*Config, error) {
	cfg := Default(dataDir)
	path := Path(dataDir)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.AgentsDir = expandHomePath(cfg.AgentsDir)
	cfg.LCMDBPath = expandHomePath(cfg.LCMDBPath)
	cfg.Logging.File = expandHomePath(cfg.Logging.File)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML in the config file format.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Save writes cfg as YAML to the config file under its data dir.
func (c *Config) Save() error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create config dir %q: %w", c.DataDir, err)
	}
	path := Path(c.DataDir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv("MANTRA_TUI_AGENTS_DIR")); v != "" {
		c.AgentsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("MANTRA_TUI_LCM_DB")); v != "" {
		c.LCMDBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MANTRA_TUI_HISTORY_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MANTRA_TUI_HISTORY_LIMIT %q: %w", v, err)
		}
		c.Compression.HistoryLimit = n
	}
	if v := strings.TrimSpace(os.Getenv("MANTRA_TUI_CHARS_PER_TOKEN")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse MANTRA_TUI_CHARS_PER_TOKEN %q: %w", v, err)
		}
		c.Compression.CharsPerToken = f
	}
	if v := strings.TrimSpace(os.Getenv("MANTRA_TUI_DEBUG")); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.Level = "debug"
	}
	return nil
}

// Validate rejects settings the editor cannot honor.
func (c *Config) Validate() error {
	if c.Compression.HistoryLimit < -1 {
		return fmt.Errorf("compression.history_limit must be >= -1, got %d", c.Compression.HistoryLimit)
	}
	if c.Compression.CharsPerToken <= 0 {
		return fmt.Errorf("compression.chars_per_token must be > 0, got %v", c.Compression.CharsPerToken)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "off", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of off, debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func expandHomePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return trimmed
		}
		return home
	}
	if !strings.HasPrefix(trimmed, "~/") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~/"))
}
