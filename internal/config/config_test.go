package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MANTRA_TUI_HISTORY_LIMIT", "")
	t.Setenv("MANTRA_TUI_DEBUG", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AgentsDir != filepath.Join(dir, "agents") {
		t.Fatalf("AgentsDir = %q", cfg.AgentsDir)
	}
	if cfg.Compression.HistoryLimit != 200 || cfg.Compression.CharsPerToken != 4 {
		t.Fatalf("unexpected compression defaults: %+v", cfg.Compression)
	}
	if cfg.Logging.Level != "off" {
		t.Fatalf("logging should be off by default, got %q", cfg.Logging.Level)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlText := "agents_dir: /srv/agents\ncompression:\n  history_limit: 12\n  chars_per_token: 3.5\n"
	if err := os.WriteFile(Path(dir), []byte(yamlText), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MANTRA_TUI_HISTORY_LIMIT", "-1")
	t.Setenv("MANTRA_TUI_DEBUG", "1")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AgentsDir != "/srv/agents" {
		t.Fatalf("AgentsDir = %q, want file value", cfg.AgentsDir)
	}
	if cfg.Compression.HistoryLimit != -1 {
		t.Fatalf("HistoryLimit = %d, want env override -1", cfg.Compression.HistoryLimit)
	}
	if cfg.Compression.CharsPerToken != 3.5 {
		t.Fatalf("CharsPerToken = %v, want 3.5", cfg.Compression.CharsPerToken)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.LCMDBPath != filepath.Join(dir, "lcm.db") {
		t.Fatalf("LCMDBPath default lost: %q", cfg.LCMDBPath)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MANTRA_TUI_HISTORY_LIMIT", "")
	t.Setenv("MANTRA_TUI_DEBUG", "")
	if err := os.WriteFile(Path(dir), []byte("compression:\n  chars_per_token: 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "chars_per_token") {
		t.Fatalf("expected chars_per_token validation error, got %v", err)
	}
}

func TestLoadRejectsBadEnvNumber(t *testing.T) {
	t.Setenv("MANTRA_TUI_HISTORY_LIMIT", "lots")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected parse error for MANTRA_TUI_HISTORY_LIMIT")
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MANTRA_TUI_HISTORY_LIMIT", "")
	t.Setenv("MANTRA_TUI_DEBUG", "")

	cfg := Default(dir)
	cfg.Compression.HistoryLimit = 7
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Compression.HistoryLimit != 7 {
		t.Fatalf("HistoryLimit = %d, want 7", loaded.Compression.HistoryLimit)
	}
}
