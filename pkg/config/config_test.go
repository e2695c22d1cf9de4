package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropper-mc/dropper/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DefaultFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PluginDir != DefaultPluginDir || cfg.Concurrency != DefaultConcurrency {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.TTL() != DefaultCacheTTL {
		t.Errorf("TTL() = %v, want %v", cfg.TTL(), DefaultCacheTTL)
	}
	if len(cfg.Sources) != 2 {
		t.Errorf("Sources = %+v, want the two defaults", cfg.Sources)
	}
}

func TestLoadParsesFullConfig(t *testing.T) {
	root := writeConfig(t, `
plugin_dir = "srv/plugins"
state_file = "srv/.dropper/state.json"
cache_ttl = "1h"
concurrency = 8
retries = 5

[[sources]]
id = "bukkit"
kind = "bukkit"
url = "https://dev.bukkit.org/projects"
priority = 1

[[sources]]
id = "mirror"
kind = "spiget"
url = "https://mirror.example.org/v2/resources"
priority = 2
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Concurrency != 8 || cfg.Retries != 5 {
		t.Errorf("concurrency/retries = %d/%d, want 8/5", cfg.Concurrency, cfg.Retries)
	}
	if cfg.TTL() != time.Hour {
		t.Errorf("TTL() = %v, want 1h", cfg.TTL())
	}
	if got := cfg.PluginPath(); got != filepath.Join(root, "srv", "plugins") {
		t.Errorf("PluginPath() = %s", got)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1].ID != "mirror" {
		t.Errorf("Sources = %+v", cfg.Sources)
	}
}

func TestLoadRejectsUnknownSourceKind(t *testing.T) {
	root := writeConfig(t, `
[[sources]]
id = "weird"
kind = "ftp"
url = "ftp://example.org"
`)
	_, err := Load(root)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadRejectsDuplicateSourceID(t *testing.T) {
	root := writeConfig(t, `
[[sources]]
id = "bukkit"
kind = "bukkit"
url = "https://a.example.org"

[[sources]]
id = "bukkit"
kind = "spiget"
url = "https://b.example.org"
`)
	_, err := Load(root)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	root := writeConfig(t, "plugin_dir = [broken")
	_, err := Load(root)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestAbsolutePathsPassThrough(t *testing.T) {
	root := writeConfig(t, `plugin_dir = "/srv/minecraft/plugins"`)
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.PluginPath(); got != "/srv/minecraft/plugins" {
		t.Errorf("PluginPath() = %s, want the absolute path untouched", got)
	}
}
