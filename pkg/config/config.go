// Package config loads dropper.toml, the per-server configuration sitting
// next to pkg.yml. Every field has a sensible default; a missing config
// file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dropper-mc/dropper/pkg/errors"
)

// DefaultFileName is the config file's conventional name in a server root.
const DefaultFileName = "dropper.toml"

// Defaults users most often leave alone.
const (
	DefaultPluginDir   = "plugins"
	DefaultStateFile   = ".dropper/state.json"
	DefaultCacheTTL    = 15 * time.Minute
	DefaultConcurrency = 4
	DefaultRetries     = 3
)

// SourceConfig describes one upstream source.
type SourceConfig struct {
	ID       string `toml:"id"`
	Kind     string `toml:"kind"` // "bukkit" or "spiget"
	URL      string `toml:"url"`
	Priority int    `toml:"priority"`
}

// Config is the loaded dropper.toml, with paths resolved relative to the
// server root.
type Config struct {
	PluginDir   string         `toml:"plugin_dir"`
	StateFile   string         `toml:"state_file"`
	CacheDir    string         `toml:"cache_dir"`
	CacheTTL    duration       `toml:"cache_ttl"`
	Concurrency int            `toml:"concurrency"`
	Retries     int            `toml:"retries"`
	Sources     []SourceConfig `toml:"sources"`

	root string
}

// duration lets TOML carry values like "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultSources is what a server gets without a [[sources]] block.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{ID: "bukkit", Kind: "bukkit", URL: "https://dev.bukkit.org/projects", Priority: 1},
		{ID: "spiget", Kind: "spiget", URL: "https://api.spiget.org/v2/resources", Priority: 2},
	}
}

// Load reads dropper.toml from the server root. A missing file yields the
// defaults; a present but invalid file is an error, never a silent
// fallback.
func Load(root string) (*Config, error) {
	cfg := &Config{
		PluginDir:   DefaultPluginDir,
		StateFile:   DefaultStateFile,
		CacheTTL:    duration{DefaultCacheTTL},
		Concurrency: DefaultConcurrency,
		Retries:     DefaultRetries,
		root:        root,
	}

	path := filepath.Join(root, DefaultFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Sources = DefaultSources()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", DefaultFileName)
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "concurrency must not be negative")
	}
	if c.Retries < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retries must not be negative")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.ID == "" || s.URL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "source needs both id and url")
		}
		if s.Kind != "bukkit" && s.Kind != "spiget" {
			return errors.New(errors.ErrCodeInvalidConfig, "source %s has unknown kind %q", s.ID, s.Kind)
		}
		if seen[s.ID] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate source id %s", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// PluginPath returns the plugin directory resolved against the root.
func (c *Config) PluginPath() string { return c.resolve(c.PluginDir) }

// StatePath returns the state file resolved against the root.
func (c *Config) StatePath() string { return c.resolve(c.StateFile) }

// ManifestPath returns the pkg.yml location for this server.
func (c *Config) ManifestPath() string { return filepath.Join(c.root, "pkg.yml") }

// CachePath returns the metadata cache directory; empty means the
// user-level default should be used.
func (c *Config) CachePath() string {
	if c.CacheDir == "" {
		return ""
	}
	return c.resolve(c.CacheDir)
}

// TTL returns the metadata cache lifetime.
func (c *Config) TTL() time.Duration { return c.CacheTTL.Duration }

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}
