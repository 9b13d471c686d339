// Package config loads presence settings from TOML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	appName = "presence"
	// EnvPrefix prefixes environment overrides. Nested keys use a double
	// underscore: PRESENCE_PLAYER__SOURCE sets player.source.
	EnvPrefix = "PRESENCE_"
)

// ErrMissing is returned by Validate when a required setting is empty.
var ErrMissing = errors.New("missing required setting")

type Config struct {
	ApplicationID     string        `koanf:"application_id"` // Discord application id
	APIKey            string        `koanf:"api_key"`        // image host API key
	FallbackImage     string        `koanf:"fallback_image"` // shown while artwork is missing
	PollInterval      time.Duration `koanf:"poll_interval"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	TimerSlack        time.Duration `koanf:"timer_slack"`
	MusicBrainz       *bool         `koanf:"musicbrainz"` // look covers up online (default: true)

	Player  PlayerConfig  `koanf:"player"`
	Cache   CacheConfig   `koanf:"cache"`
	Lastfm  LastfmConfig  `koanf:"lastfm"`
	Notify  NotifyConfig  `koanf:"notify"`
	History HistoryConfig `koanf:"history"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// PlayerConfig selects and addresses the media player.
type PlayerConfig struct {
	Source       string `koanf:"source"` // "mpd" or "mpris"
	MPDNetwork   string `koanf:"mpd_network"`
	MPDAddress   string `koanf:"mpd_address"`
	MPDPassword  string `koanf:"mpd_password"`
	MPRISBusName string `koanf:"mpris_bus_name"` // empty follows the playing player
}

// CacheConfig holds the artwork cache settings.
type CacheConfig struct {
	Dir                string        `koanf:"dir"`
	MaxEntries         int           `koanf:"max_entries"`
	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
}

// LastfmConfig enables now-playing and scrobbling when complete.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
}

// NotifyConfig toggles desktop notifications.
type NotifyConfig struct {
	Enabled bool `koanf:"enabled"`
}

// HistoryConfig toggles the listening history database.
type HistoryConfig struct {
	Enabled *bool  `koanf:"enabled"` // default: true
	Path    string `koanf:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string `koanf:"listen"`
}

// Load reads the default config files and the environment.
func Load() (*Config, error) {
	return LoadFrom(Paths()...)
}

// LoadFrom reads the given files in order (later files win), then the
// environment. Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// envKey maps PRESENCE_CACHE__MAX_ENTRIES to cache.max_entries.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Paths lists the config files in load order.
func Paths() []string {
	return []string{
		UserPath(),
		"config.toml",
	}
}

// UserPath is the per-user config file, the one Set writes.
func UserPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.TimerSlack <= 0 {
		c.TimerSlack = time.Second
	}
	c.FallbackImage = strings.TrimSpace(c.FallbackImage)

	if c.Player.Source == "" {
		c.Player.Source = "mpd"
	}
	c.Player.Source = strings.ToLower(c.Player.Source)

	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(xdg.CacheHome, appName, "images")
	}
	c.Cache.Dir = expandPath(c.Cache.Dir)
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 2048
	}
	if c.Cache.CheckpointInterval <= 0 {
		c.Cache.CheckpointInterval = 10 * time.Minute
	}

	if c.History.Path == "" {
		c.History.Path = filepath.Join(xdg.DataHome, appName, "history.db")
	}
	c.History.Path = expandPath(c.History.Path)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(xdg.StateHome, appName, "logs", appName+".log")
	}
	c.Log.File = expandPath(c.Log.File)
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}

// Validate reports missing required settings, wrapping ErrMissing.
func (c *Config) Validate() error {
	var missing []string
	if c.ApplicationID == "" {
		missing = append(missing, "application_id")
	}
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (use `presence set <key> <value>`)", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// HasLastfmConfig returns true if Last.fm is fully configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != "" && c.Lastfm.SessionKey != ""
}

// HistoryEnabled returns whether plays are recorded (default: true).
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// MusicBrainzEnabled returns whether untagged artwork is looked up on
// MusicBrainz (default: true).
func (c *Config) MusicBrainzEnabled() bool {
	return c.MusicBrainz == nil || *c.MusicBrainz
}

// LockPath is the single-instance lock file, next to the cache directory.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.Cache.Dir), appName+".lock")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
