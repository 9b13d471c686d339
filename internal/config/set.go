package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrUnknownKey is returned by Set for keys presence does not read.
var ErrUnknownKey = errors.New("unknown setting")

type kind int

const (
	kindString kind = iota
	kindDuration
	kindInt
	kindBool
)

// settable lists every key Set accepts and how its value is parsed.
var settable = map[string]kind{
	"application_id":            kindString,
	"api_key":                   kindString,
	"fallback_image":            kindString,
	"poll_interval":             kindDuration,
	"heartbeat_interval":        kindDuration,
	"timer_slack":               kindDuration,
	"musicbrainz":               kindBool,
	"player.source":             kindString,
	"player.mpd_network":        kindString,
	"player.mpd_address":        kindString,
	"player.mpd_password":       kindString,
	"player.mpris_bus_name":     kindString,
	"cache.dir":                 kindString,
	"cache.max_entries":         kindInt,
	"cache.checkpoint_interval": kindDuration,
	"lastfm.api_key":            kindString,
	"lastfm.api_secret":         kindString,
	"lastfm.session_key":        kindString,
	"notify.enabled":            kindBool,
	"history.enabled":           kindBool,
	"history.path":              kindString,
	"log.level":                 kindString,
	"log.file":                  kindString,
	"log.max_size_mb":           kindInt,
	"log.max_backups":           kindInt,
	"log.max_age_days":          kindInt,
	"metrics.listen":            kindString,
}

// Keys returns the settable keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settable))
	for k := range settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set writes key = value into the TOML file at path, keeping its other
// settings. The file and its directory are created when missing.
func Set(path, key, value string) error {
	kd, ok := settable[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	v, err := parseValue(kd, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Set(key, v); err != nil {
		return err
	}

	out, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Write next to the target and rename so a crash never truncates it.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func parseValue(kd kind, value string) (any, error) {
	switch kd {
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		// Stored as text so the file stays readable.
		return d.String(), nil
	case kindInt:
		return strconv.Atoi(value)
	case kindBool:
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}
