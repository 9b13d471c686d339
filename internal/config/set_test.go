package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence", "config.toml")

	require.NoError(t, Set(path, "application_id", "123"))
	require.NoError(t, Set(path, "api_key", "secret"))
	require.NoError(t, Set(path, "fallback_image", "https://img.test/f.png"))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "123", cfg.ApplicationID)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "https://img.test/f.png", cfg.FallbackImage)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSet_KeepsOtherSettings(t *testing.T) {
	path := writeConfig(t, `
application_id = "keep"

[player]
source = "mpris"
`)
	require.NoError(t, Set(path, "cache.max_entries", "100"))
	require.NoError(t, Set(path, "poll_interval", "2s"))
	require.NoError(t, Set(path, "notify.enabled", "true"))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", cfg.ApplicationID)
	assert.Equal(t, "mpris", cfg.Player.Source)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.True(t, cfg.Notify.Enabled)
}

func TestSet_Overwrites(t *testing.T) {
	path := writeConfig(t, `api_key = "old"`)
	require.NoError(t, Set(path, "api_key", "new"))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.APIKey)
}

func TestSet_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	assert.ErrorIs(t, Set(path, "nope", "x"), ErrUnknownKey)
	assert.Error(t, Set(path, "cache.max_entries", "many"))
	assert.Error(t, Set(path, "poll_interval", "soon"))
	assert.Error(t, Set(path, "notify.enabled", "perhaps"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "application_id")
	assert.Contains(t, keys, "api_key")
	assert.Contains(t, keys, "fallback_image")
	assert.IsIncreasing(t, keys)
}
