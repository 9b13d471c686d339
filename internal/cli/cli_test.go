package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/history"
)

// execute runs the command tree against a private config file.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolatedConfig points every path at a temp directory.
func isolatedConfig(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "config.toml")
	content := "[cache]\ndir = \"" + filepath.Join(root, "images") + "\"\n" +
		"[history]\npath = \"" + filepath.Join(root, "history.db") + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, root
}

func TestSet_WritesConfigFile(t *testing.T) {
	path, _ := isolatedConfig(t)

	out, err := execute(t, path, "set", "application_id", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "application_id updated in "+path)

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.ApplicationID)
}

func TestSet_UnknownKey(t *testing.T) {
	path, _ := isolatedConfig(t)

	_, err := execute(t, path, "set", "volume", "11")
	assert.ErrorIs(t, err, config.ErrUnknownKey)
}

func TestSet_WrongArgs(t *testing.T) {
	path, _ := isolatedConfig(t)

	_, err := execute(t, path, "set", "api_key")
	assert.Error(t, err)
}

func TestRun_MissingCredentials(t *testing.T) {
	path, _ := isolatedConfig(t)
	t.Setenv("PRESENCE_APPLICATION_ID", "")
	t.Setenv("PRESENCE_API_KEY", "")

	_, err := execute(t, path, "run", "--no-log-file")
	assert.ErrorIs(t, err, config.ErrMissing)
}

func TestConfigPath(t *testing.T) {
	path, _ := isolatedConfig(t)

	out, err := execute(t, path, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "found    "+path)
	assert.Contains(t, out, config.UserPath())
}

func TestCache_StatsAndClear(t *testing.T) {
	path, root := isolatedConfig(t)
	dir := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("https://img.test/a.png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("https://img.test/b.png"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad"), []byte("not a url"), 0o600))

	out, err := execute(t, path, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "2 valid of 3 files")

	out, err = execute(t, path, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 3 cached entries")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCache_StatsMissingDir(t *testing.T) {
	path, _ := isolatedConfig(t)

	out, err := execute(t, path, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "0 valid of 0 files")
}

func TestHistory(t *testing.T) {
	path, root := isolatedConfig(t)

	out, err := execute(t, path, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded yet.")

	store, err := history.Open(filepath.Join(root, "history.db"))
	require.NoError(t, err)
	start := time.Now().Add(-time.Hour)
	require.NoError(t, store.Start(context.Background(),
		history.Play{TrackKey: "a", Title: "Song", Artist: "Band", Album: "LP", StartedAt: start}, start))
	require.NoError(t, store.EndAll(context.Background(), start.Add(3*time.Minute)))
	require.NoError(t, store.Close())

	out, err = execute(t, path, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Band")
	assert.Contains(t, out, "Song")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "3m0s")
}
