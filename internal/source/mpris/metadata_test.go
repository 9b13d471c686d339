package mpris

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/presence/internal/track"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, track.StatePlaying, parseStatus("Playing"))
	assert.Equal(t, track.StatePaused, parseStatus("Paused"))
	assert.Equal(t, track.StateStopped, parseStatus("Stopped"))
	assert.Equal(t, track.StateStopped, parseStatus(42))
}

func TestTrackFromMetadata_Full(t *testing.T) {
	m := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/org/mpd/Tracks/12")),
		"xesam:url":     dbus.MakeVariant("file:///music/a.flac"),
		"xesam:title":   dbus.MakeVariant("Song"),
		"xesam:artist":  dbus.MakeVariant([]string{"A", "B"}),
		"xesam:album":   dbus.MakeVariant("Album"),
		"mpris:length":  dbus.MakeVariant(int64(215_000_000)),
		"mpris:artUrl":  dbus.MakeVariant("https://i.scdn.co/image/abc"),
	}
	tr := trackFromMetadata(m)
	require.NotNil(t, tr)

	assert.Equal(t, track.StableID("mpris", "file:///music/a.flac"), tr.ID)
	assert.Equal(t, "Song", tr.Title)
	assert.Equal(t, "A, B", tr.Artist)
	assert.Equal(t, "Album", tr.Album)
	assert.Equal(t, 215*time.Second, tr.Duration)
	assert.Equal(t, "https://i.scdn.co/image/abc", tr.ArtworkURL)
	assert.Nil(t, tr.Artwork)
}

func TestTrackFromMetadata_LocalArt(t *testing.T) {
	dir := t.TempDir()
	art := filepath.Join(dir, "thumb.png")
	require.NoError(t, os.WriteFile(art, []byte("png"), 0o600))

	tr := trackFromMetadata(map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath("/track/1")),
		"xesam:title":   dbus.MakeVariant("Song"),
		"mpris:artUrl":  dbus.MakeVariant("file://" + art),
	})
	require.NotNil(t, tr)
	require.NotNil(t, tr.Artwork)
	data, err := tr.Artwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestTrackFromMetadata_FileFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("jpg"), 0o600))

	tr := trackFromMetadata(map[string]dbus.Variant{
		"xesam:url":   dbus.MakeVariant("file://" + filepath.Join(dir, "song.mp3")),
		"xesam:title": dbus.MakeVariant("Song"),
	})
	require.NotNil(t, tr)
	require.NotNil(t, tr.Artwork)
	data, err := tr.Artwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("jpg"), data)
}

func TestTrackFromMetadata_Empty(t *testing.T) {
	assert.Nil(t, trackFromMetadata(nil))
	assert.Nil(t, trackFromMetadata(map[string]dbus.Variant{
		"mpris:length": dbus.MakeVariant(int64(1)),
	}))
}

func TestTrackFromMetadata_StableWithoutURL(t *testing.T) {
	m := map[string]dbus.Variant{
		"xesam:title":  dbus.MakeVariant("Song"),
		"xesam:artist": dbus.MakeVariant([]string{"A"}),
	}
	a, b := trackFromMetadata(m), trackFromMetadata(m)
	require.NotNil(t, a)
	assert.Equal(t, a.ID, b.ID)
	assert.True(t, track.ValidKey(a.ID))
}

func TestMicroseconds(t *testing.T) {
	assert.Equal(t, 2*time.Second, microseconds(int64(2_000_000)))
	assert.Equal(t, 2*time.Second, microseconds(uint64(2_000_000)))
	assert.Equal(t, 1500*time.Millisecond, microseconds(float64(1_500_000)))
	assert.Equal(t, time.Duration(0), microseconds(int64(-5)))
	assert.Equal(t, time.Duration(0), microseconds("nope"))
}
