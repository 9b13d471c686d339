//go:build linux

package mpris

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BusName(t *testing.T) {
	s, err := New("mpv", nil)
	require.NoError(t, err)
	assert.Equal(t, "org.mpris.MediaPlayer2.mpv", s.busName)

	s, err = New("org.mpris.MediaPlayer2.spotify", nil)
	require.NoError(t, err)
	assert.Equal(t, "org.mpris.MediaPlayer2.spotify", s.busName)
}

func TestCurrent_SessionBus(t *testing.T) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}

	s, err := New("presence-test-player-that-does-not-exist", nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Current(context.Background())
	assert.Error(t, err)
}
