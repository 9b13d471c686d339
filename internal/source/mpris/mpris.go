//go:build linux

// Package mpris reads playback state from an MPRIS media player over the
// D-Bus session bus.
package mpris

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/source"
	"github.com/llehouerou/presence/internal/track"
)

const (
	busPrefix       = "org.mpris.MediaPlayer2."
	objectPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propGet         = "org.freedesktop.DBus.Properties.Get"
	callTimeout     = 2 * time.Second
)

// Source polls one MPRIS player. With no bus name configured it follows
// the first player found that is playing, else the first one listed.
type Source struct {
	busName string
	log     *zap.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// New creates a source. busName may be a full name
// (org.mpris.MediaPlayer2.mpv), a short one (mpv) or empty.
func New(busName string, log *zap.Logger) (*Source, error) {
	if busName != "" && !strings.HasPrefix(busName, busPrefix) {
		busName = busPrefix + busName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{busName: busName, log: log}, nil
}

// Current implements presence.Source.
func (s *Source) Current(ctx context.Context) (track.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.conn.Connected() {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return track.Playback{}, fmt.Errorf("%w: session bus: %v", source.ErrUnavailable, err)
		}
		s.conn = conn
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	name, err := s.pickPlayer(ctx)
	if err != nil {
		return track.Playback{}, err
	}

	obj := s.conn.Object(name, objectPath)
	status, err := getProperty(ctx, obj, "PlaybackStatus")
	if err != nil {
		return track.Playback{}, fmt.Errorf("%w: %s: %v", source.ErrUnavailable, name, err)
	}
	state := parseStatus(status.Value())
	if state == track.StateStopped {
		return track.Playback{State: track.StateStopped}, nil
	}

	meta, err := getProperty(ctx, obj, "Metadata")
	if err != nil {
		return track.Playback{}, fmt.Errorf("%w: %s metadata: %v", source.ErrUnavailable, name, err)
	}
	m, _ := meta.Value().(map[string]dbus.Variant)
	t := trackFromMetadata(m)
	if t == nil {
		return track.Playback{State: track.StateStopped}, nil
	}

	var pos time.Duration
	// Some players do not implement Position; treat it as zero.
	if v, err := getProperty(ctx, obj, "Position"); err == nil {
		pos = microseconds(v.Value())
	}
	return track.Playback{State: state, Track: t, Position: pos}, nil
}

func (s *Source) pickPlayer(ctx context.Context) (string, error) {
	if s.busName != "" {
		return s.busName, nil
	}

	var names []string
	err := s.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return "", fmt.Errorf("%w: list names: %v", source.ErrUnavailable, err)
	}
	var players []string
	for _, n := range names {
		if strings.HasPrefix(n, busPrefix) {
			players = append(players, n)
		}
	}
	if len(players) == 0 {
		return "", fmt.Errorf("%w: no mpris player", source.ErrUnavailable)
	}
	sort.Strings(players)

	for _, p := range players {
		v, err := getProperty(ctx, s.conn.Object(p, objectPath), "PlaybackStatus")
		if err == nil && parseStatus(v.Value()) == track.StatePlaying {
			return p, nil
		}
	}
	return players[0], nil
}

func getProperty(ctx context.Context, obj dbus.BusObject, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propGet, 0, playerInterface, name).Store(&v)
	return v, err
}

// Close releases the bus connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
